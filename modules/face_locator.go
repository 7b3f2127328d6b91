package modules

import (
	"math"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"gocv.io/x/gocv"
)

// FaceLocator turns raw detector candidates into the single face anchor the
// crop engine needs.
type FaceLocator struct {
	detector FaceDetector
}

func NewFaceLocator(detector FaceDetector) *FaceLocator {
	return &FaceLocator{detector: detector}
}

/*
Locate finds the dominant face in the input image.

Inputs:

  - img (gocv.Mat): input photo in BGR order.

Outputs:

  - box (config.BoundingBox): face bounding box, clamped to image bounds.
  - eye (config.EyePoint): eye anchor; midpoint of the eye landmarks when the
    detector reports them, otherwise estimated at 35% down the face box.

Fails with ErrNoFaceDetected when both the strict and the permissive
detection pass come back empty. When there are multiple candidates the one
with the largest area wins; there is no other tie-break.
*/
func (c *FaceLocator) Locate(img gocv.Mat) (config.BoundingBox, config.EyePoint, error) {
	dets, err := c.detector.Detect(img, false)
	if err != nil {
		return config.BoundingBox{}, config.EyePoint{}, err
	}
	if len(dets) == 0 {
		dets, err = c.detector.Detect(img, true)
		if err != nil {
			return config.BoundingBox{}, config.EyePoint{}, err
		}
	}
	if len(dets) == 0 {
		return config.BoundingBox{}, config.EyePoint{}, ErrNoFaceDetected
	}

	best := dets[0]
	for _, det := range dets[1:] {
		if det.Box.Area() > best.Box.Area() {
			best = det
		}
	}

	box := best.Box.ClampTo(img.Cols(), img.Rows())

	var eye config.EyePoint
	if best.LeftEye != nil && best.RightEye != nil {
		eye = config.EyePoint{
			X: (best.LeftEye.X + best.RightEye.X) / 2,
			Y: (best.LeftEye.Y + best.RightEye.Y) / 2,
		}
	} else {
		eye = config.EyePoint{
			X: box.X + box.W/2,
			Y: box.Y + int(math.Round(float64(box.H)*0.35)),
		}
	}
	return box, eye, nil
}
