package modules

import (
	"image"
	"image/color"
	"math"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"gocv.io/x/gocv"
)

/*
ReplaceBackground composites the photo over a solid background color using a
feathered version of the foreground mask.

Inputs:

  - img (gocv.Mat): input photo in BGR order.
  - mask (gocv.Mat): CV8U foreground mask, 255 foreground.
  - backgroundRGB ([3]uint8): replacement color in RGB order.
  - faceBox (*config.BoundingBox): optional face box; enables the face
    protection ellipse.
  - opts (*config.SegmentationOptions): compositing tunables.

Outputs:

  - out (gocv.Mat): CV8UC3 BGR photo with the background replaced.

A mask that covers nearly the whole frame is assumed to be a failed
segmentation; the white-key strategy is retried on the photo before
compositing.
*/
func ReplaceBackground(img gocv.Mat, mask gocv.Mat, backgroundRGB [3]uint8, faceBox *config.BoundingBox, opts *config.SegmentationOptions) gocv.Mat {
	if opts == nil {
		opts = config.DefaultSegmentationOptions
	}

	work := mask.Clone()
	if foregroundRatio(work) > 0.98 {
		if retry, ok := whiteKeyMask(img, opts.BGTolerance); ok {
			work.Close()
			work = retry
		}
	}
	defer work.Close()

	// Facial detail must never feather into the background.
	if faceBox != nil {
		box := faceBox.ClampTo(img.Cols(), img.Rows())
		center := image.Point{X: box.X + box.W/2, Y: box.Y + box.H/2}
		axisX := int(float64(box.W) * opts.FaceProtect)
		axisY := int(float64(box.H) * (opts.FaceProtect + 0.15))
		protect := gocv.Zeros(img.Rows(), img.Cols(), gocv.MatTypeCV8U)
		gocv.Ellipse(&protect, center, image.Point{X: axisX, Y: axisY}, 0, 0, 360, color.RGBA{R: 255, G: 255, B: 255}, -1)
		gocv.BitwiseOr(work, protect, &work)
		protect.Close()
	}

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 3, Y: 3})
	gocv.Erode(work, &work, kernel)
	kernel.Close()

	alpha := gocv.NewMat()
	defer alpha.Close()
	gocv.GaussianBlur(work, &alpha, image.Point{X: 11, Y: 11}, 0, 0, gocv.BorderDefault)

	rows, cols := img.Rows(), img.Cols()
	out := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	bg := [3]float64{float64(backgroundRGB[2]), float64(backgroundRGB[1]), float64(backgroundRGB[0])}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			a := float64(alpha.GetUCharAt(y, x)) / 255
			vec := img.GetVecbAt(y, x)
			for ch := 0; ch < 3; ch++ {
				blended := float64(vec[ch])*a + bg[ch]*(1-a)
				out.SetUCharAt(y, x*3+ch, uint8(math.Round(blended)))
			}
		}
	}
	return out
}
