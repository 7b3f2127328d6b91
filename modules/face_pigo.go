package modules

import (
	"fmt"

	pigo "github.com/esimov/pigo/core"
	"github.com/idphotolab/go-idphoto-pipeline/config"
	"gocv.io/x/gocv"
)

// PigoFaceDetector is the cascade-classifier detector variant. It runs fully
// in-process on a pre-trained pigo cascade and reports no eye landmarks, so
// the locator falls back to the geometric eye estimate.
type PigoFaceDetector struct {
	classifier  *pigo.Pigo
	ModelParams *config.PigoFaceDetectionParams
}

func NewPigoFaceDetector(cascade []byte, cfg *config.PigoFaceDetectionParams) (*PigoFaceDetector, error) {
	if cfg == nil {
		cfg = config.DefaultPigoFaceDetectionParams
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack pigo cascade: %w", err)
	}

	return &PigoFaceDetector{
		classifier:  classifier,
		ModelParams: cfg,
	}, nil
}

func (c *PigoFaceDetector) Detect(img gocv.Mat, permissive bool) ([]config.FaceDetectionResult, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	rows, cols := gray.Rows(), gray.Cols()
	pixels := gray.ToBytes()

	minSize := c.ModelParams.MinSize
	quality := c.ModelParams.QualityThreshold
	if permissive {
		minSize = c.ModelParams.RelaxedMinSize
		quality = c.ModelParams.RelaxedQuality
	}
	shorter := cols
	if rows < cols {
		shorter = rows
	}
	maxSize := int(float64(shorter) * c.ModelParams.MaxSizeFraction)
	if maxSize <= minSize {
		maxSize = minSize + 1
	}

	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: c.ModelParams.ShiftFactor,
		ScaleFactor: c.ModelParams.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := c.classifier.RunCascade(cParams, 0.0)
	dets = c.classifier.ClusterDetections(dets, c.ModelParams.ClusterThreshold)

	results := make([]config.FaceDetectionResult, 0, len(dets))
	for _, det := range dets {
		if det.Q < quality {
			continue
		}
		half := det.Scale / 2
		box := config.BoundingBox{
			X: det.Col - half,
			Y: det.Row - half,
			W: det.Scale,
			H: det.Scale,
		}.ClampTo(cols, rows)
		results = append(results, config.FaceDetectionResult{
			Box:   box,
			Score: det.Q,
		})
	}
	return results, nil
}
