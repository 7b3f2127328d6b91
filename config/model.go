package config

import "time"

// TritonFaceDetectionParams configures the landmark-based neural detector.
type TritonFaceDetectionParams struct {
	ModelName             string        `json:"model_name"`
	Mean                  float64       `json:"mean"`
	Scale                 float64       `json:"scale"`
	ScoreThreshold        float32       `json:"score_threshold"`
	RelaxedScoreThreshold float32       `json:"relaxed_score_threshold"`
	MinEyeDistance        float32       `json:"min_eye_distance"`
	Timeout               time.Duration `json:"timeout"`
}

func NewTritonFaceDetectionParams(modelName string, mean, scale float64, scoreThreshold, relaxedScoreThreshold, minEyeDistance float32, timeout time.Duration) *TritonFaceDetectionParams {
	return &TritonFaceDetectionParams{
		ModelName:             modelName,
		Mean:                  mean,
		Scale:                 scale,
		ScoreThreshold:        scoreThreshold,
		RelaxedScoreThreshold: relaxedScoreThreshold,
		MinEyeDistance:        minEyeDistance,
		Timeout:               timeout,
	}
}

var DefaultTritonFaceDetectionParams = &TritonFaceDetectionParams{
	ModelName:             "scrfd",
	Mean:                  127.5,
	Scale:                 0.00784313725490196,
	ScoreThreshold:        0.5,
	RelaxedScoreThreshold: 0.3,
	MinEyeDistance:        8,
	Timeout:               10 * time.Second,
}

// PigoFaceDetectionParams configures the pure-Go cascade-classifier detector.
type PigoFaceDetectionParams struct {
	MinSize          int     `json:"min_size"`
	RelaxedMinSize   int     `json:"relaxed_min_size"`
	MaxSizeFraction  float64 `json:"max_size_fraction"`
	ShiftFactor      float64 `json:"shift_factor"`
	ScaleFactor      float64 `json:"scale_factor"`
	ClusterThreshold float64 `json:"cluster_threshold"`
	QualityThreshold float32 `json:"quality_threshold"`
	RelaxedQuality   float32 `json:"relaxed_quality"`
}

var DefaultPigoFaceDetectionParams = &PigoFaceDetectionParams{
	MinSize:          40,
	RelaxedMinSize:   20,
	MaxSizeFraction:  0.8,
	ShiftFactor:      0.1,
	ScaleFactor:      1.1,
	ClusterThreshold: 0.2,
	QualityThreshold: 5.0,
	RelaxedQuality:   2.0,
}

// SegmentationModelParams configures the neural soft-segmentation model.
type SegmentationModelParams struct {
	ModelName string        `json:"model_name"`
	Mean      float64       `json:"mean"`
	Scale     float64       `json:"scale"`
	Timeout   time.Duration `json:"timeout"`
}

func NewSegmentationModelParams(modelName string, mean, scale float64, timeout time.Duration) *SegmentationModelParams {
	return &SegmentationModelParams{
		ModelName: modelName,
		Mean:      mean,
		Scale:     scale,
		Timeout:   timeout,
	}
}

var DefaultSegmentationModelParams = &SegmentationModelParams{
	ModelName: "selfie_segmentation",
	Mean:      127.5,
	Scale:     0.00784313725490196,
	Timeout:   10 * time.Second,
}

// SegmentationOptions tunes the foreground mask cascade and compositing.
type SegmentationOptions struct {
	// Threshold is the probability cutoff for the neural mask.
	Threshold float32 `json:"threshold"`
	// BGTolerance is the color distance tolerance for the key strategies.
	BGTolerance float64 `json:"bg_tolerance"`
	// BBoxExpandX and BBoxExpandY pad the face box (as fractions of box
	// width/height) when building the GrabCut trimap and bbox fallback.
	BBoxExpandX float64 `json:"bbox_expand_x"`
	BBoxExpandY float64 `json:"bbox_expand_y"`
	// FaceProtect sizes the ellipse forced to foreground during compositing.
	FaceProtect float64 `json:"face_protect"`
	// PreferWhiteKey enables the heuristic bright/low-saturation key when
	// the border-derived key strategies are not applicable.
	PreferWhiteKey bool `json:"prefer_white_key"`
}

var DefaultSegmentationOptions = &SegmentationOptions{
	Threshold:      0.5,
	BGTolerance:    25.0,
	BBoxExpandX:    0.4,
	BBoxExpandY:    0.6,
	FaceProtect:    0.4,
	PreferWhiteKey: false,
}

// SheetOptions tunes print sheet packing.
type SheetOptions struct {
	MarginIn  float64 `json:"margin_in"`
	SpacingIn float64 `json:"spacing_in"`
	// Copies is the requested number of photos. Ignored when FillSheet is set.
	Copies int `json:"copies"`
	// FillSheet packs as many copies as fit instead of honoring Copies.
	FillSheet  bool `json:"fill_sheet"`
	DrawGuides bool `json:"draw_guides"`
}

var DefaultSheetOptions = &SheetOptions{
	MarginIn:   0.25,
	SpacingIn:  0.05,
	Copies:     6,
	FillSheet:  false,
	DrawGuides: true,
}
