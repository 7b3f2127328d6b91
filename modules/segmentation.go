package modules

import (
	"image"
	"math"
	"sync"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"github.com/idphotolab/go-idphoto-pipeline/utils"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// GrabCut trimap labels, matching OpenCV's GC_* values.
const (
	gcBGD   uint8 = 0
	gcFGD   uint8 = 1
	gcPRBGD uint8 = 2
	gcPRFGD uint8 = 3
)

const borderBand = 5

// SoftSegmenter is the opaque neural segmentation capability: it maps a BGR
// image to a per-pixel foreground probability map at source resolution.
type SoftSegmenter interface {
	Infer(img gocv.Mat) (gocv.Mat, error)
}

// SegmentationModelProvider constructs the shared neural segmentation
// handle. It runs at most once, on the first photo that reaches the neural
// strategy.
type SegmentationModelProvider func() (SoftSegmenter, error)

// SegmentationCascade produces a foreground mask by trying an ordered list
// of strategies, cheapest and most precise first. It never fails: background
// replacement is an optional enhancement, so a crude mask beats no mask.
type SegmentationCascade struct {
	Options *config.SegmentationOptions

	provider SegmentationModelProvider
	initOnce sync.Once
	segModel SoftSegmenter
	segErr   error
}

// NewSegmentationCascade builds a cascade. The provider may be nil, in which
// case the neural strategy is skipped entirely.
func NewSegmentationCascade(opts *config.SegmentationOptions, provider SegmentationModelProvider) *SegmentationCascade {
	if opts == nil {
		opts = config.DefaultSegmentationOptions
	}
	return &SegmentationCascade{Options: opts, provider: provider}
}

// model returns the shared neural handle, constructing it on first use.
// Construction failure is remembered and the neural strategy stays disabled.
func (c *SegmentationCascade) model() SoftSegmenter {
	if c.provider == nil {
		return nil
	}
	c.initOnce.Do(func() {
		c.segModel, c.segErr = c.provider()
	})
	if c.segErr != nil {
		return nil
	}
	return c.segModel
}

// Close releases the neural segmentation handle.
func (c *SegmentationCascade) Close() {
	c.segModel = nil
}

/*
Mask returns a 0/255 foreground mask for the input image.

Inputs:

  - img (gocv.Mat): input photo in BGR order.
  - faceBox (*config.BoundingBox): optional face box; enables the GrabCut and
    geometric fallback strategies.
  - preferWhiteKey (*bool): overrides Options.PreferWhiteKey for this call.

Outputs:

  - mask (gocv.Mat): CV8U mask, 255 foreground, 0 background.

Strategy order: border-color-key connected components, white-key, heuristic
bright/low-saturation key (only when white keying is preferred), neural
soft-segmentation, face-anchored GrabCut, expanded face box, skin-color
range. The first applicable strategy wins; the last one never declines.
*/
func (c *SegmentationCascade) Mask(img gocv.Mat, faceBox *config.BoundingBox, preferWhiteKey *bool) gocv.Mat {
	prefer := c.Options.PreferWhiteKey
	if preferWhiteKey != nil {
		prefer = utils.DerefPointer(preferWhiteKey)
	}

	if mask, ok := borderColorKeyMask(img, c.Options.BGTolerance); ok {
		return mask
	}
	if mask, ok := whiteKeyMask(img, c.Options.BGTolerance); ok {
		return mask
	}
	if prefer {
		return heuristicWhiteKeyMask(img, c.Options.BGTolerance)
	}
	if mask, ok := c.neuralMask(img); ok {
		return mask
	}
	if faceBox != nil {
		if mask, ok := grabCutMask(img, *faceBox, c.Options.BBoxExpandX, c.Options.BBoxExpandY); ok {
			return mask
		}
		return bboxFallbackMask(img, *faceBox, c.Options.BBoxExpandX, c.Options.BBoxExpandY)
	}
	return skinKeyMask(img)
}

// borderStats samples a band around all four image edges and returns the
// per-channel mean color plus the channel-averaged standard deviation.
func borderStats(img gocv.Mat) (mean [3]float64, meanStd float64) {
	rows, cols := img.Rows(), img.Cols()
	band := borderBand
	if band > rows/2 {
		band = rows / 2
	}
	if band > cols/2 {
		band = cols / 2
	}
	if band < 1 {
		band = 1
	}

	var samples [3][]float64
	for y := 0; y < rows; y++ {
		inBandRow := y < band || y >= rows-band
		for x := 0; x < cols; x++ {
			if !inBandRow && x >= band && x < cols-band {
				continue
			}
			vec := img.GetVecbAt(y, x)
			for ch := 0; ch < 3; ch++ {
				samples[ch] = append(samples[ch], float64(vec[ch]))
			}
		}
	}

	var stdSum float64
	for ch := 0; ch < 3; ch++ {
		m, std := stat.MeanStdDev(samples[ch], nil)
		mean[ch] = m
		stdSum += std
	}
	return mean, stdSum / 3
}

// backgroundDistanceMask marks pixels whose Euclidean color distance to the
// border mean is below thresh.
func backgroundDistanceMask(img gocv.Mat, mean [3]float64, thresh float64) gocv.Mat {
	rows, cols := img.Rows(), img.Cols()
	mask := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			vec := img.GetVecbAt(y, x)
			d0 := float64(vec[0]) - mean[0]
			d1 := float64(vec[1]) - mean[1]
			d2 := float64(vec[2]) - mean[2]
			if math.Sqrt(d0*d0+d1*d1+d2*d2) < thresh {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}
	return mask
}

func medianSmooth(mask *gocv.Mat) {
	gocv.MedianBlur(*mask, mask, 5)
}

// foregroundRatio is the fraction of mask pixels that are foreground.
func foregroundRatio(mask gocv.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}

// borderColorKeyMask keys out a uniform background color, keeping only
// background regions connected to the image border. Declines when the border
// is not uniform or no background component touches the border.
func borderColorKeyMask(img gocv.Mat, tolerance float64) (gocv.Mat, bool) {
	mean, meanStd := borderStats(img)
	if meanStd > 45 {
		return gocv.Mat{}, false
	}

	thresh := math.Max(10, tolerance) + 1.5*meanStd
	bgCandidate := backgroundDistanceMask(img, mean, thresh)
	defer bgCandidate.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	numLabels := gocv.ConnectedComponents(bgCandidate, &labels)
	if numLabels <= 1 {
		return gocv.Mat{}, false
	}

	rows, cols := img.Rows(), img.Cols()
	borderLabels := map[int32]bool{}
	for x := 0; x < cols; x++ {
		borderLabels[labels.GetIntAt(0, x)] = true
		borderLabels[labels.GetIntAt(rows-1, x)] = true
	}
	for y := 0; y < rows; y++ {
		borderLabels[labels.GetIntAt(y, 0)] = true
		borderLabels[labels.GetIntAt(y, cols-1)] = true
	}
	// Label 0 is the non-candidate region, not a background component.
	delete(borderLabels, 0)
	if len(borderLabels) == 0 {
		return gocv.Mat{}, false
	}

	fg := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if !borderLabels[labels.GetIntAt(y, x)] {
				fg.SetUCharAt(y, x, 255)
			}
		}
	}
	medianSmooth(&fg)
	return fg, true
}

// whiteKeyMask keys out a bright uniform border color. Declines when the
// border is not bright or not uniform enough.
func whiteKeyMask(img gocv.Mat, tolerance float64) (gocv.Mat, bool) {
	mean, meanStd := borderStats(img)
	brightness := (mean[0] + mean[1] + mean[2]) / 3
	if brightness < 180-math.Max(0, tolerance-25) || meanStd > 40 {
		return gocv.Mat{}, false
	}

	bg := backgroundDistanceMask(img, mean, math.Max(10, tolerance))
	defer bg.Close()

	fg := gocv.NewMat()
	gocv.BitwiseNot(bg, &fg)
	medianSmooth(&fg)
	return fg, true
}

// heuristicWhiteKeyMask is the cheap always-available key: background is
// whatever is bright and desaturated.
func heuristicWhiteKeyMask(img gocv.Mat, tolerance float64) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	vThresh := math.Max(180, 255-tolerance*1.5)
	sThresh := math.Min(60, math.Max(20, tolerance))

	bg := gocv.NewMat()
	defer bg.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 0, vThresh+1, 0),
		gocv.NewScalar(180, sThresh-1, 255, 0),
		&bg)

	fg := gocv.NewMat()
	gocv.BitwiseNot(bg, &fg)
	medianSmooth(&fg)
	return fg
}

// neuralMask thresholds the soft-segmentation probability map. A near-empty
// or near-full result is treated as a degenerate solve and declined.
func (c *SegmentationCascade) neuralMask(img gocv.Mat) (gocv.Mat, bool) {
	model := c.model()
	if model == nil {
		return gocv.Mat{}, false
	}

	prob, err := model.Infer(img)
	if err != nil {
		return gocv.Mat{}, false
	}
	defer prob.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(prob, &blurred, image.Point{X: 7, Y: 7}, 0, 0, gocv.BorderDefault)

	rows, cols := img.Rows(), img.Cols()
	mask := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if blurred.GetFloatAt(y, x) > c.Options.Threshold {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}
	medianSmooth(&mask)

	if ratio := foregroundRatio(mask); ratio <= 0.02 || ratio >= 0.98 {
		mask.Close()
		return gocv.Mat{}, false
	}
	return mask, true
}

// expandBox pads the face box by the given fractions of its own size,
// clamped to the image.
func expandBox(box config.BoundingBox, expandX, expandY float64, cols, rows int) image.Rectangle {
	padX := int(float64(box.W) * expandX)
	padY := int(float64(box.H) * expandY)
	x0 := max(0, box.X-padX)
	y0 := max(0, box.Y-padY)
	x1 := min(cols-1, box.X+box.W+padX)
	y1 := min(rows-1, box.Y+box.H+padY)
	return image.Rect(x0, y0, x1, y1)
}

func fillRect(mask *gocv.Mat, r image.Rectangle, value uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			mask.SetUCharAt(y, x, value)
		}
	}
}

// grabCutMask seeds an iterative energy-minimization segmentation from a
// face-anchored trimap: sure background outside the expanded box, probable
// foreground inside it, sure foreground in the central 20-80% of the face
// box itself.
func grabCutMask(img gocv.Mat, faceBox config.BoundingBox, expandX, expandY float64) (gocv.Mat, bool) {
	rows, cols := img.Rows(), img.Cols()
	box := faceBox.ClampTo(cols, rows)

	expanded := expandBox(box, expandX, expandY, cols, rows)
	// GrabCut needs both background and foreground seeds to converge.
	if expanded.Min.X == 0 && expanded.Min.Y == 0 && expanded.Max.X >= cols-1 && expanded.Max.Y >= rows-1 {
		return gocv.Mat{}, false
	}

	cx0 := max(0, box.X+int(float64(box.W)*0.2))
	cy0 := max(0, box.Y+int(float64(box.H)*0.2))
	cx1 := min(cols-1, box.X+int(float64(box.W)*0.8))
	cy1 := min(rows-1, box.Y+int(float64(box.H)*0.8))
	sure := image.Rect(cx0, cy0, cx1, cy1)
	if sure.Empty() {
		return gocv.Mat{}, false
	}

	trimap := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	defer trimap.Close()
	fillRect(&trimap, expanded, gcPRFGD)
	fillRect(&trimap, sure, gcFGD)

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()
	gocv.GrabCut(img, &trimap, image.Rectangle{}, &bgdModel, &fgdModel, 5, gocv.GCInitWithMask)

	fg := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := trimap.GetUCharAt(y, x)
			if v == gcFGD || v == gcPRFGD {
				fg.SetUCharAt(y, x, 255)
			}
		}
	}
	medianSmooth(&fg)

	// A majority-background sure-foreground window means the solve inverted.
	win := fg.Region(sure)
	winArea := sure.Dx() * sure.Dy()
	inverted := winArea > 0 && gocv.CountNonZero(win)*2 < winArea
	win.Close()
	if inverted {
		gocv.BitwiseNot(fg, &fg)
	}

	// Protect the subject against over-erosion.
	fillRect(&fg, expanded, 255)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 7, Y: 7})
	defer kernel.Close()
	gocv.Dilate(fg, &fg, kernel)
	return fg, true
}

// bboxFallbackMask is the crude geometric fallback: foreground is just the
// expanded face box.
func bboxFallbackMask(img gocv.Mat, faceBox config.BoundingBox, expandX, expandY float64) gocv.Mat {
	rows, cols := img.Rows(), img.Cols()
	box := faceBox.ClampTo(cols, rows)
	expanded := expandBox(box, math.Max(0.1, expandX), math.Max(0.2, expandY), cols, rows)

	fg := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	fillRect(&fg, expanded, 255)
	return fg
}

// skinKeyMask is the last resort: a coarse skin-tone range in HSV, dilated
// to fill gaps.
func skinKeyMask(img gocv.Mat) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, 20, 70, 0),
		gocv.NewScalar(20, 255, 255, 0),
		&mask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()
	gocv.Dilate(mask, &mask, kernel)
	gocv.Dilate(mask, &mask, kernel)
	gocv.Erode(mask, &mask, kernel)
	return mask
}
