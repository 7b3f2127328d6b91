package modules

import (
	"image"
	"image/color"
	"math"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"gocv.io/x/gocv"
)

// OutputSizePx converts a photo spec's physical dimensions to pixels at the
// given print density.
func OutputSizePx(spec config.PhotoSpec, dpi int) (width, height int) {
	width = int(math.Round(spec.WidthIn * float64(dpi)))
	height = int(math.Round(spec.HeightIn * float64(dpi)))
	return width, height
}

/*
CropToSpec scales and crops the photo so the head height and eye line land
where the spec requires.

Inputs:

  - img (gocv.Mat): input photo in BGR order.
  - faceBox (config.BoundingBox): detected face box in source pixels.
  - eye (config.EyePoint): eye line midpoint in source pixels.
  - spec (config.PhotoSpec): target document format.
  - dpi (int): print density.
  - backgroundRGB (*[3]uint8): padding color in RGB order; white when nil.

Outputs:

  - out (gocv.Mat): CV8UC3 BGR photo of exactly the spec's pixel size.

The scale factor maps the face box height to the spec's head height ratio.
When the crop window extends past the source, the image is padded with the
background color first so the slice always succeeds.
*/
func CropToSpec(img gocv.Mat, faceBox config.BoundingBox, eye config.EyePoint, spec config.PhotoSpec, dpi int, backgroundRGB *[3]uint8) gocv.Mat {
	outW, outH := OutputSizePx(spec, dpi)

	boxH := faceBox.H
	if boxH < 1 {
		boxH = 1
	}
	scale := spec.HeadHeightRatio * float64(outH) / float64(boxH)

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(img, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)

	eyeX := int(math.Round(float64(eye.X) * scale))
	eyeY := int(math.Round(float64(eye.Y) * scale))
	targetEyeY := int(math.Round(float64(outH) * (1 - spec.EyeLineFromBottomRatio)))

	left := int(math.Round(float64(eyeX) - float64(outW)/2))
	top := eyeY - targetEyeY

	pad := [3]uint8{255, 255, 255}
	if backgroundRGB != nil {
		pad = *backgroundRGB
	}
	out := cropWithPadding(scaled, left, top, outW, outH, pad)

	// Padding guarantees the slice is exact, but any residual size mismatch
	// must still be snapped to the target dimensions.
	if out.Cols() != outW || out.Rows() != outH {
		interp := gocv.InterpolationCubic
		if out.Cols() > outW {
			interp = gocv.InterpolationArea
		}
		fixed := gocv.NewMat()
		gocv.Resize(out, &fixed, image.Point{X: outW, Y: outH}, 0, 0, interp)
		out.Close()
		out = fixed
	}
	return out
}

// cropWithPadding slices a w x h window at (left, top), extending the source
// with the pad color wherever the window leaves it.
func cropWithPadding(img gocv.Mat, left, top, w, h int, pad [3]uint8) gocv.Mat {
	padLeft := 0
	if left < 0 {
		padLeft = -left
	}
	padTop := 0
	if top < 0 {
		padTop = -top
	}
	padRight := 0
	if left+w > img.Cols() {
		padRight = left + w - img.Cols()
	}
	padBottom := 0
	if top+h > img.Rows() {
		padBottom = top + h - img.Rows()
	}

	src := img
	var padded gocv.Mat
	if padLeft > 0 || padTop > 0 || padRight > 0 || padBottom > 0 {
		padded = gocv.NewMat()
		gocv.CopyMakeBorder(img, &padded, padTop, padBottom, padLeft, padRight,
			gocv.BorderConstant, color.RGBA{R: pad[0], G: pad[1], B: pad[2]})
		defer padded.Close()
		src = padded
	}

	region := src.Region(image.Rect(left+padLeft, top+padTop, left+padLeft+w, top+padTop+h))
	defer region.Close()
	return region.Clone()
}
