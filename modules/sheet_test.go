package modules

import (
	"image"
	"testing"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

var letterLayout = config.LayoutSpec{WidthIn: 8.5, HeightIn: 11}

func TestGridFit(t *testing.T) {
	cols, rows := gridFit(2400, 3150, 600, 600, 15)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 5, rows)

	cols, rows = gridFit(500, 500, 600, 600, 0)
	assert.Equal(t, 0, cols)
	assert.Equal(t, 0, rows)
}

func TestBuildPrintSheet_Dimensions(t *testing.T) {
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 600, 600, gocv.MatTypeCV8UC3)
	defer photo.Close()

	sheet := BuildPrintSheet(photo, letterLayout, 300, nil)
	defer sheet.Close()

	assert.Equal(t, 2550, sheet.Cols())
	assert.Equal(t, 3300, sheet.Rows())
}

func TestBuildPrintSheet_OversizedPhotoLeavesSheetBlank(t *testing.T) {
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 900, 900, gocv.MatTypeCV8UC3)
	defer photo.Close()

	layout := config.LayoutSpec{WidthIn: 2, HeightIn: 2}
	sheet := BuildPrintSheet(photo, layout, 300, nil)
	defer sheet.Close()

	// The photo fits in neither orientation; nothing is placed or clipped.
	count := 0
	for y := 0; y < sheet.Rows(); y++ {
		for x := 0; x < sheet.Cols(); x++ {
			if sheet.GetVecbAt(y, x)[0] != 255 {
				count++
			}
		}
	}
	assert.Equal(t, 0, count)
}

func TestBuildPrintSheet_PlacedCount(t *testing.T) {
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 600, 600, gocv.MatTypeCV8UC3)
	defer photo.Close()

	opts := &config.SheetOptions{
		MarginIn:   0.25,
		SpacingIn:  0.05,
		Copies:     6,
		DrawGuides: false,
	}
	sheet := BuildPrintSheet(photo, letterLayout, 300, opts)
	defer sheet.Close()

	// 6 copies of the photo color, everything else white.
	count := 0
	for y := 0; y < sheet.Rows(); y++ {
		for x := 0; x < sheet.Cols(); x++ {
			if sheet.GetVecbAt(y, x)[0] == 10 {
				count++
			}
		}
	}
	assert.Equal(t, 6*600*600, count)
}

func TestBuildPrintSheet_FillSheet(t *testing.T) {
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 600, 600, gocv.MatTypeCV8UC3)
	defer photo.Close()

	opts := &config.SheetOptions{
		MarginIn:  0.25,
		SpacingIn: 0.05,
		Copies:    1,
		FillSheet: true,
	}
	sheet := BuildPrintSheet(photo, letterLayout, 300, opts)
	defer sheet.Close()

	// Available area is 2400x3150 with 15px spacing: 3 cols x 5 rows.
	count := 0
	for y := 0; y < sheet.Rows(); y++ {
		for x := 0; x < sheet.Cols(); x++ {
			if sheet.GetVecbAt(y, x)[0] == 10 {
				count++
			}
		}
	}
	assert.Equal(t, 15*600*600, count)
}

func TestBuildPrintSheet_RotationOnlyWhenStrictlyBetter(t *testing.T) {
	// A square photo fits identically both ways; the tie keeps the original
	// orientation and the sheet is deterministic.
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 600, 600, gocv.MatTypeCV8UC3)
	defer photo.Close()

	opts := &config.SheetOptions{MarginIn: 0.25, Copies: 1}
	a := BuildPrintSheet(photo, letterLayout, 300, opts)
	defer a.Close()
	b := BuildPrintSheet(photo, letterLayout, 300, opts)
	defer b.Close()
	assert.Equal(t, a.ToBytes(), b.ToBytes())

	// A wide photo on a portrait sheet gains cells when rotated:
	// 900x300 fits 2x10=20 upright, rotated 300x900 fits 8x3=24.
	wide := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 300, 900, gocv.MatTypeCV8UC3)
	defer wide.Close()

	sheet := BuildPrintSheet(wide, letterLayout, 300, &config.SheetOptions{MarginIn: 0.25, FillSheet: true})
	defer sheet.Close()

	count := 0
	for y := 0; y < sheet.Rows(); y++ {
		for x := 0; x < sheet.Cols(); x++ {
			if sheet.GetVecbAt(y, x)[0] == 10 {
				count++
			}
		}
	}
	assert.Equal(t, 24*300*900, count)
}

func TestBuildPrintSheet_SingleCopyRoundTrip(t *testing.T) {
	photo := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer photo.Close()
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			photo.SetUCharAt(y, x*3, uint8(x))
			photo.SetUCharAt(y, x*3+1, uint8(y))
			photo.SetUCharAt(y, x*3+2, uint8((x+y)/2))
		}
	}

	layout := config.LayoutSpec{WidthIn: 2, HeightIn: 2}
	opts := &config.SheetOptions{Copies: 1}
	sheet := BuildPrintSheet(photo, layout, 100, opts)
	defer sheet.Close()

	// With zero margin, zero spacing, one copy and no guides the centered
	// cell is recoverable pixel for pixel.
	region := sheet.Region(imageRectCenter(sheet.Cols(), sheet.Rows(), 200, 200))
	defer region.Close()
	assert.Equal(t, photo.ToBytes(), region.Clone().ToBytes())
}

func TestBuildPrintSheet_GuidesNeverTouchPhotos(t *testing.T) {
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 600, 600, gocv.MatTypeCV8UC3)
	defer photo.Close()

	opts := &config.SheetOptions{
		MarginIn:   0.25,
		SpacingIn:  0.05,
		Copies:     6,
		DrawGuides: true,
	}
	sheet := BuildPrintSheet(photo, letterLayout, 300, opts)
	defer sheet.Close()

	count := 0
	for y := 0; y < sheet.Rows(); y++ {
		for x := 0; x < sheet.Cols(); x++ {
			if sheet.GetVecbAt(y, x)[0] == 10 {
				count++
			}
		}
	}
	assert.Equal(t, 6*600*600, count)
}

func imageRectCenter(sheetW, sheetH, cellW, cellH int) image.Rectangle {
	x := (sheetW - cellW) / 2
	y := (sheetH - cellH) / 2
	return image.Rect(x, y, x+cellW, y+cellH)
}
