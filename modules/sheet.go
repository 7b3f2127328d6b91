package modules

import (
	"image"
	"math"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"gocv.io/x/gocv"
)

const (
	guideOutlineGray = 210
	guideTickGray    = 180
	guideGapGray     = 200
	guideTickLen     = 5
)

/*
BuildPrintSheet tiles copies of a finished photo onto a printable sheet.

Inputs:

  - photo (gocv.Mat): CV8UC3 BGR photo at its final print size.
  - layout (config.LayoutSpec): physical sheet format.
  - dpi (int): print density.
  - opts (*config.SheetOptions): margins, spacing, copy count, guide toggle.

Outputs:

  - sheet (gocv.Mat): CV8UC3 BGR sheet of exactly the layout's pixel size.

The photo is rotated a quarter turn when that strictly increases the number
of cells that fit; ties keep the original orientation. The grid is centered
and filled row-major. Cut guides only mark sheet pixels outside the photos.
*/
func BuildPrintSheet(photo gocv.Mat, layout config.LayoutSpec, dpi int, opts *config.SheetOptions) gocv.Mat {
	if opts == nil {
		opts = config.DefaultSheetOptions
	}

	sheetW := int(math.Round(layout.WidthIn * float64(dpi)))
	sheetH := int(math.Round(layout.HeightIn * float64(dpi)))
	margin := int(math.Round(opts.MarginIn * float64(dpi)))
	spacing := int(math.Round(opts.SpacingIn * float64(dpi)))

	sheet := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), sheetH, sheetW, gocv.MatTypeCV8UC3)

	availW := sheetW - 2*margin
	availH := sheetH - 2*margin

	cols, rows := gridFit(availW, availH, photo.Cols(), photo.Rows(), spacing)
	rotCols, rotRows := gridFit(availW, availH, photo.Rows(), photo.Cols(), spacing)

	cell := photo
	var rotated gocv.Mat
	if rotCols*rotRows > cols*rows {
		rotated = gocv.NewMat()
		gocv.Rotate(photo, &rotated, gocv.Rotate90CounterClockwise)
		defer rotated.Close()
		cell = rotated
		cols, rows = rotCols, rotRows
	}
	if cols < 1 || rows < 1 {
		return sheet
	}

	cellW, cellH := cell.Cols(), cell.Rows()
	gridW := cols*cellW + (cols-1)*spacing
	gridH := rows*cellH + (rows-1)*spacing
	originX := margin + (availW-gridW)/2
	originY := margin + (availH-gridH)/2

	copies := opts.Copies
	if opts.FillSheet || copies > cols*rows {
		copies = cols * rows
	}

	var placements []image.Rectangle
	for row := 0; row < rows && len(placements) < copies; row++ {
		for col := 0; col < cols && len(placements) < copies; col++ {
			x := originX + col*(cellW+spacing)
			y := originY + row*(cellH+spacing)
			if x < 0 || y < 0 || x+cellW > sheetW || y+cellH > sheetH {
				continue
			}
			rect := image.Rect(x, y, x+cellW, y+cellH)
			target := sheet.Region(rect)
			cell.CopyTo(&target)
			target.Close()
			placements = append(placements, rect)
		}
	}

	if opts.DrawGuides {
		drawCutGuides(&sheet, placements, originX, originY, cols, rows, cellW, cellH, spacing)
	}
	return sheet
}

// gridFit computes how many cells of the given size fit into the available
// area with the given spacing between cells.
func gridFit(availW, availH, cellW, cellH, spacing int) (cols, rows int) {
	if availW < cellW || availH < cellH {
		return 0, 0
	}
	cols = (availW + spacing) / (cellW + spacing)
	rows = (availH + spacing) / (cellH + spacing)
	return cols, rows
}

// drawCutGuides marks trimming aids on the sheet. Guides are only ever drawn
// on discardable sheet pixels; any pixel covered by a placed photo is left
// untouched.
func drawCutGuides(sheet *gocv.Mat, placements []image.Rectangle, originX, originY, cols, rows, cellW, cellH, spacing int) {
	for _, rect := range placements {
		x0, y0 := rect.Min.X-1, rect.Min.Y-1
		x1, y1 := rect.Max.X, rect.Max.Y

		for px := x0; px <= x1; px++ {
			setGuidePixel(sheet, placements, y0, px, guideOutlineGray)
			setGuidePixel(sheet, placements, y1, px, guideOutlineGray)
		}
		for py := y0; py <= y1; py++ {
			setGuidePixel(sheet, placements, py, x0, guideOutlineGray)
			setGuidePixel(sheet, placements, py, x1, guideOutlineGray)
		}

		for i := 1; i <= guideTickLen; i++ {
			setGuidePixel(sheet, placements, y0, x0-i, guideTickGray)
			setGuidePixel(sheet, placements, y0-i, x0, guideTickGray)
			setGuidePixel(sheet, placements, y0, x1+i, guideTickGray)
			setGuidePixel(sheet, placements, y0-i, x1, guideTickGray)
			setGuidePixel(sheet, placements, y1, x0-i, guideTickGray)
			setGuidePixel(sheet, placements, y1+i, x0, guideTickGray)
			setGuidePixel(sheet, placements, y1, x1+i, guideTickGray)
			setGuidePixel(sheet, placements, y1+i, x1, guideTickGray)
		}
	}

	if spacing > 0 {
		for col := 1; col < cols; col++ {
			x := originX + col*(cellW+spacing) - spacing/2 - 1
			for y := 0; y < sheet.Rows(); y++ {
				setGuidePixel(sheet, placements, y, x, guideGapGray)
			}
		}
		for row := 1; row < rows; row++ {
			y := originY + row*(cellH+spacing) - spacing/2 - 1
			for x := 0; x < sheet.Cols(); x++ {
				setGuidePixel(sheet, placements, y, x, guideGapGray)
			}
		}
	}
}

// setGuidePixel writes a gray pixel, clipping out-of-bounds coordinates and
// skipping pixels covered by a placed photo.
func setGuidePixel(sheet *gocv.Mat, placements []image.Rectangle, y, x int, gray uint8) {
	if y < 0 || x < 0 || y >= sheet.Rows() || x >= sheet.Cols() {
		return
	}
	pt := image.Point{X: x, Y: y}
	for _, rect := range placements {
		if pt.In(rect) {
			return
		}
	}
	for ch := 0; ch < 3; ch++ {
		sheet.SetUCharAt(y, x*3+ch, gray)
	}
}
