package utils

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
	"gocv.io/x/gocv"
)

// NormalizeOrientation applies the EXIF orientation tag from the original
// encoded bytes to an already-decoded Mat, returning an upright copy. Images
// without usable EXIF data are returned unchanged (as a clone, so the caller
// owns the result either way).
func NormalizeOrientation(raw []byte, img gocv.Mat) gocv.Mat {
	exifData, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return img.Clone()
	}

	orientationTag, err := exifData.Get(exif.Orientation)
	if err != nil {
		return img.Clone()
	}

	orientation, err := orientationTag.Int(0)
	if err != nil {
		return img.Clone()
	}

	dst := gocv.NewMat()
	switch orientation {
	case 3:
		gocv.Rotate(img, &dst, gocv.Rotate180Clockwise)
	case 6:
		gocv.Rotate(img, &dst, gocv.Rotate90Clockwise)
	case 8:
		gocv.Rotate(img, &dst, gocv.Rotate90CounterClockwise)
	default:
		dst.Close()
		return img.Clone()
	}
	return dst
}
