package utils

import (
	"errors"
	"fmt"
	"gocv.io/x/gocv"
	"image/jpeg"
	"os"
)

// ErrUnreadableImage is returned when input bytes cannot be decoded.
var ErrUnreadableImage = errors.New("unreadable image")

// ConvertImageToMat decodes encoded image bytes into a BGR Mat. BGR is the
// internal channel order everywhere in the pipeline; conversion to RGB
// happens only when encoding back out.
func ConvertImageToMat(bImage []byte) (*gocv.Mat, error) {
	srcMat, err := gocv.IMDecode(bImage, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if srcMat.Empty() {
		return nil, ErrUnreadableImage
	}
	return &srcMat, nil
}

// OpenCVImageToJPEG writes a BGR Mat to a JPEG file.
func OpenCVImageToJPEG(fPath string, jpegQuality int, img gocv.Mat) error {
	outImg, err := img.ToImage()
	if err != nil {
		return err
	}

	f, err := os.Create(fPath)
	if err != nil {
		return err
	}
	defer f.Close()

	opt := jpeg.Options{
		Quality: jpegQuality,
	}
	err = jpeg.Encode(f, outImg, &opt)
	if err != nil {
		return err
	}
	return nil
}
