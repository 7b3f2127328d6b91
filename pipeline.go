package go_idphoto_pipeline

import (
	"github.com/idphotolab/go-idphoto-pipeline/config"
	"github.com/idphotolab/go-idphoto-pipeline/modules"
	gotritonclient "github.com/okieraised/go-triton-client"
	"gocv.io/x/gocv"
)

// IDPhotoPipeline defines the structure of the ID photo pipeline.
type IDPhotoPipeline struct {
	Locator *modules.FaceLocator
	Cascade *modules.SegmentationCascade
}

// NewTritonIDPhotoPipeline initializes a pipeline backed by Triton-served
// models for both face detection and soft segmentation. The segmentation
// model is constructed lazily, on the first photo that reaches the neural
// strategy.
func NewTritonIDPhotoPipeline(
	tritonClient *gotritonclient.TritonGRPCClient,
	detParams *config.TritonFaceDetectionParams,
	segParams *config.SegmentationModelParams,
	opts *config.SegmentationOptions,
) (*IDPhotoPipeline, error) {
	if detParams == nil {
		detParams = config.DefaultTritonFaceDetectionParams
	}
	if segParams == nil {
		segParams = config.DefaultSegmentationModelParams
	}

	detector, err := modules.NewTritonFaceDetector(tritonClient, detParams)
	if err != nil {
		return nil, err
	}

	provider := func() (modules.SoftSegmenter, error) {
		return modules.NewSegmentationModelClient(tritonClient, segParams)
	}

	return &IDPhotoPipeline{
		Locator: modules.NewFaceLocator(detector),
		Cascade: modules.NewSegmentationCascade(opts, provider),
	}, nil
}

// NewPigoIDPhotoPipeline initializes a fully offline pipeline using an
// embedded cascade classifier for face detection and no neural segmentation.
func NewPigoIDPhotoPipeline(
	cascade []byte,
	detParams *config.PigoFaceDetectionParams,
	opts *config.SegmentationOptions,
) (*IDPhotoPipeline, error) {
	if detParams == nil {
		detParams = config.DefaultPigoFaceDetectionParams
	}

	detector, err := modules.NewPigoFaceDetector(cascade, detParams)
	if err != nil {
		return nil, err
	}

	return &IDPhotoPipeline{
		Locator: modules.NewFaceLocator(detector),
		Cascade: modules.NewSegmentationCascade(opts, nil),
	}, nil
}

// Close releases the pipeline's model resources.
func (c *IDPhotoPipeline) Close() {
	c.Cascade.Close()
}

/*
ProcessPhoto runs the full normalization pipeline on a single photo.

Inputs:

  - img (gocv.Mat): decoded input photo in BGR order.
  - spec (config.PhotoSpec): target document format.
  - dpi (int): print density.
  - replaceBackground (bool): replace the background with the spec's color.

Outputs:

  - img (*gocv.Mat): BGR photo at exactly the spec's pixel dimensions.

Returns modules.ErrNoFaceDetected when no usable face anchor is found.
*/
func (c *IDPhotoPipeline) ProcessPhoto(img gocv.Mat, spec config.PhotoSpec, dpi int, replaceBackground bool) (*gocv.Mat, error) {
	faceBox, eye, err := c.Locator.Locate(img)
	if err != nil {
		return nil, err
	}

	work := img
	var composited gocv.Mat
	if replaceBackground {
		mask := c.Cascade.Mask(img, &faceBox, nil)
		composited = modules.ReplaceBackground(img, mask, spec.BackgroundRGB, &faceBox, c.Cascade.Options)
		mask.Close()
		defer composited.Close()
		work = composited
	}

	cropped := modules.CropToSpec(work, faceBox, eye, spec, dpi, &spec.BackgroundRGB)
	return &cropped, nil
}

/*
BuildPrintSheet tiles a processed photo onto a printable sheet.

Inputs:

  - photo (gocv.Mat): processed BGR photo at its final print size.
  - layout (config.LayoutSpec): physical sheet format.
  - dpi (int): print density.
  - opts (*config.SheetOptions): margins, spacing, copy count, guide toggle.

Outputs:

  - sheet (*gocv.Mat): BGR sheet at exactly the layout's pixel dimensions.
*/
func (c *IDPhotoPipeline) BuildPrintSheet(photo gocv.Mat, layout config.LayoutSpec, dpi int, opts *config.SheetOptions) *gocv.Mat {
	sheet := modules.BuildPrintSheet(photo, layout, dpi, opts)
	return &sheet
}
