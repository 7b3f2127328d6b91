package go_idphoto_pipeline

import (
	"os"
	"testing"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"github.com/idphotolab/go-idphoto-pipeline/modules"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

type fixedDetector struct {
	results []config.FaceDetectionResult
}

func (d *fixedDetector) Detect(img gocv.Mat, permissive bool) ([]config.FaceDetectionResult, error) {
	return d.results, nil
}

func newTestPipeline(results []config.FaceDetectionResult) *IDPhotoPipeline {
	return &IDPhotoPipeline{
		Locator: modules.NewFaceLocator(&fixedDetector{results: results}),
		Cascade: modules.NewSegmentationCascade(nil, nil),
	}
}

func genTestPortrait() gocv.Mat {
	// Bright uniform background with a dark subject block around the face.
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(245, 245, 245, 0), 800, 700, gocv.MatTypeCV8UC3)
	for y := 150; y < 700; y++ {
		for x := 200; x < 500; x++ {
			img.SetUCharAt(y, x*3, 60)
			img.SetUCharAt(y, x*3+1, 90)
			img.SetUCharAt(y, x*3+2, 130)
		}
	}
	return img
}

func TestProcessPhoto(t *testing.T) {
	img := genTestPortrait()
	defer img.Close()

	pipeline := newTestPipeline([]config.FaceDetectionResult{
		{Box: config.BoundingBox{X: 250, Y: 160, W: 180, H: 200}, Score: 0.9},
	})
	defer pipeline.Close()

	spec := config.PhotoSpec{
		Name:                   "United States Passport",
		WidthIn:                2,
		HeightIn:               2,
		HeadHeightRatio:        0.69,
		EyeLineFromBottomRatio: 0.55,
		BackgroundRGB:          [3]uint8{255, 255, 255},
	}

	out, err := pipeline.ProcessPhoto(img, spec, 300, true)
	assert.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 600, out.Cols())
	assert.Equal(t, 600, out.Rows())
}

func TestProcessPhoto_NoFace(t *testing.T) {
	img := genTestPortrait()
	defer img.Close()

	pipeline := newTestPipeline(nil)
	defer pipeline.Close()

	spec := config.PhotoSpec{WidthIn: 2, HeightIn: 2, HeadHeightRatio: 0.69, EyeLineFromBottomRatio: 0.55}
	_, err := pipeline.ProcessPhoto(img, spec, 300, false)
	assert.ErrorIs(t, err, modules.ErrNoFaceDetected)
}

func TestBuildPrintSheet(t *testing.T) {
	photo := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 600, 600, gocv.MatTypeCV8UC3)
	defer photo.Close()

	pipeline := newTestPipeline(nil)
	defer pipeline.Close()

	layout := config.LayoutSpec{WidthIn: 8.5, HeightIn: 11}
	sheet := pipeline.BuildPrintSheet(photo, layout, 300, nil)
	defer sheet.Close()

	assert.Equal(t, 2550, sheet.Cols())
	assert.Equal(t, 3300, sheet.Rows())
}

func TestNewTritonIDPhotoPipeline(t *testing.T) {
	tritonURL := os.Getenv("TRITON_TEST_URL")
	if tritonURL == "" {
		t.Skip("TRITON_TEST_URL not set")
	}

	tritonClient, err := gotritonclient.NewTritonGRPCClient(
		tritonURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
	)
	assert.NoError(t, err)

	pipeline, err := NewTritonIDPhotoPipeline(tritonClient, nil, nil, nil)
	assert.NoError(t, err)
	assert.NotNil(t, pipeline)
	defer pipeline.Close()

	img := genTestPortrait()
	defer img.Close()

	spec := config.PhotoSpec{
		WidthIn:                2,
		HeightIn:               2,
		HeadHeightRatio:        0.69,
		EyeLineFromBottomRatio: 0.55,
		BackgroundRGB:          [3]uint8{255, 255, 255},
	}
	out, err := pipeline.ProcessPhoto(img, spec, 300, true)
	assert.NoError(t, err)
	if out != nil {
		defer out.Close()
		assert.Equal(t, 600, out.Cols())
		assert.Equal(t, 600, out.Rows())
	}
}
