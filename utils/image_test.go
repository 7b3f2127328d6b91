package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestConvertImageToMat(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 60, gocv.MatTypeCV8UC3)
	defer src.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, src)
	assert.NoError(t, err)
	defer buf.Close()

	mat, err := ConvertImageToMat(buf.GetBytes())
	assert.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 40, mat.Rows())
	assert.Equal(t, 60, mat.Cols())

	vec := mat.GetVecbAt(0, 0)
	assert.Equal(t, uint8(10), vec[0])
	assert.Equal(t, uint8(20), vec[1])
	assert.Equal(t, uint8(30), vec[2])
}

func TestConvertImageToMat_BadBytes(t *testing.T) {
	_, err := ConvertImageToMat([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUnreadableImage)
}

func TestNormalizeOrientation_NoExif(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 60, gocv.MatTypeCV8UC3)
	defer src.Close()

	out := NormalizeOrientation([]byte("no exif here"), src)
	defer out.Close()

	assert.Equal(t, src.Rows(), out.Rows())
	assert.Equal(t, src.Cols(), out.Cols())
	assert.Equal(t, src.ToBytes(), out.ToBytes())
}

func TestOpenCVImageToJPEG(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 60, gocv.MatTypeCV8UC3)
	defer src.Close()

	path := filepath.Join(t.TempDir(), "out.jpg")
	err := OpenCVImageToJPEG(path, 90, src)
	assert.NoError(t, err)

	content, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.NotEmpty(t, content)
}
