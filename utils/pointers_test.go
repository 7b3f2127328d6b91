package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefDerefPointer(t *testing.T) {
	assert.Equal(t, true, DerefPointer(RefPointer(true)))
	assert.Equal(t, 42, DerefPointer(RefPointer(42)))
	assert.Equal(t, 1.5, DerefPointer(RefPointer(1.5)))
}

func TestBytesToT32(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0x40}
	vals := BytesToT32[float32](raw)
	assert.Equal(t, []float32{1, 2}, vals)

	assert.Nil(t, BytesToT32[float32](nil))
}

func TestBytesToT64(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f}
	vals := BytesToT64[float64](raw)
	assert.Equal(t, []float64{1}, vals)

	assert.Nil(t, BytesToT64[float64](nil))
}
