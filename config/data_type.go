package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnknownSpecKey is returned when a document code is missing from the catalog.
var ErrUnknownSpecKey = errors.New("unknown photo spec key")

// PhotoSpec describes one document standard. Dimensions are always inches
// after loading; ratios are fractions of the final output height.
type PhotoSpec struct {
	Name                   string   `json:"name"`
	WidthIn                float64  `json:"photo_width_in"`
	HeightIn               float64  `json:"photo_height_in"`
	HeadHeightRatio        float64  `json:"head_height_ratio"`
	EyeLineFromBottomRatio float64  `json:"eye_line_from_bottom_ratio"`
	BackgroundRGB          [3]uint8 `json:"background_rgb"`
}

// LayoutSpec describes the print sheet paper size in inches.
type LayoutSpec struct {
	WidthIn  float64 `json:"width_in"`
	HeightIn float64 `json:"height_in"`
}

// BoundingBox is an integer pixel rectangle within its source image.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Area returns W*H.
func (b BoundingBox) Area() int {
	return b.W * b.H
}

// ClampTo shrinks the box so it lies inside a width x height image with W,H >= 1.
func (b BoundingBox) ClampTo(width, height int) BoundingBox {
	if b.X < 0 {
		b.W += b.X
		b.X = 0
	}
	if b.Y < 0 {
		b.H += b.Y
		b.Y = 0
	}
	if b.X >= width {
		b.X = width - 1
	}
	if b.Y >= height {
		b.Y = height - 1
	}
	if b.X+b.W > width {
		b.W = width - b.X
	}
	if b.Y+b.H > height {
		b.H = height - b.Y
	}
	if b.W < 1 {
		b.W = 1
	}
	if b.H < 1 {
		b.H = 1
	}
	return b
}

// EyePoint is the eye anchor in absolute pixel coordinates.
type EyePoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FaceDetectionResult is one candidate face from a detector. Eye landmarks
// are optional; cascade-style detectors leave them nil.
type FaceDetectionResult struct {
	Box      BoundingBox
	LeftEye  *EyePoint
	RightEye *EyePoint
	Score    float32
}

type Size struct {
	Width  int
	Height int
}

func (s *Size) Max() int {
	if s.Height > s.Width {
		return s.Height
	}
	return s.Width
}

// SpecCatalog maps document codes to photo specs.
type SpecCatalog map[string]PhotoSpec

// Get looks up a spec by document code.
func (c SpecCatalog) Get(key string) (PhotoSpec, error) {
	spec, ok := c[key]
	if !ok {
		return PhotoSpec{}, fmt.Errorf("%w: %q", ErrUnknownSpecKey, key)
	}
	return spec, nil
}

// rawPhotoSpec mirrors the catalog JSON, where dimensions may be given in
// inches or millimeters.
type rawPhotoSpec struct {
	Name                   string   `json:"name"`
	WidthIn                *float64 `json:"photo_width_in"`
	HeightIn               *float64 `json:"photo_height_in"`
	WidthMM                *float64 `json:"photo_width_mm"`
	HeightMM               *float64 `json:"photo_height_mm"`
	HeadHeightRatio        float64  `json:"head_height_ratio"`
	EyeLineFromBottomRatio float64  `json:"eye_line_from_bottom_ratio"`
	BackgroundRGB          [3]uint8 `json:"background_rgb"`
}

// ReadSpecCatalog parses a JSON spec catalog. Millimeter dimensions are
// converted to inches on load; only inches are used downstream.
func ReadSpecCatalog(r io.Reader) (SpecCatalog, error) {
	raw := map[string]rawPhotoSpec{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	catalog := make(SpecCatalog, len(raw))
	for key, entry := range raw {
		spec := PhotoSpec{
			Name:                   entry.Name,
			HeadHeightRatio:        entry.HeadHeightRatio,
			EyeLineFromBottomRatio: entry.EyeLineFromBottomRatio,
			BackgroundRGB:          entry.BackgroundRGB,
		}
		switch {
		case entry.WidthIn != nil:
			spec.WidthIn = *entry.WidthIn
		case entry.WidthMM != nil:
			spec.WidthIn = *entry.WidthMM / 25.4
		default:
			return nil, fmt.Errorf("spec %q: missing photo width", key)
		}
		switch {
		case entry.HeightIn != nil:
			spec.HeightIn = *entry.HeightIn
		case entry.HeightMM != nil:
			spec.HeightIn = *entry.HeightMM / 25.4
		default:
			return nil, fmt.Errorf("spec %q: missing photo height", key)
		}
		catalog[key] = spec
	}
	return catalog, nil
}

// LoadSpecCatalog reads a spec catalog from a JSON file.
func LoadSpecCatalog(path string) (SpecCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSpecCatalog(f)
}
