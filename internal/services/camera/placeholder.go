package camera

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

const (
	placeholderWidth  = 640
	placeholderHeight = 480
	placeholderText   = "Pi Camera Placeholder"
)

// RenderPlaceholder draws the dark "no camera" frame.
func RenderPlaceholder() gocv.Mat {
	mat := gocv.NewMatWithSize(placeholderHeight, placeholderWidth, gocv.MatTypeCV8UC3)
	mat.SetTo(gocv.NewScalar(20, 20, 20, 0))

	textColor := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.PutText(&mat, placeholderText, image.Pt(150, 240), gocv.FontHersheySimplex, 1.0, textColor, 2)
	return mat
}

// EncodeJPEG encodes mat at the given quality and returns a Go-owned copy.
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Placeholder returns the cached placeholder JPEG.
func (a *Arbiter) Placeholder() []byte {
	a.placeholderOnce.Do(func() {
		if a.placeholder != nil {
			return
		}
		mat := RenderPlaceholder()
		defer mat.Close()
		jpeg, err := EncodeJPEG(mat, 80)
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to render placeholder")
			return
		}
		a.placeholder = jpeg
	})
	return a.placeholder
}
