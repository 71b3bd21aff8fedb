package graph

import (
	"bytes"
	"fmt"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// RenderOverlay draws one interpolation pass onto a PNG: every OCR block as
// an outlined box, the axis threshold as a horizontal line, accepted time
// labels and derived treatments as annotated markers. Written to disk only
// when the debug-overlay setting is enabled; the image is purely diagnostic.
func RenderOverlay(width, height int, blocks []TextBlock, pass *Pass) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid overlay size %dx%d", width, height)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: 13}))

	// All recognized blocks, grey.
	dc.SetRGB(0.6, 0.6, 0.6)
	for _, b := range blocks {
		dc.DrawRectangle(float64(b.X), float64(b.Y), float64(b.W), float64(b.H))
		dc.Stroke()
		dc.DrawString(b.Text, float64(b.X), float64(b.Y)-3)
	}

	// Axis threshold, red.
	dc.SetRGB(0.9, 0.2, 0.2)
	dc.DrawLine(0, float64(pass.AxisY), float64(width), float64(pass.AxisY))
	dc.Stroke()
	dc.DrawString(fmt.Sprintf("axis y=%d", pass.AxisY), 4, float64(pass.AxisY)-5)

	// Accepted time labels, blue dots at their horizontal centers.
	dc.SetRGB(0.2, 0.3, 0.9)
	for _, l := range pass.Labels {
		dc.DrawCircle(float64(l.X), float64(pass.AxisY), 4)
		dc.Fill()
		dc.DrawStringAnchored(fmt.Sprintf("%02d:%02d", l.Hour, l.Minute),
			float64(l.X), float64(pass.AxisY)+16, 0.5, 0.5)
	}

	// Derived treatments, green.
	dc.SetRGB(0.1, 0.7, 0.3)
	for i, t := range pass.Treatments {
		y := float64(30 + i*16)
		note := t.Time.Format("15:04")
		if t.Carbs != nil {
			note = fmt.Sprintf("%s  %.0f g", note, *t.Carbs)
		}
		dc.DrawString(note, float64(width)-120, y)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encoding overlay: %w", err)
	}
	return buf.Bytes(), nil
}
