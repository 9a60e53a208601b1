package ibmf

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Preview cell geometry: one Unifont cell plus a one-pixel gutter.
const (
	previewCell  = 18
	previewScale = 2
)

// SavePreview renders every glyph of the first face onto a contact sheet,
// scales it up, and writes it to path (the format follows the extension).
// Glyphs sit on their baseline inside fixed cells so offsets stay visible.
func (f *Font) SavePreview(path string, columns int) error {
	if len(f.Faces) == 0 {
		return fmt.Errorf("font has no face")
	}
	if columns <= 0 {
		columns = 32
	}

	face := f.Faces[0]
	rows := (len(face.Glyphs) + columns - 1) / columns
	if rows == 0 {
		return fmt.Errorf("font has no glyph")
	}

	sheet := imaging.New(columns*previewCell, rows*previewCell, color.White)

	for code, g := range face.Glyphs {
		bitmap := face.Bitmaps[code]
		cellX := (code % columns) * previewCell
		cellY := (code / columns) * previewCell
		baseline := cellY + hexBaselineRow + 1

		for row := 0; row < int(bitmap.Height); row++ {
			for col := 0; col < int(bitmap.Width); col++ {
				if bitmap.Pixels[row*int(bitmap.Width)+col] == 0 {
					continue
				}
				x := cellX + 1 + int(g.HorizontalOffset) + col
				y := baseline - int(g.VerticalOffset) + row
				if image.Pt(x, y).In(sheet.Bounds()) {
					sheet.Set(x, y, color.Black)
				}
			}
		}
	}

	scaled := imaging.Resize(sheet, sheet.Bounds().Dx()*previewScale, 0, imaging.NearestNeighbor)
	if err := imaging.Save(scaled, path); err != nil {
		return fmt.Errorf("preview write failed: %w", err)
	}
	return nil
}
