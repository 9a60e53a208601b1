package ibmf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sguertin/epub2ibmf/internal/harvest"
)

// narrowGlyph builds a 32-hex-char cell from 16 row bytes.
func narrowGlyph(rows [16]byte) string {
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(hexByte(r))
	}
	return sb.String()
}

func hexByte(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}

// wideGlyph builds a 64-hex-char cell from 16 row words.
func wideGlyph(rows [16]uint16) string {
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(hexByte(byte(r >> 8)))
		sb.WriteString(hexByte(byte(r)))
	}
	return sb.String()
}

func writeHexFile(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "font.hex")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	return path
}

func blocksFor(codePoints ...rune) []harvest.UBlockDef {
	blocks := make([]harvest.UBlockDef, 0, len(codePoints))
	for _, cp := range codePoints {
		blocks = append(blocks, harvest.UBlockDef{First: cp, Last: cp})
	}
	return blocks
}

// boxRows is a simple 4x2 shape in rows 4-5, columns 2-5.
var boxRows = [16]byte{4: 0x3C, 5: 0x24}

func TestImportCropsBoundingBox(t *testing.T) {
	path := writeHexFile(t, []string{
		"0041:" + narrowGlyph(boxRows),
	})

	font, err := NewHexImporter(blocksFor(0x41)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	face := font.Faces[0]
	if len(face.Glyphs) != 1 {
		t.Fatalf("glyph count = %d, want 1", len(face.Glyphs))
	}

	g := face.Glyphs[0]
	if g.BitmapWidth != 4 || g.BitmapHeight != 2 {
		t.Fatalf("bitmap = %dx%d, want 4x2", g.BitmapWidth, g.BitmapHeight)
	}
	if g.VerticalOffset != 10 {
		t.Fatalf("verticalOffset = %d, want 10 (14 - first row 4)", g.VerticalOffset)
	}
	if g.HorizontalOffset != 0 {
		t.Fatalf("horizontalOffset = %d, want 0", g.HorizontalOffset)
	}
	if g.PacketLength != 8 {
		t.Fatalf("packetLength = %d, want 8", g.PacketLength)
	}
	// 'A' advances proportionally: (width + 1) << 6.
	if g.Advance != 5<<6 {
		t.Fatalf("advance = %#x, want %#x", g.Advance, 5<<6)
	}

	// Row 4 is 0x3C: columns 2-5 all set. Row 5 is 0x24: columns 2 and 5.
	wantPixels := []uint8{
		0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0x00, 0x00, 0xFF,
	}
	bitmap := face.Bitmaps[0]
	if len(bitmap.Pixels) != len(wantPixels) {
		t.Fatalf("pixel count = %d, want %d", len(bitmap.Pixels), len(wantPixels))
	}
	for i, want := range wantPixels {
		if bitmap.Pixels[i] != want {
			t.Fatalf("pixel %d = %#x, want %#x", i, bitmap.Pixels[i], want)
		}
	}
}

func TestImportBlankGlyphBecomesSpace(t *testing.T) {
	path := writeHexFile(t, []string{
		"3000:" + narrowGlyph([16]byte{}),
	})

	font, err := NewHexImporter(blocksFor(0x3000)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	g := font.Faces[0].Glyphs[0]
	if g.BitmapWidth != 0 || g.BitmapHeight != 0 {
		t.Fatalf("blank glyph bitmap = %dx%d, want 0x0", g.BitmapWidth, g.BitmapHeight)
	}
	if g.HorizontalOffset != 0 || g.VerticalOffset != 0 {
		t.Fatalf("blank glyph offsets = %d,%d, want 0,0", g.HorizontalOffset, g.VerticalOffset)
	}
	if g.MainCode != SpaceCode {
		t.Fatalf("blank glyph mainCode = %#x, want SpaceCode", g.MainCode)
	}
}

func TestImportCJKBracketAdvanceAndOffset(t *testing.T) {
	// U+3014 with a 14-wide tight bitmap in the 16-wide cell.
	rows := [16]uint16{7: 0x7FFE}
	path := writeHexFile(t, []string{
		"3014:" + wideGlyph(rows),
	})

	font, err := NewHexImporter(blocksFor(0x3014)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	g := font.Faces[0].Glyphs[0]
	if g.BitmapWidth != 14 {
		t.Fatalf("bitmap width = %d, want 14", g.BitmapWidth)
	}
	// Opening bracket hugs the right of its cell.
	if g.HorizontalOffset != -1 {
		t.Fatalf("horizontalOffset = %d, want -1", g.HorizontalOffset)
	}
	// Inside the fixed-cell band the full cell advance is kept.
	if g.Advance != 16<<6 {
		t.Fatalf("advance = %#x, want %#x", g.Advance, 16<<6)
	}
}

func TestImportLigatureAttachment(t *testing.T) {
	path := writeHexFile(t, []string{
		"0066:" + narrowGlyph(boxRows), // f
		"0069:" + narrowGlyph(boxRows), // i
		"FB01:" + narrowGlyph(boxRows), // ﬁ
	})

	font, err := NewHexImporter(blocksFor(0x66, 0x69, 0xFB01)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	table := font.Table
	fCode := table.GlyphCodeFor('f')
	lk := font.Faces[0].LigKern[fCode]
	if len(lk.LigSteps) != 1 {
		t.Fatalf("f lig steps = %d, want 1 (only f+i resolves)", len(lk.LigSteps))
	}
	step := lk.LigSteps[0]
	if step.NextGlyphCode != table.GlyphCodeFor('i') {
		t.Fatalf("lig next = %d, want glyph code of i", step.NextGlyphCode)
	}
	if step.ReplacementGlyphCode != table.GlyphCodeFor(0xFB01) {
		t.Fatalf("lig replacement = %d, want glyph code of fi", step.ReplacementGlyphCode)
	}
}

func TestImportLigatureSkippedWhenReplacementAbsent(t *testing.T) {
	path := writeHexFile(t, []string{
		"0066:" + narrowGlyph(boxRows), // f
		"0069:" + narrowGlyph(boxRows), // i
	})

	font, err := NewHexImporter(blocksFor(0x66, 0x69)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	fCode := font.Table.GlyphCodeFor('f')
	if got := len(font.Faces[0].LigKern[fCode].LigSteps); got != 0 {
		t.Fatalf("f lig steps = %d, want 0 when the replacement glyph is absent", got)
	}
}

func TestImportSkipsPlaceholders(t *testing.T) {
	placeholder := "AAAA0001" + strings.Repeat("0", 24)
	path := writeHexFile(t, []string{
		"E100:" + placeholder,
		"0041:" + narrowGlyph(boxRows),
	})

	font, err := NewHexImporter(blocksFor(0xE100, 0x41)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	if got := font.Table.GlyphCodeFor(0xE100); got != NoGlyphCode {
		t.Fatalf("placeholder glyph was assigned code %d, want none", got)
	}
	if got := font.Table.GlyphCodeFor(0x41); got != 0 {
		t.Fatalf("GlyphCodeFor(A) = %d, want 0", got)
	}
}

func TestImportSkipsUnharvestedCodePoints(t *testing.T) {
	path := writeHexFile(t, []string{
		"0041:" + narrowGlyph(boxRows),
		"0042:" + narrowGlyph(boxRows),
	})

	font, err := NewHexImporter(blocksFor(0x41)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	if got := len(font.Faces[0].Glyphs); got != 1 {
		t.Fatalf("glyph count = %d, want 1", got)
	}
	if got := font.Table.GlyphCodeFor(0x42); got != NoGlyphCode {
		t.Fatalf("GlyphCodeFor(B) = %d, want NoGlyphCode", got)
	}
}

func TestImportMalformedLinesSkipped(t *testing.T) {
	path := writeHexFile(t, []string{
		"not a hex line",
		"0041:" + narrowGlyph(boxRows),
		"",
	})

	font, err := NewHexImporter(blocksFor(0x41)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}
	if got := len(font.Faces[0].Glyphs); got != 1 {
		t.Fatalf("glyph count = %d, want 1", got)
	}
}

func TestImportFaceHeaderDefaults(t *testing.T) {
	path := writeHexFile(t, []string{
		"0041:" + narrowGlyph(boxRows),
	})

	font, err := NewHexImporter(blocksFor(0x41)).LoadHex(path)
	if err != nil {
		t.Fatalf("LoadHex returned error: %v", err)
	}

	h := font.Faces[0].Header
	if h.PointSize != 10 || h.LineHeight != 16 || h.DPI != 75 {
		t.Fatalf("header geometry = %d pt, %d px, %d dpi; want 10, 16, 75", h.PointSize, h.LineHeight, h.DPI)
	}
	if h.XHeight != 8<<6 || h.EmSize != 10<<6 {
		t.Fatalf("header metrics = %d, %d; want %d, %d", h.XHeight, h.EmSize, 8<<6, 10<<6)
	}
	if h.DescenderHeight != 2 || h.SpaceSize != 5 {
		t.Fatalf("header spacing = %d, %d; want 2, 5", h.DescenderHeight, h.SpaceSize)
	}
	if h.GlyphCount != 1 {
		t.Fatalf("glyphCount = %d, want 1", h.GlyphCount)
	}
}
