package ibmf

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/sguertin/epub2ibmf/internal/harvest"
)

// Unifont cell geometry: every glyph is 16 rows of one or two bytes, with
// the baseline on row 14.
const (
	hexGlyphHeight = 16
	hexBaselineRow = 14
)

// Placeholder glyphs in the Unifont private-use areas start with this
// 32-bit signature and must not be imported.
const placeholderSignature = 0xAAAA0001

// hexLine is one parsed line of a Unifont hex file.
type hexLine struct {
	codePoint  rune
	bits       string
	firstBytes uint32
}

// parseHexLine splits a CODEPOINT:HEXBITS line. The first 32 bits of the
// glyph data double as the placeholder signature word.
func parseHexLine(line string) (hexLine, bool) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return hexLine{}, false
	}

	cp, err := strconv.ParseUint(line[:colon], 16, 32)
	if err != nil {
		return hexLine{}, false
	}

	bits := strings.TrimRight(line[colon+1:], "\r\n")
	if len(bits) < 8 {
		return hexLine{}, false
	}
	firstBytes, err := strconv.ParseUint(bits[:8], 16, 32)
	if err != nil {
		return hexLine{}, false
	}

	return hexLine{
		codePoint:  rune(cp),
		bits:       bits,
		firstBytes: uint32(firstBytes),
	}, true
}

// HexImporter builds a Font from a GNU Unifont hex glyph source restricted
// to the code points a harvest asked for.
type HexImporter struct {
	blockSet *bitset.BitSet
}

// NewHexImporter prepares the importer for the given harvest blocks. The
// block list is flattened into a bitset so per-line filtering is O(1).
func NewHexImporter(blocks []harvest.UBlockDef) *HexImporter {
	set := bitset.New(planeCount << 16)
	for _, b := range blocks {
		for cp := b.First; cp <= b.Last; cp++ {
			if cp>>16 >= planeCount {
				break
			}
			set.Set(uint(cp))
		}
	}
	return &HexImporter{blockSet: set}
}

// selected applies the import filter: the code point must be interesting,
// wanted by the harvest, and not a Unifont placeholder glyph.
func (h *HexImporter) selected(cp rune, firstBytes uint32) bool {
	return harvest.Interesting(cp) &&
		firstBytes != placeholderSignature &&
		h.blockSet.Test(uint(cp))
}

// LoadHex reads the hex file twice: the first pass assigns glyph codes and
// builds the plane/bundle mapping table, the second decodes the glyph
// bitmaps. Both passes iterate the file in textual order, which keeps the
// glyph codes stable between them.
func (h *HexImporter) LoadHex(path string) (*Font, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open hex font %s: %w", path, err)
	}
	defer in.Close()

	table, glyphCount, err := h.prepareCodePlanes(in)
	if err != nil {
		return nil, err
	}
	if glyphCount == 0 {
		return nil, fmt.Errorf("hex font %s holds no selected glyph", path)
	}
	if glyphCount > MaxGlyphCount {
		return nil, fmt.Errorf("hex font %s selects %d glyphs, limit is %d", path, glyphCount, MaxGlyphCount)
	}

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("unable to rewind hex font: %w", err)
	}

	face, err := h.readGlyphs(in, table, glyphCount)
	if err != nil {
		return nil, err
	}

	return &Font{
		Format: FormatUTF32,
		Table:  table,
		Faces:  []*Face{face},
	}, nil
}

// prepareCodePlanes is the first pass: a single forward scan assigning
// sequential glyph codes to every selected code point.
func (h *HexImporter) prepareCodePlanes(in io.Reader) (*PlaneTable, int, error) {
	builder := newPlaneBuilder()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, ok := parseHexLine(scanner.Text())
		if !ok {
			log.Printf("warning: malformed hex line %d skipped", lineNo)
			continue
		}
		if h.selected(line.codePoint, line.firstBytes) {
			builder.add(line.codePoint)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("hex font read failed: %w", err)
	}

	table, glyphCount := builder.finish()
	return table, glyphCount, nil
}

// readGlyphs is the second pass: every line whose code point received a
// glyph code is decoded, cropped and appended to the face.
func (h *HexImporter) readGlyphs(in io.Reader, table *PlaneTable, glyphCount int) (*Face, error) {
	face := &Face{
		Header: FaceHeader{
			PointSize:       10,
			LineHeight:      16,
			DPI:             75,
			XHeight:         8 << 6,
			EmSize:          10 << 6,
			SlantCorrection: 0,
			DescenderHeight: 2,
			SpaceSize:       5,
			GlyphCount:      uint16(glyphCount),
		},
		Bitmaps: make([]Bitmap, 0, glyphCount),
		Glyphs:  make([]GlyphInfo, 0, glyphCount),
		LigKern: make([]GlyphLigKern, 0, glyphCount),
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, ok := parseHexLine(scanner.Text())
		if !ok {
			continue
		}

		glyphCode := table.GlyphCodeFor(line.codePoint)
		if glyphCode == NoGlyphCode {
			continue
		}

		bitmap, hOffset, vOffset, advance, blank, err := decodeGlyph(line.codePoint, line.bits)
		if err != nil {
			// The code point already owns a glyph code, so a blank
			// glyph stands in to keep the table dense.
			log.Printf("warning: hex line %d (U+%04X): %v", lineNo, line.codePoint, err)
			bitmap, hOffset, vOffset, advance, blank = Bitmap{}, 0, 0, 8, true
		}

		mainCode := glyphCode
		if blank {
			mainCode = SpaceCode
		}

		face.Bitmaps = append(face.Bitmaps, bitmap)
		face.LigKern = append(face.LigKern, ligStepsFor(line.codePoint, table))
		face.Glyphs = append(face.Glyphs, GlyphInfo{
			BitmapWidth:      bitmap.Width,
			BitmapHeight:     bitmap.Height,
			HorizontalOffset: hOffset,
			VerticalOffset:   vOffset,
			PacketLength:     uint16(bitmap.Width) * uint16(bitmap.Height),
			Advance:          glyphAdvance(line.codePoint, bitmap.Width, advance),
			RLEMetrics:       RLEMetrics{},
			LigKernPgmIndex:  0, // completed at save time
			MainCode:         mainCode,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hex font read failed: %w", err)
	}

	if len(face.Glyphs) != glyphCount {
		return nil, fmt.Errorf("glyph table out of sync: decoded %d of %d glyphs", len(face.Glyphs), glyphCount)
	}

	return face, nil
}

// decodeGlyph turns the hex-encoded cell into a tightly cropped 8-bit
// bitmap. It reports the horizontal and vertical offsets, the cell advance
// in pixels, and whether the cell was blank.
func decodeGlyph(cp rune, bits string) (Bitmap, int8, int8, uint16, bool, error) {
	bytes, err := hex.DecodeString(bits)
	if err != nil {
		return Bitmap{}, 0, 0, 0, false, fmt.Errorf("bad glyph data: %w", err)
	}

	byteWidth := 2
	if len(bytes) == hexGlyphHeight {
		byteWidth = 1
	}
	advance := uint16(8 * byteWidth)

	if len(bytes) != byteWidth*hexGlyphHeight {
		return Bitmap{}, 0, 0, 0, false, fmt.Errorf("glyph size mismatch: %d bytes", len(bytes))
	}

	rowEmpty := func(row int) bool {
		for b := 0; b < byteWidth; b++ {
			if bytes[row*byteWidth+b] != 0 {
				return false
			}
		}
		return true
	}
	pixelSet := func(row, col int) bool {
		return bytes[row*byteWidth+col>>3]&(0x80>>(col&7)) != 0
	}

	firstRow := 0
	for firstRow < hexGlyphHeight && rowEmpty(firstRow) {
		firstRow++
	}
	if firstRow == hexGlyphHeight {
		// Blank cell: a zero-size space glyph.
		return Bitmap{}, 0, 0, advance, true, nil
	}
	lastRow := hexGlyphHeight - 1
	for rowEmpty(lastRow) {
		lastRow--
	}

	colEmpty := func(col int) bool {
		for row := firstRow; row <= lastRow; row++ {
			if pixelSet(row, col) {
				return false
			}
		}
		return true
	}

	firstCol := 0
	for colEmpty(firstCol) {
		firstCol++
	}
	lastCol := byteWidth*8 - 1
	for colEmpty(lastCol) {
		lastCol--
	}

	width := lastCol - firstCol + 1
	height := lastRow - firstRow + 1

	pixels := make([]uint8, 0, width*height)
	for row := firstRow; row <= lastRow; row++ {
		for col := firstCol; col <= lastCol; col++ {
			if pixelSet(row, col) {
				pixels = append(pixels, 0xFF)
			} else {
				pixels = append(pixels, 0x00)
			}
		}
	}

	bitmap := Bitmap{
		Pixels: pixels,
		Width:  uint8(width),
		Height: uint8(height),
	}

	vOffset := int8(hexBaselineRow - firstRow)

	var hOffset int8
	if positions[cp] == posRight {
		hOffset = -int8(int(advance) - width - 1)
	}

	return bitmap, hOffset, vOffset, advance, false, nil
}

// glyphAdvance computes the stored Q10.6 advance. Code points outside the
// fixed-cell CJK bands advance proportionally to their cropped width plus
// one pixel of spacing; the bands keep the full cell advance.
func glyphAdvance(cp rune, width uint8, cellAdvance uint16) FIX16 {
	proportional := cp < 0x2E80 ||
		(cp >= 0xA000 && cp < 0xFE10) ||
		(cp >= 0xFE70 && cp < 0xFF00)
	if proportional {
		return FIX16(uint16(width)+1) << 6
	}
	return FIX16(cellAdvance) << 6
}

// ligStepsFor collects the ligature steps starting at cp whose other two
// participants both resolved to glyph codes.
func ligStepsFor(cp rune, table *PlaneTable) GlyphLigKern {
	var lk GlyphLigKern
	for _, lig := range ligatures {
		if lig.FirstChar != cp {
			continue
		}
		next := table.GlyphCodeFor(lig.NextChar)
		replacement := table.GlyphCodeFor(lig.Replacement)
		if next != NoGlyphCode && replacement != NoGlyphCode {
			lk.LigSteps = append(lk.LigSteps, GlyphLigStep{
				NextGlyphCode:        next,
				ReplacementGlyphCode: replacement,
			})
		}
	}
	return lk
}
