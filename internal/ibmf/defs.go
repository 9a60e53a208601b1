// Package ibmf builds and serializes IBMF v4 bitmap font files in the UTF32
// format consumed by the embedded renderer.
//
// The on-disk layout is, in file order, all multi-byte fields little-endian:
//
//	Preamble (6 bytes)
//	Per-face point sizes, padded to a 4-byte boundary
//	FaceHeader offset vector (one u32 per face)
//	Planes (4 entries) + CodePointBundles  (UTF32 format only)
//	Per face, 4-byte aligned:
//	    FaceHeader
//	    Glyph pixel-pool indices (one u32 per glyph)
//	    GlyphInfo array
//	    Pixel pool (no padding between glyphs)
//	    Filler to a 4-byte boundary
//	    LigKern program (two u16 words per step)
package ibmf

// Version is the IBMF font format version produced here.
const Version = 4

// FontFormat selects the code-point mapping scheme of the file.
type FontFormat uint8

const (
	FormatLatin  FontFormat = 0
	FormatUTF32  FontFormat = 1
	FormatBackup FontFormat = 7
)

// GlyphCode is the dense index assigned to each glyph in scan order. Codes
// at and above DontCareCode are reserved.
type GlyphCode uint16

const (
	DontCareCode  GlyphCode = 0x7FFC
	ZeroWidthCode GlyphCode = 0x7FFD
	SpaceCode     GlyphCode = 0x7FFE
	NoGlyphCode   GlyphCode = 0x7FFF
)

// MaxGlyphCount is the number of glyph codes representable in the 15-bit
// fields of the lig/kern program.
const MaxGlyphCount = 32764

// NoLigKernPgm marks a glyph without a ligature/kerning sub-program.
const NoLigKernPgm = 0xFF

// FIX16 is a signed fixed-point value with 6 fraction bits stored in 16 bits.
// FIX14 is the same notation stored in 14 bits.
type FIX16 = int16
type FIX14 = int16

// Preamble is the 6-byte file header.
type Preamble struct {
	FaceCount uint8
	Version   uint8
	Format    FontFormat
}

// bits packs the version (5 bits) and font format (3 bits) byte.
func (p Preamble) bits() uint8 {
	return p.Version&0x1F | uint8(p.Format)<<5
}

// FaceHeader describes one face of the font.
type FaceHeader struct {
	PointSize        uint8 // in points, a point is 1/72.27 of an inch
	LineHeight       uint8 // in pixels
	DPI              uint16
	XHeight          FIX16 // height of character 'x' in pixels
	EmSize           FIX16 // height of character 'M' in pixels
	SlantCorrection  FIX16 // for italic faces
	DescenderHeight  uint8 // pixels below the origin
	SpaceSize        uint8 // width of a space character in pixels
	GlyphCount       uint16
	LigKernStepCount uint16 // set at save time
	PixelsPoolSize   uint32 // set at save time
}

// RLEMetrics carries the compression parameters of a glyph bitmap. The
// Unifont import emits uncompressed 8-bit pixels, so every field stays zero.
type RLEMetrics struct {
	DynF               uint8
	FirstIsBlack       bool
	BeforeAddedOptKern uint8
	AfterAddedOptKern  uint8
}

// pack lays the metrics out in one byte: dynF in bits 0-3, firstIsBlack in
// bit 4, beforeAddedOptKern in bits 5-6, afterAddedOptKern in bit 7.
func (m RLEMetrics) pack() uint8 {
	b := m.DynF & 0x0F
	if m.FirstIsBlack {
		b |= 1 << 4
	}
	b |= (m.BeforeAddedOptKern & 0x03) << 5
	b |= (m.AfterAddedOptKern & 0x01) << 7
	return b
}

// GlyphInfo is the per-glyph record of the UTF32 format.
type GlyphInfo struct {
	BitmapWidth      uint8 // post-crop
	BitmapHeight     uint8
	HorizontalOffset int8
	VerticalOffset   int8
	PacketLength     uint16 // width * height for the uncompressed format
	Advance          FIX16
	RLEMetrics       RLEMetrics
	LigKernPgmIndex  uint8 // NoLigKernPgm if none; patched at save time
	MainCode         GlyphCode
}

// glyphInfoSize is the serialized size of one GlyphInfo record.
const glyphInfoSize = 12

// Bitmap is an uncompressed glyph bitmap, one byte per pixel, 0xFF set and
// 0x00 unset, row-major.
type Bitmap struct {
	Pixels []uint8
	Width  uint8
	Height uint8
}

// GlyphLigStep substitutes a replacement glyph when the next glyph follows
// the current one.
type GlyphLigStep struct {
	NextGlyphCode        GlyphCode
	ReplacementGlyphCode GlyphCode
}

// GlyphKernStep adjusts spacing before the next glyph.
type GlyphKernStep struct {
	NextGlyphCode GlyphCode
	Kern          FIX16
}

// GlyphLigKern is one glyph's ligature and kerning sub-program.
type GlyphLigKern struct {
	LigSteps  []GlyphLigStep
	KernSteps []GlyphKernStep
}

// Empty reports whether the sub-program has no steps.
func (g *GlyphLigKern) Empty() bool {
	return len(g.LigSteps) == 0 && len(g.KernSteps) == 0
}

// Lig/kern program step words. Word A holds the next glyph code in bits
// 0-14 and the stop flag in bit 15. Word B is one of three shapes selected
// by bits 14-15: a ligature replacement code, a FIX14 kerning value, or an
// absolute displacement.
const (
	stepStopBit = 1 << 15
	stepKernBit = 1 << 15
	stepGoToBit = 1 << 14
)

// packNextWord builds word A of a step.
func packNextWord(next GlyphCode, stop bool) uint16 {
	w := uint16(next) & 0x7FFF
	if stop {
		w |= stepStopBit
	}
	return w
}

// packLigatureWord builds word B of a ligature step.
func packLigatureWord(replacement GlyphCode) uint16 {
	return uint16(replacement) & 0x7FFF
}

// packKernWord builds word B of a kerning step.
func packKernWord(value FIX14) uint16 {
	return uint16(value)&0x3FFF | stepKernBit
}

// packGoToWord builds word B of a displacement step.
func packGoToWord(displacement uint16) uint16 {
	return displacement&0x3FFF | stepKernBit | stepGoToBit
}

// Plane maps the code points of one Unicode plane (0-3) to glyph codes.
type Plane struct {
	CodePointBundlesIdx uint16
	EntriesCount        uint16
	FirstGlyphCode      GlyphCode
}

// CodePointBundle is an inclusive run of 16-bit code points within a plane.
type CodePointBundle struct {
	FirstCodePoint uint16
	LastCodePoint  uint16
}

// Face holds one face of the font being built: per-glyph bitmaps, records
// and lig/kern sub-programs, all indexed by glyph code.
type Face struct {
	Header  FaceHeader
	Bitmaps []Bitmap
	Glyphs  []GlyphInfo
	LigKern []GlyphLigKern
}

// Font is a complete font under construction.
type Font struct {
	Format FontFormat
	Table  *PlaneTable
	Faces  []*Face
}

// Ligature names a substitution to install whenever all three participants
// end up in the font.
type Ligature struct {
	FirstChar   rune
	NextChar    rune
	Replacement rune
}

var ligatures = []Ligature{
	{0x0066, 0x0066, 0xFB00}, // f, f, ﬀ
	{0x0066, 0x0069, 0xFB01}, // f, i, ﬁ
	{0x0066, 0x006C, 0xFB02}, // f, l, ﬂ
	{0xFB00, 0x0069, 0xFB03}, // ﬀ, i, ﬃ
	{0xFB00, 0x006C, 0xFB04}, // ﬀ, l, ﬄ
	{0x0069, 0x006A, 0x0133}, // i, j, ĳ
	{0x0049, 0x004A, 0x0132}, // I, J, Ĳ
	{0x003C, 0x003C, 0x00AB}, // <, <, «
	{0x003E, 0x003E, 0x00BB}, // >, >, »
	{0x003F, 0x2018, 0x00BF}, // ?, ‘, ¿
	{0x0021, 0x2018, 0x00A1}, // !, ‘, ¡
	{0x2018, 0x2018, 0x201C}, // ‘, ‘, “
	{0x2019, 0x2019, 0x201D}, // ’, ’, ”
	{0x002C, 0x002C, 0x201E}, // ,, ,, „
	{0x2013, 0x002D, 0x2014}, // –, -, —
	{0x002D, 0x002D, 0x2013}, // -, -, –
}

// position biases a glyph within its advance cell.
type position int

const (
	posNone position = iota
	posLeft
	posRight
	posCenter
)

// positions lists the CJK punctuation that hugs one side of its cell.
// Opening brackets sit right, their closers left.
var positions = map[rune]position{
	0x3014: posRight, // 〔
	0x3015: posLeft,  // 〕
	0x3010: posRight, // 【
	0x3011: posLeft,  // 】
	0x300A: posRight, // 《
	0x300B: posLeft,  // 》
	0x3008: posRight, // 〈
	0x3009: posLeft,  // 〉
	0x300C: posRight, // 「
	0x300D: posLeft,  // 」
	0x300E: posRight, // 『
	0x300F: posLeft,  // 』
	0xFE51: posLeft,  // ﹑
}
