package ibmf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
)

const preambleSize = 6

// align4 rounds a size up to the next 4-byte boundary.
func align4(n int) int {
	return (n + 3) &^ 3
}

// facePlan is the per-face layout computed before any byte is written.
type facePlan struct {
	offset   uint32
	steps    []ligKernStepWords
	poolSize uint32
}

// ligKernStepWords is one serialized lig/kern step.
type ligKernStepWords struct {
	next uint16
	op   uint16
}

// Save lays out and writes the complete font file.
func (f *Font) Save(w io.Writer) (int64, error) {
	if len(f.Faces) == 0 {
		return 0, fmt.Errorf("font has no face")
	}
	if f.Format == FormatUTF32 && f.Table == nil {
		return 0, fmt.Errorf("UTF32 font has no code point table")
	}

	plans := make([]facePlan, len(f.Faces))

	// --- Pass 1: build lig/kern programs and compute the layout ---

	pos := preambleSize + len(f.Faces) // preamble + point sizes
	pos = align4(pos)
	pos += 4 * len(f.Faces) // face-header offset vector

	if f.Format == FormatUTF32 {
		pos += planeCount*6 + 4*len(f.Table.Bundles)
	}

	for i, face := range f.Faces {
		if err := face.checkGlyphs(); err != nil {
			return 0, err
		}

		steps := face.buildLigKernProgram()
		poolSize := face.pixelsPoolSize()

		face.Header.LigKernStepCount = uint16(len(steps))
		face.Header.PixelsPoolSize = poolSize

		pos = align4(pos)
		plans[i] = facePlan{
			offset:   uint32(pos),
			steps:    steps,
			poolSize: poolSize,
		}

		glyphs := len(face.Glyphs)
		faceSize := 20 + 4*glyphs + glyphInfoSize*glyphs + int(poolSize)
		pos = int(plans[i].offset) + align4(faceSize) + 4*len(steps)
	}

	// --- Pass 2: serialize ---

	buf := &bytes.Buffer{}

	preamble := Preamble{
		FaceCount: uint8(len(f.Faces)),
		Version:   Version,
		Format:    f.Format,
	}
	buf.WriteString("IBMF")
	buf.WriteByte(preamble.FaceCount)
	buf.WriteByte(preamble.bits())

	for _, face := range f.Faces {
		buf.WriteByte(face.Header.PointSize)
	}
	pad(buf, align4(buf.Len())-buf.Len())

	for _, plan := range plans {
		writeLE(buf, plan.offset)
	}

	if f.Format == FormatUTF32 {
		for _, plane := range f.Table.Planes {
			writeLE(buf, plane.CodePointBundlesIdx)
			writeLE(buf, plane.EntriesCount)
			writeLE(buf, uint16(plane.FirstGlyphCode))
		}
		for _, bundle := range f.Table.Bundles {
			writeLE(buf, bundle.FirstCodePoint)
			writeLE(buf, bundle.LastCodePoint)
		}
	}

	for i, face := range f.Faces {
		pad(buf, int(plans[i].offset)-buf.Len())
		face.write(buf, plans[i])
	}

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("font write failed: %w", err)
	}
	return int64(n), nil
}

// checkGlyphs validates the invariants the writer relies on.
func (face *Face) checkGlyphs() error {
	if len(face.Glyphs) != len(face.Bitmaps) || len(face.Glyphs) != len(face.LigKern) {
		return fmt.Errorf("face tables out of sync: %d glyphs, %d bitmaps, %d lig/kern programs",
			len(face.Glyphs), len(face.Bitmaps), len(face.LigKern))
	}
	for code, g := range face.Glyphs {
		if g.PacketLength != uint16(g.BitmapWidth)*uint16(g.BitmapHeight) {
			return fmt.Errorf("glyph %d: packet length %d does not match %dx%d bitmap",
				code, g.PacketLength, g.BitmapWidth, g.BitmapHeight)
		}
	}
	return nil
}

// buildLigKernProgram concatenates the per-glyph sub-programs into one flat
// step array, sets the stop flag on each sub-program's final step, and
// patches every glyph's program index.
func (face *Face) buildLigKernProgram() []ligKernStepWords {
	var steps []ligKernStepWords

	for i := range face.Glyphs {
		lk := &face.LigKern[i]
		if lk.Empty() {
			face.Glyphs[i].LigKernPgmIndex = NoLigKernPgm
			continue
		}

		start := len(steps)
		if start >= NoLigKernPgm {
			// The one-byte program index cannot reach this far.
			log.Printf("warning: glyph %d lig/kern program at step %d dropped, index range exceeded", i, start)
			face.Glyphs[i].LigKernPgmIndex = NoLigKernPgm
			continue
		}
		face.Glyphs[i].LigKernPgmIndex = uint8(start)

		for _, lig := range lk.LigSteps {
			steps = append(steps, ligKernStepWords{
				next: packNextWord(lig.NextGlyphCode, false),
				op:   packLigatureWord(lig.ReplacementGlyphCode),
			})
		}
		for _, kern := range lk.KernSteps {
			steps = append(steps, ligKernStepWords{
				next: packNextWord(kern.NextGlyphCode, false),
				op:   packKernWord(kern.Kern),
			})
		}
		steps[len(steps)-1].next |= stepStopBit
	}

	return steps
}

// pixelsPoolSize sums the packet lengths of every glyph.
func (face *Face) pixelsPoolSize() uint32 {
	var size uint32
	for _, g := range face.Glyphs {
		size += uint32(g.PacketLength)
	}
	return size
}

// write emits one face: header, pixel-pool index vector, glyph records,
// pixel pool, filler and lig/kern program.
func (face *Face) write(buf *bytes.Buffer, plan facePlan) {
	h := face.Header
	writeLE(buf, h.PointSize)
	writeLE(buf, h.LineHeight)
	writeLE(buf, h.DPI)
	writeLE(buf, h.XHeight)
	writeLE(buf, h.EmSize)
	writeLE(buf, h.SlantCorrection)
	writeLE(buf, h.DescenderHeight)
	writeLE(buf, h.SpaceSize)
	writeLE(buf, h.GlyphCount)
	writeLE(buf, h.LigKernStepCount)
	writeLE(buf, h.PixelsPoolSize)

	var poolIndex uint32
	for _, g := range face.Glyphs {
		writeLE(buf, poolIndex)
		poolIndex += uint32(g.PacketLength)
	}

	for _, g := range face.Glyphs {
		writeLE(buf, g.BitmapWidth)
		writeLE(buf, g.BitmapHeight)
		writeLE(buf, g.HorizontalOffset)
		writeLE(buf, g.VerticalOffset)
		writeLE(buf, g.PacketLength)
		writeLE(buf, g.Advance)
		writeLE(buf, g.RLEMetrics.pack())
		writeLE(buf, g.LigKernPgmIndex)
		writeLE(buf, uint16(g.MainCode))
	}

	for _, bitmap := range face.Bitmaps {
		buf.Write(bitmap.Pixels)
	}

	pad(buf, align4(buf.Len())-buf.Len())

	for _, step := range plan.steps {
		writeLE(buf, step.next)
		writeLE(buf, step.op)
	}
}

// writeLE writes one fixed-size value little-endian. bytes.Buffer writes
// cannot fail, so the error is discarded here once for all call sites.
func writeLE(buf *bytes.Buffer, v interface{}) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// pad writes n zero bytes.
func pad(buf *bytes.Buffer, n int) {
	for i := 0; i < n; i++ {
		buf.WriteByte(0)
	}
}
