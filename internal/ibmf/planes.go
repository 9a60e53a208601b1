package ibmf

// planeCount is the number of Unicode planes representable in the UTF32
// mapping table.
const planeCount = 4

// PlaneTable is the two-level index mapping Unicode code points to glyph
// codes: four plane entries sharing one bundle array. Bundle spans map
// densely onto sequential glyph codes.
type PlaneTable struct {
	Planes  [planeCount]Plane
	Bundles []CodePointBundle
}

// GlyphCodeFor looks up the glyph code assigned to a code point, or
// NoGlyphCode when the code point is not part of the font.
func (t *PlaneTable) GlyphCodeFor(cp rune) GlyphCode {
	planeIdx := int(cp >> 16)
	if planeIdx < 0 || planeIdx >= planeCount {
		return NoGlyphCode
	}
	plane := t.Planes[planeIdx]
	if plane.EntriesCount == 0 {
		return NoGlyphCode
	}

	u16 := uint16(cp & 0xFFFF)
	code := uint32(plane.FirstGlyphCode)
	for i := uint16(0); i < plane.EntriesCount; i++ {
		b := t.Bundles[plane.CodePointBundlesIdx+i]
		if u16 >= b.FirstCodePoint && u16 <= b.LastCodePoint {
			return GlyphCode(code + uint32(u16-b.FirstCodePoint))
		}
		code += uint32(b.LastCodePoint-b.FirstCodePoint) + 1
	}
	return NoGlyphCode
}

// CodePointFor is the reverse mapping, used for consistency checks. It
// returns -1 when the glyph code is not assigned.
func (t *PlaneTable) CodePointFor(code GlyphCode) rune {
	for planeIdx := 0; planeIdx < planeCount; planeIdx++ {
		plane := t.Planes[planeIdx]
		cursor := uint32(plane.FirstGlyphCode)
		for i := uint16(0); i < plane.EntriesCount; i++ {
			b := t.Bundles[plane.CodePointBundlesIdx+i]
			span := uint32(b.LastCodePoint-b.FirstCodePoint) + 1
			if uint32(code) >= cursor && uint32(code) < cursor+span {
				return rune(planeIdx)<<16 | rune(b.FirstCodePoint)+rune(uint32(code)-cursor)
			}
			cursor += span
		}
	}
	return -1
}

// planeBuilder assigns glyph codes to accepted code points in scan order
// and accumulates the plane and bundle tables.
type planeBuilder struct {
	table     PlaneTable
	glyphCode uint32

	started       bool
	currPlaneIdx  int
	currCodePoint uint16
}

func newPlaneBuilder() *planeBuilder {
	return &planeBuilder{}
}

// add accepts the next code point of the scan. Code points must arrive in
// ascending order; planes 4 and above are not representable and are ignored.
func (b *planeBuilder) add(cp rune) {
	planeIdx := int(cp >> 16)
	if planeIdx >= planeCount {
		return
	}
	u16 := uint16(cp & 0xFFFF)

	switch {
	case !b.started:
		b.openPlane(planeIdx, u16)
		b.started = true

	case planeIdx != b.currPlaneIdx:
		// Planes skipped over are left empty, pointing at the current
		// bundle position with the current glyph code.
		for idx := b.currPlaneIdx + 1; idx < planeIdx; idx++ {
			b.table.Planes[idx] = Plane{
				CodePointBundlesIdx: uint16(len(b.table.Bundles)),
				EntriesCount:        0,
				FirstGlyphCode:      GlyphCode(b.glyphCode),
			}
		}
		b.openPlane(planeIdx, u16)

	case u16 == b.currCodePoint+1:
		b.table.Bundles[len(b.table.Bundles)-1].LastCodePoint = u16
		b.currCodePoint = u16

	default:
		b.table.Bundles = append(b.table.Bundles, CodePointBundle{u16, u16})
		b.table.Planes[planeIdx].EntriesCount++
		b.currCodePoint = u16
	}

	b.glyphCode++
}

func (b *planeBuilder) openPlane(planeIdx int, u16 uint16) {
	b.table.Planes[planeIdx] = Plane{
		CodePointBundlesIdx: uint16(len(b.table.Bundles)),
		EntriesCount:        1,
		FirstGlyphCode:      GlyphCode(b.glyphCode),
	}
	b.table.Bundles = append(b.table.Bundles, CodePointBundle{u16, u16})
	b.currPlaneIdx = planeIdx
	b.currCodePoint = u16
}

// finish completes the entries of the planes above the last one written and
// returns the table along with the number of glyph codes assigned.
func (b *planeBuilder) finish() (*PlaneTable, int) {
	first := b.currPlaneIdx + 1
	if !b.started {
		first = 0
	}
	for idx := first; idx < planeCount; idx++ {
		b.table.Planes[idx] = Plane{
			CodePointBundlesIdx: uint16(len(b.table.Bundles)),
			EntriesCount:        0,
			FirstGlyphCode:      GlyphCode(b.glyphCode),
		}
	}
	return &b.table, int(b.glyphCode)
}
