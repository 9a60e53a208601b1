package harvest

import (
	"golang.org/x/text/unicode/runenames"
)

// UBlockDef is a contiguous inclusive range of harvested code points.
type UBlockDef struct {
	First rune
	Last  rune
	Label string
}

// Contains reports whether ch falls inside the block.
func (b UBlockDef) Contains(ch rune) bool {
	return ch >= b.First && ch <= b.Last
}

// BuildUBlocks partitions the harvest into maximal runs of consecutive code
// points. Blocks come out strictly ordered, disjoint, and non-mergeable.
// Each block is labeled after its first code point.
func BuildUBlocks(chars *CharsList) []UBlockDef {
	var blocks []UBlockDef

	first := rune(-1)
	last := rune(-1)

	chars.Each(func(ch rune, _ uint32) {
		if first < 0 {
			first, last = ch, ch
			return
		}
		if ch == last+1 {
			last = ch
			return
		}
		blocks = append(blocks, UBlockDef{First: first, Last: last, Label: runenames.Name(first)})
		first, last = ch, ch
	})

	if first >= 0 {
		blocks = append(blocks, UBlockDef{First: first, Last: last, Label: runenames.Name(first)})
	}

	return blocks
}
