package harvest

import (
	"testing"
)

func TestInterestingExclusions(t *testing.T) {
	excluded := []rune{0x20, 0x1F, 0x00, 0xA0, 0x202F, 0xFEFF, 0xE05E}
	for ch := rune(0x2000); ch <= 0x200F; ch++ {
		excluded = append(excluded, ch)
	}
	for ch := rune(0xFFF0); ch <= 0xFFFF; ch++ {
		excluded = append(excluded, ch)
	}

	for _, ch := range excluded {
		if Interesting(ch) {
			t.Errorf("Interesting(%#x) = true, want false", ch)
		}
	}

	included := []rune{'A', 'z', '0', '!', 0xE9, 0x2014, 0x3042, 0x4E00, 0x1F600}
	for _, ch := range included {
		if !Interesting(ch) {
			t.Errorf("Interesting(%#x) = false, want true", ch)
		}
	}
}

func TestHarvestText(t *testing.T) {
	h := NewHarvester()
	h.HarvestText("Ab c")

	for _, ch := range []rune{'A', 'b', 'c'} {
		if got := h.Chars().Count(ch); got != 1 {
			t.Errorf("Count(%c) = %d, want 1", ch, got)
		}
	}
	if h.Chars().Has(' ') {
		t.Errorf("space was harvested, want excluded")
	}
	// Seeds are present before any text is walked.
	for _, ch := range []rune{'[', ']', '-', 'o', 'G', '0', '9'} {
		if !h.Chars().Has(ch) {
			t.Errorf("seed %c missing from harvest", ch)
		}
	}
}

func TestHarvestTranslation(t *testing.T) {
	h := NewHarvester()
	h.HarvestText("︵") // ︵ vertical left parenthesis

	if got := h.Chars().Count(0xFE35); got != 1 {
		t.Fatalf("Count(FE35) = %d, want 1", got)
	}
	if got := h.Chars().Count('('); got != 1 {
		t.Fatalf("translated base count = %d, want 1", got)
	}
}

func TestCharsListSortedIteration(t *testing.T) {
	c := NewCharsList()
	for _, ch := range []rune{'z', 'a', 'm', 0x3042, '0'} {
		c.Add(ch)
	}

	prev := rune(-1)
	c.Each(func(ch rune, _ uint32) {
		if ch <= prev {
			t.Fatalf("iteration out of order: %#x after %#x", ch, prev)
		}
		prev = ch
	})
}

func TestBuildUBlocks(t *testing.T) {
	c := NewCharsList()
	for _, ch := range []rune{'A', 'b', 'c'} {
		c.Add(ch)
	}

	blocks := BuildUBlocks(c)
	if len(blocks) != 2 {
		t.Fatalf("block count = %d, want 2", len(blocks))
	}
	if blocks[0].First != 'A' || blocks[0].Last != 'A' {
		t.Fatalf("block 0 = [%#x..%#x], want [A..A]", blocks[0].First, blocks[0].Last)
	}
	if blocks[1].First != 'b' || blocks[1].Last != 'c' {
		t.Fatalf("block 1 = [%#x..%#x], want [b..c]", blocks[1].First, blocks[1].Last)
	}
}

func TestBuildUBlocksPartition(t *testing.T) {
	c := NewCharsList()
	input := []rune{0x41, 0x42, 0x43, 0x61, 0x3042, 0x3043, 0x3044, 0x4E00}
	for _, ch := range input {
		c.Add(ch)
	}

	blocks := BuildUBlocks(c)

	// Blocks cover exactly the harvest, in order, disjoint, non-mergeable.
	covered := 0
	for i, b := range blocks {
		if b.First > b.Last {
			t.Fatalf("block %d is empty", i)
		}
		covered += int(b.Last-b.First) + 1
		if i > 0 {
			if blocks[i-1].Last+1 >= b.First {
				t.Fatalf("blocks %d and %d are mergeable or overlap", i-1, i)
			}
		}
		for ch := b.First; ch <= b.Last; ch++ {
			if !c.Has(ch) {
				t.Fatalf("block %d covers %#x which was not harvested", i, ch)
			}
		}
	}
	if covered != len(input) {
		t.Fatalf("blocks cover %d code points, want %d", covered, len(input))
	}
}

func TestBuildUBlocksEmpty(t *testing.T) {
	if blocks := BuildUBlocks(NewCharsList()); len(blocks) != 0 {
		t.Fatalf("blocks from empty harvest = %d, want 0", len(blocks))
	}
}
