package harvest

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"golang.org/x/net/html"

	"github.com/sguertin/epub2ibmf/internal/epub"
)

// Interesting reports whether a code point belongs in the harvest: anything
// above the space character except the various space, joiner and specials
// code points a text renderer never asks a font for.
func Interesting(ch rune) bool {
	return ch > 0x0020 &&
		ch != 0x00A0 &&
		!(ch >= 0x2000 && ch <= 0x200F) &&
		ch != 0x202F &&
		ch != ZeroWidthCodePoint &&
		ch != UnknownCodePoint &&
		!(ch >= 0xFFF0 && ch <= 0xFFFF)
}

// translations maps CJK vertical presentation forms to the base form a
// reader is expected to fall back on, so the base glyph is pulled into the
// font whenever the presentation form occurs.
var translations = map[rune]rune{
	0xFE30: 0x2025, // ︰ two dot leader
	0xFE31: 0x2014, // ︱ em dash
	0xFE32: 0x2013, // ︲ en dash
	0xFE33: 0x005F, // ︳ low line
	0xFE34: 0x005F, // ︴ wavy low line
	0xFE35: 0x0028, // ︵ left parenthesis
	0xFE36: 0x0029, // ︶ right parenthesis
	0xFE37: 0x007B, // ︷ left curly bracket
	0xFE38: 0x007D, // ︸ right curly bracket
	0xFE39: 0x3014, // ︹ left tortoise shell bracket
	0xFE3A: 0x3015, // ︺ right tortoise shell bracket
	0xFE3B: 0x3010, // ︻ left black lenticular bracket
	0xFE3C: 0x3011, // ︼ right black lenticular bracket
	0xFE3D: 0x300A, // ︽ left double angle bracket
	0xFE3E: 0x300B, // ︾ right double angle bracket
	0xFE3F: 0x3008, // ︿ left angle bracket
	0xFE40: 0x3009, // ﹀ right angle bracket
	0xFE41: 0x300C, // ﹁ left corner bracket
	0xFE42: 0x300D, // ﹂ right corner bracket
	0xFE43: 0x300E, // ﹃ left white corner bracket
	0xFE44: 0x300F, // ﹄ right white corner bracket
	0xFE45: 0xFE51, // ﹅ sesame dot
	0xFE47: 0x005B, // ﹇ left square bracket
	0xFE48: 0x005D, // ﹈ right square bracket
	0xFE49: 0x203E, // ﹉ dashed overline
	0xFE4A: 0x203E, // ﹊ centreline overline
	0xFE4B: 0x203E, // ﹋ wavy overline
	0xFE4C: 0x203E, // ﹌ double wavy overline
	0xFE4D: 0x005F, // ﹍ dashed low line
	0xFE4E: 0x005F, // ﹎ centreline low line
	0xFE4F: 0x005F, // ﹏ wavy low line
}

// seeds are always part of the harvest: the renderer needs them for link
// markers, list bullets, width heuristics and numbered lists.
var seeds = []rune{'[', ']', '-', 'o', 'G', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9'}

// CharsList maps harvested code points to their occurrence count, iterable
// in code-point order.
type CharsList struct {
	m *treemap.Map
}

// NewCharsList returns an empty list.
func NewCharsList() *CharsList {
	return &CharsList{m: treemap.NewWith(utils.RuneComparator)}
}

// Add increments the count of ch.
func (c *CharsList) Add(ch rune) {
	if count, ok := c.m.Get(ch); ok {
		c.m.Put(ch, count.(uint32)+1)
	} else {
		c.m.Put(ch, uint32(1))
	}
}

// Count returns the occurrence count of ch, 0 when absent.
func (c *CharsList) Count(ch rune) uint32 {
	if count, ok := c.m.Get(ch); ok {
		return count.(uint32)
	}
	return 0
}

// Has reports whether ch was harvested.
func (c *CharsList) Has(ch rune) bool {
	_, ok := c.m.Get(ch)
	return ok
}

// Len returns the number of distinct code points.
func (c *CharsList) Len() int {
	return c.m.Size()
}

// Each calls fn for every harvested code point in ascending order.
func (c *CharsList) Each(fn func(ch rune, count uint32)) {
	c.m.Each(func(key, value interface{}) {
		fn(key.(rune), value.(uint32))
	})
}

// Harvester accumulates interesting code points from XHTML text.
type Harvester struct {
	chars *CharsList
}

// NewHarvester returns a harvester pre-seeded with the code points the
// renderer always needs.
func NewHarvester() *Harvester {
	h := &Harvester{chars: NewCharsList()}
	for _, ch := range seeds {
		h.chars.Add(ch)
	}
	return h
}

// Chars returns the harvest collected so far.
func (h *Harvester) Chars() *CharsList {
	return h.chars
}

// HarvestText decodes a text node and accumulates its interesting code
// points. Presentation forms additionally pull in their translated base form.
func (h *Harvester) HarvestText(s string) {
	iter := NewIterator(s)
	for {
		ch, ok := iter.Next()
		if !ok {
			return
		}
		if !Interesting(ch) {
			continue
		}
		h.chars.Add(ch)
		if base, ok := translations[ch]; ok {
			h.chars.Add(base)
		}
	}
}

// HarvestDocument walks every text node of a parsed content document.
func (h *Harvester) HarvestDocument(doc *epub.Document) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			h.HarvestText(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Doc.Nodes {
		walk(root)
	}
}

// ScanPublication harvests every XHTML manifest item, spine entries first
// in reading order, then the items the spine never references (navigation
// documents and the like). A document that fails to parse is skipped (its
// harvest is lost); a spine item that cannot be extracted aborts the scan.
func ScanPublication(f *epub.File) (*CharsList, error) {
	h := NewHarvester()
	visited := make(map[string]bool)

	for idx := 0; idx < f.SpineCount(); idx++ {
		item := f.SpineManifestItem(idx)
		if item.MediaType != epub.MediaTypeXHTML {
			continue
		}
		visited[item.Href] = true
		if err := h.harvestFile(f, item.Href); err != nil {
			return nil, err
		}
	}

	for _, id := range sortedManifestIDs(f) {
		item := f.Manifest()[id]
		if item.MediaType != epub.MediaTypeXHTML || visited[item.Href] {
			continue
		}
		if err := h.harvestFile(f, item.Href); err != nil {
			return nil, err
		}
	}

	return h.chars, nil
}

// harvestFile loads one content document and harvests it.
func (h *Harvester) harvestFile(f *epub.File, href string) error {
	doc, err := f.XHTMLFile(href)
	if err != nil {
		if errors.Is(err, epub.ErrXHTMLParse) {
			log.Printf("warning: %v", err)
			return nil
		}
		return fmt.Errorf("unable to scan %s: %w", href, err)
	}
	h.HarvestDocument(doc)
	return nil
}

// sortedManifestIDs gives the manifest a stable walk order.
func sortedManifestIDs(f *epub.File) []string {
	ids := make([]string, 0, len(f.Manifest()))
	for id := range f.Manifest() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
