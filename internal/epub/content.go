package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"

	"github.com/PuerkitoBio/goquery"
)

// TextSegment records the byte geography of one text node: where it starts
// in the raw XHTML file and how many raw bytes it spans. Segments are kept
// in document order for the <html><body> subtree.
type TextSegment struct {
	FileOffset uint32
	Length     uint32
}

// Document is a parsed XHTML content file. Raw is the undecoded file
// content; the segment index points into it, so offset arithmetic between
// character positions and file positions stays exact.
type Document struct {
	Path string // full path within the archive
	Raw  []byte
	Doc  *goquery.Document

	segments []TextSegment
}

// XHTMLFile returns the parsed content document for a manifest href. The
// most recently parsed document is cached; requesting a different path
// discards the cached buffer and DOM and replaces them.
func (f *File) XHTMLFile(href string) (*Document, error) {
	path := f.opf.FullPath(href)

	if f.current != nil && f.current.Path == path {
		return f.current, nil
	}

	buf, err := f.readMember(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	raw := buf[:len(buf)-1] // drop the trailing NUL

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrXHTMLParse, path, err)
	}

	segments, err := bodyTextSegments(raw)
	if err != nil {
		// The document is still usable for harvesting; only offset
		// mapping degrades to the segments gathered so far.
		log.Printf("warning: text segment index incomplete for %s: %v", path, err)
	}

	f.current = &Document{
		Path:     path,
		Raw:      raw,
		Doc:      doc,
		segments: segments,
	}
	return f.current, nil
}

// bodyTextSegments walks the raw XHTML bytes and records the position and
// raw length of every text node below <html><body>, in document order.
// Entities are left undecoded so segment lengths match the bytes on disk.
func bodyTextSegments(raw []byte) ([]TextSegment, error) {
	d := xml.NewDecoder(bytes.NewReader(raw))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	var segments []TextSegment
	var stack []string

	inBody := func() bool {
		return len(stack) >= 2 && stack[0] == "html" && stack[1] == "body"
	}

	for {
		start := d.InputOffset()
		tok, err := d.Token()
		if err == io.EOF {
			return segments, nil
		}
		if err != nil {
			return segments, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if inBody() {
				end := d.InputOffset()
				segments = append(segments, TextSegment{
					FileOffset: uint32(start),
					Length:     uint32(end - start),
				})
			}
		}
	}
}

// FileOffsetAtCharOffset maps a character offset within the body text of a
// content document to the byte offset in the XHTML file. Text node lengths
// accumulate until the running total would pass charOffset; the remainder
// indexes into that node. A charOffset beyond the last text node yields 0.
func (f *File) FileOffsetAtCharOffset(href string, charOffset uint32) (uint32, error) {
	doc, err := f.XHTMLFile(href)
	if err != nil {
		return 0, err
	}

	var chOffset uint32
	for _, seg := range doc.segments {
		if chOffset+seg.Length > charOffset {
			return seg.FileOffset + (charOffset - chOffset), nil
		}
		chOffset += seg.Length
	}
	return 0, nil
}

// CharOffsetAtFileOffset maps a byte offset in the XHTML file to the
// cumulative character offset of the body text at that position. Offsets
// that fall before a text node clamp to the node's start; an offset past the
// last node yields the total text length.
func (f *File) CharOffsetAtFileOffset(href string, fileOffset uint32) (uint32, error) {
	doc, err := f.XHTMLFile(href)
	if err != nil {
		return 0, err
	}

	var charOffset uint32
	for _, seg := range doc.segments {
		if seg.FileOffset+seg.Length >= fileOffset {
			var delta uint32
			if fileOffset > seg.FileOffset {
				delta = fileOffset - seg.FileOffset
			}
			return charOffset + delta, nil
		}
		charOffset += seg.Length
	}
	return charOffset, nil
}
