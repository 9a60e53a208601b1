package epub

import (
	"bytes"
	"testing"
)

func TestXHTMLFileCachesDocument(t *testing.T) {
	f, err := Open(writeTestEPub(t, defaultTestFiles()))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer f.Close()

	doc1, err := f.XHTMLFile("text/ch1.xhtml")
	if err != nil {
		t.Fatalf("XHTMLFile returned error: %v", err)
	}
	doc1Again, err := f.XHTMLFile("text/ch1.xhtml")
	if err != nil {
		t.Fatalf("XHTMLFile (cached) returned error: %v", err)
	}
	if doc1 != doc1Again {
		t.Fatalf("repeated request for the same path must return the cached document")
	}

	doc2, err := f.XHTMLFile("text/ch2.xhtml")
	if err != nil {
		t.Fatalf("XHTMLFile(ch2) returned error: %v", err)
	}
	if doc2 == doc1 {
		t.Fatalf("a different path must evict and replace the cache")
	}
	if doc2.Path != "OEBPS/text/ch2.xhtml" {
		t.Fatalf("Path = %q, want %q", doc2.Path, "OEBPS/text/ch2.xhtml")
	}
}

func TestXHTMLFileDocumentText(t *testing.T) {
	f, err := Open(writeTestEPub(t, defaultTestFiles()))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer f.Close()

	doc, err := f.XHTMLFile("text/ch1.xhtml")
	if err != nil {
		t.Fatalf("XHTMLFile returned error: %v", err)
	}
	if got := doc.Doc.Find("body").Text(); got != "HelloWorld" {
		t.Fatalf("body text = %q, want %q", got, "HelloWorld")
	}
}

func TestFileOffsetAtCharOffset(t *testing.T) {
	f, err := Open(writeTestEPub(t, defaultTestFiles()))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer f.Close()

	helloOff := uint32(bytes.Index([]byte(ch1XHTML), []byte("Hello")))
	worldOff := uint32(bytes.Index([]byte(ch1XHTML), []byte("World")))

	tests := []struct {
		charOffset uint32
		want       uint32
	}{
		{0, helloOff},
		{3, helloOff + 3},
		{5, worldOff},     // first char of the second text node
		{7, worldOff + 2}, // inside the second text node
		{100, 0},          // beyond the last text node
	}

	for _, tt := range tests {
		got, err := f.FileOffsetAtCharOffset("text/ch1.xhtml", tt.charOffset)
		if err != nil {
			t.Fatalf("FileOffsetAtCharOffset(%d) returned error: %v", tt.charOffset, err)
		}
		if got != tt.want {
			t.Errorf("FileOffsetAtCharOffset(%d) = %d, want %d", tt.charOffset, got, tt.want)
		}
	}
}

func TestCharOffsetAtFileOffset(t *testing.T) {
	f, err := Open(writeTestEPub(t, defaultTestFiles()))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer f.Close()

	helloOff := uint32(bytes.Index([]byte(ch1XHTML), []byte("Hello")))
	worldOff := uint32(bytes.Index([]byte(ch1XHTML), []byte("World")))

	tests := []struct {
		fileOffset uint32
		want       uint32
	}{
		{helloOff, 0},
		{helloOff + 3, 3},
		{worldOff + 2, 7},
		{0, 0}, // before the first text node clamps to its start
		{uint32(len(ch1XHTML)), 10}, // past the last node yields the total length
	}

	for _, tt := range tests {
		got, err := f.CharOffsetAtFileOffset("text/ch1.xhtml", tt.fileOffset)
		if err != nil {
			t.Fatalf("CharOffsetAtFileOffset(%d) returned error: %v", tt.fileOffset, err)
		}
		if got != tt.want {
			t.Errorf("CharOffsetAtFileOffset(%d) = %d, want %d", tt.fileOffset, got, tt.want)
		}
	}
}
