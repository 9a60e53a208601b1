// Test program for the EPUB container layer.
//
// Usage:
//
//	go run ./cmd/test/epub_reader/main.go <epub-file> (<xhtml-href> ...)
//
// This program exercises the following functionality:
// - Opening EPUB files (ZIP archive, container.xml, OPF)
// - Listing manifest and spine entries
// - Loading XHTML content documents through the one-slot cache
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sguertin/epub2ibmf/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/epub_reader/main.go <epub-file> (<xhtml-href> ...)")
		os.Exit(1)
	}

	epubPath := os.Args[1]
	hrefs := os.Args[2:]

	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	f, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer f.Close()

	opf := f.OPF()
	fmt.Printf("Title: %s\n", opf.Title)
	fmt.Printf("Base path: %q\n\n", opf.BasePath)

	fmt.Printf("Manifest (%d items):\n", len(opf.Manifest))
	for id, item := range opf.Manifest {
		fmt.Printf("  %-12s %-28s %s\n", id, item.Href, item.MediaType)
	}

	fmt.Printf("\nSpine (%d items):\n", f.SpineCount())
	for i := 0; i < f.SpineCount(); i++ {
		item := f.SpineManifestItem(i)
		fmt.Printf("  %2d: %s (%d bytes uncompressed)\n", i, item.Href, f.UncompressedSize(i))
	}

	for _, href := range hrefs {
		doc, err := f.XHTMLFile(href)
		if err != nil {
			log.Printf("Failed to load %s: %v", href, err)
			continue
		}
		fmt.Printf("\n%s: %d raw bytes, body text %q\n", doc.Path, len(doc.Raw), doc.Doc.Find("body").Text())
	}
}
