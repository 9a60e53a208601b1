// Test program for the Unifont hex importer.
//
// Usage:
//
//	go run ./cmd/test/hex_import/main.go <hex-file> <first-cp-hex> <last-cp-hex>
//
// Imports the glyphs of one code point range and prints their metrics, the
// resulting file size and the number of code point bundles.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/sguertin/epub2ibmf/internal/harvest"
	"github.com/sguertin/epub2ibmf/internal/ibmf"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Println("Usage: go run ./cmd/test/hex_import/main.go <hex-file> <first-cp-hex> <last-cp-hex>")
		os.Exit(1)
	}

	first, err := strconv.ParseUint(os.Args[2], 16, 32)
	if err != nil {
		log.Fatalf("Bad first code point: %v", err)
	}
	last, err := strconv.ParseUint(os.Args[3], 16, 32)
	if err != nil {
		log.Fatalf("Bad last code point: %v", err)
	}

	blocks := []harvest.UBlockDef{{First: rune(first), Last: rune(last)}}
	font, err := ibmf.NewHexImporter(blocks).LoadHex(os.Args[1])
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	face := font.Faces[0]
	fmt.Printf("Imported %d glyphs\n\n", len(face.Glyphs))

	for code, g := range face.Glyphs {
		cp := font.Table.CodePointFor(ibmf.GlyphCode(code))
		fmt.Printf("  %4d U+%04X  %2dx%-2d  hoff %3d voff %3d  advance %6.2f\n",
			code, cp, g.BitmapWidth, g.BitmapHeight,
			g.HorizontalOffset, g.VerticalOffset, float64(g.Advance)/64)
	}

	buf := &bytes.Buffer{}
	n, err := font.Save(buf)
	if err != nil {
		log.Fatalf("Serialization failed: %v", err)
	}
	fmt.Printf("\nSerialized size: %d bytes, %d bundles\n", n, len(font.Table.Bundles))
}
