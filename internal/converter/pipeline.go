// Package converter orchestrates the EPUB to IBMF conversion pipeline.
package converter

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/sguertin/epub2ibmf/internal/epub"
	"github.com/sguertin/epub2ibmf/internal/harvest"
	"github.com/sguertin/epub2ibmf/internal/ibmf"
)

// ErrEPubOpen marks a publication that could not be opened at all; the CLI
// maps it to its own exit code.
var ErrEPubOpen = errors.New("unable to open EPUB")

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	HexPath     string
	EPubPath    string
	OutputPath  string
	PreviewPath string // optional glyph sheet image
}

// Pipeline derives an IBMF font from a publication and a hex glyph source.
type Pipeline struct {
	Options ConvertOptions
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	return &Pipeline{Options: opts}
}

// Convert executes the pipeline: scan the publication, cluster the harvest,
// import the matching hex glyphs, and serialize the font.
func (p *Pipeline) Convert() error {
	f, err := epub.Open(p.Options.EPubPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEPubOpen, err)
	}
	defer f.Close()

	log.Printf("Scanning %s (%d spine items)", p.Options.EPubPath, f.SpineCount())

	chars, err := harvest.ScanPublication(f)
	if err != nil {
		return fmt.Errorf("document scan failed: %w", err)
	}
	log.Printf("Scan completed, %d distinct code points", chars.Len())

	blocks := harvest.BuildUBlocks(chars)
	for _, b := range blocks {
		log.Printf("  %04X .. %04X  %s", b.First, b.Last, b.Label)
	}
	log.Printf("Cluster count: %d", len(blocks))

	font, err := ibmf.NewHexImporter(blocks).LoadHex(p.Options.HexPath)
	if err != nil {
		return fmt.Errorf("hex import failed: %w", err)
	}
	log.Printf("Imported %d glyphs from %s", font.Faces[0].Header.GlyphCount, p.Options.HexPath)

	if err := p.writeFont(font); err != nil {
		return err
	}

	if p.Options.PreviewPath != "" {
		if err := font.SavePreview(p.Options.PreviewPath, 32); err != nil {
			log.Printf("warning: %v", err)
		}
	}

	return nil
}

// writeFont serializes the font to the output path.
func (p *Pipeline) writeFont(font *ibmf.Font) error {
	out, err := os.Create(p.Options.OutputPath)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", p.Options.OutputPath, err)
	}

	n, err := font.Save(out)
	if err != nil {
		out.Close()
		return fmt.Errorf("unable to write %s: %w", p.Options.OutputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("unable to close %s: %w", p.Options.OutputPath, err)
	}

	log.Printf("Done: %s (%d bytes)", p.Options.OutputPath, n)
	return nil
}
