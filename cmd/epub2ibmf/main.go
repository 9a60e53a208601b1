package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sguertin/epub2ibmf/internal/converter"
	"github.com/spf13/cobra"
)

const (
	defaultHexPath  = "./unifont-15.1.04.hex"
	defaultEPubPath = "./V1010490321.epub"
)

var rootCmd = &cobra.Command{
	Use:   "epub2ibmf [<hex-font-path> <epub-file-path>]",
	Short: "Derive an IBMF bitmap font from an EPUB publication",
	Long: `epub2ibmf harvests the set of Unicode code points actually used by an
EPUB publication and derives a compact IBMF v4 font file from a GNU
Unifont hex glyph source, containing exactly the glyphs needed to
render the book.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expects no argument or a hex font path and an EPUB path")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		hexPath := defaultHexPath
		epubPath := defaultEPubPath
		if len(args) == 2 {
			hexPath = args[0]
			epubPath = args[1]
		}

		outputPath, _ := cmd.Flags().GetString("output")
		previewPath, _ := cmd.Flags().GetString("preview")

		p := converter.NewPipeline(converter.ConvertOptions{
			HexPath:     hexPath,
			EPubPath:    epubPath,
			OutputPath:  outputPath,
			PreviewPath: previewPath,
		})

		if err := p.Convert(); err != nil {
			return fmt.Errorf("conversion failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringP("output", "o", "./font.ibmf", "Output font file path")
	rootCmd.Flags().String("preview", "", "Also write a glyph sheet image to this path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, converter.ErrEPubOpen) {
			os.Exit(254)
		}
		os.Exit(1)
	}
}
