package epub

import (
	"encoding/xml"
	"fmt"
	"log"
	"strings"
)

// container.xml structure
type ocfContainer struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// opfPackage represents the OPF XML structure.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Metadata struct {
		Title   []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creator []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// parseContainer extracts the package document path from an OCF
// META-INF/container.xml. The first rootfile is used; additional rootfiles
// are reported and ignored.
func parseContainer(content []byte) (string, error) {
	var c ocfContainer
	if err := xml.Unmarshal(content, &c); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}

	rootfiles := c.Rootfiles.Rootfile
	if len(rootfiles) == 0 {
		return "", ErrNoRootfile
	}
	for _, rf := range rootfiles[1:] {
		log.Printf("warning: extra rootfile ignored: %s", rf.FullPath)
	}

	return rootfiles[0].FullPath, nil
}

// ParseOPF parses an OPF package document. opfPath is the path of the OPF
// file within the archive; manifest hrefs resolve relative to its directory.
func ParseOPF(content []byte, opfPath string) (*OPF, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF %s: %w", opfPath, err)
	}

	opf := &OPF{
		BasePath: extractBasePath(opfPath),
		Manifest: make(map[string]ManifestItem),
	}

	if len(pkg.Metadata.Title) > 0 {
		opf.Title = pkg.Metadata.Title[0]
	}
	if len(pkg.Metadata.Creator) > 0 {
		opf.Creator = pkg.Metadata.Creator[0]
	}

	for _, item := range pkg.Manifest.Items {
		opf.Manifest[item.ID] = ManifestItem{
			ID:        item.ID,
			Href:      item.Href,
			MediaType: item.MediaType,
		}
	}

	// Every spine entry must resolve to a manifest id; broken references
	// are reported and skipped.
	for _, ref := range pkg.Spine.ItemRefs {
		if _, ok := opf.Manifest[ref.IDRef]; !ok {
			log.Printf("warning: spine idref not found in manifest: %s", ref.IDRef)
			continue
		}
		opf.Spine = append(opf.Spine, SpineItem{IDRef: ref.IDRef})
	}

	return opf, nil
}

// extractBasePath returns the directory part of an archive path including the
// trailing slash, or "" for a root-level file.
func extractBasePath(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i+1]
	}
	return ""
}
