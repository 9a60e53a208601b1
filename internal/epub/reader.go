// Package epub resolves the OCF/OPF layer of an EPUB publication and exposes
// its XHTML content documents by logical path.
package epub

import (
	"errors"
	"fmt"

	"github.com/sguertin/epub2ibmf/internal/unzip"
)

var (
	ErrContainerNotFound = errors.New("META-INF/container.xml not found")
	ErrNoRootfile        = errors.New("no rootfile in container.xml")
	ErrXHTMLParse        = errors.New("failed to parse XHTML")
)

// File provides access to one EPUB publication. It owns the archive handle,
// the parsed package document, and a one-slot cache of the most recently
// parsed XHTML content document.
type File struct {
	zip *unzip.Unzipper
	opf *OPF

	current *Document
}

// Open opens the EPUB at path, resolves META-INF/container.xml and parses
// the package document it names.
func Open(path string) (*File, error) {
	z, err := unzip.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	f := &File{zip: z}

	container, err := f.readMember("META-INF/container.xml")
	if err != nil {
		z.Close()
		return nil, fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}

	opfPath, err := parseContainer(container)
	if err != nil {
		z.Close()
		return nil, err
	}

	opfData, err := f.readMember(opfPath)
	if err != nil {
		z.Close()
		return nil, fmt.Errorf("failed to read OPF %s: %w", opfPath, err)
	}

	opf, err := ParseOPF(opfData, opfPath)
	if err != nil {
		z.Close()
		return nil, err
	}
	f.opf = opf

	return f, nil
}

// Close releases the archive handle and the document cache.
func (f *File) Close() error {
	f.current = nil
	return f.zip.Close()
}

// OPF returns the parsed package document.
func (f *File) OPF() *OPF {
	return f.opf
}

// SpineCount returns the number of resolved spine entries.
func (f *File) SpineCount() int {
	return len(f.opf.Spine)
}

// Spine returns the spine entry at idx.
func (f *File) Spine(idx int) SpineItem {
	return f.opf.Spine[idx]
}

// SpineManifestItem resolves the spine entry at idx to its manifest item.
func (f *File) SpineManifestItem(idx int) ManifestItem {
	return f.opf.Manifest[f.opf.Spine[idx].IDRef]
}

// SpineIndex returns the spine position of the item with the given href, or
// -1 when no spine entry resolves to it.
func (f *File) SpineIndex(href string) int {
	return f.opf.SpineIndex(href)
}

// Manifest returns the manifest items keyed by id.
func (f *File) Manifest() map[string]ManifestItem {
	return f.opf.Manifest
}

// FullPath prepends the OPF base directory to a manifest href.
func (f *File) FullPath(href string) string {
	return f.opf.FullPath(href)
}

// UncompressedSize probes the archive for the stored size of the spine item
// at idx (plus the trailing NUL byte) without extracting it. It returns 0
// when the member cannot be opened.
func (f *File) UncompressedSize(spineIdx int) uint32 {
	path := f.opf.FullPath(f.SpineManifestItem(spineIdx).Href)
	if err := f.zip.OpenFile(path); err != nil {
		return 0
	}
	size := f.zip.FileSize()
	f.zip.CloseFile()
	return size
}

// readMember extracts the archive member at path. The returned buffer
// includes the trailing NUL byte appended by the ZIP reader.
func (f *File) readMember(path string) ([]byte, error) {
	if err := f.zip.OpenFile(path); err != nil {
		return nil, err
	}
	defer f.zip.CloseFile()

	size := f.zip.FileSize()
	if size == 0 {
		return nil, fmt.Errorf("member %s has no size", path)
	}

	buf := make([]byte, size)
	if _, err := f.zip.ReadFile(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
