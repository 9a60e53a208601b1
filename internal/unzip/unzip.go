// Package unzip is a small random-access ZIP member reader.
//
// It is specialized for EPUB archives read on memory-constrained targets:
// the central directory is located by scanning backwards for the
// end-of-central-directory record (the archive may carry a trailing comment
// of up to 64 KiB), the member table is kept in memory, and members are
// extracted one at a time into a caller-supplied buffer with a trailing NUL
// byte appended for the XML parser.
package unzip

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
)

const (
	eocdSignature    = 0x06054b50
	dirHdrSignature  = 0x02014b50
	fileHdrSignature = 0x04034b50

	eocdSize    = 22 // fixed part of the end-of-central-directory record
	dirHdrSize  = 46 // fixed part of a central directory file header
	fileHdrSize = 30 // fixed part of a local file header

	// A signature can straddle a read boundary, so backward scan windows
	// overlap by the signature length plus one.
	scanSlack = 5

	// Maximum size of the ZIP end-of-archive comment.
	maxCommentSize = 65536

	// Compressed input is fed to the inflater through a buffer of this size.
	chunkSize = 16 * 1024
)

// Compression methods of interest.
const (
	MethodStore   = 0
	MethodDeflate = 8
)

var (
	ErrNotOpen           = errors.New("archive is not open")
	ErrNoEndOfDirectory  = errors.New("end of central directory not found")
	ErrBadDirectory      = errors.New("bad central directory header")
	ErrBadFileHeader     = errors.New("bad local file header")
	ErrFileNotFound      = errors.New("file not found in archive")
	ErrNoCurrentFile     = errors.New("no current file")
	ErrShortBuffer       = errors.New("buffer too small for file")
	ErrUnsupportedMethod = errors.New("unsupported compression method")
)

// fileEntry describes one archive member as recorded in the central directory.
type fileEntry struct {
	headerOffset     uint32
	compressedSize   uint32
	uncompressedSize uint32
	method           uint16
}

// Unzipper provides random access to the members of one ZIP archive.
// One member at a time can be made current with OpenFile and then read.
type Unzipper struct {
	path    string
	file    *os.File
	entries map[string]*fileEntry

	current    *fileEntry
	dataOffset int64 // file offset of the current member's data
}

// Open opens the archive at path and builds the member table from its
// central directory.
func Open(filePath string) (*Unzipper, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open archive %s: %w", filePath, err)
	}

	u := &Unzipper{
		path:    filePath,
		file:    f,
		entries: make(map[string]*fileEntry),
	}

	if err := u.readCentralDirectory(); err != nil {
		f.Close()
		return nil, fmt.Errorf("archive %s: %w", filePath, err)
	}

	return u, nil
}

// Close releases the archive file handle and the member table.
func (u *Unzipper) Close() error {
	if u.file == nil {
		return nil
	}
	u.current = nil
	u.entries = nil
	err := u.file.Close()
	u.file = nil
	return err
}

// readCentralDirectory locates the end-of-central-directory record and walks
// the directory entries into the member table.
func (u *Unzipper) readCentralDirectory() error {
	length, err := u.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("unable to seek to end of file: %w", err)
	}
	if length < eocdSize {
		return ErrNoEndOfDirectory
	}

	ecdOffset := length - eocdSize
	record := make([]byte, eocdSize)
	if _, err := u.file.ReadAt(record, ecdOffset); err != nil {
		return fmt.Errorf("unable to read end of directory: %w", err)
	}

	if binary.LittleEndian.Uint32(record) != eocdSignature {
		// The archive ends with a comment. Scan backwards for the
		// signature, at most maxCommentSize behind the initial probe.
		ecdOffset, err = u.scanForEndOfDirectory(ecdOffset)
		if err != nil {
			return err
		}
		if _, err := u.file.ReadAt(record, ecdOffset); err != nil {
			return fmt.Errorf("unable to read end of directory: %w", err)
		}
	}

	startOffset := int64(binary.LittleEndian.Uint32(record[16:]))
	count := int(binary.LittleEndian.Uint16(record[10:]))
	if count == 0 || startOffset >= ecdOffset {
		return ErrBadDirectory
	}

	dir := make([]byte, ecdOffset-startOffset)
	if _, err := u.file.ReadAt(dir, startOffset); err != nil {
		return fmt.Errorf("unable to read central directory: %w", err)
	}

	offset := 0
	for i := 0; i < count; i++ {
		if offset+dirHdrSize > len(dir) {
			return ErrBadDirectory
		}
		hdr := dir[offset:]
		if binary.LittleEndian.Uint32(hdr) != dirHdrSignature {
			return ErrBadDirectory
		}

		nameLen := int(binary.LittleEndian.Uint16(hdr[28:]))
		extraLen := int(binary.LittleEndian.Uint16(hdr[30:]))
		commentLen := int(binary.LittleEndian.Uint16(hdr[32:]))
		if offset+dirHdrSize+nameLen > len(dir) {
			return ErrBadDirectory
		}

		name := string(dir[offset+dirHdrSize : offset+dirHdrSize+nameLen])
		u.entries[name] = &fileEntry{
			headerOffset:     binary.LittleEndian.Uint32(hdr[42:]),
			compressedSize:   binary.LittleEndian.Uint32(hdr[20:]),
			uncompressedSize: binary.LittleEndian.Uint32(hdr[24:]),
			method:           binary.LittleEndian.Uint16(hdr[10:]),
		}

		offset += dirHdrSize + nameLen + extraLen + commentLen
	}

	return nil
}

// scanForEndOfDirectory searches backwards from the initial probe offset for
// the end-of-central-directory signature, reading overlapping windows so the
// signature cannot be missed across a boundary.
func (u *Unzipper) scanForEndOfDirectory(probe int64) (int64, error) {
	signature := []byte("PK\x05\x06")
	window := make([]byte, eocdSize+scanSlack)

	endOffset := probe - maxCommentSize
	if endOffset < 0 {
		endOffset = 0
	}

	for offset := probe - eocdSize; offset > endOffset; offset -= eocdSize {
		if _, err := u.file.ReadAt(window, offset); err != nil {
			return 0, fmt.Errorf("unable to scan for end of directory: %w", err)
		}
		if i := bytes.Index(window, signature); i >= 0 {
			return offset + int64(i), nil
		}
	}

	return 0, ErrNoEndOfDirectory
}

// CleanFilePath canonicalizes a member path: "a/.." segments are collapsed
// and any leading slash is stripped. OPF hrefs and OCF rootfile paths are
// expressed relative to their containing file, so lookups such as
// "OEBPS/../img/x" must resolve to "img/x".
func CleanFilePath(filePath string) string {
	cleaned := path.Clean(filePath)
	cleaned = strings.TrimPrefix(cleaned, "/")
	return cleaned
}

// FileExists reports whether the archive holds a member at the given
// (canonicalized) path.
func (u *Unzipper) FileExists(filePath string) bool {
	if u.file == nil {
		return false
	}
	_, ok := u.entries[CleanFilePath(filePath)]
	return ok
}

// OpenFile makes the member at the given path current. The local file header
// is read and verified so that a following ReadFile can seek straight to the
// member's data.
func (u *Unzipper) OpenFile(filePath string) error {
	if u.file == nil {
		return ErrNotOpen
	}

	cleaned := CleanFilePath(filePath)
	entry, ok := u.entries[cleaned]
	if !ok {
		log.Printf("unzip: file not found: <%s>", cleaned)
		return fmt.Errorf("%w: %s", ErrFileNotFound, cleaned)
	}

	hdr := make([]byte, fileHdrSize)
	if _, err := u.file.ReadAt(hdr, int64(entry.headerOffset)); err != nil {
		return fmt.Errorf("unable to read file header of %s: %w", cleaned, err)
	}
	if binary.LittleEndian.Uint32(hdr) != fileHdrSignature {
		log.Printf("unzip: bad local header signature for <%s> at offset %d", cleaned, entry.headerOffset)
		return ErrBadFileHeader
	}

	nameLen := int64(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := int64(binary.LittleEndian.Uint16(hdr[28:]))

	u.current = entry
	u.dataOffset = int64(entry.headerOffset) + fileHdrSize + nameLen + extraLen
	return nil
}

// CloseFile releases the current-member slot.
func (u *Unzipper) CloseFile() {
	u.current = nil
}

// FileSize returns the uncompressed size of the current member plus one, the
// extra byte holding the trailing NUL written by ReadFile.
func (u *Unzipper) FileSize() uint32 {
	if u.file == nil || u.current == nil {
		log.Printf("unzip: no current file")
		return 0
	}
	return u.current.uncompressedSize + 1
}

// ReadFile extracts the current member into buf, which must hold at least
// FileSize bytes, and appends a trailing NUL. It returns the number of bytes
// written (the member size plus one). On any failure no partial result is
// reported.
func (u *Unzipper) ReadFile(buf []byte) (uint32, error) {
	if u.file == nil {
		return 0, ErrNotOpen
	}
	if u.current == nil {
		return 0, ErrNoCurrentFile
	}

	size := u.current.uncompressedSize
	if uint32(len(buf)) < size+1 {
		return 0, ErrShortBuffer
	}

	section := io.NewSectionReader(u.file, u.dataOffset, int64(u.current.compressedSize))

	switch u.current.method {
	case MethodStore:
		if _, err := io.ReadFull(section, buf[:size]); err != nil {
			log.Printf("unzip: short read at offset %d: %v", u.dataOffset, err)
			return 0, fmt.Errorf("stored member read failed: %w", err)
		}

	case MethodDeflate:
		// Raw deflate stream, no zlib wrapper. The flate reader pulls its
		// input in chunks; it is released on every exit path.
		fr := flate.NewReader(newChunkedReader(section))
		defer fr.Close()
		if _, err := io.ReadFull(fr, buf[:size]); err != nil {
			log.Printf("unzip: inflate failed at offset %d: %v", u.dataOffset, err)
			return 0, fmt.Errorf("deflated member read failed: %w", err)
		}

	default:
		log.Printf("unzip: unsupported method %d", u.current.method)
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedMethod, u.current.method)
	}

	buf[size] = 0
	return size + 1, nil
}

// chunkedReader feeds the inflater at most chunkSize bytes per Read call.
type chunkedReader struct {
	r io.Reader
}

func newChunkedReader(r io.Reader) io.Reader {
	return &chunkedReader{r: r}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	return c.r.Read(p)
}
