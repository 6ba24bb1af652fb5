package arc

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SchnorcherSepp/splitarc/chunk"
	enc "github.com/SchnorcherSepp/splitarc/encoding"
	log "github.com/sirupsen/logrus"
)

// packageName is used for debug and error messages
const packageName = "arc"

// Extension is appended to every archive name.
const Extension = ".arc"

// Archive is an open archive file.
// All files are stored as runs of fixed-size blocks (@see chunk.Chunk).
// There is no index: every operation scans the blocks from the beginning.
//
// An Archive is NOT safe for concurrent use.
type Archive struct {
	path string
	fh   *os.File

	processor enc.Processor    // reverse transform for Extract
	now       func() time.Time // clock for DateAdded
	observers []Observer
}

// Option configures an Archive.
type Option func(*Archive)

// WithProcessor sets the processor used to reverse transformed files on Extract.
// The default is enc.Deflate.
func WithProcessor(p enc.Processor) Option {
	return func(a *Archive) {
		a.processor = p
	}
}

// WithClock replaces time.Now (used for DateAdded).
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		a.now = now
	}
}

// WithObserver subscribes an observer (@see AddObserver).
func WithObserver(o Observer) Option {
	return func(a *Archive) {
		a.AddObserver(o)
	}
}

// Create creates a new archive. An existing file is truncated.
// The extension '.arc' is added if missing.
func Create(name string, opts ...Option) (*Archive, error) {
	return openArchive(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, opts)
}

// Open opens an existing archive without truncation.
// The extension '.arc' is added if missing.
func Open(name string, opts ...Option) (*Archive, error) {
	return openArchive(name, os.O_RDWR, opts)
}

// openArchive opens the archive file with the given flags.
func openArchive(name string, flag int, opts []Option) (*Archive, error) {
	if strings.TrimSpace(name) == "" {
		return nil, newError(KindBadFilename, "open", name, nil)
	}
	path := ArchivePath(name)

	fh, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		log.Errorf("%s/openArchive: %v", packageName, err)
		return nil, newError(KindFileOpenError, "open", path, err)
	}

	a := &Archive{
		path:      path,
		fh:        fh,
		processor: enc.Deflate{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	log.Debugf("%s/openArchive: '%s'", packageName, path)
	return a, nil
}

// Close flushes and closes the archive file.
// Calling Close twice is not an error.
func (a *Archive) Close() error {
	if a.fh == nil {
		return nil // already closed
	}
	fh := a.fh
	a.fh = nil

	syncErr := fh.Sync()
	if err := fh.Close(); err != nil {
		log.Errorf("%s/Close: %v", packageName, err)
		return newError(KindFileCloseError, "close", a.path, err)
	}
	if syncErr != nil {
		return newError(KindFileCloseError, "close", a.path, syncErr)
	}
	return nil
}

// Path returns the full archive path (including '.arc').
func (a *Archive) Path() string {
	if abs, err := filepath.Abs(a.path); err == nil {
		return abs
	}
	return a.path
}

// Size returns the archive file size in bytes.
func (a *Archive) Size() (int64, error) {
	if a.fh == nil {
		return 0, newError(KindFileOpenError, "size", a.path, nil)
	}
	st, err := a.fh.Stat()
	if err != nil {
		return 0, newError(KindFileError, "size", a.path, err)
	}
	return st.Size(), nil
}

// ArchivePath adds the extension '.arc' if missing.
func ArchivePath(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return name + Extension
}

// ----------  HELPER  -----------------------------------------------------------------------------------------------//

// writeHeader overwrites the header of a block in place (the payload is not touched).
func (a *Archive) writeHeader(index int64, h *chunk.Header) error {
	buf := make([]byte, chunk.HeaderSize)
	h.EncodeTo(buf)
	_, err := a.fh.WriteAt(buf, index*chunk.BlockSize)
	return err
}

// matches compares a block with a requested name.
// The hash is only a pre-filter: it is used when the name is stored unchanged.
func matches(h *chunk.Header, name string, hash uint16) bool {
	stored := chunk.TruncateName(name)
	if stored == name && h.HashNum != hash {
		return false
	}
	return h.Name() == stored
}
