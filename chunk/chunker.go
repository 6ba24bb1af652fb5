package chunk

import (
	"errors"
	"io"

	log "github.com/sirupsen/logrus"
)

// Chunker splits a source into PayloadSize fragments.
type Chunker struct {
	src io.ReadSeeker
}

// NewChunker returns a Chunker for the source.
func NewChunker(src io.ReadSeeker) *Chunker {
	return &Chunker{src: src}
}

// Each delivers all fragments of the source to fn.
// The source is read from the beginning on every call (restartable).
// The last fragment is zero-padded to PayloadSize and an empty source
// yields exactly one zero fragment.
//
// The fragment buffer is reused and only valid during the fn call.
// If fn returns an error, the sequence stops and the error is returned.
func (c *Chunker) Each(fn func(part int, fragment []byte) error) error {
	// nil check
	if c.src == nil {
		return errors.New("source is nil")
	}

	// go to: source beginning
	if _, err := c.src.Seek(0, io.SeekStart); err != nil {
		log.Errorf("%s/Each: seek: %v", packageName, err)
		return err
	}

	buf := make([]byte, PayloadSize)
	for part := 1; true; part++ {
		// read next fragment
		n, err := io.ReadFull(c.src, buf)
		if err == io.EOF && part > 1 {
			break // EXIT: source done
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			log.Errorf("%s/Each: part %d: %v", packageName, part, err)
			return err // read error
		}

		// zero padding
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}

		// callback
		if err := fn(part, buf); err != nil {
			return err // abort
		}

		// EXIT: last (short) fragment
		if n < len(buf) {
			break
		}
	}

	// success
	return nil
}

// Count returns the number of fragments Each would deliver.
func (c *Chunker) Count() (int, error) {
	// nil check
	if c.src == nil {
		return 0, errors.New("source is nil")
	}

	size, err := c.src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return BlockCount(int(size)), nil
}
