package arc

import (
	"bufio"
	"io"
	"math"

	"github.com/SchnorcherSepp/splitarc/chunk"
	log "github.com/sirupsen/logrus"
)

// scanBuffer is the read buffer of a linear scan (in blocks).
const scanBuffer = 64

// scanner reads the archive block by block from the beginning.
// There is no index, so every operation starts with a scanner.
type scanner struct {
	r    *bufio.Reader
	buf  []byte
	next int64 // index of the next block
	path string
}

// newScanner starts a linear scan at block 0.
func (a *Archive) newScanner() *scanner {
	sr := io.NewSectionReader(a.fh, 0, math.MaxInt64)
	return &scanner{
		r:    bufio.NewReaderSize(sr, scanBuffer*chunk.BlockSize),
		buf:  make([]byte, chunk.BlockSize),
		path: a.path,
	}
}

// Next reads the next block into c and returns its index.
// io.EOF marks the end of the archive. A trailing partial block is ignored with a warning.
func (s *scanner) Next(c *chunk.Chunk) (int64, error) {
	n, err := io.ReadFull(s.r, s.buf)
	if err == io.ErrUnexpectedEOF {
		log.Warnf("%s/scanner: ignore %d trailing bytes after block %d: '%s'", packageName, n, s.next, s.path)
		return s.next, io.EOF
	}
	if err != nil {
		return s.next, err // io.EOF or read error
	}

	if err := c.Decode(s.buf); err != nil {
		return s.next, err
	}
	idx := s.next
	s.next++
	return idx, nil
}

// Skip jumps over n blocks.
func (s *scanner) Skip(n int) error {
	if n <= 0 {
		return nil
	}
	skipped, err := s.r.Discard(n * chunk.BlockSize)
	s.next += int64(skipped / chunk.BlockSize)
	if err == io.EOF {
		return nil // the next call of Next reports the end
	}
	return err
}
