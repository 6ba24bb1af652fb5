package arc

import (
	"fmt"
	"io"
	"os"

	"github.com/SchnorcherSepp/splitarc/chunk"
	log "github.com/sirupsen/logrus"
)

// Extract writes the content of the first entry with the given name to dest.
// Transformed entries are restored with the archive processor (@see WithProcessor).
// The destination is only created if the entry exists.
func (a *Archive) Extract(name, dest string) (err error) {
	name = normName(name)
	defer func() {
		a.notify(Extracted, name, err == nil)
	}()

	data, err := a.ReadData(name)
	if err != nil {
		return err
	}

	// write destination
	fh, err := os.Create(dest)
	if err != nil {
		log.Errorf("%s/Extract: %v", packageName, err)
		return newError(KindFileOpenError, "extract", dest, err)
	}
	if _, err := fh.Write(data); err != nil {
		_ = fh.Close()
		log.Errorf("%s/Extract: %v", packageName, err)
		return newError(KindFileWriteError, "extract", dest, err)
	}
	if err := fh.Close(); err != nil {
		return newError(KindFileCloseError, "extract", dest, err)
	}

	log.Debugf("%s/Extract: '%s' -> '%s' (%d bytes)", packageName, name, dest, len(data))
	return nil
}

// ReadData returns the content of the first entry with the given name.
// Unlike Extract, observers are not notified.
func (a *Archive) ReadData(name string) ([]byte, error) {
	name = normName(name)
	if a.fh == nil {
		return nil, newError(KindFileOpenError, "extract", a.path, nil)
	}

	hash := chunk.Hash(name)
	scan := a.newScanner()
	c := new(chunk.Chunk)
	for {
		idx, err := scan.Next(c)
		if err == io.EOF {
			break // EXIT: not found
		}
		if err != nil {
			log.Errorf("%s/ReadData: block %d: %v", packageName, idx, err)
			return nil, newError(KindFileReadError, "extract", a.path, err)
		}
		if !c.Occupied || !matches(&c.Header, name, hash) {
			continue
		}

		// first match
		log.Tracef("%s/ReadData: '%s' found at block %d", packageName, name, idx)
		stored, err := a.readRun(idx, &c.Header)
		if err != nil {
			return nil, err
		}
		return a.restore(name, &c.Header, stored)
	}

	return nil, newError(KindFileNotFound, "extract", name, nil)
}

// readRun reads all blocks of the run starting at block idx and returns
// the stored (maybe transformed) bytes without padding.
func (a *Archive) readRun(idx int64, first *chunk.Header) ([]byte, error) {
	name := first.Name()

	n := first.RunLength()
	if n == 0 || n > chunk.MaxChunkCount {
		return nil, newError(KindBadBlockCount, "extract", name, nil)
	}
	stored := first.StoredSize()
	if stored > n*chunk.PayloadSize {
		return nil, newError(KindBadBlockDataLength, "extract", name, nil)
	}

	// read the run at once
	buf := make([]byte, n*chunk.BlockSize)
	if _, err := a.fh.ReadAt(buf, idx*chunk.BlockSize); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			log.Errorf("%s/readRun: '%s': run of %d blocks at %d is truncated", packageName, name, n, idx)
			return nil, newError(KindBadBlockCount, "extract", name, err)
		}
		return nil, newError(KindFileReadError, "extract", name, err)
	}

	// check and join the blocks
	data := make([]byte, 0, n*chunk.PayloadSize)
	c := new(chunk.Chunk)
	for i := 0; i < n; i++ {
		if err := c.Decode(buf[i*chunk.BlockSize:]); err != nil {
			return nil, newError(KindBadBlock, "extract", name, err)
		}
		if !c.Valid() {
			log.Errorf("%s/readRun: '%s': checksum mismatch at block %d", packageName, name, idx+int64(i))
			return nil, newError(KindBadBlockData, "extract", name, nil)
		}
		if !c.Occupied || int(c.PartNum) != i+1 || c.Name() != name {
			log.Errorf("%s/readRun: '%s': unexpected block %d (part %d of '%s')", packageName, name, idx+int64(i), c.PartNum, c.Name())
			return nil, newError(KindBadBlockNumber, "extract", name, nil)
		}
		data = append(data, c.Payload[:]...)
	}

	return data[:stored], nil
}

// restore reverses the transform of a run (if any).
func (a *Archive) restore(name string, h *chunk.Header, stored []byte) ([]byte, error) {
	if !h.Transformed() {
		if len(stored) != int(h.LogicalSize) {
			return nil, newError(KindBadBlockDataLength, "extract", name, nil)
		}
		return stored, nil
	}

	if a.processor == nil {
		log.Errorf("%s/restore: '%s' is transformed, but no processor is set", packageName, name)
		return nil, newError(KindBadProcessor, "extract", name, nil)
	}
	out, err := a.processor.ReverseProcess(stored)
	if err == nil && len(out) != int(h.LogicalSize) {
		err = fmt.Errorf("restored %d bytes, want %d", len(out), h.LogicalSize)
	}
	if err != nil {
		log.Errorf("%s/restore: '%s': %v", packageName, name, err)
		return nil, newError(KindBadProcessor, "extract", name, err)
	}
	return out, nil
}
