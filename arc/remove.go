package arc

import (
	"io"

	"github.com/SchnorcherSepp/splitarc/chunk"
	log "github.com/sirupsen/logrus"
)

// Remove marks all blocks of all entries with the given name as free (soft delete).
// Only the block headers are rewritten; the space is reclaimed by Compact.
func (a *Archive) Remove(name string) (err error) {
	name = normName(name)
	defer func() {
		a.notify(Removed, name, err == nil)
	}()

	if a.fh == nil {
		return newError(KindFileOpenError, "remove", a.path, nil)
	}

	hash := chunk.Hash(name)
	scan := a.newScanner()
	c := new(chunk.Chunk)
	freed := 0
	for {
		idx, err := scan.Next(c)
		if err == io.EOF {
			break // EXIT: end of archive
		}
		if err != nil {
			log.Errorf("%s/Remove: block %d: %v", packageName, idx, err)
			return newError(KindFileReadError, "remove", a.path, err)
		}
		if !c.Occupied || !matches(&c.Header, name, hash) {
			continue
		}

		// free block (header only)
		c.Occupied = false
		c.Seal()
		if err := a.writeHeader(idx, &c.Header); err != nil {
			log.Errorf("%s/Remove: block %d: %v", packageName, idx, err)
			return newError(KindFileWriteError, "remove", name, err)
		}
		freed++
	}

	if freed == 0 {
		return newError(KindFileNotFound, "remove", name, nil)
	}
	log.Debugf("%s/Remove: '%s': %d blocks freed", packageName, name, freed)
	return nil
}
