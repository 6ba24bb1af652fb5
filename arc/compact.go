package arc

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/SchnorcherSepp/splitarc/chunk"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Compact rewrites the archive without the free blocks.
// The occupied blocks are copied in order to a scratch file in the same folder,
// which then replaces the archive. It returns the sum of the stored sizes of all retained runs.
//
// If anything fails before the replacement, the archive is left untouched.
func (a *Archive) Compact() (size int64, err error) {
	defer func() {
		a.notify(Compacted, "", err == nil)
	}()

	if a.fh == nil {
		return 0, newError(KindFileOpenError, "compact", a.path, nil)
	}

	// scratch file
	dir, base := filepath.Split(a.path)
	scratch := filepath.Join(dir, "."+base+".compact-"+uuid.NewString())
	tmp, err := os.OpenFile(scratch, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		log.Errorf("%s/Compact: %v", packageName, err)
		return 0, newError(KindFileOpenError, "compact", scratch, err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			if rmErr := os.Remove(scratch); rmErr != nil {
				log.Warnf("%s/Compact: %v", packageName, rmErr)
			}
		}
	}()

	// copy occupied blocks
	size, kept, dropped, err := a.copyOccupied(tmp)
	if err != nil {
		log.Errorf("%s/Compact: %v", packageName, err)
		return 0, newError(KindFileWriteError, "compact", scratch, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, newError(KindFileWriteError, "compact", scratch, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, newError(KindFileCloseError, "compact", scratch, err)
	}

	// replace the archive
	if err := a.fh.Sync(); err != nil {
		return 0, newError(KindFileError, "compact", a.path, err)
	}
	if err := os.Rename(scratch, a.path); err != nil {
		log.Errorf("%s/Compact: %v", packageName, err)
		return 0, newError(KindFileError, "compact", a.path, err)
	}
	renamed = true

	// reopen (the old handle still points to the replaced file)
	if cErr := a.fh.Close(); cErr != nil {
		log.Warnf("%s/Compact: close replaced archive: %v", packageName, cErr)
	}
	fh, err := os.OpenFile(a.path, os.O_RDWR, 0644)
	if err != nil {
		a.fh = nil
		log.Errorf("%s/Compact: reopen: %v", packageName, err)
		return 0, newError(KindFileOpenError, "compact", a.path, err)
	}
	a.fh = fh

	log.Debugf("%s/Compact: '%s': %d blocks kept, %d blocks dropped, %d bytes", packageName, a.path, kept, dropped, size)
	return size, nil
}

// copyOccupied writes all occupied blocks to w.
// The position hint (NextBlock) of valid blocks is updated.
// It returns the stored size of the retained runs and the number of kept and dropped blocks.
func (a *Archive) copyOccupied(w io.Writer) (size int64, kept, dropped int, err error) {
	bw := bufio.NewWriterSize(w, scanBuffer*chunk.BlockSize)
	scan := a.newScanner()
	c := new(chunk.Chunk)
	for {
		_, err := scan.Next(c)
		if err == io.EOF {
			break // EXIT: end of archive
		}
		if err != nil {
			return 0, 0, 0, err
		}
		if !c.Occupied {
			dropped++
			continue
		}

		if c.PartNum == 1 {
			size += int64(c.StoredSize())
		}
		if c.Valid() {
			c.NextBlock = uint16(kept + 1) // new position
			c.Seal()
		}
		if _, err := bw.Write(c.Encode()); err != nil {
			return 0, 0, 0, err
		}
		kept++
	}
	return size, kept, dropped, bw.Flush()
}
