package arc

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SchnorcherSepp/splitarc/chunk"
	log "github.com/sirupsen/logrus"
)

// Entry describes one occupied run of the archive.
type Entry struct {
	Index       int64     // block index of part 1
	Name        string    // stored (maybe truncated) name
	Size        int       // original size in bytes
	StoredSize  int       // size in the archive without padding (transformed size if Transformed)
	Blocks      int       // number of blocks
	Transformed bool      // stored with a processor
	Added       time.Time // date added (seconds)
}

// Entries returns all occupied runs in archive order.
// The blocks of a run are skipped after its first block.
// A run without blocks (corrupt header) stops the scan.
func (a *Archive) Entries() ([]Entry, error) {
	if a.fh == nil {
		return nil, newError(KindFileOpenError, "list", a.path, nil)
	}

	var list []Entry
	scan := a.newScanner()
	c := new(chunk.Chunk)
	for {
		idx, err := scan.Next(c)
		if err == io.EOF {
			break // EXIT: end of archive
		}
		if err != nil {
			log.Errorf("%s/Entries: block %d: %v", packageName, idx, err)
			return list, newError(KindFileReadError, "list", a.path, err)
		}
		if !c.Occupied {
			continue // free block
		}

		n := c.RunLength()
		if n == 0 {
			log.Warnf("%s/Entries: block %d: run without blocks, stop scan", packageName, idx)
			break // EXIT: corrupt
		}
		list = append(list, Entry{
			Index:       idx,
			Name:        c.Name(),
			Size:        int(c.LogicalSize),
			StoredSize:  c.StoredSize(),
			Blocks:      n,
			Transformed: c.Transformed(),
			Added:       c.Added(),
		})

		// go to the next run
		if err := scan.Skip(n - 1); err != nil {
			return list, newError(KindFileReadError, "list", a.path, err)
		}
	}
	return list, nil
}

// List writes a table of all files to w and returns the number of files.
//
//   ###  name                 size          date added
//   ---------------------------------------------------------------
//   1.	 hello.txt	  13			Mon Jan  2 15:04:05 2006
func (a *Archive) List(w io.Writer) (count int, err error) {
	defer func() {
		a.notify(Listed, "", err == nil)
	}()

	list, err := a.Entries()
	if err != nil {
		return 0, err
	}

	var sb strings.Builder
	sb.WriteString("###  name                 size          date added\n")
	sb.WriteString("---------------------------------------------------------------\n")
	for i, e := range list {
		sb.WriteString(fmt.Sprintf("%d.\t %s\t  %d\t\t\t%s\n", i+1, e.Name, e.StoredSize, e.Added.Format(time.ANSIC)))
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return 0, newError(KindFileWriteError, "list", "", err)
	}
	return len(list), nil
}

// DebugDump writes one line per physical block to w and returns the number of blocks.
// Runs are not interpreted.
func (a *Archive) DebugDump(w io.Writer) (count int, err error) {
	defer func() {
		a.notify(Dumped, "", err == nil)
	}()

	if a.fh == nil {
		return 0, newError(KindFileOpenError, "dump", a.path, nil)
	}

	var sb strings.Builder
	sb.WriteString("###  status            name\n")
	sb.WriteString("-----------------------------\n")

	scan := a.newScanner()
	c := new(chunk.Chunk)
	for {
		idx, err := scan.Next(c)
		if err == io.EOF {
			break // EXIT: end of archive
		}
		if err != nil {
			return 0, newError(KindFileReadError, "dump", a.path, err)
		}

		status, name := "empty", ""
		if c.Occupied {
			status, name = "used", c.Name()
		}
		if !c.Valid() {
			status += "!" // checksum mismatch
		}
		sb.WriteString(fmt.Sprintf("%d.   %s\t%s\n", idx+1, status, name))
		count++
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return 0, newError(KindFileWriteError, "dump", "", err)
	}
	return count, nil
}
