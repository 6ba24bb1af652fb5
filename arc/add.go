package arc

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/SchnorcherSepp/splitarc/chunk"
	enc "github.com/SchnorcherSepp/splitarc/encoding"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// EntryName returns the name under which a source file is stored:
// the base name of the path in Unicode NFC form.
//
// see https://github.com/golang/go/issues/48159 (macOS stores names in NFD)
func EntryName(path string) string {
	return normName(filepath.Base(path))
}

// normName returns the Unicode NFC form of an entry name.
// Names are stored and looked up in this form.
func normName(name string) string {
	return norm.NFC.String(name)
}

// Add stores the file at path in the archive (@see AddData).
// The entry name is the base name of the path (@see EntryName).
func (a *Archive) Add(path string, p enc.Processor) (err error) {
	name := EntryName(path)
	defer func() {
		a.notify(Added, name, err == nil)
	}()

	if a.fh == nil {
		return newError(KindFileOpenError, "add", a.path, nil)
	}

	// read the entire source file
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("%s/Add: %v", packageName, err)
		return newError(KindFileOpenError, "add", path, err)
	}

	return a.add(name, data, p)
}

// AddData stores data under the given name.
// The content is transformed with p (nil: no transform), split into blocks
// and appended as one run at the end of the archive.
// Existing entries with the same name are NOT replaced; Extract returns the first one.
func (a *Archive) AddData(name string, data []byte, p enc.Processor) (err error) {
	name = normName(name)
	defer func() {
		a.notify(Added, name, err == nil)
	}()

	if a.fh == nil {
		return newError(KindFileOpenError, "add", a.path, nil)
	}
	return a.add(name, data, p)
}

// add transforms data and appends the run.
func (a *Archive) add(name string, data []byte, p enc.Processor) error {
	if chunk.TruncateName(name) == "" {
		return newError(KindBadFilename, "add", name, nil)
	}

	// optional transform
	stored := data
	if p != nil {
		out, err := p.Process(data)
		if err == nil && len(out) == 0 {
			err = enc.ErrEmptyResult
		}
		if err != nil {
			log.Errorf("%s/add: transform '%s': %v", packageName, name, err)
			return newError(KindBadProcessor, "add", name, err)
		}
		stored = out
	}

	// block accounting
	if len(data) > chunk.MaxFileSize || len(stored) > chunk.MaxFileSize {
		return newError(KindBadBlockCount, "add", name, nil)
	}
	ctx := newAddContext(name, a.now().Unix(), len(data), len(stored), p != nil)

	return a.appendRun(ctx, stored)
}

// appendRun writes all blocks of a run at the end of the archive.
// If a write fails, the archive is truncated to its previous length.
func (a *Archive) appendRun(ctx *addContext, stored []byte) error {
	size, err := a.Size()
	if err != nil {
		return err
	}
	if size%chunk.BlockSize != 0 {
		log.Errorf("%s/appendRun: archive size %d is not a multiple of %d: '%s'", packageName, size, chunk.BlockSize, a.path)
		return newError(KindBadArchive, "add", a.path, nil)
	}
	ctx.first = size / chunk.BlockSize

	c := new(chunk.Chunk)
	chunker := chunk.NewChunker(bytes.NewReader(stored))
	err = chunker.Each(func(part int, fragment []byte) error {
		ctx.stamp(c, part, fragment)
		_, err := a.fh.WriteAt(c.Encode(), size+int64(part-1)*chunk.BlockSize)
		return err
	})
	if err != nil {
		log.Errorf("%s/appendRun: '%s': %v", packageName, ctx.name, err)
		if tErr := a.fh.Truncate(size); tErr != nil {
			log.Errorf("%s/appendRun: truncate: %v", packageName, tErr)
		}
		return newError(KindFileWriteError, "add", ctx.name, err)
	}

	log.Debugf("%s/appendRun: '%s': %d blocks at %d (%d -> %d bytes)", packageName, ctx.name, ctx.blocks, ctx.first, ctx.logicalSize, len(stored))
	return nil
}

// ----------  ADD CONTEXT  ------------------------------------------------------------------------------------------//

// addContext carries the metadata of one add operation to every block of the run.
type addContext struct {
	name      string
	hash      uint16
	dateAdded int64
	first     int64 // block index of part 1
	blocks    int

	fileSize        uint32
	compSize        uint32
	logicalSize     uint32
	logicalCompSize uint32
}

// newAddContext calculates the block accounting of a run.
// The hash covers the full name; the header stores the truncated one.
func newAddContext(name string, dateAdded int64, logicalSize, storedSize int, transformed bool) *addContext {
	ctx := &addContext{
		name:        name,
		hash:        chunk.Hash(name),
		dateAdded:   dateAdded,
		fileSize:    uint32(chunk.RoundUp(logicalSize)),
		logicalSize: uint32(logicalSize),
		blocks:      chunk.BlockCount(logicalSize),
	}
	if transformed {
		ctx.compSize = uint32(chunk.RoundUp(storedSize))
		ctx.logicalCompSize = uint32(storedSize)
		ctx.blocks = chunk.BlockCount(storedSize)
	}
	return ctx
}

// stamp fills the block for the given part number and seals the header.
func (ctx *addContext) stamp(c *chunk.Chunk, part int, fragment []byte) {
	c.Header = chunk.Header{
		Occupied:        true,
		HashNum:         ctx.hash,
		DateAdded:       ctx.dateAdded,
		PartNum:         uint16(part),
		FileSize:        ctx.fileSize,
		CompSize:        ctx.compSize,
		NextBlock:       uint16(ctx.first + int64(part)), // truncated
		LogicalSize:     ctx.logicalSize,
		LogicalCompSize: ctx.logicalCompSize,
	}
	c.SetName(ctx.name)
	c.Seal()
	copy(c.Payload[:], fragment)
}
