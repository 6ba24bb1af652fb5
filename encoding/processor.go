package enc

import (
	"errors"
	"fmt"
	"strings"
)

// packageName is used for debug and error messages
const packageName = "enc"

// Processor is a reversible byte transform applied to the whole content of a file
// before it is split into blocks (e.g. compression or encryption).
//
// An error OR an empty result of Process means the transform failed.
// ReverseProcess must restore the exact input of Process.
type Processor interface {
	Process(in []byte) ([]byte, error)
	ReverseProcess(in []byte) ([]byte, error)
}

// ErrEmptyResult is returned if a transform produced no data.
var ErrEmptyResult = errors.New("transform returned no data")

// ------------------------------------------------------------------------------------------------------------------ //

// Pipeline chains processors.
// Process runs them in order and ReverseProcess runs them backwards.
type Pipeline []Processor

func (p Pipeline) Process(in []byte) ([]byte, error) {
	out := in
	for i, proc := range p {
		var err error
		out, err = proc.Process(out)
		if err != nil {
			return []byte{}, fmt.Errorf("pipeline step %d: %w", i, err)
		}
		if len(out) == 0 {
			return []byte{}, fmt.Errorf("pipeline step %d: %w", i, ErrEmptyResult)
		}
	}
	return out, nil
}

func (p Pipeline) ReverseProcess(in []byte) ([]byte, error) {
	out := in
	for i := len(p) - 1; i >= 0; i-- {
		var err error
		out, err = p[i].ReverseProcess(out)
		if err != nil {
			return []byte{}, fmt.Errorf("pipeline step %d: %w", i, err)
		}
	}
	return out, nil
}

// ------------------------------------------------------------------------------------------------------------------ //

// ByName returns a processor for a transform name.
//
//   none | deflate | zstd | lz4
//
// Each name (also 'none') can be suffixed with '+aes' to add encryption
// after the compression. The key is required for '+aes' only (@see KeyFile.ArchiveKey).
// 'none' without encryption returns nil (no transform).
func ByName(name string, key []byte) (Processor, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	useCrypt := strings.HasSuffix(name, "+aes")
	name = strings.TrimSuffix(name, "+aes")

	var pipe Pipeline
	switch name {
	case "", "none":
		// no compression
	case "deflate", "zlib":
		pipe = append(pipe, Deflate{})
	case "zstd":
		pipe = append(pipe, Zstd{})
	case "lz4":
		pipe = append(pipe, LZ4{})
	default:
		return nil, fmt.Errorf("unknown transform: %q", name)
	}

	if useCrypt {
		c, err := NewCrypt(key)
		if err != nil {
			return nil, err
		}
		pipe = append(pipe, c)
	}

	// return the simplest form
	switch len(pipe) {
	case 0:
		return nil, nil // no transform
	case 1:
		return pipe[0], nil
	default:
		return pipe, nil
	}
}
