package enc

import (
	"bytes"
	"errors"
	"io"

	"github.com/SchnorcherSepp/splitarc/chunk"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	log "github.com/sirupsen/logrus"
)

// ErrTooLarge is returned if decompressed data exceeds chunk.MaxFileSize.
var ErrTooLarge = errors.New("decompressed data exceeds the maximum file size")

// Deflate is the zlib (deflate) compression with the best compression level.
// https://github.com/klauspost/compress/tree/master/zlib
type Deflate struct{}

func (Deflate) Process(in []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(in)/2+64))

	w, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return []byte{}, err
	}
	if _, err := w.Write(in); err != nil {
		_ = w.Close()
		return []byte{}, err
	}
	if err := w.Close(); err != nil {
		return []byte{}, err
	}
	return buf.Bytes(), nil
}

func (Deflate) ReverseProcess(in []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		log.Debugf("%s/Deflate: %v", packageName, err)
		return []byte{}, err // corrupt header
	}
	defer r.Close()
	return readLimited(r)
}

// ------------------------------------------------------------------------------------------------------------------ //

// Zstd use Zstandard compression algorithm.
// zstd.SpeedBestCompression is used:
// https://github.com/klauspost/compress/tree/master/zstd
//
// Empty input is written as a zero frame, so the output is never empty.
type Zstd struct{}

func (Zstd) Process(in []byte) ([]byte, error) {
	// init encoder
	optBest := zstd.WithEncoderLevel(zstd.SpeedBestCompression)
	encoder, err := zstd.NewWriter(nil, optBest, zstd.WithZeroFrames(true))
	if err != nil {
		return []byte{}, err
	}
	defer encoder.Close()

	// compression
	buf := make([]byte, 0, len(in))
	return encoder.EncodeAll(in, buf), nil
}

func (Zstd) ReverseProcess(in []byte) ([]byte, error) {
	// min size for magic number = 4 bytes
	if len(in) < 4 {
		return []byte{}, errors.New("magic number invalid")
	}

	// init decoder
	decoder, err := zstd.NewReader(bytes.NewReader(in))
	if err != nil {
		return []byte{}, err
	}
	defer decoder.Close()

	return readLimited(decoder)
}

// ------------------------------------------------------------------------------------------------------------------ //

// LZ4 uses the LZ4 frame format with compression level 9.
// https://github.com/pierrec/lz4
type LZ4 struct{}

func (LZ4) Process(in []byte) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(in)/2+64))

	w := lz4.NewWriter(buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
		return []byte{}, err
	}
	if _, err := w.Write(in); err != nil {
		_ = w.Close()
		return []byte{}, err
	}
	if err := w.Close(); err != nil {
		return []byte{}, err
	}
	return buf.Bytes(), nil
}

func (LZ4) ReverseProcess(in []byte) ([]byte, error) {
	return readLimited(lz4.NewReader(bytes.NewReader(in)))
}

// ----------  HELPER  -----------------------------------------------------------------------------------------------//

// readLimited reads all data from a decompression reader.
// More than chunk.MaxFileSize bytes are an error (the archive can't hold such a file).
func readLimited(r io.Reader) ([]byte, error) {
	buf := new(bytes.Buffer)
	n, err := io.Copy(buf, io.LimitReader(r, chunk.MaxFileSize+1))
	if err != nil {
		return []byte{}, err
	}
	if n > chunk.MaxFileSize {
		log.Errorf("%s/readLimited: %v", packageName, ErrTooLarge)
		return []byte{}, ErrTooLarge
	}
	return buf.Bytes(), nil
}
