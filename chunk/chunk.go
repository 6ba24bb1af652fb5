package chunk

import (
	"fmt"
)

// Chunk is one block of the archive file: Header followed by the payload buffer.
// Blocks are written back-to-back without padding, file header or trailer.
type Chunk struct {
	Header
	Payload [PayloadSize]byte
}

// Encode returns the BlockSize bytes of the block.
func (c *Chunk) Encode() []byte {
	buf := make([]byte, BlockSize)
	c.EncodeTo(buf)
	copy(buf[HeaderSize:], c.Payload[:])
	return buf
}

// Decode reads a block from buf (at least BlockSize bytes).
func (c *Chunk) Decode(buf []byte) error {
	if len(buf) < BlockSize {
		return fmt.Errorf("%s/Decode: block data too short: need %d, got %d", packageName, BlockSize, len(buf))
	}
	if err := c.DecodeFrom(buf); err != nil {
		return err
	}
	copy(c.Payload[:], buf[HeaderSize:BlockSize])
	return nil
}
