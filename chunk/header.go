package chunk

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf8"
)

// header field offsets (packed, little endian)
const (
	offOccupied        = 0
	offHashNum         = 1
	offName            = 3
	offDateAdded       = offName + NameSize // 33
	offPartNum         = 41
	offFileSize        = 43
	offCompSize        = 47
	offNextBlock       = 51
	offLogicalSize     = 53
	offLogicalCompSize = 57
	offCheckSum        = 61
)

// Header is the metadata at the beginning of every block.
// There is no directory in the archive file; a file is described only by the headers of its blocks.
//
//   OCCUPIED|HASH|NAME|DATE|PART|FILESIZE|COMPSIZE|NEXT|LOGICALSIZE|LOGICALCOMPSIZE|CHECKSUM
type Header struct {

	// Occupied marks a block that belongs to a live file.
	// Removed files keep their blocks until the archive is compacted.
	Occupied bool

	// HashNum is the name hash (@see Hash). It is a pre-filter only and NOT unique.
	HashNum uint16

	// name is the NUL padded file name (@see SetName).
	name [NameSize]byte

	// DateAdded is the time of creation (unix time; seconds).
	DateAdded int64

	// PartNum is the 1-based position of the block within its run.
	PartNum uint16

	// FileSize is the original file size rounded up to a multiple of PayloadSize.
	FileSize uint32

	// CompSize is the transformed size rounded up to a multiple of PayloadSize.
	// It is 0 if the content was stored without transform.
	CompSize uint32

	// NextBlock is the index of the following block in the archive (position hint only).
	NextBlock uint16

	// LogicalSize is the exact original file size in bytes.
	LogicalSize uint32

	// LogicalCompSize is the exact transformed size in bytes (0 without transform).
	LogicalCompSize uint32

	// CheckSum is the byte sum of all other header fields (@see Seal).
	CheckSum uint32
}

// Name returns the stored file name.
func (h *Header) Name() string {
	n := 0
	for n < MaxNameLen && h.name[n] != 0 {
		n++
	}
	return string(h.name[:n])
}

// SetName stores the name truncated to MaxNameLen bytes (@see TruncateName).
func (h *Header) SetName(name string) {
	h.name = [NameSize]byte{}
	copy(h.name[:MaxNameLen], TruncateName(name))
}

// Transformed reports whether the run was stored with a transform (e.g. compression).
func (h *Header) Transformed() bool {
	return h.CompSize != 0
}

// RunLength returns the number of blocks of the run this block belongs to.
// The transformed size is used if there is one.
func (h *Header) RunLength() int {
	if h.Transformed() {
		return int(h.CompSize / PayloadSize)
	}
	return int(h.FileSize / PayloadSize)
}

// StoredSize returns the exact number of payload bytes used by the run.
func (h *Header) StoredSize() int {
	if h.Transformed() {
		return int(h.LogicalCompSize)
	}
	return int(h.LogicalSize)
}

// Added returns DateAdded as time.
func (h *Header) Added() time.Time {
	return time.Unix(h.DateAdded, 0)
}

// ------------------------------------------------------------------------------------------------------------------ //

// Checksum calculates the unsigned byte sum of the encoded header without the checksum field.
func (h *Header) Checksum() uint32 {
	buf := make([]byte, HeaderSize)
	h.EncodeTo(buf)

	sum := uint32(0)
	for _, b := range buf[:offCheckSum] {
		sum += uint32(b)
	}
	return sum
}

// Seal recomputes the checksum. It must be called after every change of a header field.
func (h *Header) Seal() {
	h.CheckSum = h.Checksum()
}

// Valid checks the stored checksum.
func (h *Header) Valid() bool {
	return h.CheckSum == h.Checksum()
}

// EncodeTo writes the header to the given buffer.
// The buffer must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	if h.Occupied {
		buf[offOccupied] = 1
	} else {
		buf[offOccupied] = 0
	}
	binary.LittleEndian.PutUint16(buf[offHashNum:], h.HashNum)
	copy(buf[offName:offName+NameSize], h.name[:])
	binary.LittleEndian.PutUint64(buf[offDateAdded:], uint64(h.DateAdded))
	binary.LittleEndian.PutUint16(buf[offPartNum:], h.PartNum)
	binary.LittleEndian.PutUint32(buf[offFileSize:], h.FileSize)
	binary.LittleEndian.PutUint32(buf[offCompSize:], h.CompSize)
	binary.LittleEndian.PutUint16(buf[offNextBlock:], h.NextBlock)
	binary.LittleEndian.PutUint32(buf[offLogicalSize:], h.LogicalSize)
	binary.LittleEndian.PutUint32(buf[offLogicalCompSize:], h.LogicalCompSize)
	binary.LittleEndian.PutUint32(buf[offCheckSum:], h.CheckSum)
}

// DecodeFrom reads the header from the given buffer.
// Does not validate the checksum - use Valid for that.
func (h *Header) DecodeFrom(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("header data too short: need %d, got %d", HeaderSize, len(buf))
	}
	h.Occupied = buf[offOccupied] != 0
	h.HashNum = binary.LittleEndian.Uint16(buf[offHashNum:])
	copy(h.name[:], buf[offName:offName+NameSize])
	h.name[MaxNameLen] = 0 // always terminated
	h.DateAdded = int64(binary.LittleEndian.Uint64(buf[offDateAdded:]))
	h.PartNum = binary.LittleEndian.Uint16(buf[offPartNum:])
	h.FileSize = binary.LittleEndian.Uint32(buf[offFileSize:])
	h.CompSize = binary.LittleEndian.Uint32(buf[offCompSize:])
	h.NextBlock = binary.LittleEndian.Uint16(buf[offNextBlock:])
	h.LogicalSize = binary.LittleEndian.Uint32(buf[offLogicalSize:])
	h.LogicalCompSize = binary.LittleEndian.Uint32(buf[offLogicalCompSize:])
	h.CheckSum = binary.LittleEndian.Uint32(buf[offCheckSum:])
	return nil
}

// ----------  HELPER  -----------------------------------------------------------------------------------------------//

// Hash is a polynomial name hash (h = h*31 + byte).
// Only the first HashLimit bytes of the name are used.
func Hash(name string) uint16 {
	h := uint16(0)
	for i := 0; i < len(name) && i < HashLimit; i++ {
		h = h*31 + uint16(name[i])
	}
	return h
}

// TruncateName returns the name as it is stored in a header.
// Names longer than MaxNameLen bytes are cut at a rune boundary.
// A NUL byte ends the name.
func TruncateName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			name = name[:i]
			break
		}
	}
	if len(name) <= MaxNameLen {
		return name
	}
	cut := MaxNameLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// RoundUp rounds n up to a multiple of PayloadSize.
// Zero is rounded up to one payload (every file uses at least one block).
func RoundUp(n int) int {
	return BlockCount(n) * PayloadSize
}

// BlockCount returns the number of blocks required for n bytes (minimum 1).
func BlockCount(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PayloadSize - 1) / PayloadSize
}
