package chunk

// packageName is used for debug and error messages
const packageName = "chunk"

// BlockSize is the fixed size of one block (header + payload) in the archive file.
const BlockSize = 1024

// HeaderSize is the packed size of the block header (@see Header).
const HeaderSize = 65

// PayloadSize is the number of content bytes a single block can carry.
const PayloadSize = BlockSize - HeaderSize // 959 Byte

// NameSize is the size of the name field including the terminating NUL.
const NameSize = 30

// MaxNameLen is the longest name that is stored unchanged.
// Longer names are truncated (@see TruncateName).
const MaxNameLen = NameSize - 1

// MaxChunkCount is the longest run of blocks a single file can use.
// The limit comes from the 16 bit part number in the header.
const MaxChunkCount = 1<<16 - 1

// MaxFileSize specifies the maximum number of bytes that can be stored for one file.
// This is also the upper bound for the output of a reverse transform.
const MaxFileSize = MaxChunkCount * PayloadSize // 62.845.065 Byte

// HashLimit is the number of name bytes that influence the name hash.
const HashLimit = 100
