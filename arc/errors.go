package arc

import (
	"errors"
	"fmt"
)

// Kind classifies archive errors.
type Kind int

const (
	KindNoError Kind = iota
	KindFileNotFound
	KindFileExists
	KindFileOpenError
	KindFileReadError
	KindFileWriteError
	KindFileCloseError
	KindFileSeekError
	KindFileTellError
	KindFileError
	KindBadFilename
	KindBadPath
	KindBadData
	KindBadBlock
	KindBadArchive
	KindBadAction
	KindBadMode
	KindBadProcessor
	KindBadBlockType
	KindBadBlockCount
	KindBadBlockIndex
	KindBadBlockData
	KindBadBlockHash
	KindBadBlockNumber
	KindBadBlockLength
	KindBadBlockDataLength
	KindBadBlockTypeLength
)

var kindNames = [...]string{
	"noError",
	"fileNotFound", "fileExists", "fileOpenError", "fileReadError", "fileWriteError", "fileCloseError",
	"fileSeekError", "fileTellError", "fileError", "badFilename", "badPath", "badData", "badBlock", "badArchive",
	"badAction", "badMode", "badProcessor", "badBlockType", "badBlockCount", "badBlockIndex", "badBlockData",
	"badBlockHash", "badBlockNumber", "badBlockLength", "badBlockDataLength", "badBlockTypeLength",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("unknown(%d)", int(k))
	}
	return kindNames[k]
}

// sentinel errors for errors.Is
var (
	ErrFileNotFound   = &Error{Kind: KindFileNotFound}
	ErrFileOpen       = &Error{Kind: KindFileOpenError}
	ErrFileRead       = &Error{Kind: KindFileReadError}
	ErrFileWrite      = &Error{Kind: KindFileWriteError}
	ErrBadArchive     = &Error{Kind: KindBadArchive}
	ErrBadProcessor   = &Error{Kind: KindBadProcessor}
	ErrBadBlockCount  = &Error{Kind: KindBadBlockCount}
	ErrBadBlockData   = &Error{Kind: KindBadBlockData}
	ErrBadBlockNumber = &Error{Kind: KindBadBlockNumber}
)

// Error is returned by all archive operations.
type Error struct {
	Kind Kind   // error class
	Op   string // operation, e.g. "extract"
	Name string // file name (optional)
	Err  error  // cause (optional)
}

// newError builds an operation error.
// An error without error kind is a programming error and panics.
func newError(kind Kind, op, name string, err error) *Error {
	if kind == KindNoError {
		panic("arc: error with kind noError")
	}
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" '%s'", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind (@see ErrFileNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of an archive error.
// nil is KindNoError and foreign errors are KindFileError.
func KindOf(err error) Kind {
	if err == nil {
		return KindNoError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFileError
}
