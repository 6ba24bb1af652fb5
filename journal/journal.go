// Package journal records archive operations in an append-only file.
// The journal is an arc.Observer; every notification is written as one CBOR record.
package journal

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/SchnorcherSepp/splitarc/arc"
	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"
)

// packageName is used for debug and error messages
const packageName = "journal"

// Record is one archive operation.
type Record struct {
	Time   time.Time  `cbor:"1,keyasint"`
	Action arc.Action `cbor:"2,keyasint"`
	Name   string     `cbor:"3,keyasint,omitempty"`
	OK     bool       `cbor:"4,keyasint"`
}

// encMode keeps the time with nanoseconds (default: unix seconds).
var encMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

// Journal appends records to a file.
type Journal struct {
	mu  sync.Mutex
	fh  *os.File
	enc *cbor.Encoder
	now func() time.Time
}

// Open opens (or creates) a journal file for appending.
func Open(path string) (*Journal, error) {
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		log.Errorf("%s/Open: %v", packageName, err)
		return nil, err
	}
	return &Journal{
		fh:  fh,
		enc: encMode.NewEncoder(fh),
		now: time.Now,
	}, nil
}

// Notify writes a record. Write errors are logged and otherwise ignored.
func (j *Journal) Notify(action arc.Action, name string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.fh == nil {
		log.Warnf("%s/Notify: journal is closed: %s '%s'", packageName, action, name)
		return
	}
	rec := Record{Time: j.now(), Action: action, Name: name, OK: ok}
	if err := j.enc.Encode(rec); err != nil {
		log.Errorf("%s/Notify: %v", packageName, err)
	}
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.fh == nil {
		return nil // already closed
	}
	err := j.fh.Close()
	j.fh = nil
	return err
}

// Read returns all records of a journal file.
// If the last record is incomplete, the complete records are returned together with the error.
func Read(path string) ([]Record, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var list []Record
	dec := cbor.NewDecoder(fh)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return list, nil // EXIT: done
		}
		if err != nil {
			log.Warnf("%s/Read: record %d: %v", packageName, len(list)+1, err)
			return list, err
		}
		list = append(list, rec)
	}
}
