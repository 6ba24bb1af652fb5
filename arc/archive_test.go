package arc_test

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SchnorcherSepp/splitarc/arc"
	"github.com/SchnorcherSepp/splitarc/chunk"
	enc "github.com/SchnorcherSepp/splitarc/encoding"
)

// newArchive creates an empty archive in a temp folder.
func newArchive(t *testing.T, opts ...arc.Option) (*arc.Archive, string) {
	t.Helper()
	dir := t.TempDir()
	a, err := arc.Create(filepath.Join(dir, "demo"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, dir
}

// writeFile creates a source file.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func randomData(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

func TestCreate_extension(t *testing.T) {
	a, dir := newArchive(t)

	want := filepath.Join(dir, "demo.arc")
	if a.Path() != want {
		t.Fatalf("fail: %s != %s", a.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("fail: %v", err)
	}

	// extension is not doubled
	b, err := arc.Create(want)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.Path() != want {
		t.Fatalf("fail: %s", b.Path())
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	// missing archive
	_, err := arc.Open(filepath.Join(dir, "missing"))
	if arc.KindOf(err) != arc.KindFileOpenError || !errors.Is(err, arc.ErrFileOpen) {
		t.Fatalf("fail: %v", err)
	}

	// empty name
	if _, err := arc.Open(" "); arc.KindOf(err) != arc.KindBadFilename {
		t.Fatalf("fail: %v", err)
	}

	// open keeps the content
	a, err := arc.Create(filepath.Join(dir, "keep"))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AddData("x.txt", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("fail: second close: %v", err)
	}

	b, err := arc.Open(filepath.Join(dir, "keep.arc"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	data, err := b.ReadData("x.txt")
	if err != nil || string(data) != "x" {
		t.Fatalf("fail: %q, %v", data, err)
	}
}

func TestClosed(t *testing.T) {
	a, dir := newArchive(t)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	if err := a.AddData("a", []byte("a"), nil); arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: add: %v", err)
	}
	if err := a.Extract("a", filepath.Join(dir, "out")); arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: extract: %v", err)
	}
	if err := a.Remove("a"); arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: remove: %v", err)
	}
	if _, err := a.List(new(bytes.Buffer)); arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: list: %v", err)
	}
	if _, err := a.DebugDump(new(bytes.Buffer)); arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: dump: %v", err)
	}
	if _, err := a.Compact(); arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: compact: %v", err)
	}
}

// Scenario: add a small file without transform and extract it.
func TestHelloWorld(t *testing.T) {
	a, dir := newArchive(t)
	src := writeFile(t, dir, "hello.txt", []byte("Hello, World!"))

	if err := a.Add(src, nil); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.txt")
	if err := a.Extract("hello.txt", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 13 || string(data) != "Hello, World!" {
		t.Fatalf("fail: %q", data)
	}

	// one block
	if size, _ := a.Size(); size != chunk.BlockSize {
		t.Fatalf("fail: archive size %d", size)
	}
}

// Scenario: a file spanning multiple blocks.
func TestMultiBlock(t *testing.T) {
	a, dir := newArchive(t)
	content := randomData(2500)
	src := writeFile(t, dir, "big.bin", content)

	if err := a.Add(src, nil); err != nil {
		t.Fatal(err)
	}
	if size, _ := a.Size(); size != 3*chunk.BlockSize {
		t.Fatalf("fail: archive size %d", size)
	}

	out := filepath.Join(dir, "big.out")
	if err := a.Extract("big.bin", out); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if !bytes.Equal(data, content) {
		t.Fatalf("fail: %d != %d bytes", len(data), len(content))
	}
}

// Scenario: a missing file is not extracted.
func TestExtract_notFound(t *testing.T) {
	a, dir := newArchive(t)
	if err := a.AddData("a.txt", []byte("a"), nil); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.txt")
	err := a.Extract("missing.txt", out)
	if arc.KindOf(err) != arc.KindFileNotFound || !errors.Is(err, arc.ErrFileNotFound) {
		t.Fatalf("fail: %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("fail: output created: %v", err)
	}
}

func TestExtract_badDestination(t *testing.T) {
	a, dir := newArchive(t)
	if err := a.AddData("a.txt", []byte("a"), nil); err != nil {
		t.Fatal(err)
	}
	err := a.Extract("a.txt", filepath.Join(dir, "missing-dir", "out.txt"))
	if arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: %v", err)
	}
}

func TestAdd_sourceMissing(t *testing.T) {
	a, dir := newArchive(t)
	err := a.Add(filepath.Join(dir, "missing.txt"), nil)
	if arc.KindOf(err) != arc.KindFileOpenError {
		t.Fatalf("fail: %v", err)
	}
	if size, _ := a.Size(); size != 0 {
		t.Fatalf("fail: archive size %d", size)
	}
}

func TestAdd_badName(t *testing.T) {
	a, _ := newArchive(t)
	for _, name := range []string{"", "\x00name"} {
		if err := a.AddData(name, []byte("a"), nil); arc.KindOf(err) != arc.KindBadFilename {
			t.Fatalf("fail: %q: %v", name, err)
		}
	}
}

func TestAdd_badArchive(t *testing.T) {
	a, _ := newArchive(t)

	// append garbage: archive length is no multiple of the block size
	fh, err := os.OpenFile(a.Path(), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fh.Write([]byte("garbage"))
	_ = fh.Close()

	if err := a.AddData("a", []byte("a"), nil); arc.KindOf(err) != arc.KindBadArchive {
		t.Fatalf("fail: %v", err)
	}
}

func TestAdd_tooLarge(t *testing.T) {
	a, _ := newArchive(t)
	err := a.AddData("huge", make([]byte, chunk.MaxFileSize+1), nil)
	if arc.KindOf(err) != arc.KindBadBlockCount {
		t.Fatalf("fail: %v", err)
	}
}

// failProcessor fails in both directions.
type failProcessor struct{ empty bool }

func (f failProcessor) Process(in []byte) ([]byte, error) {
	if f.empty {
		return []byte{}, nil
	}
	return nil, errors.New("process failed")
}

func (f failProcessor) ReverseProcess(in []byte) ([]byte, error) {
	if f.empty {
		return []byte{}, nil
	}
	return nil, errors.New("reverse failed")
}

func TestAdd_badProcessor(t *testing.T) {
	a, _ := newArchive(t)
	for _, p := range []enc.Processor{failProcessor{}, failProcessor{empty: true}} {
		err := a.AddData("a", []byte("content"), p)
		if arc.KindOf(err) != arc.KindBadProcessor || !errors.Is(err, arc.ErrBadProcessor) {
			t.Fatalf("fail: %v", err)
		}
	}
	if size, _ := a.Size(); size != 0 {
		t.Fatalf("fail: archive size %d", size)
	}
}

func TestExtract_badProcessor(t *testing.T) {
	a, _ := newArchive(t, arc.WithProcessor(failProcessor{empty: true}))
	if err := a.AddData("a", []byte("content"), enc.Deflate{}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ReadData("a"); arc.KindOf(err) != arc.KindBadProcessor {
		t.Fatalf("fail: %v", err)
	}

	// no processor
	b, _ := newArchive(t, arc.WithProcessor(nil))
	if err := b.AddData("a", []byte("content"), enc.Deflate{}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ReadData("a"); arc.KindOf(err) != arc.KindBadProcessor {
		t.Fatalf("fail: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	sizes := []int{0, 1, 13, chunk.PayloadSize - 1, chunk.PayloadSize, chunk.PayloadSize + 1, 2500, 10 * chunk.PayloadSize, 100000}

	for _, transform := range []string{"none", "deflate", "zstd", "lz4", "none+aes", "deflate+aes", "zstd+aes"} {
		p, err := enc.ByName(transform, key)
		if err != nil {
			t.Fatal(err)
		}
		a, _ := newArchive(t, arc.WithProcessor(p))

		for _, size := range sizes {
			content := randomData(size)
			if size == 100000 {
				content = []byte(strings.Repeat("compressible ", size/13))
			}
			name := fmt.Sprintf("%s-%d", transform, size)

			if err := a.AddData(name, content, p); err != nil {
				t.Fatalf("fail: %s: %v", name, err)
			}
			data, err := a.ReadData(name)
			if err != nil {
				t.Fatalf("fail: %s: %v", name, err)
			}
			if !bytes.Equal(data, content) {
				t.Fatalf("fail: %s: %d != %d bytes", name, len(data), len(content))
			}
		}

		if n, err := a.List(new(bytes.Buffer)); err != nil || n != len(sizes) {
			t.Fatalf("fail: %s: list %d, %v", transform, n, err)
		}
	}
}

func TestChecksum(t *testing.T) {
	a, _ := newArchive(t)
	if err := a.AddData("a.bin", randomData(5000), nil); err != nil {
		t.Fatal(err)
	}
	if err := a.AddData("b.bin", randomData(3000), enc.Deflate{}); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove("a.bin"); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(a.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(raw)%chunk.BlockSize != 0 || len(raw) == 0 {
		t.Fatalf("fail: archive size %d", len(raw))
	}
	for off := 0; off < len(raw); off += chunk.BlockSize {
		sum := uint32(0)
		for _, b := range raw[off : off+chunk.HeaderSize-4] {
			sum += uint32(b)
		}
		var c chunk.Chunk
		if err := c.Decode(raw[off:]); err != nil {
			t.Fatal(err)
		}
		if c.CheckSum != sum || !c.Valid() {
			t.Fatalf("fail: block %d: %d != %d", off/chunk.BlockSize, c.CheckSum, sum)
		}
	}
}

func TestHeaderFields(t *testing.T) {
	date := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	a, _ := newArchive(t, arc.WithClock(func() time.Time { return date }))

	if err := a.AddData("first", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	if err := a.AddData("second", randomData(2*chunk.PayloadSize+1), nil); err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(a.Path())
	for i, want := range []struct {
		name string
		part uint16
		next uint16
	}{
		{"first", 1, 1},
		{"second", 1, 2},
		{"second", 2, 3},
		{"second", 3, 4},
	} {
		var c chunk.Chunk
		if err := c.Decode(raw[i*chunk.BlockSize:]); err != nil {
			t.Fatal(err)
		}
		if !c.Occupied || c.Name() != want.name || c.PartNum != want.part || c.NextBlock != want.next {
			t.Fatalf("fail: block %d: %v %s %d %d", i, c.Occupied, c.Name(), c.PartNum, c.NextBlock)
		}
		if c.HashNum != chunk.Hash(want.name) || !c.Added().Equal(date) {
			t.Fatalf("fail: block %d: hash %d, date %v", i, c.HashNum, c.Added())
		}
	}

	entries, err := a.Entries()
	if err != nil || len(entries) != 2 {
		t.Fatalf("fail: %v, %v", entries, err)
	}
	e := entries[1]
	if e.Index != 1 || e.Blocks != 3 || e.Size != 2*chunk.PayloadSize+1 || e.StoredSize != e.Size || e.Transformed {
		t.Fatalf("fail: %+v", e)
	}
}

func TestLongNames(t *testing.T) {
	a, _ := newArchive(t)

	long1 := strings.Repeat("n", 120) + "-1"
	long2 := strings.Repeat("n", 120) + "-2"
	if chunk.Hash(long1) != chunk.Hash(long2) {
		t.Fatalf("fail: hash cap")
	}

	if err := a.AddData(long1, []byte("one"), nil); err != nil {
		t.Fatal(err)
	}

	// stored truncated
	entries, _ := a.Entries()
	if len(entries) != 1 || entries[0].Name != strings.Repeat("n", chunk.MaxNameLen) {
		t.Fatalf("fail: %+v", entries)
	}

	// every long name with the same stored form matches
	for _, name := range []string{long1, long2} {
		data, err := a.ReadData(name)
		if err != nil || string(data) != "one" {
			t.Fatalf("fail: %q: %q, %v", name, data, err)
		}
	}

	// a short name is compared with the hash of the full name
	for _, name := range []string{strings.Repeat("n", chunk.MaxNameLen), strings.Repeat("n", chunk.MaxNameLen-1)} {
		if _, err := a.ReadData(name); arc.KindOf(err) != arc.KindFileNotFound {
			t.Fatalf("fail: %q: %v", name, err)
		}
	}
}

func TestUnicodeName(t *testing.T) {
	a, dir := newArchive(t)

	// NFD (macOS) is stored as NFC
	nfd := "Gru\u0308n.txt"
	src := writeFile(t, dir, nfd, []byte("green"))
	if err := a.Add(src, nil); err != nil {
		t.Fatal(err)
	}
	data, err := a.ReadData("Gr\u00fcn.txt")
	if err != nil || string(data) != "green" {
		t.Fatalf("fail: %q, %v", data, err)
	}
}

func TestUnicodeName_sameForm(t *testing.T) {
	a, dir := newArchive(t)
	nfd := "Gru\u0308n"
	nfc := "Gr\u00fcn"

	if err := a.AddData(nfd, []byte("green"), nil); err != nil {
		t.Fatal(err)
	}

	// both forms find the entry
	for _, name := range []string{nfd, nfc} {
		data, err := a.ReadData(name)
		if err != nil || string(data) != "green" {
			t.Fatalf("fail: %q: %q, %v", name, data, err)
		}
	}
	out := filepath.Join(dir, "out")
	if err := a.Extract(nfd, out); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != "green" {
		t.Fatalf("fail: %q", data)
	}

	// remove with the same name
	if err := a.Remove(nfd); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ReadData(nfc); arc.KindOf(err) != arc.KindFileNotFound {
		t.Fatalf("fail: %v", err)
	}
}

func TestDuplicateNames(t *testing.T) {
	a, _ := newArchive(t)
	_ = a.AddData("dup", []byte("first"), nil)
	_ = a.AddData("other", []byte("other"), nil)
	_ = a.AddData("dup", []byte("second"), nil)

	// first run wins
	data, err := a.ReadData("dup")
	if err != nil || string(data) != "first" {
		t.Fatalf("fail: %q, %v", data, err)
	}

	// remove frees all runs
	if err := a.Remove("dup"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ReadData("dup"); arc.KindOf(err) != arc.KindFileNotFound {
		t.Fatalf("fail: %v", err)
	}
	if err := a.Remove("dup"); arc.KindOf(err) != arc.KindFileNotFound {
		t.Fatalf("fail: second remove: %v", err)
	}
	if data, _ := a.ReadData("other"); string(data) != "other" {
		t.Fatalf("fail: %q", data)
	}
}

func TestExtract_corrupt(t *testing.T) {
	content := randomData(3 * chunk.PayloadSize)

	for _, tc := range []struct {
		name   string
		modify func(raw []byte) []byte
		want   arc.Kind
	}{
		{"payload", func(raw []byte) []byte {
			raw[chunk.BlockSize+chunk.HeaderSize+5] ^= 0xFF // not covered by the checksum
			return raw
		}, arc.KindNoError},
		{"checksum", func(raw []byte) []byte {
			raw[chunk.BlockSize+45] ^= 0xFF // filesize of part 2
			return raw
		}, arc.KindBadBlockData},
		{"order", func(raw []byte) []byte {
			b1 := append([]byte{}, raw[chunk.BlockSize:2*chunk.BlockSize]...)
			copy(raw[chunk.BlockSize:], raw[2*chunk.BlockSize:3*chunk.BlockSize])
			copy(raw[2*chunk.BlockSize:], b1)
			return raw
		}, arc.KindBadBlockNumber},
		{"truncated", func(raw []byte) []byte {
			return raw[:2*chunk.BlockSize]
		}, arc.KindBadBlockCount},
	} {
		a, _ := newArchive(t)
		if err := a.AddData("file", content, nil); err != nil {
			t.Fatal(err)
		}
		raw, _ := os.ReadFile(a.Path())
		if err := os.WriteFile(a.Path(), tc.modify(raw), 0644); err != nil {
			t.Fatal(err)
		}

		data, err := a.ReadData("file")
		if arc.KindOf(err) != tc.want {
			t.Fatalf("fail: %s: %v", tc.name, err)
		}
		if err == nil && (len(data) != len(content) || bytes.Equal(data, content)) {
			t.Fatalf("fail: %s: payload change not visible", tc.name)
		}
	}
}

// Scenario: remove, list and compact.
func TestRemoveCompact(t *testing.T) {
	a, dir := newArchive(t)
	_ = writeFile(t, dir, "a.txt", randomData(3000))
	bContent := randomData(1500)
	_ = writeFile(t, dir, "b.txt", bContent)

	if err := a.Add(filepath.Join(dir, "a.txt"), nil); err != nil {
		t.Fatal(err)
	}
	if err := a.Add(filepath.Join(dir, "b.txt"), nil); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove("a.txt"); err != nil {
		t.Fatal(err)
	}

	// soft delete
	if _, err := a.ReadData("a.txt"); arc.KindOf(err) != arc.KindFileNotFound {
		t.Fatalf("fail: %v", err)
	}
	buf := new(bytes.Buffer)
	n, err := a.List(buf)
	if err != nil || n != 1 || !strings.Contains(buf.String(), "b.txt") || strings.Contains(buf.String(), "a.txt") {
		t.Fatalf("fail: %d, %v\n%s", n, err, buf.String())
	}
	before, _ := a.Size()
	if blocks, _ := a.DebugDump(new(bytes.Buffer)); blocks != 6 {
		t.Fatalf("fail: dump %d", blocks)
	}

	// compact
	size, err := a.Compact()
	if err != nil || size != int64(len(bContent)) {
		t.Fatalf("fail: %d, %v", size, err)
	}
	after, _ := a.Size()
	if after >= before || after != 2*chunk.BlockSize {
		t.Fatalf("fail: %d -> %d", before, after)
	}
	if n, err := a.List(new(bytes.Buffer)); err != nil || n != 1 {
		t.Fatalf("fail: %d, %v", n, err)
	}

	// content survives and the archive is still writable
	data, err := a.ReadData("b.txt")
	if err != nil || !bytes.Equal(data, bContent) {
		t.Fatalf("fail: %v", err)
	}
	if _, err := a.ReadData("a.txt"); arc.KindOf(err) != arc.KindFileNotFound {
		t.Fatalf("fail: %v", err)
	}
	if err := a.AddData("c.txt", []byte("c"), nil); err != nil {
		t.Fatal(err)
	}
	if data, _ := a.ReadData("c.txt"); string(data) != "c" {
		t.Fatalf("fail: %q", data)
	}

	// no scratch file left
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.Contains(f.Name(), ".compact-") {
			t.Fatalf("fail: scratch file %s", f.Name())
		}
	}
}

func TestCompact_empty(t *testing.T) {
	a, _ := newArchive(t)
	if size, err := a.Compact(); err != nil || size != 0 {
		t.Fatalf("fail: %d, %v", size, err)
	}
	_ = a.AddData("a", []byte("a"), nil)
	_ = a.Remove("a")
	if size, err := a.Compact(); err != nil || size != 0 {
		t.Fatalf("fail: %d, %v", size, err)
	}
	if size, _ := a.Size(); size != 0 {
		t.Fatalf("fail: %d", size)
	}
}

func TestListFormat(t *testing.T) {
	date := time.Date(2024, 5, 17, 12, 0, 0, 0, time.Local)
	a, _ := newArchive(t, arc.WithClock(func() time.Time { return date }))
	_ = a.AddData("hello.txt", []byte("Hello, World!"), nil)

	buf := new(bytes.Buffer)
	if _, err := a.List(buf); err != nil {
		t.Fatal(err)
	}
	want := "###  name                 size          date added\n" +
		"---------------------------------------------------------------\n" +
		"1.\t hello.txt\t  13\t\t\t" + date.Format(time.ANSIC) + "\n"
	if buf.String() != want {
		t.Fatalf("fail:\n%q\n%q", buf.String(), want)
	}

	buf.Reset()
	_ = a.Remove("hello.txt")
	if n, err := a.DebugDump(buf); err != nil || n != 1 {
		t.Fatalf("fail: %d, %v", n, err)
	}
	want = "###  status            name\n" +
		"-----------------------------\n" +
		"1.   empty\t\n"
	if buf.String() != want {
		t.Fatalf("fail:\n%q\n%q", buf.String(), want)
	}
}
