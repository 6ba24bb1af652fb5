package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"github.com/SchnorcherSepp/splitarc/arc"
	"github.com/SchnorcherSepp/splitarc/config"
	enc "github.com/SchnorcherSepp/splitarc/encoding"
	"github.com/SchnorcherSepp/splitarc/journal"
	"github.com/alecthomas/kong"
	"github.com/mackerelio/go-osstat/memory"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// version is set by `go build`
var version = "<version>"

// CLI commands (see https://github.com/alecthomas/kong)
var CLI struct {
	Debug     int    `short:"v" type:"counter" help:"Enable debug mode (-v for debug, -vv for trace)."`
	Config    string `short:"c" type:"path"    help:"Path to the YAML config file (optional)."`
	Transform string `short:"t"                help:"Transform for new files: none, deflate, zstd, lz4 (optional suffix '+aes'). Overrides the config file."`
	KeyFile   string `short:"k" type:"path"    help:"Path to the key file (required for '+aes'). Overrides the config file."`
	Journal   string `short:"j" type:"path"    help:"Path to the journal file. Overrides the config file."`

	Version struct {
	} `cmd help:"Show the program version."`

	Keygen struct {
		KeyFile string `arg type:"path"  help:"Path to the key file (must not exist)."`
	} `cmd help:"Creates a new key file (used for file encryption)."`

	Create struct {
		Archive string `arg type:"path"  help:"Path to the archive ('.arc' is added if missing)."`
	} `cmd help:"Create a new empty archive (an existing archive is truncated!)."`

	Add struct {
		Archive string   `arg type:"path"          help:"Path to the archive."`
		Files   []string `arg                      help:"Files to add (stored by file name)."`
	} `cmd help:"Add files to the archive."`

	Extract struct {
		Archive string `arg type:"path"           help:"Path to the archive."`
		Name    string `arg                       help:"Name of the file in the archive."`
		Dest    string `arg optional type:"path"  help:"Destination path (default: the name in the current folder)."`
	} `cmd help:"Extract a file from the archive."`

	Remove struct {
		Archive string   `arg type:"path"  help:"Path to the archive."`
		Names   []string `arg              help:"Names of the files in the archive."`
	} `cmd help:"Remove files from the archive (the space is reclaimed by 'compact')."`

	List struct {
		Archive string `arg type:"path"  help:"Path to the archive."`
	} `cmd help:"List all files in the archive."`

	Dump struct {
		Archive string `arg type:"path"  help:"Path to the archive."`
	} `cmd help:"Print the status of every block in the archive."`

	Compact struct {
		Archive string `arg type:"path"  help:"Path to the archive."`
	} `cmd help:"Rewrite the archive without removed files."`

	History struct {
	} `cmd help:"Print the journal."`
}

func main() {
	description := "The program stores files in a single archive file made of fixed-size blocks."
	ctx := kong.Parse(&CLI, kong.UsageOnError(), kong.Description(description))

	cfg := loadConfig()

	switch ctx.Selected().Name {

	case "version":
		fmt.Printf("%s %s\n", path.Base(os.Args[0]), version)
		fmt.Printf("%s %s/%s (%s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.Compiler)

	case "keygen":
		if err := enc.CreateKeyFile(CLI.Keygen.KeyFile); err != nil {
			log.Fatal(err)
		}

	case "create":
		a, err := arc.Create(CLI.Create.Archive)
		if err != nil {
			log.Fatal(err)
		}
		closeArchive(a)
		fmt.Printf("archive created: %s\n", a.Path())

	case "add":
		add(cfg, CLI.Add.Archive, CLI.Add.Files)

	case "extract":
		a, done := openArchive(cfg, CLI.Extract.Archive)
		defer done()
		dest := CLI.Extract.Dest
		if dest == "" {
			dest = filepath.Base(CLI.Extract.Name)
		}
		if err := a.Extract(CLI.Extract.Name, dest); err != nil {
			log.Fatal(err)
		}

	case "remove":
		a, done := openArchive(cfg, CLI.Remove.Archive)
		defer done()
		for _, name := range CLI.Remove.Names {
			if err := a.Remove(name); err != nil {
				log.Error(err) // SOFT FAIL
			}
		}

	case "list":
		list(cfg, CLI.List.Archive)

	case "dump":
		a, done := openArchive(cfg, CLI.Dump.Archive)
		defer done()
		n, err := a.DebugDump(os.Stdout)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("\n%d blocks\n", n)

	case "compact":
		a, done := openArchive(cfg, CLI.Compact.Archive)
		defer done()
		before, _ := a.Size()
		size, err := a.Compact()
		if err != nil {
			log.Fatal(err)
		}
		after, _ := a.Size()
		p := message.NewPrinter(language.German)
		_, _ = p.Printf("archive compacted: %d -> %d bytes (%d bytes of data)\n", before, after, size)

	case "history":
		history(cfg)

	default:
		panic(fmt.Sprintf("command not implemented: '%s'", ctx.Command()))
	}
}

//-##################################################################################################################-//

// loadConfig reads the config file and applies the global flags.
func loadConfig() *config.Config {
	cfg := config.Default()
	if CLI.Config != "" {
		var err error
		cfg, err = config.FromFile(CLI.Config)
		if err != nil {
			log.Fatal(err)
		}
	}

	// flags override the config
	if CLI.Transform != "" {
		cfg.Transform = CLI.Transform
	}
	if CLI.KeyFile != "" {
		cfg.KeyFile = CLI.KeyFile
	}
	if CLI.Journal != "" {
		cfg.Journal = CLI.Journal
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// log level
	switch {
	case CLI.Debug >= 2:
		log.SetLevel(log.TraceLevel)
	case CLI.Debug == 1:
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(cfg.Level())
	}
	return cfg
}

// archiveOptions builds the archive options from the config.
// Without a configured transform the archive keeps its default processor (deflate),
// so older deflate entries can still be extracted.
// The returned journal (nil if not configured) must be closed by the caller.
func archiveOptions(cfg *config.Config) ([]arc.Option, *journal.Journal, error) {
	p, err := cfg.Processor()
	if err != nil {
		return nil, nil, err
	}

	var opts []arc.Option
	if p != nil {
		opts = append(opts, arc.WithProcessor(p))
	}

	var j *journal.Journal
	if cfg.Journal != "" {
		j, err = journal.Open(cfg.Journal)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, arc.WithObserver(j))
	}
	return opts, j, nil
}

// openArchive opens an existing archive with the configured processor and journal.
// The returned function closes both.
func openArchive(cfg *config.Config, name string) (*arc.Archive, func()) {
	opts, j, err := archiveOptions(cfg)
	if err != nil {
		log.Fatal(err)
	}

	a, err := arc.Open(name, opts...)
	if err != nil {
		log.Fatal(err)
	}
	return a, func() {
		closeArchive(a)
		if j != nil {
			if err := j.Close(); err != nil {
				log.Error(err) // SOFT FAIL
			}
		}
	}
}

// closeArchive closes the archive. Errors are fatal.
func closeArchive(a *arc.Archive) {
	if err := a.Close(); err != nil {
		log.Fatal(err)
	}
}

func add(cfg *config.Config, archive string, files []string) {
	p, err := cfg.Processor()
	if err != nil {
		log.Fatal(err)
	}
	a, done := openArchive(cfg, archive)
	defer done()

	failed := 0
	for _, file := range files {
		if st, err := os.Stat(file); err == nil {
			checkFreeRam(int(st.Size() / (1024 * 1024)))
		}
		if err := a.Add(file, p); err != nil {
			log.Error(err) // SOFT FAIL
			failed++
			continue
		}
		fmt.Printf("added: %s\n", arc.EntryName(file))
	}
	if failed > 0 {
		log.Warnf("%d of %d files not added", failed, len(files))
	}
}

func list(cfg *config.Config, archive string) {
	a, done := openArchive(cfg, archive)
	defer done()

	n, err := a.List(os.Stdout)
	if err != nil {
		log.Fatal(err)
	}

	// summary
	entries, err := a.Entries()
	if err != nil {
		log.Fatal(err)
	}
	var size, stored int64
	for _, e := range entries {
		size += int64(e.Size)
		stored += int64(e.StoredSize)
	}
	p := message.NewPrinter(language.German)
	_, _ = p.Printf("\n%d files, %d bytes (%d bytes stored)\n", n, size, stored)
}

func history(cfg *config.Config) {
	if cfg.Journal == "" {
		log.Fatal("no journal configured (use --journal or the config file)")
	}
	records, err := journal.Read(cfg.Journal)
	if err != nil {
		log.Error(err) // SOFT FAIL: print the complete records
	}
	for _, r := range records {
		status := "ok"
		if !r.OK {
			status = "FAILED"
		}
		fmt.Printf("%s  %-9s  %-6s  %s\n", r.Time.Format(time.RFC3339), r.Action, status, r.Name)
	}
}

// checkFreeRam check and print the ram usage.
// A file is held in memory up to three times while it is added (content, transform output and blocks).
func checkFreeRam(fileSizeMB int) {
	// check free ram
	mem, err := memory.Get()
	if err == nil {
		// calc
		totalMB := int(mem.Total / (1024 * 1024))
		usedMB := int(mem.Used / (1024 * 1024))
		freeMB := int(mem.Free / (1024 * 1024))
		neededMB := fileSizeMB * 3

		// limits
		limit1 := int(float64(neededMB)*1.2 + 200)
		limit2 := neededMB*2 + 200

		if freeMB < limit1 {
			// too small
			log.Warnf("NOT ENOUGH FREE MEMORY!")
		} else if freeMB < limit2 {
			// warning
			log.Infof("Keep an eye on memory usage!")
		} else {
			// OK
			return // print nothing
		}

		// print ram stats
		p := message.NewPrinter(language.German)
		_, _ = p.Printf("+ memory total: %d MB\n", totalMB)
		_, _ = p.Printf("+ memory used: %d MB\n", usedMB)
		_, _ = p.Printf("+ memory free: %d MB\n", freeMB)
		_, _ = p.Printf("+ file size: %d MB\n", fileSizeMB)
		_, _ = p.Printf("+ free memory after add: %d MB\n", freeMB-neededMB)
	}
}
