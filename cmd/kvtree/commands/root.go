package commands

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/andreyvit/kvtree"
	"github.com/andreyvit/kvtree/journal"
)

var (
	// Global flags
	dbPath      string
	backendName string
	encoding    string
	journalDir  string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "kvtree",
	Short: "Read and write nested values in a flat key-value database",
	Long: `kvtree - hierarchical storage over Bolt or Badger.

Values are addressed by dotted paths ("a.b.0"). Objects and arrays are stored
as descriptors plus one record per child, so any subtree can be read or
replaced without touching the rest of the database.

The database file defaults to $KVTREE_DB, or ./kvtree.db if unset. With
--journal, every backend write is also appended to a change journal that
"kvtree replay" can apply to an empty database.

Examples:
  kvtree set config '{server: {port: 8080}, tags: [a, b]}'
  kvtree get config.server.port
  kvtree export config --json
  kvtree delete config.tags.0
  kvtree check`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultDB := os.Getenv("KVTREE_DB")
	if defaultDB == "" {
		defaultDB = "kvtree.db"
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "database file (bolt) or directory (badger)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "bolt", "storage backend: bolt or badger")
	rootCmd.PersistentFlags().StringVar(&encoding, "encoding", "msgpack", "record encoding: msgpack or json")
	rootCmd.PersistentFlags().StringVar(&journalDir, "journal", "", "append every change to a journal in this directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every backend operation")
}

type closer interface {
	Close() error
}

type backendCloser interface {
	kvtree.Backend
	closer
}

// env is an open store together with the backend and journal it owns.
type env struct {
	store   *kvtree.Store
	backend closer
	journal *journal.Journal
}

func (e *env) close() {
	if e.journal != nil {
		if err := e.journal.FinishWriting(); err != nil {
			log.Printf("kvtree: journal %s: %v", journalDir, err)
		}
	}
	if err := e.backend.Close(); err != nil {
		log.Printf("kvtree: closing %s: %v", dbPath, err)
	}
}

func newJournal(dir string) *journal.Journal {
	return journal.New(dir, journal.Options{
		FileName:  "kvtree-*.wal",
		DebugName: "kvtree-journal",
		Sync:      true,
		Logger:    slog.Default(),
		Verbose:   verbose,
	})
}

func openBackend() (backendCloser, error) {
	var backend backendCloser
	var err error
	switch backendName {
	case "bolt":
		backend, err = kvtree.OpenBolt(dbPath, kvtree.BoltOptions{})
	case "badger":
		bopt := kvtree.BadgerOptions{Dir: dbPath}
		if verbose {
			bopt.Logf = log.Printf
		}
		backend, err = kvtree.OpenBadger(bopt)
	default:
		return nil, fmt.Errorf("unknown backend %q (want bolt or badger)", backendName)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func openStore() (*env, error) {
	enc, err := kvtree.ParseEncoding(encoding)
	if err != nil {
		return nil, err
	}
	backend, err := openBackend()
	if err != nil {
		return nil, err
	}
	e := &env{backend: backend}

	opt := kvtree.Options{
		Logf:     log.Printf,
		Verbose:  verbose,
		Encoding: enc,
	}
	if journalDir != "" {
		e.journal = newJournal(journalDir)
		if err := e.journal.StartWriting(); err != nil {
			backend.Close()
			return nil, fmt.Errorf("journal %s: %w", journalDir, err)
		}
		opt.OnChange = kvtree.JournalChanges(e.journal)
	}

	e.store, err = kvtree.Open(backend, opt)
	if err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}
