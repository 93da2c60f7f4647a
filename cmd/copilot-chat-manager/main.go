package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/cachedb"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/config"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/logging"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/platform"
)

const Version = "0.3.1"

var cliLog = logging.ForComponent(logging.CompCLI)

// Table column widths for list command output
const (
	tableColID        = 38
	tableColWorkspace = 24
	tableColMessages  = 8
	tableColUpdated   = 16
)

func main() {
	// On panic, preserve the recent log tail for postmortem before dying.
	defer func() {
		if r := recover(); r != nil {
			dump := filepath.Join(config.AppDir(), "crash.log")
			_ = logging.DumpRingBuffer(dump)
			fmt.Fprintf(os.Stderr, "panic: %v\nrecent logs dumped to %s\n", r, dump)
			os.Exit(2)
		}
	}()

	args := os.Args[1:]

	if len(args) == 0 {
		printHelp()
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("copilot-chat-manager v%s\n", Version)
		return
	case "help", "--help", "-h":
		printHelp()
		return
	case "scan":
		handleScan(args[1:])
	case "list", "ls":
		handleList(args[1:])
	case "show":
		handleShow(args[1:])
	case "search":
		handleSearch(args[1:])
	case "topics":
		handleTopics(args[1:])
	case "export":
		handleExport(args[1:])
	case "import":
		handleImport(args[1:])
	case "stats":
		handleStats(args[1:])
	case "watch":
		handleWatch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

// app wires the shared components a subcommand needs: config, the cache
// database and the index engine, initialized from the persisted cache.
type app struct {
	cfg    *config.Config
	db     *cachedb.CacheDB
	engine *index.Engine
}

// EnvStorageRoot overrides the storage root; it beats the config value but
// loses to an explicit -root flag.
const EnvStorageRoot = "COPILOT_CHAT_DIR"

// newApp loads config, initializes logging, opens the cache database and
// restores the index. Root precedence: -root flag, then COPILOT_CHAT_DIR,
// then the config value, then platform detection. The cache database being
// unavailable degrades to an in-memory index instead of failing.
func newApp(rootOverride string) *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config error, using defaults: %v\n", err)
	}

	logDir := cfg.Logs.Dir
	if logDir == "" {
		logDir = filepath.Join(config.AppDir(), "logs")
	}
	logging.Init(logging.Config{
		LogDir:     logDir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
	})

	override := rootOverride
	if override == "" {
		override = os.Getenv(EnvStorageRoot)
	}
	if override == "" {
		override = cfg.StorageRoot
	}
	root := index.ResolveRoot(override, platform.Detect())

	var store index.Store
	db, err := cachedb.Open(filepath.Join(config.AppDir(), cachedb.DefaultFileName))
	if err != nil {
		cliLog.Warn("cachedb_unavailable", slog.String("error", err.Error()))
		db = nil
	} else if err := db.Migrate(); err != nil {
		cliLog.Warn("cachedb_migrate_failed", slog.String("error", err.Error()))
		db.Close()
		db = nil
	}
	if db != nil {
		store = db
	}

	engine := index.NewEngine(root, store)
	engine.Init()

	return &app{cfg: cfg, db: db, engine: engine}
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	logging.Shutdown()
}

func printHelp() {
	fmt.Printf(`copilot-chat-manager v%s - index and search Copilot chat sessions

Usage:
  copilot-chat-manager <command> [flags]

Commands:
  scan                Scan the storage root and refresh the index
  list                List indexed sessions (most recent first)
  show <id>           Show one session, optionally with full messages
  search <terms...>   Deep full-text search across session files
  topics [<id>]       Extract ranked topics from one session or all
  export <ids...>     Export sessions to json, markdown, html or native
  import <file>       Import sessions from an exported or native file
  stats               Show statistics for the last scan
  watch               Keep scanning as session files change on disk
  version             Print version
  help                Show this help

Common flags (per command, see <command> -h):
  -root <path>        Override the storage root for this invocation

Config: ~/%s/%s
`, Version, config.AppDirName, config.ConfigFileName)
}
