package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Acidni-LLC/copilot-chat-manager/internal/index"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/search"
	"github.com/Acidni-LLC/copilot-chat-manager/internal/transfer"
)

func handleScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	_ = fs.Parse(args)

	a := newApp(*root)
	defer a.close()

	a.engine.MarkDirty()
	a.engine.Scan(context.Background())
	printStats(a)
}

func handleList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	grouped := fs.Bool("group", false, "group sessions by workspace")
	limit := fs.Int("n", 0, "limit output (default: config max_recent)")
	query := fs.String("q", "", "fuzzy filter on workspace and first message")
	_ = fs.Parse(args)

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())

	max := *limit
	if max <= 0 {
		max = a.cfg.MaxRecent
	}

	if *grouped {
		for label, sessions := range a.engine.GroupByContainer() {
			fmt.Printf("%s (%d)\n", label, len(sessions))
			for _, s := range sessions {
				fmt.Printf("  %s  %s\n", s.ID, s.FirstMessage)
			}
		}
		return
	}

	sessions := a.engine.Recent(max)
	if *query != "" {
		sessions = search.FuzzyMatch(sessions, *query)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}

	fmt.Printf("%-*s %-*s %*s %-*s\n",
		tableColID, "ID", tableColWorkspace, "WORKSPACE",
		tableColMessages, "MSGS", tableColUpdated, "UPDATED")
	for _, s := range sessions {
		fmt.Printf("%-*s %-*s %*d %-*s\n",
			tableColID, truncCol(s.ID, tableColID),
			tableColWorkspace, truncCol(s.ContainerLabel, tableColWorkspace),
			tableColMessages, s.MessageCount,
			tableColUpdated, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func handleShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	full := fs.Bool("full", false, "load and print all messages")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: copilot-chat-manager show <id> [-full]")
		os.Exit(1)
	}
	id := fs.Arg(0)

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())

	s, ok := a.engine.Get(id)
	if !ok {
		fmt.Fprintf(os.Stderr, "Session not found: %s\n", id)
		os.Exit(1)
	}

	fmt.Printf("ID:        %s\n", s.ID)
	fmt.Printf("Workspace: %s\n", s.ContainerLabel)
	fmt.Printf("Created:   %s\n", s.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:   %s\n", s.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("Messages:  %d\n", s.MessageCount)
	fmt.Printf("Size:      %d bytes\n", s.FileSize)
	if len(s.Tags) > 0 {
		fmt.Printf("Tags:      %s\n", strings.Join(s.Tags, ", "))
	}
	fmt.Printf("First:     %s\n", s.FirstMessage)
	fmt.Printf("Last:      %s\n", s.LastMessage)

	if *full {
		msgs, err := a.engine.LoadMessages(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load messages: %v\n", err)
			os.Exit(1)
		}
		fmt.Println()
		for _, m := range msgs {
			fmt.Printf("--- %s ---\n%s\n\n", m.Role, m.Content)
		}
	}
}

func handleSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	mode := fs.String("mode", "any", "match mode: any, all, exact")
	_ = fs.Parse(args)

	terms := fs.Args()
	if len(terms) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: copilot-chat-manager search [-mode any|all|exact] <terms...>")
		os.Exit(1)
	}

	m := search.Mode(*mode)
	switch m {
	case search.ModeAny, search.ModeAll, search.ModeExact:
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode %q (any, all, exact)\n", *mode)
		os.Exit(1)
	}

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())

	results := search.DeepSearch(a.engine.Paths(), terms, m)
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}

	for _, r := range results {
		var parts []string
		for term, n := range r.TermCounts {
			parts = append(parts, fmt.Sprintf("%s:%d", term, n))
		}
		summary, _ := a.engine.Get(r.ID)
		label := ""
		if summary != nil {
			label = summary.ContainerLabel
		}
		fmt.Printf("%4d  %-*s %-*s %s\n",
			r.Total,
			tableColID, truncCol(r.ID, tableColID),
			tableColWorkspace, truncCol(label, tableColWorkspace),
			strings.Join(parts, " "))
	}
}

func handleTopics(args []string) {
	fs := flag.NewFlagSet("topics", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	limit := fs.Int("limit", 20, "number of topics to show")
	_ = fs.Parse(args)

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())

	var topics []search.TopicCount
	if fs.NArg() > 0 {
		id := fs.Arg(0)
		path, ok := a.engine.PathFor(id)
		if !ok {
			fmt.Fprintf(os.Stderr, "No backing file known for session: %s\n", id)
			os.Exit(1)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read session: %v\n", err)
			os.Exit(1)
		}
		topics = search.Topics(string(data), *limit)
	} else {
		topics = search.GlobalTopics(a.engine.Paths(), *limit)
	}

	if len(topics) == 0 {
		fmt.Println("No topics found.")
		return
	}
	for _, tc := range topics {
		fmt.Printf("%6d  %s\n", tc.Count, tc.Word)
	}
}

func handleExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	format := fs.String("format", "json", "export format: json, markdown, html, native")
	out := fs.String("o", "", "output file (required)")
	all := fs.Bool("all", false, "export every indexed session")
	_ = fs.Parse(args)

	if *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: copilot-chat-manager export -o <file> [-format json|markdown|html|native] <ids...>")
		os.Exit(1)
	}
	if fs.NArg() == 0 && !*all {
		fmt.Fprintln(os.Stderr, "Nothing to export: pass session ids or -all")
		os.Exit(1)
	}

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())

	var ids []string
	if *all {
		for _, s := range a.engine.Snapshot() {
			ids = append(ids, s.ID)
		}
	} else {
		ids = fs.Args()
	}

	if !confirmOverwrite(a, *out) {
		fmt.Println("Aborted.")
		return
	}

	f := transfer.Format(*format)
	if f == transfer.FormatNative {
		if len(ids) != 1 {
			fmt.Fprintln(os.Stderr, "Native export copies exactly one session's backing file")
			os.Exit(1)
		}
		path, ok := a.engine.PathFor(ids[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "No backing file known for session: %s\n", ids[0])
			os.Exit(1)
		}
		if err := transfer.ExportNativeCopy(path, *out); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported 1 session to %s\n", *out)
		return
	}

	var summaries []*index.SessionSummary
	for _, id := range ids {
		if _, err := a.engine.LoadMessages(id); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", id, err)
		}
		if s, ok := a.engine.Get(id); ok {
			summaries = append(summaries, s)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: session not found: %s\n", id)
		}
	}
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to export")
		os.Exit(1)
	}

	data, err := transfer.Export(summaries, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if err := transfer.WriteFile(*out, data); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported %d session(s) to %s\n", len(summaries), *out)
}

func handleImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: copilot-chat-manager import <file>")
		os.Exit(1)
	}

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())

	res, err := transfer.Import(fs.Arg(0), a.engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Imported: %d, skipped (duplicates): %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	if len(res.Errors) > 0 && res.Imported == 0 {
		os.Exit(1)
	}
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	_ = fs.Parse(args)

	a := newApp(*root)
	defer a.close()

	a.engine.Scan(context.Background())
	printStats(a)
}

func handleWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	root := fs.String("root", "", "override storage root")
	_ = fs.Parse(args)

	a := newApp(*root)
	defer a.close()

	if !a.cfg.Watch {
		fmt.Fprintln(os.Stderr, "Watching is disabled (set watch = true in config.toml)")
		os.Exit(1)
	}

	a.engine.Scan(context.Background())
	printStats(a)

	rescan := make(chan struct{}, 1)
	w, err := index.NewWatcher(a.engine.Root(), func() {
		a.engine.MarkDirty()
		select {
		case rescan <- struct{}{}:
		default:
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Watcher unavailable: %v\n", err)
		os.Exit(1)
	}
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Watcher failed to start: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", a.engine.Root())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			return
		case <-rescan:
			a.engine.Scan(context.Background())
			st := a.engine.Stats()
			fmt.Printf("%s  rescanned: %d sessions (%d cached)\n",
				time.Now().Format("15:04:05"), st.SessionsFound, st.CacheHits)
		}
	}
}

func printStats(a *app) {
	st := a.engine.Stats()
	fmt.Printf("Root:               %s\n", a.engine.Root())
	fmt.Printf("Containers visited: %d\n", st.ContainersVisited)
	fmt.Printf("Sessions found:     %d\n", st.SessionsFound)
	fmt.Printf("Served from cache:  %d\n", st.CacheHits)
	fmt.Printf("Parse errors:       %d\n", st.ParseErrors)
	fmt.Printf("Skipped (too big):  %d\n", st.SkippedLarge)
	if last := a.engine.LastScan(); !last.IsZero() {
		fmt.Printf("Last scan:          %s\n", last.Format(time.RFC3339))
	}
}

// confirmOverwrite asks before clobbering an existing file when the config
// says so. Without a terminal the answer defaults to no rather than
// silently overwriting.
func confirmOverwrite(a *app, path string) bool {
	if !a.cfg.ConfirmDestructive {
		return true
	}
	if _, err := os.Stat(path); err != nil {
		return true // nothing to clobber
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Refusing to overwrite %s without a terminal (set confirm_destructive = false to override)\n", path)
		return false
	}

	fmt.Printf("%s exists. Overwrite? [y/N]: ", path)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func truncCol(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
