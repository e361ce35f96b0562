package config

import (
	"flag"
	"fmt"
	"io"

	"dupsweep/internal/domain"
)

// ParseFlags applies command-line flags over base. Flags not given keep base's value.
func ParseFlags(base Config, args []string, output io.Writer) (Config, Invocation, error) {
	flags := flag.NewFlagSet("dupsweep", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: dupsweep [flags] PATH...\n\nFind files with identical content and optionally move or delete the copies.\n\nFlags:\n")
		flags.PrintDefaults()
	}

	minSize := flags.String("min-size", base.MinSize, "Smallest file size to consider, e.g. 512, 4k, 1M")
	maxSize := flags.String("max-size", base.MaxSize, "Largest file size to consider (empty for no limit)")
	workers := flags.Int("workers", base.Workers, "Worker pool size (0 uses the number of CPUs)")
	chunkSize := flags.Int("chunk-size", base.ChunkSize, "Read size in bytes while hashing")
	timeout := flags.Duration("timeout", base.FileTimeout, "Per-file I/O timeout (0 disables)")
	recursive := flags.Bool("recursive", base.Recursive, "Descend into subdirectories")
	showHidden := flags.Bool("show-hidden", base.ShowHidden, "Include hidden files and directories")
	safeMode := flags.Bool("safe-mode", base.SafeMode, "Never delete a duplicate whose original is gone")
	sortMode := flags.String("sort", string(base.SortMode), "Listing order: size, path or original")
	logLevel := flags.String("log-level", base.LogLevel, "Log level: debug, info, warn, error")
	logFile := flags.String("log-file", base.LogFile, "Write logs to this file")

	var invocation Invocation
	flags.BoolVar(&invocation.JSON, "json", false, "Print the report as JSON")
	flags.StringVar(&invocation.MoveTo, "move-to", "", "Move every duplicate into this directory")
	flags.BoolVar(&invocation.Delete, "delete", false, "Delete every duplicate (requires -yes)")
	flags.BoolVar(&invocation.Yes, "yes", false, "Confirm a destructive action")
	flags.BoolVar(&invocation.TUI, "tui", false, "Review duplicates in the terminal UI")

	if err := flags.Parse(args); err != nil {
		return base, Invocation{}, err
	}
	invocation.Paths = flags.Args()

	if invocation.MoveTo != "" && invocation.Delete {
		return base, Invocation{}, fmt.Errorf("-move-to and -delete are mutually exclusive")
	}
	if *workers < 0 {
		return base, Invocation{}, fmt.Errorf("-workers must not be negative")
	}
	if *chunkSize <= 0 {
		return base, Invocation{}, fmt.Errorf("-chunk-size must be positive")
	}
	if *timeout < 0 {
		return base, Invocation{}, fmt.Errorf("-timeout must not be negative")
	}

	base.MinSize = *minSize
	base.MaxSize = *maxSize
	base.Workers = *workers
	base.ChunkSize = *chunkSize
	base.FileTimeout = *timeout
	base.Recursive = *recursive
	base.ShowHidden = *showHidden
	base.SafeMode = *safeMode
	base.SortMode = domainSortMode(*sortMode, base.SortMode)
	base.LogLevel = *logLevel
	base.LogFile = *logFile
	if invocation.MoveTo != "" {
		base.LastDestination = invocation.MoveTo
	}
	return base, invocation, nil
}

// SortModes lists the accepted -sort values in cycling order.
func SortModes() []domain.SortMode {
	return []domain.SortMode{domain.SortBySize, domain.SortByPath, domain.SortByOriginal}
}
