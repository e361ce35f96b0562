package config

import (
	"time"

	"dupsweep/internal/domain"
)

// Config holds everything that can come from the config file or the command line.
// Sizes stay as entered ("10M") and are parsed into bounds when a scan is built.
type Config struct {
	MinSize         string
	MaxSize         string
	Workers         int
	ChunkSize       int
	FileTimeout     time.Duration
	Recursive       bool
	ShowHidden      bool
	SafeMode        bool
	SortMode        domain.SortMode
	Theme           string
	LastDestination string
	LogLevel        string
	LogFile         string
}

// Invocation is the per-run part of the command line that is never persisted.
type Invocation struct {
	Paths  []string
	JSON   bool
	MoveTo string
	Delete bool
	Yes    bool
	TUI    bool
}
