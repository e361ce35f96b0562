package services

import (
	"context"
	"io"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

type ScanProgress struct {
	Scanned    int
	Total      int
	Duplicates int
	Completed  bool
	ErrMessage string
	Current    string
}

type ActionPreview struct {
	Type        ActionType
	Destination string
	TotalFiles  int
	TotalBytes  int64
	Samples     []string
	Warnings    []string
}

type ActionProgress struct {
	Type       ActionType
	Current    string
	Processed  int
	Total      int
	Completed  bool
	ErrMessage string
}

type ProgressProvider interface {
	Progress() <-chan ScanProgress
}

type ActionPreviewer interface {
	Preview(ctx context.Context, req ActionRequest) (ActionPreview, error)
}

type ActionProgressProvider interface {
	ActionProgress() <-chan ActionProgress
}

func progressNonBlocking(ch chan<- ScanProgress, msg ScanProgress) {
	select {
	case ch <- msg:
	default:
	}
}

func actionProgressNonBlocking(ch chan<- ActionProgress, msg ActionProgress) {
	select {
	case ch <- msg:
	default:
	}
}

// workerCount bounds a pool to the requested size, or to the available parallelism.
func workerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return maxInt(2, runtime.NumCPU())
}

// normalizePaths makes paths absolute and clean and drops repeats, keeping first-seen order.
func normalizePaths(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		clean := filepath.Clean(abs)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		result = append(result, clean)
	}
	return result, nil
}

func componentLogger(log *logrus.Entry, component string) *logrus.Entry {
	if log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = logrus.NewEntry(silent)
	}
	return log.WithField("component", component)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
