package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dupsweep/internal/domain"
)

type FSScanner struct {
	mu       sync.RWMutex
	fs       billy.Filesystem
	log      *logrus.Entry
	progress chan ScanProgress
}

// fileOutcome is what one worker learned about one path.
type fileOutcome struct {
	record  *domain.DuplicateRecord
	failure *FileFailure
	skipped bool
	hashed  bool
}

func NewFSScanner(fsys billy.Filesystem, log *logrus.Entry) *FSScanner {
	return &FSScanner{
		fs:  fsys,
		log: componentLogger(log, "scanner"),
	}
}

func (scanner *FSScanner) Progress() <-chan ScanProgress {
	scanner.mu.RLock()
	defer scanner.mu.RUnlock()
	return scanner.progress
}

// Scan hashes every qualifying path on a bounded pool and returns one DuplicateRecord per
// file whose digest was already claimed by another path. Records are in completion order.
//
// Only invalid bounds fail the batch up front. Per-file problems end up in
// ScanResult.Failures. Cancelling ctx stops new files from being started; files already
// being hashed run to completion (or to their FileTimeout), and the partial result is
// returned together with ctx.Err().
func (scanner *FSScanner) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	start := time.Now()
	if err := req.Bounds.Validate(); err != nil {
		return ScanResult{}, err
	}
	paths, err := normalizePaths(req.Paths)
	if err != nil {
		return ScanResult{}, newError(CodeInvalidRequest, "", err)
	}

	progress := make(chan ScanProgress, 64)
	scanner.setProgress(progress)
	defer close(progress)

	workers := workerCount(req.Workers)
	scanner.log.WithFields(logrus.Fields{
		"files":   len(paths),
		"workers": workers,
		"bounds":  req.Bounds.String(),
	}).Info("scan started")

	index := newDigestIndex()
	result := ScanResult{
		Duplicates: []domain.DuplicateRecord{},
		Failures:   []FileFailure{},
	}
	var resultMu sync.Mutex

	group := new(errgroup.Group)
	group.SetLimit(workers)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		path := path
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcome := scanner.scanFile(ctx, req, index, path)

			resultMu.Lock()
			result.Scanned++
			switch {
			case outcome.failure != nil:
				result.Failures = append(result.Failures, *outcome.failure)
			case outcome.skipped:
				result.Skipped++
			default:
				result.Hashed++
				if outcome.record != nil {
					result.Duplicates = append(result.Duplicates, *outcome.record)
				}
			}
			snapshot := ScanProgress{
				Scanned:    result.Scanned,
				Total:      len(paths),
				Duplicates: len(result.Duplicates),
				Current:    path,
			}
			resultMu.Unlock()

			progressNonBlocking(progress, snapshot)
			return nil
		})
	}
	_ = group.Wait()
	result.Duration = time.Since(start)

	fields := logrus.Fields{
		"scanned":    result.Scanned,
		"hashed":     result.Hashed,
		"skipped":    result.Skipped,
		"failed":     len(result.Failures),
		"duplicates": len(result.Duplicates),
		"originals":  index.len(),
		"duration":   result.Duration,
	}
	if err := ctx.Err(); err != nil {
		scanner.log.WithFields(fields).WithError(err).Warn("scan cancelled")
		progressNonBlocking(progress, ScanProgress{Scanned: result.Scanned, Total: len(paths), ErrMessage: err.Error()})
		return result, err
	}
	if len(result.Duplicates) == 0 {
		scanner.log.WithFields(fields).Info("no duplicates found")
	} else {
		scanner.log.WithFields(fields).Info("scan complete")
	}
	progressNonBlocking(progress, ScanProgress{
		Scanned:    result.Scanned,
		Total:      len(paths),
		Duplicates: len(result.Duplicates),
		Completed:  true,
	})
	return result, nil
}

func (scanner *FSScanner) scanFile(ctx context.Context, req ScanRequest, index *digestIndex, path string) fileOutcome {
	log := scanner.log.WithField("path", path)

	info, err := scanner.fs.Stat(path)
	if err != nil {
		log.WithError(err).Warn("skipping file: stat failed")
		return failed(path, CodeUnreadableFile, err)
	}
	if info.IsDir() {
		err := fmt.Errorf("is a directory")
		log.WithError(err).Warn("skipping path")
		return failed(path, CodeUnreadableFile, err)
	}
	file := domain.FileRecord{Path: path, SizeBytes: info.Size()}
	if !req.Bounds.Allows(file.SizeBytes) {
		log.WithFields(logrus.Fields{"size": file.SizeBytes, "code": CodeSizeOutOfRange}).Debug("size out of range")
		return fileOutcome{skipped: true}
	}

	fileCtx, cancel := fileContext(ctx, req.FileTimeout)
	defer cancel()
	digest, err := HashFile(fileCtx, scanner.fs, file.Path, req.ChunkSize)
	if err != nil {
		log.WithError(err).Warn("skipping file: hash failed")
		return failed(path, CodeUnreadableFile, err)
	}

	original, duplicate := index.claim(digest, file.Path)
	if !duplicate {
		log.WithField("digest", digest).Debug("original")
		return fileOutcome{hashed: true}
	}
	log.WithField("original", original).Debug("duplicate")
	return fileOutcome{
		hashed: true,
		record: &domain.DuplicateRecord{
			DuplicatePath: file.Path,
			OriginalPath:  original,
			SizeBytes:     file.SizeBytes,
			Digest:        digest,
		},
	}
}

func (scanner *FSScanner) setProgress(progress chan ScanProgress) {
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	scanner.progress = progress
}

// fileContext detaches per-file work from the batch's cancellation, so a dispatched file
// is never cut short by a cancel, and applies the per-file timeout if one is set.
func fileContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if timeout > 0 {
		return context.WithTimeout(detached, timeout)
	}
	return detached, func() {}
}

func failed(path string, code ErrorCode, err error) fileOutcome {
	return fileOutcome{failure: &FileFailure{Path: path, Code: code, Detail: err.Error()}}
}
