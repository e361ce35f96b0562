package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dupsweep/internal/domain"
)

const previewSamples = 5

var errBatchCancelled = errors.New("batch cancelled before this file was started")

type FSActions struct {
	mu       sync.RWMutex
	fs       billy.Filesystem
	log      *logrus.Entry
	progress chan ActionProgress
}

func NewFSActions(fsys billy.Filesystem, log *logrus.Entry) *FSActions {
	return &FSActions{
		fs:  fsys,
		log: componentLogger(log, "actions"),
	}
}

func (actions *FSActions) ActionProgress() <-chan ActionProgress {
	actions.mu.RLock()
	defer actions.mu.RUnlock()
	return actions.progress
}

// Preview summarizes what Execute would touch without changing anything.
func (actions *FSActions) Preview(ctx context.Context, req ActionRequest) (ActionPreview, error) {
	if err := validateRequest(req); err != nil {
		return ActionPreview{}, err
	}
	preview := ActionPreview{
		Type:        req.Type,
		Destination: req.Destination,
		Samples:     []string{},
	}
	for _, record := range req.Duplicates {
		if err := ctx.Err(); err != nil {
			return ActionPreview{}, err
		}
		preview.TotalFiles++
		preview.TotalBytes += record.SizeBytes
		if len(preview.Samples) < previewSamples {
			preview.Samples = append(preview.Samples, record.DuplicatePath)
		}
		switch req.Type {
		case ActionDelete:
			if req.SafeMode && !actions.exists(record.OriginalPath) {
				preview.Warnings = append(preview.Warnings, fmt.Sprintf("original missing, will keep: %s", record.DuplicatePath))
			}
		case ActionMove:
			target := moveTarget(req.Destination, record.DuplicatePath)
			if actions.exists(target) {
				preview.Warnings = append(preview.Warnings, fmt.Sprintf("target exists: %s", target))
			}
		}
	}
	return preview, nil
}

// Execute runs a move or delete batch over the duplicate paths on a bounded pool and
// returns one outcome per record, in the order of req.Duplicates.
//
// Only batch preconditions return an error: a malformed request, a delete without the
// confirmation token, or a move destination that cannot be created. Everything that goes
// wrong for a single file is reported in its outcome. When ctx is cancelled, files not yet
// started are reported as failed and ctx.Err() is returned alongside the result.
func (actions *FSActions) Execute(ctx context.Context, req ActionRequest) (ActionResult, error) {
	start := time.Now()
	if err := validateRequest(req); err != nil {
		return ActionResult{Type: req.Type}, err
	}
	if err := requireConfirmation(req); err != nil {
		return ActionResult{Type: req.Type}, err
	}
	if req.Type == ActionMove {
		if err := actions.prepareDestination(req.Destination); err != nil {
			return ActionResult{Type: req.Type}, err
		}
	}

	progress := make(chan ActionProgress, 64)
	actions.setProgress(progress)
	defer close(progress)

	workers := workerCount(req.Workers)
	actions.log.WithFields(logrus.Fields{
		"action":  req.Type,
		"files":   len(req.Duplicates),
		"workers": workers,
	}).Info("batch started")

	outcomes := actions.runBatch(ctx, req, workers, progress)
	result := ActionResult{
		Type:     req.Type,
		Outcomes: outcomes,
		Duration: time.Since(start),
	}
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	fields := logrus.Fields{
		"action":    req.Type,
		"succeeded": result.SuccessCount,
		"failed":    result.FailureCount,
		"duration":  result.Duration,
	}
	if err := ctx.Err(); err != nil {
		result.Message = fmt.Sprintf("%s cancelled", req.Type)
		actions.log.WithFields(fields).WithError(err).Warn("batch cancelled")
		actionProgressNonBlocking(progress, ActionProgress{Type: req.Type, Total: len(outcomes), ErrMessage: err.Error()})
		return result, err
	}
	result.Message = fmt.Sprintf("%s complete: %d succeeded, %d failed", req.Type, result.SuccessCount, result.FailureCount)
	actions.log.WithFields(fields).Info("batch complete")
	actionProgressNonBlocking(progress, ActionProgress{
		Type:      req.Type,
		Processed: len(outcomes),
		Total:     len(outcomes),
		Completed: true,
	})
	return result, nil
}

func (actions *FSActions) runBatch(ctx context.Context, req ActionRequest, workers int, progress chan<- ActionProgress) []domain.ActionOutcome {
	outcomes := make([]domain.ActionOutcome, len(req.Duplicates))
	reserved := newTargetSet()

	var processed int
	var processedMu sync.Mutex

	group := new(errgroup.Group)
	group.SetLimit(workers)
	for i, record := range req.Duplicates {
		i, record := i, record
		if ctx.Err() != nil {
			outcomes[i] = cancelledOutcome(record.DuplicatePath)
			continue
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = cancelledOutcome(record.DuplicatePath)
				return nil
			}
			fileCtx, cancel := fileContext(ctx, req.FileTimeout)
			defer cancel()

			switch req.Type {
			case ActionMove:
				outcomes[i] = actions.moveOne(fileCtx, record, req.Destination, reserved)
			case ActionDelete:
				outcomes[i] = actions.deleteOne(fileCtx, record, req.SafeMode)
			}

			processedMu.Lock()
			processed++
			snapshot := ActionProgress{Type: req.Type, Current: record.DuplicatePath, Processed: processed, Total: len(req.Duplicates)}
			processedMu.Unlock()
			actionProgressNonBlocking(progress, snapshot)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

func (actions *FSActions) moveOne(ctx context.Context, record domain.DuplicateRecord, destination string, reserved *targetSet) domain.ActionOutcome {
	source := record.DuplicatePath
	target := moveTarget(destination, source)
	log := actions.log.WithFields(logrus.Fields{"path": source, "target": target})

	if !reserved.reserve(target) || actions.exists(target) {
		err := fmt.Errorf("target exists: %s", target)
		log.WithError(err).Warn("move failed")
		return failedOutcome(source, target, err)
	}
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("move failed")
		return failedOutcome(source, target, err)
	}

	err := actions.fs.Rename(source, target)
	if err != nil && isCrossDevice(err) {
		log.Debug("rename crossed devices, copying")
		err = actions.copyThenRemove(ctx, source, target)
	}
	if err != nil {
		log.WithError(err).Warn("move failed")
		return failedOutcome(source, target, err)
	}
	log.Infof("moved: %s -> %s", source, target)
	return domain.ActionOutcome{Path: source, Target: target, Succeeded: true}
}

func (actions *FSActions) deleteOne(ctx context.Context, record domain.DuplicateRecord, safeMode bool) domain.ActionOutcome {
	path := record.DuplicatePath
	log := actions.log.WithField("path", path)

	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("delete failed")
		return failedOutcome(path, "", err)
	}
	if safeMode && !actions.exists(record.OriginalPath) {
		err := fmt.Errorf("original %s is missing, keeping the last copy", record.OriginalPath)
		log.WithError(err).Warn("delete refused")
		return failedOutcome(path, "", err)
	}
	info, err := actions.fs.Lstat(path)
	if err != nil {
		log.WithError(err).Warn("delete failed")
		return failedOutcome(path, "", err)
	}
	if info.IsDir() {
		err := fmt.Errorf("refusing to delete directory")
		log.WithError(err).Warn("delete failed")
		return failedOutcome(path, "", err)
	}
	if err := actions.fs.Remove(path); err != nil {
		log.WithError(err).Warn("delete failed")
		return failedOutcome(path, "", err)
	}
	log.Infof("deleted: %s", path)
	return domain.ActionOutcome{Path: path, Succeeded: true}
}

// prepareDestination creates the move destination once, before any worker starts.
func (actions *FSActions) prepareDestination(destination string) error {
	info, err := actions.fs.Stat(destination)
	if err == nil {
		if !info.IsDir() {
			return newError(CodeDestinationUnavailable, destination, fmt.Errorf("not a directory"))
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return newError(CodeDestinationUnavailable, destination, err)
	}
	if err := actions.fs.MkdirAll(destination, 0o755); err != nil {
		return newError(CodeDestinationUnavailable, destination, err)
	}
	actions.log.WithField("destination", destination).Debug("destination created")
	return nil
}

// copyThenRemove moves a file across devices. The source is only removed once the copy
// is fully written; a failed copy removes the partial target instead.
func (actions *FSActions) copyThenRemove(ctx context.Context, source, target string) error {
	if err := actions.copyFile(ctx, source, target); err != nil {
		_ = actions.fs.Remove(target)
		return err
	}
	if err := actions.fs.Remove(source); err != nil {
		return fmt.Errorf("copied to %s but could not remove source: %w", target, err)
	}
	return nil
}

func (actions *FSActions) copyFile(ctx context.Context, source, target string) error {
	info, err := actions.fs.Stat(source)
	if err != nil {
		return err
	}
	input, err := actions.fs.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := actions.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, &contextReader{ctx: ctx, reader: input}); err != nil {
		_ = output.Close()
		return err
	}
	return output.Close()
}

func (actions *FSActions) setProgress(progress chan ActionProgress) {
	actions.mu.Lock()
	defer actions.mu.Unlock()
	actions.progress = progress
}

func (actions *FSActions) exists(path string) bool {
	_, err := actions.fs.Stat(path)
	return err == nil
}

func validateRequest(req ActionRequest) error {
	switch req.Type {
	case ActionDelete:
	case ActionMove:
		if req.Destination == "" {
			return newError(CodeInvalidRequest, "", fmt.Errorf("destination required"))
		}
	default:
		return newError(CodeInvalidRequest, "", fmt.Errorf("unsupported action %q", req.Type))
	}
	return nil
}

func requireConfirmation(req ActionRequest) error {
	if req.Type != ActionDelete || req.ConfirmToken == ConfirmDelete {
		return nil
	}
	return newError(CodeConfirmationRequired, "", fmt.Errorf("delete confirmation required"))
}

func moveTarget(destination, source string) string {
	return filepath.Join(destination, filepath.Base(source))
}

func failedOutcome(path, target string, err error) domain.ActionOutcome {
	return domain.ActionOutcome{
		Path:        path,
		Target:      target,
		ErrorDetail: newError(CodeActionFailure, path, err).Error(),
	}
}

func cancelledOutcome(path string) domain.ActionOutcome {
	return failedOutcome(path, "", errBatchCancelled)
}

// targetSet keeps two duplicates with the same base name from racing for one target.
type targetSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func newTargetSet() *targetSet {
	return &targetSet{names: make(map[string]struct{})}
}

func (set *targetSet) reserve(target string) bool {
	set.mu.Lock()
	defer set.mu.Unlock()
	if _, ok := set.names[target]; ok {
		return false
	}
	set.names[target] = struct{}{}
	return true
}

type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (reader *contextReader) Read(p []byte) (int, error) {
	if err := reader.ctx.Err(); err != nil {
		return 0, err
	}
	return reader.reader.Read(p)
}
