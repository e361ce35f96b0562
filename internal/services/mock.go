package services

import (
	"context"
	"fmt"
	"sync"

	"dupsweep/internal/domain"
)

// MockScanner returns a canned result and remembers the last request.
type MockScanner struct {
	mu      sync.Mutex
	Result  ScanResult
	Err     error
	Calls   int
	Request ScanRequest
}

func NewMockScanner(duplicates ...domain.DuplicateRecord) *MockScanner {
	return &MockScanner{Result: ScanResult{
		Duplicates: duplicates,
		Failures:   []FileFailure{},
		Scanned:    len(duplicates),
		Hashed:     len(duplicates),
	}}
}

func (scanner *MockScanner) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	scanner.Calls++
	scanner.Request = req
	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}
	if err := req.Bounds.Validate(); err != nil {
		return ScanResult{}, err
	}
	result := scanner.Result
	result.Duplicates = append([]domain.DuplicateRecord{}, scanner.Result.Duplicates...)
	return result, scanner.Err
}

// MockActions reports every requested duplicate as handled without touching a filesystem.
type MockActions struct {
	mu       sync.Mutex
	Fail     map[string]error
	Requests []ActionRequest
}

func NewMockActions() *MockActions {
	return &MockActions{Fail: map[string]error{}}
}

func (actions *MockActions) Execute(ctx context.Context, req ActionRequest) (ActionResult, error) {
	actions.mu.Lock()
	defer actions.mu.Unlock()
	actions.Requests = append(actions.Requests, req)
	if err := validateRequest(req); err != nil {
		return ActionResult{Type: req.Type}, err
	}
	if err := requireConfirmation(req); err != nil {
		return ActionResult{Type: req.Type}, err
	}
	if err := ctx.Err(); err != nil {
		return ActionResult{Type: req.Type}, err
	}

	result := ActionResult{Type: req.Type, Outcomes: make([]domain.ActionOutcome, 0, len(req.Duplicates))}
	for _, record := range req.Duplicates {
		outcome := domain.ActionOutcome{Path: record.DuplicatePath, Succeeded: true}
		if req.Type == ActionMove {
			outcome.Target = moveTarget(req.Destination, record.DuplicatePath)
		}
		if err, ok := actions.Fail[record.DuplicatePath]; ok {
			outcome.Succeeded = false
			outcome.ErrorDetail = err.Error()
			result.FailureCount++
		} else {
			result.SuccessCount++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	result.Message = fmt.Sprintf("%s complete: %d succeeded, %d failed", req.Type, result.SuccessCount, result.FailureCount)
	return result, nil
}
