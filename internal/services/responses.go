package services

import (
	"time"

	"dupsweep/internal/domain"
)

// FileFailure records a file the scan had to leave out.
type FileFailure struct {
	Path   string    `json:"path"`
	Code   ErrorCode `json:"code"`
	Detail string    `json:"detail"`
}

type ScanResult struct {
	Duplicates []domain.DuplicateRecord `json:"duplicates"`
	Failures   []FileFailure            `json:"failures"`
	Scanned    int                      `json:"scanned"`
	Hashed     int                      `json:"hashed"`
	Skipped    int                      `json:"skipped"`
	Duration   time.Duration            `json:"duration"`
}

type ActionResult struct {
	Type         ActionType             `json:"type"`
	Outcomes     []domain.ActionOutcome `json:"outcomes"`
	SuccessCount int                    `json:"success_count"`
	FailureCount int                    `json:"failure_count"`
	Duration     time.Duration          `json:"duration"`
	Message      string                 `json:"message"`
}
