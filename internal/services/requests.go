package services

import (
	"time"

	"dupsweep/internal/domain"
)

// ScanRequest describes one scan batch. Paths must name files; use ExpandPaths to turn
// directories into file lists first.
type ScanRequest struct {
	Paths       []string
	Bounds      SizeBounds
	Workers     int
	ChunkSize   int
	FileTimeout time.Duration
}

type ActionType string

const (
	ActionDelete ActionType = "delete"
	ActionMove   ActionType = "move"
)

// ConfirmDelete must be passed as ActionRequest.ConfirmToken for a delete batch to run.
const ConfirmDelete = "confirm"

type ActionRequest struct {
	Type         ActionType
	Duplicates   []domain.DuplicateRecord
	Destination  string
	SafeMode     bool
	ConfirmToken string
	Workers      int
	FileTimeout  time.Duration
}
