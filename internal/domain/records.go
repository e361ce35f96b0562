package domain

import "sort"

// FileRecord is a file seen during one scan pass. Size is read at scan time.
type FileRecord struct {
	Path      string
	SizeBytes int64
}

// Digest is the lowercase hex SHA-256 of a file's full content.
type Digest string

// DuplicateRecord links a file to the first file observed with the same digest.
type DuplicateRecord struct {
	DuplicatePath string `json:"duplicate_path"`
	OriginalPath  string `json:"original_path"`
	SizeBytes     int64  `json:"size_bytes"`
	Digest        Digest `json:"digest"`
}

// ActionOutcome is the per-file result of a move or delete batch.
type ActionOutcome struct {
	Path        string `json:"path"`
	Target      string `json:"target,omitempty"`
	Succeeded   bool   `json:"succeeded"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// DuplicatePaths returns the duplicate side of each record, sorted.
func DuplicatePaths(records []DuplicateRecord) []string {
	paths := make([]string, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.DuplicatePath)
	}
	sort.Strings(paths)
	return paths
}

// ReclaimableBytes is the space freed if every duplicate were removed.
func ReclaimableBytes(records []DuplicateRecord) int64 {
	var total int64
	for _, record := range records {
		total += record.SizeBytes
	}
	return total
}

// GroupByOriginal buckets records under their original path.
func GroupByOriginal(records []DuplicateRecord) map[string][]DuplicateRecord {
	groups := make(map[string][]DuplicateRecord)
	for _, record := range records {
		groups[record.OriginalPath] = append(groups[record.OriginalPath], record)
	}
	return groups
}

// FailedOutcomes filters a batch down to the items that did not succeed.
func FailedOutcomes(outcomes []ActionOutcome) []ActionOutcome {
	failed := make([]ActionOutcome, 0)
	for _, outcome := range outcomes {
		if !outcome.Succeeded {
			failed = append(failed, outcome)
		}
	}
	return failed
}
