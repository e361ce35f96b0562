package services

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupsweep/internal/domain"
)

// fiveDuplicates lays out five duplicates of one original under /dup.
func fiveDuplicates(t *testing.T) (billy.Filesystem, []domain.DuplicateRecord) {
	t.Helper()
	return fiveDuplicatesOn(t, newMemFS(t, nil))
}

func fiveDuplicatesOn(t *testing.T, fsys billy.Filesystem) (billy.Filesystem, []domain.DuplicateRecord) {
	t.Helper()
	files := map[string]string{"/orig/keep": "payload"}
	records := make([]domain.DuplicateRecord, 0, 5)
	for i := 1; i <= 5; i++ {
		path := fmt.Sprintf("/dup/copy-%d", i)
		files[path] = "payload"
		records = append(records, domain.DuplicateRecord{
			DuplicatePath: path,
			OriginalPath:  "/orig/keep",
			SizeBytes:     int64(len("payload")),
		})
	}
	for path, content := range files {
		require.NoError(t, util.WriteFile(fsys, path, []byte(content), 0o644))
	}
	return fsys, records
}

func removeBeforeOp(base billy.Filesystem, victim string) func(string) {
	return func(path string) {
		if path == victim {
			_ = base.Remove(victim)
		}
	}
}

func TestMoveBatchSurvivesVanishedSource(t *testing.T) {
	base, records := fiveDuplicates(t)
	fsys := &faultyFS{Filesystem: base, beforeOp: removeBeforeOp(base, "/dup/copy-3")}
	actions := NewFSActions(fsys, nil)

	result, err := actions.Execute(context.Background(), ActionRequest{
		Type:        ActionMove,
		Duplicates:  records,
		Destination: "/quarantine",
		Workers:     3,
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 5)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)

	for i, outcome := range result.Outcomes {
		assert.Equal(t, records[i].DuplicatePath, outcome.Path)
		if outcome.Path == "/dup/copy-3" {
			assert.False(t, outcome.Succeeded)
			assert.NotEmpty(t, outcome.ErrorDetail)
			continue
		}
		assert.True(t, outcome.Succeeded, outcome.ErrorDetail)
		assert.Equal(t, "/quarantine/"+fmt.Sprintf("copy-%d", i+1), outcome.Target)
		assert.False(t, fileExists(t, base, outcome.Path))
		assert.Equal(t, "payload", readFile(t, base, outcome.Target))
	}
}

func TestDeleteBatchSurvivesVanishedFile(t *testing.T) {
	base, records := fiveDuplicates(t)
	fsys := &faultyFS{Filesystem: base, beforeOp: removeBeforeOp(base, "/dup/copy-2")}
	actions := NewFSActions(fsys, nil)

	result, err := actions.Execute(context.Background(), ActionRequest{
		Type:         ActionDelete,
		Duplicates:   records,
		ConfirmToken: ConfirmDelete,
		SafeMode:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)

	failed := domain.FailedOutcomes(result.Outcomes)
	require.Len(t, failed, 1)
	assert.Equal(t, "/dup/copy-2", failed[0].Path)
	assert.Contains(t, failed[0].ErrorDetail, string(CodeActionFailure))
	for _, record := range records {
		assert.False(t, fileExists(t, base, record.DuplicatePath))
	}
	assert.True(t, fileExists(t, base, "/orig/keep"))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	fsys, records := fiveDuplicates(t)
	actions := NewFSActions(fsys, nil)

	_, err := actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records})
	require.Error(t, err)
	assert.Equal(t, CodeConfirmationRequired, Code(err))

	_, err = actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records, ConfirmToken: "yes"})
	assert.Equal(t, CodeConfirmationRequired, Code(err))

	for _, record := range records {
		assert.True(t, fileExists(t, fsys, record.DuplicatePath))
	}
}

func TestDeletePermissionDenied(t *testing.T) {
	base, records := fiveDuplicates(t)
	fsys := &faultyFS{Filesystem: base, removeErr: map[string]error{"/dup/copy-5": os.ErrPermission}}
	actions := NewFSActions(fsys, nil)

	result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records, ConfirmToken: ConfirmDelete})
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.False(t, result.Outcomes[4].Succeeded)
	assert.Contains(t, result.Outcomes[4].ErrorDetail, "permission denied")
	assert.True(t, fileExists(t, base, "/dup/copy-5"))
}

func TestDeleteSafeModeKeepsLastCopy(t *testing.T) {
	fsys := newMemFS(t, map[string]string{"/d/copy": "content"})
	records := []domain.DuplicateRecord{{DuplicatePath: "/d/copy", OriginalPath: "/d/gone", SizeBytes: 7}}
	actions := NewFSActions(fsys, nil)

	result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records, ConfirmToken: ConfirmDelete, SafeMode: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailureCount)
	assert.Contains(t, result.Outcomes[0].ErrorDetail, "/d/gone")
	assert.True(t, fileExists(t, fsys, "/d/copy"))

	result, err = actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records, ConfirmToken: ConfirmDelete})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.False(t, fileExists(t, fsys, "/d/copy"))
}

func TestMoveDestinationUnavailable(t *testing.T) {
	fsys, records := fiveDuplicates(t)
	require.NoError(t, writeString(fsys, "/blocked", "not a directory"))
	actions := NewFSActions(fsys, nil)

	result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionMove, Duplicates: records, Destination: "/blocked"})
	require.Error(t, err)
	assert.Equal(t, CodeDestinationUnavailable, Code(err))
	assert.Empty(t, result.Outcomes)
	for _, record := range records {
		assert.True(t, fileExists(t, fsys, record.DuplicatePath))
	}
}

func TestMoveCollisions(t *testing.T) {
	fsys := newMemFS(t, map[string]string{
		"/a/report.txt":      "r",
		"/b/report.txt":      "r",
		"/c/notes.txt":       "n",
		"/dest/notes.txt":    "already here",
		"/orig/original.txt": "r",
	})
	records := []domain.DuplicateRecord{
		{DuplicatePath: "/a/report.txt", OriginalPath: "/orig/original.txt"},
		{DuplicatePath: "/b/report.txt", OriginalPath: "/orig/original.txt"},
		{DuplicatePath: "/c/notes.txt", OriginalPath: "/orig/original.txt"},
	}
	actions := NewFSActions(fsys, nil)

	result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionMove, Duplicates: records, Destination: "/dest"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)

	assert.False(t, result.Outcomes[2].Succeeded)
	assert.Contains(t, result.Outcomes[2].ErrorDetail, "target exists")
	assert.Equal(t, "already here", readFile(t, fsys, "/dest/notes.txt"))

	reports := []bool{result.Outcomes[0].Succeeded, result.Outcomes[1].Succeeded}
	assert.ElementsMatch(t, []bool{true, false}, reports)
	assert.Equal(t, "r", readFile(t, fsys, "/dest/report.txt"))
}

func TestExecuteCancelledBatch(t *testing.T) {
	fsys, records := fiveDuplicates(t)
	actions := NewFSActions(fsys, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := actions.Execute(ctx, ActionRequest{Type: ActionDelete, Duplicates: records, ConfirmToken: ConfirmDelete})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, result.Outcomes, 5)
	assert.Equal(t, 5, result.FailureCount)
	for _, outcome := range result.Outcomes {
		assert.Contains(t, outcome.ErrorDetail, "batch cancelled")
		assert.True(t, fileExists(t, fsys, outcome.Path))
	}
}

func TestExecuteRejectsMalformedRequests(t *testing.T) {
	actions := NewFSActions(newMemFS(t, nil), nil)

	_, err := actions.Execute(context.Background(), ActionRequest{Type: "shred"})
	assert.Equal(t, CodeInvalidRequest, Code(err))

	_, err = actions.Execute(context.Background(), ActionRequest{Type: ActionMove})
	assert.Equal(t, CodeInvalidRequest, Code(err))
}

func TestExecuteEmptyBatch(t *testing.T) {
	actions := NewFSActions(newMemFS(t, nil), nil)

	result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, ConfirmToken: ConfirmDelete})
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Zero(t, result.FailureCount)
}

func TestPreview(t *testing.T) {
	fsys, records := fiveDuplicates(t)
	require.NoError(t, writeString(fsys, "/dest/copy-1", "taken"))
	actions := NewFSActions(fsys, nil)

	preview, err := actions.Preview(context.Background(), ActionRequest{Type: ActionMove, Duplicates: records, Destination: "/dest"})
	require.NoError(t, err)
	assert.Equal(t, 5, preview.TotalFiles)
	assert.Equal(t, int64(35), preview.TotalBytes)
	assert.Len(t, preview.Samples, 5)
	assert.Equal(t, []string{"target exists: /dest/copy-1"}, preview.Warnings)

	records[0].OriginalPath = "/orig/missing"
	preview, err = actions.Preview(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records, SafeMode: true})
	require.NoError(t, err)
	require.Len(t, preview.Warnings, 1)
	assert.Contains(t, preview.Warnings[0], "/dup/copy-1")

	for _, record := range records {
		assert.True(t, fileExists(t, fsys, record.DuplicatePath))
	}
}

func TestActionProgressCompletes(t *testing.T) {
	fsys, records := fiveDuplicates(t)
	actions := NewFSActions(fsys, nil)

	_, err := actions.Execute(context.Background(), ActionRequest{Type: ActionMove, Duplicates: records, Destination: "/moved"})
	require.NoError(t, err)

	var last ActionProgress
	for update := range actions.ActionProgress() {
		last = update
	}
	assert.True(t, last.Completed)
	assert.Equal(t, 5, last.Processed)
	assert.Equal(t, ActionMove, last.Type)
}

func TestExecuteOnDisk(t *testing.T) {
	t.Run("move", func(t *testing.T) {
		fsys, records := fiveDuplicatesOn(t, osfs.New(t.TempDir()))
		actions := NewFSActions(fsys, nil)

		result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionMove, Duplicates: records, Destination: "/moved", Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, 5, result.SuccessCount)
		for i := 1; i <= 5; i++ {
			assert.False(t, fileExists(t, fsys, fmt.Sprintf("/dup/copy-%d", i)))
			assert.Equal(t, "payload", readFile(t, fsys, fmt.Sprintf("/moved/copy-%d", i)))
		}
	})

	t.Run("delete", func(t *testing.T) {
		fsys, records := fiveDuplicatesOn(t, osfs.New(t.TempDir()))
		actions := NewFSActions(fsys, nil)

		result, err := actions.Execute(context.Background(), ActionRequest{Type: ActionDelete, Duplicates: records, ConfirmToken: ConfirmDelete, SafeMode: true, Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, 5, result.SuccessCount)
		assert.Zero(t, result.FailureCount)
		assert.True(t, fileExists(t, fsys, "/orig/keep"))
		assert.False(t, fileExists(t, fsys, "/dup/copy-1"))
	})
}

func writeString(fsys billy.Filesystem, path, content string) error {
	file, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := file.Write([]byte(content)); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
