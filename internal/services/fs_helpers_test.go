package services

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func newMemFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fsys := &lockedFS{Filesystem: memfs.New()}
	for path, content := range files {
		require.NoError(t, util.WriteFile(fsys, path, []byte(content), 0o644))
	}
	return fsys
}

// lockedFS serializes calls into memfs, whose storage map is not safe for the
// concurrent renames and removes a worker pool issues.
type lockedFS struct {
	billy.Filesystem
	mu sync.Mutex
}

func (fsys *lockedFS) Create(name string) (billy.File, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.Create(name)
}

func (fsys *lockedFS) Open(name string) (billy.File, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.Open(name)
}

func (fsys *lockedFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.OpenFile(name, flag, perm)
}

func (fsys *lockedFS) Stat(name string) (os.FileInfo, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.Stat(name)
}

func (fsys *lockedFS) Lstat(name string) (os.FileInfo, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.Lstat(name)
}

func (fsys *lockedFS) Rename(from, to string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.Rename(from, to)
}

func (fsys *lockedFS) Remove(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.Remove(name)
}

func (fsys *lockedFS) MkdirAll(name string, perm os.FileMode) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.MkdirAll(name, perm)
}

func (fsys *lockedFS) ReadDir(name string) ([]os.FileInfo, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.ReadDir(name)
}

func (fsys *lockedFS) TempFile(dir, prefix string) (billy.File, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.Filesystem.TempFile(dir, prefix)
}

// countingFS records how many times each path was opened for reading.
type countingFS struct {
	billy.Filesystem
	mu     sync.Mutex
	opened map[string]int
}

func newCountingFS(fsys billy.Filesystem) *countingFS {
	return &countingFS{Filesystem: fsys, opened: map[string]int{}}
}

func (fsys *countingFS) Open(name string) (billy.File, error) {
	fsys.mu.Lock()
	fsys.opened[name]++
	fsys.mu.Unlock()
	return fsys.Filesystem.Open(name)
}

func (fsys *countingFS) opens(name string) int {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.opened[name]
}

// slowFS delays every read of files whose path contains match.
type slowFS struct {
	billy.Filesystem
	match string
	delay time.Duration
}

func (fsys *slowFS) Open(name string) (billy.File, error) {
	file, err := fsys.Filesystem.Open(name)
	if err != nil || !strings.Contains(name, fsys.match) {
		return file, err
	}
	return &slowFile{File: file, delay: fsys.delay}, nil
}

type slowFile struct {
	billy.File
	delay time.Duration
}

func (file *slowFile) Read(p []byte) (int, error) {
	time.Sleep(file.delay)
	return file.File.Read(p)
}

// faultyFS fails selected operations with a fixed error.
type faultyFS struct {
	billy.Filesystem
	openErr   map[string]error
	removeErr map[string]error
	renameErr error
	beforeOp  func(path string)
}

func (fsys *faultyFS) Open(name string) (billy.File, error) {
	if err, ok := fsys.openErr[name]; ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return fsys.Filesystem.Open(name)
}

func (fsys *faultyFS) Remove(name string) error {
	if fsys.beforeOp != nil {
		fsys.beforeOp(name)
	}
	if err, ok := fsys.removeErr[name]; ok {
		return &os.PathError{Op: "remove", Path: name, Err: err}
	}
	return fsys.Filesystem.Remove(name)
}

func (fsys *faultyFS) Rename(from, to string) error {
	if fsys.beforeOp != nil {
		fsys.beforeOp(from)
	}
	if fsys.renameErr != nil {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: fsys.renameErr}
	}
	return fsys.Filesystem.Rename(from, to)
}

func fileExists(t *testing.T, fsys billy.Filesystem, path string) bool {
	t.Helper()
	_, err := fsys.Stat(path)
	return err == nil
}

func readFile(t *testing.T, fsys billy.Filesystem, path string) string {
	t.Helper()
	data, err := util.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}
