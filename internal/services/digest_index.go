package services

import (
	"sync"

	"dupsweep/internal/domain"
)

// digestIndex maps each digest to the first path that claimed it during one scan.
type digestIndex struct {
	mu        sync.Mutex
	originals map[domain.Digest]string
}

func newDigestIndex() *digestIndex {
	return &digestIndex{originals: make(map[domain.Digest]string)}
}

// claim is the only way into the index. The lookup and the insert happen under one
// lock, so exactly one path per digest ever becomes the original.
func (index *digestIndex) claim(digest domain.Digest, path string) (original string, duplicate bool) {
	index.mu.Lock()
	defer index.mu.Unlock()
	if existing, ok := index.originals[digest]; ok {
		return existing, true
	}
	index.originals[digest] = path
	return path, false
}

func (index *digestIndex) len() int {
	index.mu.Lock()
	defer index.mu.Unlock()
	return len(index.originals)
}
