package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"github.com/go-git/go-billy/v5"

	"dupsweep/internal/domain"
)

// DefaultChunkSize is the read size used while streaming a file into the digest.
const DefaultChunkSize = 8192

// HashFile streams path through SHA-256 in chunkSize reads and returns the hex digest.
// The context is checked between chunks so a per-file timeout can stop a stalled read.
func HashFile(ctx context.Context, fsys billy.Filesystem, path string, chunkSize int) (domain.Digest, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	file, err := fsys.Open(path)
	if err != nil {
		return "", newError(CodeUnreadableFile, path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	buffer := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", newError(CodeUnreadableFile, path, err)
		}
		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", newError(CodeUnreadableFile, path, err)
		}
	}
	return domain.Digest(hex.EncodeToString(hasher.Sum(nil))), nil
}
