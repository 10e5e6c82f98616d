// Package transfer implements the transfer coordinator: the pure
// chunk-ordering and one-transfer-window logic a session's Transfer state
// delegates to. It performs no I/O itself -- callers (internal/session) are
// responsible for invoking the storage backend and only consult this
// package to decide whether a given chunk request is legal right now.
package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

// ChunkSize mirrors protocol.ChunkSize/storage.ChunkSize; duplicated to keep
// this package dependency-free of both.
const ChunkSize = 1 * 1024 * 1024

var (
	// ErrFileIDMismatch is returned when a chunk request names a file other
	// than the one this transfer was opened for.
	ErrFileIDMismatch = errors.New("transfer: file id does not match the open transfer")
	// ErrChunkOutOfOrder is returned when an upload chunk's index is not
	// exactly the next expected one.
	ErrChunkOutOfOrder = errors.New("transfer: chunk index out of order")
	// ErrEmptyChunk is returned for a zero-length upload chunk payload.
	ErrEmptyChunk = errors.New("transfer: chunk payload must not be empty")
)

// TotalChunks computes ceil(fileSize / ChunkSize).
func TotalChunks(fileSize int64) int {
	if fileSize <= 0 {
		return 0
	}
	return int((fileSize + ChunkSize - 1) / ChunkSize)
}

// Context tracks the single in-flight transfer a session may hold. Per
// spec.md's one-transfer invariant, a session never has more than one of
// these alive at a time.
type Context struct {
	File        *model.FileMetadata
	IsUpload    bool
	TotalChunks int

	// NextExpectedIndex is enforced strictly for uploads (clients must send
	// 0, 1, 2, ... in order, never buffered out of order). Downloads permit
	// random access, so it is not checked there.
	NextExpectedIndex int

	// StartedAt is set at construction time (not only in a later onEnter
	// hook) so throughput logging at finalize never divides by a
	// zero-or-negative duration -- see SPEC_FULL.md section 9, Open
	// Question 4.
	StartedAt time.Time
}

// NewUpload opens an upload transfer window for file.
func NewUpload(file *model.FileMetadata) *Context {
	return &Context{
		File:        file,
		IsUpload:    true,
		TotalChunks: TotalChunks(file.FileSize),
		StartedAt:   time.Now(),
	}
}

// NewDownload opens a download transfer window for file.
func NewDownload(file *model.FileMetadata) *Context {
	return &Context{
		File:        file,
		IsUpload:    false,
		TotalChunks: TotalChunks(file.FileSize),
		StartedAt:   time.Now(),
	}
}

// ValidateUploadChunk checks whether (fileID, chunkIndex, payload) may be
// accepted right now. It does not mutate c; call AdvanceUpload after the
// caller's storage write actually succeeds.
func (c *Context) ValidateUploadChunk(fileID string, chunkIndex int, payloadLen int) error {
	if !c.IsUpload {
		return fmt.Errorf("transfer: context is not an upload")
	}
	if fileID != c.File.ID {
		return ErrFileIDMismatch
	}
	if chunkIndex != c.NextExpectedIndex {
		return ErrChunkOutOfOrder
	}
	if payloadLen == 0 {
		return ErrEmptyChunk
	}
	return nil
}

// AdvanceUpload records that NextExpectedIndex was written successfully.
func (c *Context) AdvanceUpload() {
	c.NextExpectedIndex++
}

// ValidateDownloadChunk checks only that fileID matches; ChunkIndex is
// caller-chosen and random access is permitted.
func (c *Context) ValidateDownloadChunk(fileID string) error {
	if c.IsUpload {
		return fmt.Errorf("transfer: context is not a download")
	}
	if fileID != c.File.ID {
		return ErrFileIDMismatch
	}
	return nil
}

// Throughput returns bytes/sec for the transfer so far, safe to call at
// finalize time since StartedAt is always set at construction.
func (c *Context) Throughput(bytesTransferred int64) float64 {
	elapsed := time.Since(c.StartedAt).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001
	}
	return float64(bytesTransferred) / elapsed
}
