package storage

import "errors"

// Sentinel errors the handlers map onto the FileOperationError taxonomy.
var (
	ErrFileNotFound       = errors.New("storage: file not found")
	ErrDirectoryNotFound  = errors.New("storage: directory not found")
	ErrNotOwner           = errors.New("storage: not owned by requesting user")
	ErrChunkIndexMismatch = errors.New("storage: chunk index mismatch")
	ErrDirectoryNotEmpty  = errors.New("storage: directory is not empty")
)
