// Package storage implements the StorageBackend collaborator: chunked file
// bytes on the local filesystem, file/directory metadata in SQLite, and an
// optional local erasure-coded redundancy wrapper.
package storage

import "github.com/deb2000-sudo/cloudvault/pkg/model"

// ChunkSize matches protocol.ChunkSize; duplicated here (rather than
// imported) to keep storage free of a dependency on the wire protocol
// package.
const ChunkSize = 1 * 1024 * 1024

// Backend is the StorageBackend collaborator interface from SPEC_FULL.md
// section 6. Every method is safe for concurrent use by different fileIDs;
// callers serialize writes to the same fileID themselves (the transfer
// coordinator never has two in-flight writers for one file).
type Backend interface {
	InitializeUpload(meta *model.FileMetadata) error
	WriteChunk(fileID string, chunkIndex int, data []byte, isLast bool) error
	FinalizeUpload(fileID string) error
	ReadChunk(fileID string, chunkIndex int) (data []byte, isLast bool, err error)
	DeleteFile(fileID string) error

	GetFile(fileID string) (*model.FileMetadata, error)
	ListFiles(userID string, directoryID *string) ([]*model.FileMetadata, error)
	MoveFile(fileID string, targetDirectoryID *string) error

	CreateDirectory(dir *model.DirectoryMetadata) error
	GetDirectory(directoryID string) (*model.DirectoryMetadata, error)
	ListDirectories(userID string, parentDirectoryID *string) ([]*model.DirectoryMetadata, error)
	RenameDirectory(directoryID, newName string) error
	DeleteDirectory(directoryID string, recursive bool) error

	// RootDirectory returns (creating if necessary) the user's root
	// directory, used whenever a request names directory "root".
	RootDirectory(userID string) (*model.DirectoryMetadata, error)
}

// rootSentinel is the wire value meaning "the user's root directory" for any
// metadata field that names a directory.
const rootSentinel = "root"

// ResolveDirectoryID turns a wire directory id ("root", "", or a concrete
// id) into a pointer to a concrete id: "root" and "" both resolve to the
// user's root directory id (created if needed), never nil. Shared by
// internal/handlers and internal/session so "root" means the same thing
// wherever a directory is named on the wire.
func ResolveDirectoryID(backend Backend, userID, wireID string) (*string, error) {
	if wireID == "" || wireID == rootSentinel {
		root, err := backend.RootDirectory(userID)
		if err != nil {
			return nil, err
		}
		return &root.ID, nil
	}
	id := wireID
	return &id, nil
}
