package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

// FilesystemBackend is the default Backend: chunk bytes under
// files/{userId}/{fileId}/{chunkIndex}.chunk (zstd-compressed at rest, the
// teacher's internal/crypto convention), file/directory metadata in a
// SQLite database managed through metadataStore.
type FilesystemBackend struct {
	baseDir string
	meta    *metadataStore
	log     logging.Logger
}

// NewFilesystemBackend opens (creating if needed) the chunk directory tree
// under baseDir/files and the metadata database at baseDir/metadata/metadata.db.
func NewFilesystemBackend(baseDir string, log logging.Logger) (*FilesystemBackend, error) {
	filesDir := filepath.Join(baseDir, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create files dir: %w", err)
	}
	metaDir := filepath.Join(baseDir, "metadata")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create metadata dir: %w", err)
	}
	meta, err := openMetadataStore(filepath.Join(metaDir, "metadata.db"))
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &FilesystemBackend{baseDir: baseDir, meta: meta, log: log}, nil
}

func (b *FilesystemBackend) Close() error { return b.meta.Close() }

func (b *FilesystemBackend) fileDir(userID, fileID string) string {
	return filepath.Join(b.baseDir, "files", userID, fileID)
}

func (b *FilesystemBackend) chunkPath(userID, fileID string, chunkIndex int) string {
	return filepath.Join(b.fileDir(userID, fileID), fmt.Sprintf("%d.chunk", chunkIndex))
}

func (b *FilesystemBackend) InitializeUpload(m *model.FileMetadata) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	m.IsComplete = false

	if err := os.MkdirAll(b.fileDir(m.UserID, m.ID), 0o755); err != nil {
		return fmt.Errorf("storage: create file dir: %w", err)
	}
	return b.meta.insertFile(m)
}

func (b *FilesystemBackend) WriteChunk(fileID string, chunkIndex int, data []byte, isLast bool) error {
	m, err := b.meta.getFile(fileID)
	if err != nil {
		return err
	}
	compressed, err := compressChunk(data)
	if err != nil {
		return err
	}
	path := b.chunkPath(m.UserID, fileID, chunkIndex)
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("storage: write chunk %d for %s: %w", chunkIndex, fileID, err)
	}
	return nil
}

func (b *FilesystemBackend) FinalizeUpload(fileID string) error {
	return b.meta.setFileComplete(fileID, true)
}

func (b *FilesystemBackend) ReadChunk(fileID string, chunkIndex int) ([]byte, bool, error) {
	m, err := b.meta.getFile(fileID)
	if err != nil {
		return nil, false, err
	}
	path := b.chunkPath(m.UserID, fileID, chunkIndex)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("storage: read chunk %d for %s: %w", chunkIndex, fileID, err)
	}
	data, err := decompressChunk(raw)
	if err != nil {
		return nil, false, err
	}
	totalChunks := TotalChunks(m.FileSize)
	isLast := chunkIndex >= totalChunks-1
	return data, isLast, nil
}

func (b *FilesystemBackend) DeleteFile(fileID string) error {
	m, err := b.meta.getFile(fileID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(b.fileDir(m.UserID, fileID)); err != nil {
		b.log.Warn("failed to remove chunk directory", logging.String("fileId", fileID), logging.Err(err))
	}
	return b.meta.deleteFile(fileID)
}

func (b *FilesystemBackend) GetFile(fileID string) (*model.FileMetadata, error) {
	return b.meta.getFile(fileID)
}

func (b *FilesystemBackend) ListFiles(userID string, directoryID *string) ([]*model.FileMetadata, error) {
	return b.meta.listFiles(userID, directoryID)
}

func (b *FilesystemBackend) MoveFile(fileID string, targetDirectoryID *string) error {
	return b.meta.moveFile(fileID, targetDirectoryID)
}

func (b *FilesystemBackend) CreateDirectory(d *model.DirectoryMetadata) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	return b.meta.insertDirectory(d)
}

func (b *FilesystemBackend) GetDirectory(directoryID string) (*model.DirectoryMetadata, error) {
	return b.meta.getDirectory(directoryID)
}

func (b *FilesystemBackend) ListDirectories(userID string, parentDirectoryID *string) ([]*model.DirectoryMetadata, error) {
	return b.meta.listDirectories(userID, parentDirectoryID)
}

func (b *FilesystemBackend) RenameDirectory(directoryID, newName string) error {
	return b.meta.renameDirectory(directoryID, newName)
}

// DeleteDirectory removes a directory. When recursive is false, a non-empty
// directory (any file or subdirectory inside it) is rejected with
// ErrDirectoryNotEmpty. When recursive is true, files and subdirectories are
// removed depth-first before the directory itself.
func (b *FilesystemBackend) DeleteDirectory(directoryID string, recursive bool) error {
	files, err := b.meta.filesIn(directoryID)
	if err != nil {
		return err
	}
	subdirs, err := b.meta.subdirectoriesOf(directoryID)
	if err != nil {
		return err
	}

	if !recursive && (len(files) > 0 || len(subdirs) > 0) {
		return ErrDirectoryNotEmpty
	}

	for _, f := range files {
		if err := b.DeleteFile(f.ID); err != nil {
			return err
		}
	}
	for _, sub := range subdirs {
		if err := b.DeleteDirectory(sub.ID, true); err != nil {
			return err
		}
	}
	return b.meta.deleteDirectory(directoryID)
}

func (b *FilesystemBackend) RootDirectory(userID string) (*model.DirectoryMetadata, error) {
	return b.meta.rootDirectory(userID)
}

// TotalChunks computes ceil(fileSize / ChunkSize); ReadChunk uses it to
// decide whether a chunk index is the file's last chunk.
func TotalChunks(fileSize int64) int {
	if fileSize <= 0 {
		return 0
	}
	return int((fileSize + ChunkSize - 1) / ChunkSize)
}
