package storage

import (
	"bytes"
	"testing"

	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

func newTestBackend(t *testing.T) *FilesystemBackend {
	t.Helper()
	b, err := NewFilesystemBackend(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestUploadWriteFinalizeReadRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	meta := &model.FileMetadata{UserID: "u1", FileName: "a.bin", FileSize: 10, ContentType: "application/octet-stream"}
	if err := b.InitializeUpload(meta); err != nil {
		t.Fatalf("InitializeUpload: %v", err)
	}
	if meta.ID == "" {
		t.Fatal("InitializeUpload did not assign an ID")
	}

	chunk := []byte("0123456789")
	if err := b.WriteChunk(meta.ID, 0, chunk, true); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := b.FinalizeUpload(meta.ID); err != nil {
		t.Fatalf("FinalizeUpload: %v", err)
	}

	got, err := b.GetFile(meta.ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if !got.IsComplete {
		t.Error("file not marked complete after FinalizeUpload")
	}

	data, isLast, err := b.ReadChunk(meta.ID, 0)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if !isLast {
		t.Error("single-chunk file should report isLast=true")
	}
	if !bytes.Equal(data, chunk) {
		t.Errorf("ReadChunk = %q, want %q", data, chunk)
	}
}

func TestListFilesScopedToDirectory(t *testing.T) {
	b := newTestBackend(t)

	root, err := b.RootDirectory("u1")
	if err != nil {
		t.Fatalf("RootDirectory: %v", err)
	}

	sub := &model.DirectoryMetadata{UserID: "u1", Name: "docs", ParentDirectoryID: &root.ID}
	if err := b.CreateDirectory(sub); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}

	m1 := &model.FileMetadata{UserID: "u1", FileName: "a.txt", FileSize: 1, ContentType: "text/plain", DirectoryID: &root.ID}
	m2 := &model.FileMetadata{UserID: "u1", FileName: "b.txt", FileSize: 1, ContentType: "text/plain", DirectoryID: &sub.ID}
	if err := b.InitializeUpload(m1); err != nil {
		t.Fatalf("InitializeUpload m1: %v", err)
	}
	if err := b.InitializeUpload(m2); err != nil {
		t.Fatalf("InitializeUpload m2: %v", err)
	}

	rootFiles, err := b.ListFiles("u1", &root.ID)
	if err != nil {
		t.Fatalf("ListFiles root: %v", err)
	}
	if len(rootFiles) != 1 || rootFiles[0].ID != m1.ID {
		t.Errorf("ListFiles(root) = %+v, want just m1", rootFiles)
	}

	subFiles, err := b.ListFiles("u1", &sub.ID)
	if err != nil {
		t.Fatalf("ListFiles sub: %v", err)
	}
	if len(subFiles) != 1 || subFiles[0].ID != m2.ID {
		t.Errorf("ListFiles(sub) = %+v, want just m2", subFiles)
	}
}

func TestDeleteDirectoryRejectsNonEmptyWithoutRecursive(t *testing.T) {
	b := newTestBackend(t)

	dir := &model.DirectoryMetadata{UserID: "u1", Name: "stuff"}
	if err := b.CreateDirectory(dir); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	file := &model.FileMetadata{UserID: "u1", FileName: "x.bin", FileSize: 1, ContentType: "application/octet-stream", DirectoryID: &dir.ID}
	if err := b.InitializeUpload(file); err != nil {
		t.Fatalf("InitializeUpload: %v", err)
	}

	if err := b.DeleteDirectory(dir.ID, false); err != ErrDirectoryNotEmpty {
		t.Errorf("DeleteDirectory non-recursive = %v, want %v", err, ErrDirectoryNotEmpty)
	}

	if err := b.DeleteDirectory(dir.ID, true); err != nil {
		t.Fatalf("DeleteDirectory recursive: %v", err)
	}
	if _, err := b.GetFile(file.ID); err != ErrFileNotFound {
		t.Errorf("file should be gone after recursive delete, GetFile = %v", err)
	}
}

func TestTotalChunks(t *testing.T) {
	cases := map[int64]int{
		0:         0,
		1:         1,
		ChunkSize: 1,
		ChunkSize + 1: 2,
		2621440:   3, // spec.md S3: 2.5 MiB -> 3 chunks of 1 MiB
	}
	for size, want := range cases {
		if got := TotalChunks(size); got != want {
			t.Errorf("TotalChunks(%d) = %d, want %d", size, got, want)
		}
	}
}
