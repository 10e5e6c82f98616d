package handlers

import (
	"encoding/json"
	"testing"

	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

func newBackend(t *testing.T) storage.Backend {
	t.Helper()
	b, err := storage.NewFilesystemBackend(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewFilesystemBackend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func decodeSuccess(t *testing.T, resp *protocol.Packet, out any) {
	t.Helper()
	if resp.Meta("Success") != "true" {
		t.Fatalf("expected success response, got %+v", resp)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}
}

func TestFileListEmptyForNewUser(t *testing.T) {
	b := newBackend(t)
	req := protocol.NewPacket(protocol.FileListRequest, "u1", nil, nil)
	resp, ok := Handle(b, "u1", req)
	if !ok {
		t.Fatal("FILE_LIST_REQUEST not handled")
	}
	var files []*model.FileMetadata
	decodeSuccess(t, resp, &files)
	if len(files) != 0 {
		t.Errorf("files = %v, want empty", files)
	}
}

// TestInvariantOwnership exercises testable property 5: no handler returns
// data referencing a userId different from the session's, and ownership is
// enforced before any mutation.
func TestInvariantOwnership(t *testing.T) {
	b := newBackend(t)

	file := &model.FileMetadata{UserID: "owner", FileName: "secret.txt", FileSize: 1, ContentType: "text/plain"}
	if err := b.InitializeUpload(file); err != nil {
		t.Fatalf("InitializeUpload: %v", err)
	}

	req := protocol.NewPacket(protocol.FileDeleteRequest, "intruder", map[string]string{"FileId": file.ID}, nil)
	resp, ok := Handle(b, "intruder", req)
	if !ok {
		t.Fatal("FILE_DELETE_REQUEST not handled")
	}
	if resp.Meta("Success") == "true" {
		t.Fatal("intruder was able to delete another user's file")
	}

	if _, err := b.GetFile(file.ID); err != nil {
		t.Fatalf("file should still exist after rejected delete: %v", err)
	}
}

func TestHandleRejectsUserIDMismatchBetweenPacketAndSession(t *testing.T) {
	b := newBackend(t)
	req := protocol.NewPacket(protocol.FileListRequest, "someone-else", nil, nil)
	resp, ok := Handle(b, "u1", req)
	if !ok {
		t.Fatal("expected handled response")
	}
	if resp.Meta("Success") == "true" {
		t.Fatal("expected rejection for mismatched userId")
	}
}

// TestFileMoveRoundTrip resolves Open Question 3: FILE_MOVE wire semantics
// are fully implemented, not a stub.
func TestFileMoveRoundTrip(t *testing.T) {
	b := newBackend(t)

	root, err := b.RootDirectory("u1")
	if err != nil {
		t.Fatalf("RootDirectory: %v", err)
	}
	target := &model.DirectoryMetadata{UserID: "u1", Name: "archive", ParentDirectoryID: &root.ID}
	if err := b.CreateDirectory(target); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}

	file := &model.FileMetadata{UserID: "u1", FileName: "report.pdf", FileSize: 1, ContentType: "application/pdf", DirectoryID: &root.ID}
	if err := b.InitializeUpload(file); err != nil {
		t.Fatalf("InitializeUpload: %v", err)
	}

	payload, _ := json.Marshal(fileMoveRequest{FileID: file.ID, TargetDirectoryID: &target.ID})
	req := protocol.NewPacket(protocol.FileMoveRequest, "u1", nil, payload)
	resp, ok := Handle(b, "u1", req)
	if !ok {
		t.Fatal("FILE_MOVE_REQUEST not handled")
	}
	decodeSuccess(t, resp, nil)

	moved, err := b.GetFile(file.ID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if moved.DirectoryID == nil || *moved.DirectoryID != target.ID {
		t.Errorf("file directory after move = %v, want %s", moved.DirectoryID, target.ID)
	}
}

func TestDirectoryCreateListRenameDelete(t *testing.T) {
	b := newBackend(t)

	createPayload, _ := json.Marshal(directoryCreateRequest{DirectoryName: "photos"})
	createReq := protocol.NewPacket(protocol.DirectoryCreateRequest, "u1", nil, createPayload)
	createResp, ok := Handle(b, "u1", createReq)
	if !ok {
		t.Fatal("DIRECTORY_CREATE_REQUEST not handled")
	}
	var created map[string]any
	decodeSuccess(t, createResp, &created)
	dirID, _ := created["directoryId"].(string)
	if dirID == "" {
		t.Fatal("DIRECTORY_CREATE_RESPONSE missing directoryId")
	}

	listReq := protocol.NewPacket(protocol.DirectoryListRequest, "u1", nil, nil)
	listResp, ok := Handle(b, "u1", listReq)
	if !ok {
		t.Fatal("DIRECTORY_LIST_REQUEST not handled")
	}
	var dirs []*model.DirectoryMetadata
	decodeSuccess(t, listResp, &dirs)
	if len(dirs) != 1 || dirs[0].ID != dirID {
		t.Errorf("directories = %+v, want just %s", dirs, dirID)
	}

	renamePayload, _ := json.Marshal(directoryRenameRequest{DirectoryID: dirID, NewName: "vacation-photos"})
	renameReq := protocol.NewPacket(protocol.DirectoryRenameRequest, "u1", nil, renamePayload)
	if resp, ok := Handle(b, "u1", renameReq); !ok || resp.Meta("Success") != "true" {
		t.Fatalf("DIRECTORY_RENAME_REQUEST failed: %+v", resp)
	}

	deleteReq := protocol.NewPacket(protocol.DirectoryDeleteRequest, "u1", map[string]string{"DirectoryId": dirID}, nil)
	if resp, ok := Handle(b, "u1", deleteReq); !ok || resp.Meta("Success") != "true" {
		t.Fatalf("DIRECTORY_DELETE_REQUEST failed: %+v", resp)
	}
}
