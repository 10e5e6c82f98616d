// Package handlers implements the non-transfer command handlers: file and
// directory CRUD reachable only from the Authenticated session state. Each
// handler resolves and ownership-checks the file or directory it names with
// backend lookups, then performs its operation and returns a response
// Packet; none of them mutate session state.
package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

func success(userID string, cmd protocol.CommandCode, payload any, message string) *protocol.Packet {
	body, _ := json.Marshal(payload)
	return protocol.NewPacket(cmd, userID, map[string]string{
		"Success": "true",
		"Message": message,
	}, body)
}

func failure(userID string, message string) *protocol.Packet {
	return protocol.ErrorPacket(userID, message)
}

// Handle dispatches p to the matching non-transfer handler. ok is false when
// p's command code is not one this package serves (the caller should try
// the transfer coordinator or reject as unsupported).
func Handle(backend storage.Backend, userID string, p *protocol.Packet) (resp *protocol.Packet, ok bool) {
	if p.UserID != userID {
		return failure(userID, "user id mismatch"), true
	}

	switch p.CommandCode {
	case protocol.FileListRequest:
		return fileList(backend, userID, p), true
	case protocol.FileDeleteRequest:
		return fileDelete(backend, userID, p), true
	case protocol.FileMoveRequest:
		return fileMove(backend, userID, p), true
	case protocol.DirectoryListRequest:
		return directoryList(backend, userID, p), true
	case protocol.DirectoryContentsRequest:
		return directoryContents(backend, userID, p), true
	case protocol.DirectoryCreateRequest:
		return directoryCreate(backend, userID, p), true
	case protocol.DirectoryRenameRequest:
		return directoryRename(backend, userID, p), true
	case protocol.DirectoryDeleteRequest:
		return directoryDelete(backend, userID, p), true
	default:
		return nil, false
	}
}

func fileList(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	// spec.md's FILE_LIST takes no directory argument ("list user's files");
	// DirectoryId here is this repo's own scoping extension, so an omitted
	// value keeps the original "no filter, list everything" meaning instead
	// of being folded into the root-materialization rule below.
	var dirID *string
	if v := p.Meta("DirectoryId"); v != "" {
		resolved, err := storage.ResolveDirectoryID(backend, userID, v)
		if err != nil {
			return failure(userID, "directory not found")
		}
		dirID = resolved
	}
	files, err := backend.ListFiles(userID, dirID)
	if err != nil {
		return failure(userID, "failed to list files")
	}
	if files == nil {
		files = []*model.FileMetadata{}
	}
	return success(userID, protocol.FileListResponse, files, "ok")
}

func ownedFile(backend storage.Backend, userID, fileID string) (*model.FileMetadata, error) {
	f, err := backend.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, storage.ErrNotOwner
	}
	return f, nil
}

func fileDelete(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	fileID := p.Meta("FileId")
	if fileID == "" {
		return failure(userID, "FileId is required")
	}
	if _, err := ownedFile(backend, userID, fileID); err != nil {
		return failure(userID, "file not found")
	}
	if err := backend.DeleteFile(fileID); err != nil {
		return failure(userID, "failed to delete file")
	}
	return success(userID, protocol.FileDeleteResponse, map[string]any{
		"success": true,
		"fileId":  fileID,
		"message": "deleted",
	}, "ok")
}

type fileMoveRequest struct {
	FileID            string  `json:"fileId"`
	TargetDirectoryID *string `json:"targetDirectoryId"`
}

func fileMove(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	var req fileMoveRequest
	if err := json.Unmarshal(p.Payload, &req); err != nil || req.FileID == "" {
		return failure(userID, "malformed FILE_MOVE payload")
	}
	if _, err := ownedFile(backend, userID, req.FileID); err != nil {
		return failure(userID, "file not found")
	}

	// An omitted targetDirectoryId resolves the same way an explicit "root"
	// does (storage.ResolveDirectoryID), so a file moved with no target and
	// a file moved with target "root" land in the same materialized
	// directory and agree under DIRECTORY_CONTENTS filtering.
	var wireTarget string
	if req.TargetDirectoryID != nil {
		wireTarget = *req.TargetDirectoryID
	}
	targetID, err := storage.ResolveDirectoryID(backend, userID, wireTarget)
	if err != nil {
		return failure(userID, "target directory not found")
	}

	if err := backend.MoveFile(req.FileID, targetID); err != nil {
		return failure(userID, "failed to move file")
	}
	return success(userID, protocol.FileMoveResponse, map[string]any{
		"success": true,
		"fileId":  req.FileID,
		"message": "moved",
	}, "ok")
}

func directoryList(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	// An omitted ParentDirectoryId lists root's own children, the same
	// bucket an explicit "root" names -- both resolve through
	// ResolveDirectoryID so directories created under either spelling of
	// root show up here.
	parentID, err := storage.ResolveDirectoryID(backend, userID, p.Meta("ParentDirectoryId"))
	if err != nil {
		return failure(userID, "parent directory not found")
	}
	dirs, err := backend.ListDirectories(userID, parentID)
	if err != nil {
		return failure(userID, "failed to list directories")
	}
	if dirs == nil {
		dirs = []*model.DirectoryMetadata{}
	}
	return success(userID, protocol.DirectoryListResponse, dirs, "ok")
}

func ownedDirectory(backend storage.Backend, userID, dirID string) (*model.DirectoryMetadata, error) {
	d, err := backend.GetDirectory(dirID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, storage.ErrNotOwner
	}
	return d, nil
}

type directoryContentsResponse struct {
	Files       []*model.FileMetadata       `json:"files"`
	Directories []*model.DirectoryMetadata  `json:"directories"`
	DirectoryID string                      `json:"directoryId"`
}

func directoryContents(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	wireID := p.Meta("DirectoryId")
	dirID, err := storage.ResolveDirectoryID(backend, userID, wireID)
	if err != nil {
		return failure(userID, "directory not found")
	}
	if _, err := ownedDirectory(backend, userID, *dirID); err != nil {
		return failure(userID, "directory not found")
	}

	files, err := backend.ListFiles(userID, dirID)
	if err != nil {
		return failure(userID, "failed to list files")
	}
	dirs, err := backend.ListDirectories(userID, dirID)
	if err != nil {
		return failure(userID, "failed to list directories")
	}
	if files == nil {
		files = []*model.FileMetadata{}
	}
	if dirs == nil {
		dirs = []*model.DirectoryMetadata{}
	}
	return success(userID, protocol.DirectoryContentsResponse, directoryContentsResponse{
		Files: files, Directories: dirs, DirectoryID: *dirID,
	}, "ok")
}

type directoryCreateRequest struct {
	DirectoryName    string  `json:"directoryName"`
	ParentDirectoryID *string `json:"parentDirectoryId"`
}

func directoryCreate(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	var req directoryCreateRequest
	if err := json.Unmarshal(p.Payload, &req); err != nil || req.DirectoryName == "" {
		return failure(userID, "malformed DIRECTORY_CREATE payload")
	}

	// Same rule as fileMove/handleUploadInit: an omitted parent and an
	// explicit "root" both materialize to the same concrete directory id.
	var wireParent string
	if req.ParentDirectoryID != nil {
		wireParent = *req.ParentDirectoryID
	}
	parentID, err := storage.ResolveDirectoryID(backend, userID, wireParent)
	if err != nil {
		return failure(userID, "parent directory not found")
	}

	dir := &model.DirectoryMetadata{
		UserID:            userID,
		Name:              req.DirectoryName,
		ParentDirectoryID: parentID,
	}
	if err := backend.CreateDirectory(dir); err != nil {
		return failure(userID, "failed to create directory")
	}
	return success(userID, protocol.DirectoryCreateResponse, map[string]any{
		"success":       true,
		"directoryId":   dir.ID,
		"directoryName": dir.Name,
		"message":       "created",
	}, "ok")
}

type directoryRenameRequest struct {
	DirectoryID string `json:"directoryId"`
	NewName     string `json:"newName"`
}

func directoryRename(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	var req directoryRenameRequest
	if err := json.Unmarshal(p.Payload, &req); err != nil || req.DirectoryID == "" || req.NewName == "" {
		return failure(userID, "malformed DIRECTORY_RENAME payload")
	}
	if _, err := ownedDirectory(backend, userID, req.DirectoryID); err != nil {
		return failure(userID, "directory not found")
	}
	if err := backend.RenameDirectory(req.DirectoryID, req.NewName); err != nil {
		return failure(userID, "failed to rename directory")
	}
	return success(userID, protocol.DirectoryRenameResponse, map[string]any{
		"success": true,
		"message": "renamed",
	}, "ok")
}

func directoryDelete(backend storage.Backend, userID string, p *protocol.Packet) *protocol.Packet {
	dirID := p.Meta("DirectoryId")
	if dirID == "" {
		return failure(userID, "DirectoryId is required")
	}
	recursive, _ := strconv.ParseBool(p.Meta("Recursive"))

	if _, err := ownedDirectory(backend, userID, dirID); err != nil {
		return failure(userID, "directory not found")
	}
	if err := backend.DeleteDirectory(dirID, recursive); err != nil {
		if err == storage.ErrDirectoryNotEmpty {
			return failure(userID, "directory is not empty")
		}
		return failure(userID, "failed to delete directory")
	}
	return success(userID, protocol.DirectoryDeleteResponse, map[string]any{
		"success":     true,
		"directoryId": dirID,
		"message":     "deleted",
	}, "ok")
}
