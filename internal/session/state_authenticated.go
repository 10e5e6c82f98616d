package session

import (
	"encoding/json"

	"github.com/deb2000-sudo/cloudvault/internal/handlers"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/storage"
	"github.com/deb2000-sudo/cloudvault/internal/transfer"
	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

const authenticatedStateName = "Authenticated"

type authenticatedState struct{}

func (authenticatedState) Name() string       { return authenticatedStateName }
func (authenticatedState) OnEnter(s *Session) {}
func (authenticatedState) OnExit(s *Session)  {}

type uploadInitRequest struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

func (authenticatedState) Handle(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	if p.UserID != s.UserID() {
		return protocol.ErrorPacket(p.UserID, "user id mismatch"), nil
	}

	switch p.CommandCode {
	case protocol.LogoutRequest:
		resp := protocol.NewPacket(protocol.LogoutResponse, p.UserID, map[string]string{
			"Success": "true", "Message": "logged out",
		}, nil)
		return resp, disconnectingState{}

	case protocol.FileUploadInitRequest:
		return handleUploadInit(s, p)

	case protocol.FileDownloadInitRequest:
		return handleDownloadInit(s, p)

	default:
		if resp, ok := handlers.Handle(s.deps.Storage, p.UserID, p); ok {
			return resp, nil
		}
		return protocol.ErrorPacket(p.UserID, "command not supported in authenticated state"), nil
	}
}

func handleUploadInit(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	var req uploadInitRequest
	if err := json.Unmarshal(p.Payload, &req); err != nil || req.FileName == "" {
		return protocol.ErrorPacket(p.UserID, "malformed FILE_UPLOAD_INIT_REQUEST payload"), nil
	}

	// An omitted DirectoryId and an explicit "root" both materialize to the
	// user's concrete root directory id (internal/handlers applies the same
	// rule to directory/move targets), so FILE_UPLOAD_INIT_REQUEST never
	// produces two different representations of "this file is at the top."
	dirID, err := storage.ResolveDirectoryID(s.deps.Storage, p.UserID, p.Meta("DirectoryId"))
	if err != nil {
		return protocol.ErrorPacket(p.UserID, "target directory not found"), nil
	}

	meta := &model.FileMetadata{
		UserID:      p.UserID,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
		DirectoryID: dirID,
	}
	if err := s.deps.Storage.InitializeUpload(meta); err != nil {
		s.deps.Log.Error("upload init failed", logging.Err(err))
		return protocol.ErrorPacket(p.UserID, "failed to initialize upload"), nil
	}

	s.mu.Lock()
	s.transferCtx = transfer.NewUpload(meta)
	s.mu.Unlock()

	resp := protocol.NewPacket(protocol.FileUploadInitResponse, p.UserID, map[string]string{
		"Success": "true",
		"Message": "upload initialized",
		"FileId":  meta.ID,
	}, nil)
	return resp, transferState{}
}

func handleDownloadInit(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	fileID := p.Meta("FileId")
	if fileID == "" {
		return protocol.ErrorPacket(p.UserID, "FileId is required"), nil
	}

	meta, err := s.deps.Storage.GetFile(fileID)
	if err != nil {
		return protocol.ErrorPacket(p.UserID, "file not found"), nil
	}
	if meta.UserID != p.UserID {
		return protocol.ErrorPacket(p.UserID, "file not found"), nil
	}

	s.mu.Lock()
	s.transferCtx = transfer.NewDownload(meta)
	s.mu.Unlock()

	resp := protocol.NewPacket(protocol.FileDownloadInitResponse, p.UserID, map[string]string{
		"Success":     "true",
		"Message":     "download initialized",
		"FileId":      meta.ID,
		"FileName":    meta.FileName,
		"ContentType": meta.ContentType,
		"FileSize":    itoa64(meta.FileSize),
		"TotalChunks": itoa(transfer.TotalChunks(meta.FileSize)),
	}, nil)
	return resp, transferState{}
}
