package session

import (
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/internal/transfer"
)

// transferState is a single State implementation shared by Transfer(upload)
// and Transfer(download): which one is active is read off s.transferCtx,
// matching spec.md section 9's tagged-variant re-architecture of the
// source's state hierarchy -- one Go type, the variant discriminated by
// data rather than by two parallel structs with duplicated legality checks.
type transferState struct{}

func (transferState) Name() string {
	return "Transfer"
}

func (transferState) OnEnter(s *Session) {}

// OnExit cancels any in-progress transfer that is exiting for a reason
// other than normal completion (disconnect, timeout, error): the upload/
// download handlers below clear transferCtx themselves on a successful
// complete, so whatever OnExit still finds here was abandoned mid-flight.
func (transferState) OnExit(s *Session) {
	s.mu.Lock()
	ctx := s.transferCtx
	s.transferCtx = nil
	s.mu.Unlock()

	if ctx != nil {
		s.deps.Log.Debug("transfer cancelled",
			logging.String("sessionId", s.ID), logging.String("fileId", ctx.File.ID))
	}
}

func (transferState) Handle(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	if p.UserID != s.UserID() {
		return protocol.ErrorPacket(p.UserID, "user id mismatch"), nil
	}

	s.mu.Lock()
	ctx := s.transferCtx
	s.mu.Unlock()
	if ctx == nil {
		return protocol.ErrorPacket(p.UserID, "no transfer in progress"), authenticatedState{}
	}

	if ctx.IsUpload {
		switch p.CommandCode {
		case protocol.FileUploadChunkRequest:
			return handleUploadChunk(s, ctx, p)
		case protocol.FileUploadCompleteRequest:
			return handleUploadComplete(s, ctx, p)
		default:
			return protocol.ErrorPacket(p.UserID, "command not supported during upload"), nil
		}
	}

	switch p.CommandCode {
	case protocol.FileDownloadChunkRequest:
		return handleDownloadChunk(s, ctx, p)
	case protocol.FileDownloadCompleteRequest:
		return handleDownloadComplete(s, ctx, p)
	default:
		return protocol.ErrorPacket(p.UserID, "command not supported during download"), nil
	}
}

func handleUploadChunk(s *Session, ctx *transfer.Context, p *protocol.Packet) (*protocol.Packet, State) {
	fileID := p.Meta("FileId")
	chunkIndex, convErr := atoi(p.Meta("ChunkIndex"))

	if convErr != nil {
		return protocol.ErrorPacket(p.UserID, "malformed ChunkIndex").
			WithMeta("ExpectedChunkIndex", itoa(ctx.NextExpectedIndex)), nil
	}

	if err := ctx.ValidateUploadChunk(fileID, chunkIndex, len(p.Payload)); err != nil {
		return protocol.ErrorPacket(p.UserID, err.Error()).
			WithMeta("ExpectedChunkIndex", itoa(ctx.NextExpectedIndex)), nil
	}

	isLast := atob(p.Meta("IsLastChunk"))
	if err := s.deps.Storage.WriteChunk(fileID, chunkIndex, p.Payload, isLast); err != nil {
		s.deps.Log.Error("chunk write failed", logging.Err(err), logging.String("fileId", fileID))
		return protocol.ErrorPacket(p.UserID, "failed to write chunk").
			WithMeta("ExpectedChunkIndex", itoa(ctx.NextExpectedIndex)), nil
	}

	ctx.AdvanceUpload()
	resp := protocol.NewPacket(protocol.FileUploadChunkResponse, p.UserID, map[string]string{
		"Success":    "true",
		"Message":    "chunk accepted",
		"FileId":     fileID,
		"ChunkIndex": itoa(chunkIndex),
	}, nil)
	return resp, nil
}

func handleUploadComplete(s *Session, ctx *transfer.Context, p *protocol.Packet) (*protocol.Packet, State) {
	fileID := p.Meta("FileId")
	if fileID != ctx.File.ID {
		return protocol.ErrorPacket(p.UserID, "file id mismatch"), authenticatedState{}
	}

	if err := s.deps.Storage.FinalizeUpload(fileID); err != nil {
		s.deps.Log.Error("upload finalize failed", logging.Err(err), logging.String("fileId", fileID))
		return protocol.ErrorPacket(p.UserID, "failed to finalize upload"), authenticatedState{}
	}

	s.deps.Log.Info("upload complete",
		logging.String("fileId", fileID),
		logging.Any("bytesPerSec", ctx.Throughput(ctx.File.FileSize)))

	s.mu.Lock()
	s.transferCtx = nil
	s.mu.Unlock()

	resp := protocol.NewPacket(protocol.FileUploadCompleteResponse, p.UserID, map[string]string{
		"Success": "true",
		"Message": "upload complete",
		"FileId":  fileID,
	}, nil)
	return resp, authenticatedState{}
}

func handleDownloadChunk(s *Session, ctx *transfer.Context, p *protocol.Packet) (*protocol.Packet, State) {
	fileID := p.Meta("FileId")
	if err := ctx.ValidateDownloadChunk(fileID); err != nil {
		return protocol.ErrorPacket(p.UserID, err.Error()), nil
	}
	chunkIndex, err := atoi(p.Meta("ChunkIndex"))
	if err != nil {
		return protocol.ErrorPacket(p.UserID, "malformed ChunkIndex"), nil
	}

	data, isLast, err := s.deps.Storage.ReadChunk(fileID, chunkIndex)
	if err != nil {
		s.deps.Log.Error("chunk read failed", logging.Err(err), logging.String("fileId", fileID))
		return protocol.ErrorPacket(p.UserID, "failed to read chunk"), nil
	}

	resp := protocol.NewPacket(protocol.FileDownloadChunkResponse, p.UserID, map[string]string{
		"Success":     "true",
		"FileId":      fileID,
		"ChunkIndex":  itoa(chunkIndex),
		"IsLastChunk": boolString(isLast),
	}, data)
	return resp, nil
}

func handleDownloadComplete(s *Session, ctx *transfer.Context, p *protocol.Packet) (*protocol.Packet, State) {
	fileID := p.Meta("FileId")
	s.deps.Log.Info("download complete",
		logging.String("fileId", fileID),
		logging.Any("bytesPerSec", ctx.Throughput(ctx.File.FileSize)))

	s.mu.Lock()
	s.transferCtx = nil
	s.mu.Unlock()

	resp := protocol.NewPacket(protocol.FileDownloadCompleteResponse, p.UserID, map[string]string{
		"Success": "true",
		"Message": "download complete",
		"FileId":  fileID,
	}, nil)
	return resp, authenticatedState{}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
