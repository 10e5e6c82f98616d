// Package protocol implements the wire protocol: the Packet type, its JSON
// codec, and the length-prefixed framing used to exchange packets over a
// single duplex byte stream.
package protocol

import "time"

// CommandCode enumerates every request/response kind the wire protocol
// carries.
type CommandCode string

const (
	LoginRequest  CommandCode = "LOGIN_REQUEST"
	LoginResponse CommandCode = "LOGIN_RESPONSE"

	LogoutRequest  CommandCode = "LOGOUT_REQUEST"
	LogoutResponse CommandCode = "LOGOUT_RESPONSE"

	CreateAccountRequest  CommandCode = "CREATE_ACCOUNT_REQUEST"
	CreateAccountResponse CommandCode = "CREATE_ACCOUNT_RESPONSE"

	FileListRequest  CommandCode = "FILE_LIST_REQUEST"
	FileListResponse CommandCode = "FILE_LIST_RESPONSE"

	FileUploadInitRequest  CommandCode = "FILE_UPLOAD_INIT_REQUEST"
	FileUploadInitResponse CommandCode = "FILE_UPLOAD_INIT_RESPONSE"

	FileUploadChunkRequest  CommandCode = "FILE_UPLOAD_CHUNK_REQUEST"
	FileUploadChunkResponse CommandCode = "FILE_UPLOAD_CHUNK_RESPONSE"

	FileUploadCompleteRequest  CommandCode = "FILE_UPLOAD_COMPLETE_REQUEST"
	FileUploadCompleteResponse CommandCode = "FILE_UPLOAD_COMPLETE_RESPONSE"

	FileDownloadInitRequest  CommandCode = "FILE_DOWNLOAD_INIT_REQUEST"
	FileDownloadInitResponse CommandCode = "FILE_DOWNLOAD_INIT_RESPONSE"

	FileDownloadChunkRequest  CommandCode = "FILE_DOWNLOAD_CHUNK_REQUEST"
	FileDownloadChunkResponse CommandCode = "FILE_DOWNLOAD_CHUNK_RESPONSE"

	FileDownloadCompleteRequest  CommandCode = "FILE_DOWNLOAD_COMPLETE_REQUEST"
	FileDownloadCompleteResponse CommandCode = "FILE_DOWNLOAD_COMPLETE_RESPONSE"

	FileDeleteRequest  CommandCode = "FILE_DELETE_REQUEST"
	FileDeleteResponse CommandCode = "FILE_DELETE_RESPONSE"

	FileMoveRequest  CommandCode = "FILE_MOVE_REQUEST"
	FileMoveResponse CommandCode = "FILE_MOVE_RESPONSE"

	DirectoryCreateRequest  CommandCode = "DIRECTORY_CREATE_REQUEST"
	DirectoryCreateResponse CommandCode = "DIRECTORY_CREATE_RESPONSE"

	DirectoryListRequest  CommandCode = "DIRECTORY_LIST_REQUEST"
	DirectoryListResponse CommandCode = "DIRECTORY_LIST_RESPONSE"

	DirectoryContentsRequest  CommandCode = "DIRECTORY_CONTENTS_REQUEST"
	DirectoryContentsResponse CommandCode = "DIRECTORY_CONTENTS_RESPONSE"

	DirectoryRenameRequest  CommandCode = "DIRECTORY_RENAME_REQUEST"
	DirectoryRenameResponse CommandCode = "DIRECTORY_RENAME_RESPONSE"

	DirectoryDeleteRequest  CommandCode = "DIRECTORY_DELETE_REQUEST"
	DirectoryDeleteResponse CommandCode = "DIRECTORY_DELETE_RESPONSE"

	Error CommandCode = "ERROR"
)

// MaxPacketSize is the hard cap on a single serialized packet body, including
// framing overhead measured by the length prefix.
const MaxPacketSize = 25 * 1024 * 1024

// ChunkSize is the fixed chunk size used to partition file bytes for
// transfer.
const ChunkSize = 1 * 1024 * 1024

// Packet is the sole wire unit exchanged between client and server.
type Packet struct {
	CommandCode CommandCode       `json:"commandCode"`
	UserID      string            `json:"userId"`
	Metadata    map[string]string `json:"metadata"`
	Payload     []byte            `json:"payload"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewPacket builds a packet with the current wall-clock timestamp and a
// non-nil metadata map.
func NewPacket(cmd CommandCode, userID string, metadata map[string]string, payload []byte) *Packet {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Packet{
		CommandCode: cmd,
		UserID:      userID,
		Metadata:    metadata,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// ErrorPacket builds an ERROR response packet carrying a human-readable
// message. Responses always carry success (explicit or implied by the ERROR
// command) and a message.
func ErrorPacket(userID, message string) *Packet {
	return NewPacket(Error, userID, map[string]string{
		"Success": "false",
		"Message": message,
	}, nil)
}

// Meta is a convenience accessor returning "" for an absent key.
func (p *Packet) Meta(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}

// WithMeta sets a metadata key and returns the packet for chaining.
func (p *Packet) WithMeta(key, value string) *Packet {
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	p.Metadata[key] = value
	return p
}
