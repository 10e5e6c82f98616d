// Package model defines the data types shared across the storage, auth and
// protocol layers: users, files and directories.
package model

import "time"

// Role is the authorization level of a User.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// User is a registered account. PasswordHash is PBKDF2-HMAC-SHA256 of the
// password under PasswordSalt, base64-encoded; the cleartext password is
// never stored.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash"`
	PasswordSalt string     `json:"passwordSalt"` // base64-encoded, 16 random bytes
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// FileMetadata describes one uploaded (or in-progress) file.
type FileMetadata struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	ContentType string    `json:"contentType"`
	DirectoryID *string   `json:"directoryId,omitempty"`
	IsComplete  bool      `json:"isComplete"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DirectoryMetadata describes one directory in a user's per-user forest.
// ParentDirectoryID == nil means this is the user's root.
type DirectoryMetadata struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	ParentDirectoryID *string   `json:"parentDirectoryId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	IsRoot            bool      `json:"isRoot"`
}
