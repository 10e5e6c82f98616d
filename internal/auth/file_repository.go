package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

// FileUserRepository is the default UserRepository: an in-memory map guarded
// by one RWMutex, persisted as a single JSON file via a temp-file-then-rename
// write -- the same pattern as the teacher's SessionManager.saveLocked, here
// applied to the user store instead of transfer sessions. Disk I/O happens
// with the mutex held for the in-memory mutation but the encode+rename is
// done from a snapshot so a slow disk never blocks readers for longer than
// the copy.
type FileUserRepository struct {
	mu    sync.RWMutex
	path  string
	byID  map[string]*model.User
	byLCU map[string]string // lowercased username -> id
}

// NewFileUserRepository loads path (if present) and returns a ready
// repository. path's parent directory is created if missing.
func NewFileUserRepository(path string) (*FileUserRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("auth: create users dir: %w", err)
	}
	r := &FileUserRepository{
		path:  path,
		byID:  make(map[string]*model.User),
		byLCU: make(map[string]string),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileUserRepository) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: read users file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var users []*model.User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("auth: decode users file: %w", err)
	}
	for _, u := range users {
		r.byID[u.ID] = u
		r.byLCU[strings.ToLower(u.Username)] = u.ID
	}
	return nil
}

// snapshotLocked must be called with r.mu held (read or write); it copies the
// user list so persist can encode it and do the atomic rename without the lock.
func (r *FileUserRepository) snapshotLocked() []*model.User {
	out := make([]*model.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	return out
}

func (r *FileUserRepository) persist(users []*model.User) error {
	tmp := r.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auth: open temp users file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(users); err != nil {
		f.Close()
		return fmt.Errorf("auth: encode users file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("auth: close temp users file: %w", err)
	}
	return os.Rename(tmp, r.path)
}

func (r *FileUserRepository) GetByID(id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *FileUserRepository) GetByUsername(username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLCU[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *FileUserRepository) Add(u *model.User) error {
	r.mu.Lock()
	if _, exists := r.byLCU[strings.ToLower(u.Username)]; exists {
		r.mu.Unlock()
		return ErrUsernameTaken
	}
	r.byID[u.ID] = u
	r.byLCU[strings.ToLower(u.Username)] = u.ID
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	return r.persist(snapshot)
}

func (r *FileUserRepository) Update(u *model.User) error {
	r.mu.Lock()
	if _, ok := r.byID[u.ID]; !ok {
		r.mu.Unlock()
		return ErrUserNotFound
	}
	r.byID[u.ID] = u
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	return r.persist(snapshot)
}

// ValidateCredentials never increments any lockout counter -- lockout is
// per-session state tracked by internal/session, not per-user, so that a
// distributed brute force across many accounts is not penalized here.
func (r *FileUserRepository) ValidateCredentials(username, password string) (*model.User, error) {
	u, err := r.GetByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if !VerifyPassword(password, u.PasswordSalt, u.PasswordHash) {
		return nil, ErrInvalidCredential
	}
	now := time.Now()
	u.LastLoginAt = &now
	if err := r.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *FileUserRepository) CreateUser(username, password, email string, role model.Role) (*model.User, error) {
	salt, hash, err := NewCredential(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := r.Add(u); err != nil {
		return nil, err
	}
	clone := *u
	return &clone, nil
}
