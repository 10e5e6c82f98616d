package auth

import "github.com/deb2000-sudo/cloudvault/pkg/model"

// UserRepository is the collaborator interface consumed by the session state
// machine and account-creation handler. Implementations surface storage
// failures as plain errors; the caller maps them onto the AuthenticationError
// taxonomy.
type UserRepository interface {
	GetByID(id string) (*model.User, error)
	GetByUsername(username string) (*model.User, error)
	Add(u *model.User) error
	Update(u *model.User) error
	// ValidateCredentials looks up username (case-insensitive) and verifies
	// password against the stored salted hash. Returns ErrInvalidCredential
	// for either an unknown username or a wrong password -- the caller must
	// not be able to distinguish the two from the error alone.
	ValidateCredentials(username, password string) (*model.User, error)
	// CreateUser hashes password and persists a new User with role. Returns
	// ErrUsernameTaken if username (case-insensitive) already exists.
	CreateUser(username, password, email string, role model.Role) (*model.User, error)
}
