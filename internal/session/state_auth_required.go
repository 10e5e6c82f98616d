package session

import (
	"encoding/json"

	"github.com/deb2000-sudo/cloudvault/internal/auth"
	"github.com/deb2000-sudo/cloudvault/internal/logging"
	"github.com/deb2000-sudo/cloudvault/internal/protocol"
	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

const authRequiredStateName = "AuthRequired"

type authRequiredState struct{}

func (authRequiredState) Name() string       { return authRequiredStateName }
func (authRequiredState) OnEnter(s *Session) {}
func (authRequiredState) OnExit(s *Session)  {}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (authRequiredState) Handle(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	switch p.CommandCode {
	case protocol.LoginRequest:
		return handleLogin(s, p)
	case protocol.CreateAccountRequest:
		return handleCreateAccount(s, p)
	default:
		return protocol.ErrorPacket(p.UserID, "Authentication required"), nil
	}
}

func handleLogin(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	var req loginRequest
	if err := json.Unmarshal(p.Payload, &req); err != nil {
		return protocol.ErrorPacket(p.UserID, "malformed LOGIN_REQUEST payload"), nil
	}

	if req.Username == "" || req.Password == "" {
		// Empty credentials fail immediately without counting against the
		// 5-attempt lockout -- see SPEC_FULL.md section 9, Open Question 2.
		return protocol.ErrorPacket(p.UserID, "username and password are required"), nil
	}

	user, err := s.deps.Users.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		return recordFailedLogin(s, p.UserID)
	}

	s.mu.Lock()
	s.userID = user.ID
	s.failedLoginAttempts = 0
	s.mu.Unlock()

	resp := protocol.NewPacket(protocol.LoginResponse, user.ID, map[string]string{
		"Success": "true",
		"Message": "login successful",
		"UserId":  user.ID,
	}, nil)
	return resp, authenticatedState{}
}

func recordFailedLogin(s *Session, userID string) (*protocol.Packet, State) {
	s.mu.Lock()
	s.failedLoginAttempts++
	attempts := s.failedLoginAttempts
	s.mu.Unlock()

	resp := protocol.ErrorPacket(userID, "invalid username or password")
	if attempts >= maxFailedLogins {
		s.deps.Log.Warn("session locked out after repeated failed logins",
			logging.String("sessionId", s.ID), logging.Int("attempts", attempts))
		return resp, disconnectingState{}
	}
	return resp, nil
}

func handleCreateAccount(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	var req createAccountRequest
	if err := json.Unmarshal(p.Payload, &req); err != nil || req.Username == "" || req.Password == "" {
		return protocol.ErrorPacket(p.UserID, "malformed CREATE_ACCOUNT_REQUEST payload"), nil
	}

	user, err := s.deps.Users.CreateUser(req.Username, req.Password, req.Email, model.RoleUser)
	if err == auth.ErrUsernameTaken {
		return protocol.ErrorPacket(p.UserID, "username already exists"), nil
	}
	if err != nil {
		s.deps.Log.Error("account creation failed", logging.Err(err))
		return protocol.ErrorPacket(p.UserID, "failed to create account"), nil
	}

	// No auto-login: the session stays in AuthRequired per spec.md section 4.3.
	resp := protocol.NewPacket(protocol.CreateAccountResponse, user.ID, map[string]string{
		"Success": "true",
		"Message": "account created",
		"UserId":  user.ID,
	}, nil)
	return resp, nil
}
