package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// CredentialStore looks users up for login.
type CredentialStore interface {
	GetByStudentID(ctx context.Context, studentID string) (types.User, error)
}

// WalletReader returns a user's wallet.
type WalletReader interface {
	Get(ctx context.Context, userID uuid.UUID) (types.Wallet, error)
}

// AuthService validates credentials and builds sessions.
type AuthService struct {
	users   CredentialStore
	wallets WalletReader
	events  EventLogger
}

func NewAuthService(users CredentialStore, wallets WalletReader, events EventLogger) *AuthService {
	if events == nil {
		events = noopLogger{}
	}
	return &AuthService{users: users, wallets: wallets, events: events}
}

// Login returns the session for valid credentials. Every failure, including
// lookup errors, is reported as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, studentID, password string) (session.Session, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return session.Session{}, required("student_id")
	}
	if password == "" {
		return session.Session{}, required("password")
	}

	user, err := s.users.GetByStudentID(ctx, studentID)
	if err != nil {
		rejectPassword(password)
		return session.Session{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return session.Session{}, ErrInvalidCredentials
	}

	address := ""
	if s.wallets != nil {
		if w, err := s.wallets.Get(ctx, user.ID); err == nil {
			address = w.Address
		}
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "User Login",
		Description: fmt.Sprintf("User %s logged in", user.Name),
		UserID:      &user.ID,
		Metadata:    map[string]any{"role": user.Role},
	})
	return session.ForUser(user, address), nil
}

// Logout records the logout of a signed-in user.
func (s *AuthService) Logout(ctx context.Context, sess session.Session) {
	if !sess.IsLoggedIn {
		return
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "User Logout",
		Description: fmt.Sprintf("User %s logged out", sess.Name),
		UserID:      actorID(sess),
	})
}
