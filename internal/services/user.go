package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// VoterEmailDomain is used for accounts provisioned without an email.
const VoterEmailDomain = "students.evotar.local"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByStudentID(ctx context.Context, studentID string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, role string, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	References(ctx context.Context, id uuid.UUID) (store.UserReferences, error)
}

// LogDetacher clears user references from system logs.
type LogDetacher interface {
	DetachUser(ctx context.Context, userID uuid.UUID) error
}

// WalletRemover deletes a user's wallet.
type WalletRemover interface {
	Delete(ctx context.Context, userID uuid.UUID) error
}

// UserInput is the payload for creating a user.
type UserInput struct {
	StudentID    string `json:"student_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DepartmentID *int   `json:"department_id"`
}

// UserPatch lists the fields an admin may change. Nil fields are left alone.
type UserPatch struct {
	StudentID    *string `json:"student_id"`
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Password     *string `json:"password"`
	Role         *string `json:"role"`
	DepartmentID *int    `json:"department_id"`
}

// UserService encapsulates user use-cases.
type UserService struct {
	tx      Transactor
	repo    UserRepository
	logs    LogDetacher
	wallets WalletRemover
	events  EventLogger
}

func NewUserService(tx Transactor, repo UserRepository, logs LogDetacher, wallets WalletRemover, events EventLogger) *UserService {
	if tx == nil {
		tx = noopTx{}
	}
	if events == nil {
		events = noopLogger{}
	}
	return &UserService{tx: tx, repo: repo, logs: logs, wallets: wallets, events: events}
}

func (s *UserService) GetUser(ctx context.Context, actor session.Session, id uuid.UUID) (types.User, error) {
	if err := requireLogin(actor); err != nil {
		return types.User{}, err
	}
	if actor.UserID != id && !actor.IsStaff() {
		return types.User{}, ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context, actor session.Session, role string, offset, limit int) ([]types.User, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}
	if role != "" && !types.ValidRole(role) {
		return nil, 0, invalid("role", "role must be one of voter, staff or admin")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, role, offset, limit)
}

// CreateUser adds an account on behalf of an admin.
func (s *UserService) CreateUser(ctx context.Context, actor session.Session, in UserInput) (types.User, error) {
	if err := requireAdmin(actor); err != nil {
		return types.User{}, err
	}
	if in.Role == "" {
		in.Role = types.RoleVoter
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return types.User{}, err
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "User Created",
		Description: fmt.Sprintf("User %s (%s) was created", user.Name, user.StudentID),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"userId": user.ID.String(), "role": user.Role},
	})
	return user, nil
}

// Register creates a voter account for self-registration.
func (s *UserService) Register(ctx context.Context, in UserInput) (types.User, error) {
	in.Role = types.RoleVoter
	user, err := s.create(ctx, in)
	if err != nil {
		return types.User{}, err
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "User Registered",
		Description: fmt.Sprintf("User %s (%s) registered", user.Name, user.StudentID),
		UserID:      &user.ID,
	})
	return user, nil
}

func (s *UserService) create(ctx context.Context, in UserInput) (types.User, error) {
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	switch {
	case in.StudentID == "":
		return types.User{}, required("student_id")
	case in.Name == "":
		return types.User{}, required("name")
	case in.Email == "":
		return types.User{}, required("email")
	case in.Password == "":
		return types.User{}, required("password")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return types.User{}, invalid("email", "email is invalid")
	}
	if !types.ValidRole(in.Role) {
		return types.User{}, invalid("role", "role must be one of voter, staff or admin")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	var created types.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureUnique(ctx, uuid.Nil, in.StudentID, in.Email); err != nil {
			return err
		}
		user, err := s.repo.Create(ctx, types.User{
			StudentID:    in.StudentID,
			Name:         in.Name,
			Email:        in.Email,
			Role:         in.Role,
			DepartmentID: in.DepartmentID,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		created = user
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, ErrUserExists
	}
	return created, err
}

// ensureUnique rejects a student id or email held by a user other than self.
// The unique indexes close the race between this check and the write.
func (s *UserService) ensureUnique(ctx context.Context, self uuid.UUID, studentID, email string) error {
	if studentID != "" {
		existing, err := s.repo.GetByStudentID(ctx, studentID)
		if err == nil && existing.ID != self {
			return ErrUserExists
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if email != "" {
		existing, err := s.repo.GetByEmail(ctx, email)
		if err == nil && existing.ID != self {
			return ErrUserExists
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *UserService) UpdateUser(ctx context.Context, actor session.Session, id uuid.UUID, patch UserPatch) (types.User, error) {
	if err := requireAdmin(actor); err != nil {
		return types.User{}, err
	}

	var updated types.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := applyUserPatch(&user, patch); err != nil {
			return err
		}
		if err := s.ensureUnique(ctx, user.ID, user.StudentID, user.Email); err != nil {
			return err
		}
		updated, err = s.repo.Update(ctx, user)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, ErrUserExists
	}
	if err != nil {
		return types.User{}, err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "User Updated",
		Description: fmt.Sprintf("User %s (%s) was updated", updated.Name, updated.StudentID),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"userId": updated.ID.String()},
	})
	return updated, nil
}

func applyUserPatch(user *types.User, patch UserPatch) error {
	if patch.StudentID != nil {
		v := strings.TrimSpace(*patch.StudentID)
		if v == "" {
			return required("student_id")
		}
		user.StudentID = v
	}
	if patch.Name != nil {
		v := strings.TrimSpace(*patch.Name)
		if v == "" {
			return required("name")
		}
		user.Name = v
	}
	if patch.Email != nil {
		v := strings.TrimSpace(*patch.Email)
		if _, err := mail.ParseAddress(v); err != nil {
			return invalid("email", "email is invalid")
		}
		user.Email = v
	}
	if patch.Role != nil {
		if !types.ValidRole(*patch.Role) {
			return invalid("role", "role must be one of voter, staff or admin")
		}
		user.Role = *patch.Role
	}
	if patch.DepartmentID != nil {
		if *patch.DepartmentID <= 0 {
			user.DepartmentID = nil
		} else {
			dept := *patch.DepartmentID
			user.DepartmentID = &dept
		}
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	return nil
}

// DeleteUser removes an unreferenced account. Log history is kept with the
// user reference cleared.
func (s *UserService) DeleteUser(ctx context.Context, actor session.Session, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var deleted types.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		refs, err := s.repo.References(ctx, id)
		if err != nil {
			return err
		}
		if refs.Any() {
			return ErrReferenced
		}
		if err := s.logs.DetachUser(ctx, id); err != nil {
			return err
		}
		if s.wallets != nil {
			if err := s.wallets.Delete(ctx, id); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		deleted = user
		return nil
	})
	if err != nil {
		return err
	}

	s.events.Log(ctx, syslog.Event{
		Action:      "User Deleted",
		Description: fmt.Sprintf("User %s (%s) was deleted", deleted.Name, deleted.StudentID),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"userId": deleted.ID.String()},
	})
	return nil
}

// EnsureVoterAccount returns the user holding studentID, creating a voter
// account for it when none exists.
func (s *UserService) EnsureVoterAccount(ctx context.Context, actor session.Session, studentID, name string, departmentID *int) (types.User, bool, error) {
	if err := requireStaff(actor); err != nil {
		return types.User{}, false, err
	}

	var (
		user    types.User
		created bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, created, err = s.ensureVoterAccount(ctx, studentID, name, departmentID)
		return err
	})
	if err != nil {
		return types.User{}, false, err
	}
	if created {
		s.logProvisioned(ctx, actor, user)
	}
	return user, created, nil
}

func (s *UserService) ensureVoterAccount(ctx context.Context, studentID, name string, departmentID *int) (types.User, bool, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if studentID == "" {
		return types.User{}, false, required("student_id")
	}

	existing, err := s.repo.GetByStudentID(ctx, studentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, err
	}
	if name == "" {
		return types.User{}, false, required("name")
	}

	password, err := randomPassword()
	if err != nil {
		return types.User{}, false, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return types.User{}, false, err
	}
	user, err := s.repo.Create(ctx, types.User{
		StudentID:    studentID,
		Name:         name,
		Email:        VoterEmail(studentID),
		Role:         types.RoleVoter,
		DepartmentID: departmentID,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, false, ErrUserExists
	}
	if err != nil {
		return types.User{}, false, err
	}
	return user, true, nil
}

func (s *UserService) logProvisioned(ctx context.Context, actor session.Session, user types.User) {
	s.events.Log(ctx, syslog.Event{
		Action:      "Voter Account Provisioned",
		Description: fmt.Sprintf("Voter account %s (%s) was created automatically", user.Name, user.StudentID),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"userId": user.ID.String(), "studentId": user.StudentID},
	})
}

// VoterEmail synthesizes the address of a provisioned voter account.
func VoterEmail(studentID string) string {
	local := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, studentID)
	return local + "@" + VoterEmailDomain
}
