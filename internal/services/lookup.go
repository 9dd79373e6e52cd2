package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/types"
)

// LookupRepository defines persistence operations for lookup tables.
type LookupRepository interface {
	ListDepartments(ctx context.Context) ([]types.Department, error)
	CreateDepartment(ctx context.Context, name string) (types.Department, error)
	GetElectionType(ctx context.Context, id int) (types.ElectionType, error)
	ListElectionTypes(ctx context.Context) ([]types.ElectionType, error)
	CreateElectionType(ctx context.Context, et types.ElectionType) (types.ElectionType, error)
	ListPositions(ctx context.Context, electionTypeID int) ([]types.Position, error)
	GetPosition(ctx context.Context, id int) (types.Position, error)
	CreatePosition(ctx context.Context, p types.Position) (types.Position, error)
}

// LookupService serves departments, election types and positions.
type LookupService struct {
	repo   LookupRepository
	events EventLogger
}

func NewLookupService(repo LookupRepository, events EventLogger) *LookupService {
	if events == nil {
		events = noopLogger{}
	}
	return &LookupService{repo: repo, events: events}
}

func (s *LookupService) ListDepartments(ctx context.Context) ([]types.Department, error) {
	return s.repo.ListDepartments(ctx)
}

func (s *LookupService) CreateDepartment(ctx context.Context, actor session.Session, name string) (types.Department, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Department{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Department{}, required("name")
	}
	d, err := s.repo.CreateDepartment(ctx, name)
	if errors.Is(err, store.ErrConflict) {
		return types.Department{}, invalid("name", "department %q already exists", name)
	}
	if err != nil {
		return types.Department{}, err
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "Department Created",
		Description: fmt.Sprintf("Department %q was created", d.Name),
		UserID:      actorID(actor),
	})
	return d, nil
}

// ListElectionTypes returns every election type with its positions.
func (s *LookupService) ListElectionTypes(ctx context.Context) ([]types.ElectionType, error) {
	electionTypes, err := s.repo.ListElectionTypes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range electionTypes {
		positions, err := s.repo.ListPositions(ctx, electionTypes[i].ID)
		if err != nil {
			return nil, err
		}
		electionTypes[i].Positions = positions
	}
	return electionTypes, nil
}

func (s *LookupService) GetElectionType(ctx context.Context, id int) (types.ElectionType, error) {
	return s.repo.GetElectionType(ctx, id)
}

func (s *LookupService) CreateElectionType(ctx context.Context, actor session.Session, in types.ElectionType) (types.ElectionType, error) {
	if err := requireAdmin(actor); err != nil {
		return types.ElectionType{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return types.ElectionType{}, required("name")
	}
	if in.Strategy == "" {
		in.Strategy = types.StrategyStandard
	}
	if in.Strategy != types.StrategyStandard && in.Strategy != types.StrategyExecutive {
		return types.ElectionType{}, invalid("strategy", "strategy must be standard or executive")
	}
	et, err := s.repo.CreateElectionType(ctx, types.ElectionType{Name: in.Name, Strategy: in.Strategy})
	if errors.Is(err, store.ErrConflict) {
		return types.ElectionType{}, invalid("name", "election type %q already exists", in.Name)
	}
	if err != nil {
		return types.ElectionType{}, err
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "Election Type Created",
		Description: fmt.Sprintf("Election type %q (%s) was created", et.Name, et.Strategy),
		UserID:      actorID(actor),
	})
	return et, nil
}

func (s *LookupService) CreatePosition(ctx context.Context, actor session.Session, in types.Position) (types.Position, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Position{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return types.Position{}, required("name")
	}
	if in.ElectionTypeID <= 0 {
		return types.Position{}, required("election_type_id")
	}
	if _, err := s.repo.GetElectionType(ctx, in.ElectionTypeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Position{}, invalid("election_type_id", "election type does not exist")
		}
		return types.Position{}, err
	}
	p, err := s.repo.CreatePosition(ctx, in)
	if err != nil {
		return types.Position{}, err
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "Position Created",
		Description: fmt.Sprintf("Position %q was added", p.Name),
		UserID:      actorID(actor),
		Metadata:    map[string]any{"electionTypeId": p.ElectionTypeID},
	})
	return p, nil
}
