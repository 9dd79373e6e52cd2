package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/evotar/apiserver/types"
)

// LookupRepository handles departments, election types and positions.
type LookupRepository struct {
	db *sql.DB
}

func NewLookupRepository(db *sql.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

func (r *LookupRepository) ListDepartments(ctx context.Context) ([]types.Department, error) {
	const query = `SELECT id, name FROM departments ORDER BY name, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	departments := []types.Department{}
	for rows.Next() {
		var d types.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

func (r *LookupRepository) CreateDepartment(ctx context.Context, name string) (types.Department, error) {
	const query = `INSERT INTO departments (name) VALUES ($1) RETURNING id`
	d := types.Department{Name: name}
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, name).Scan(&d.ID); err != nil {
		return types.Department{}, mapError(err)
	}
	return d, nil
}

func (r *LookupRepository) GetElectionType(ctx context.Context, id int) (types.ElectionType, error) {
	const query = `SELECT id, name, strategy FROM election_types WHERE id = $1`
	var et types.ElectionType
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&et.ID, &et.Name, &et.Strategy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ElectionType{}, ErrNotFound
		}
		return types.ElectionType{}, err
	}

	positions, err := r.ListPositions(ctx, id)
	if err != nil {
		return types.ElectionType{}, err
	}
	et.Positions = positions
	return et, nil
}

func (r *LookupRepository) ListElectionTypes(ctx context.Context) ([]types.ElectionType, error) {
	const query = `SELECT id, name, strategy FROM election_types ORDER BY name, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	electionTypes := []types.ElectionType{}
	for rows.Next() {
		var et types.ElectionType
		if err := rows.Scan(&et.ID, &et.Name, &et.Strategy); err != nil {
			return nil, err
		}
		electionTypes = append(electionTypes, et)
	}
	return electionTypes, rows.Err()
}

func (r *LookupRepository) CreateElectionType(ctx context.Context, et types.ElectionType) (types.ElectionType, error) {
	const query = `INSERT INTO election_types (name, strategy) VALUES ($1, $2) RETURNING id`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, et.Name, et.Strategy).Scan(&et.ID); err != nil {
		return types.ElectionType{}, mapError(err)
	}
	return et, nil
}

func (r *LookupRepository) ListPositions(ctx context.Context, electionTypeID int) ([]types.Position, error) {
	const query = `
		SELECT id, election_type_id, name, display_order
		FROM positions
		WHERE election_type_id = $1
		ORDER BY display_order, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, electionTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []types.Position{}
	for rows.Next() {
		var p types.Position
		if err := rows.Scan(&p.ID, &p.ElectionTypeID, &p.Name, &p.DisplayOrder); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *LookupRepository) GetPosition(ctx context.Context, id int) (types.Position, error) {
	const query = `SELECT id, election_type_id, name, display_order FROM positions WHERE id = $1`
	var p types.Position
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&p.ID, &p.ElectionTypeID, &p.Name, &p.DisplayOrder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Position{}, ErrNotFound
		}
		return types.Position{}, err
	}
	return p, nil
}

func (r *LookupRepository) CreatePosition(ctx context.Context, p types.Position) (types.Position, error) {
	const query = `
		INSERT INTO positions (election_type_id, name, display_order)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, p.ElectionTypeID, p.Name, p.DisplayOrder).Scan(&p.ID); err != nil {
		return types.Position{}, mapError(err)
	}
	return p, nil
}
