package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

const ledgerColumns = `seq, id, election_id, vote_id, voter_address, payload_hash, prev_hash, entry_hash,
		signature, public_key, created_at`

// LedgerRepository handles persistence for the ballot ledger.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Lock serializes appends to one election's chain until the surrounding
// transaction ends.
func (r *LedgerRepository) Lock(ctx context.Context, electionID uuid.UUID) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, electionID.String())
	return err
}

// Last returns the most recent entry of the election's chain.
func (r *LedgerRepository) Last(ctx context.Context, electionID uuid.UUID) (types.LedgerEntry, error) {
	const query = `
		SELECT ` + ledgerColumns + `
		FROM ballot_ledger
		WHERE election_id = $1
		ORDER BY seq DESC
		LIMIT 1`
	entry, err := scanLedgerEntry(conn(ctx, r.db).QueryRowContext(ctx, query, electionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.LedgerEntry{}, ErrNotFound
		}
		return types.LedgerEntry{}, err
	}
	return entry, nil
}

func (r *LedgerRepository) Append(ctx context.Context, entry types.LedgerEntry) (types.LedgerEntry, error) {
	const query = `
		INSERT INTO ballot_ledger (id, election_id, vote_id, voter_address, payload_hash, prev_hash,
			entry_hash, signature, public_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`
	if err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		entry.ID,
		entry.ElectionID,
		entry.VoteID,
		entry.VoterAddress,
		entry.PayloadHash,
		entry.PrevHash,
		entry.EntryHash,
		entry.Signature,
		entry.PublicKey,
		entry.CreatedAt,
	).Scan(&entry.Seq); err != nil {
		return types.LedgerEntry{}, mapError(err)
	}
	return entry, nil
}

// ListByElection returns the chain in append order.
func (r *LedgerRepository) ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.LedgerEntry, error) {
	const query = `
		SELECT ` + ledgerColumns + `
		FROM ballot_ledger
		WHERE election_id = $1
		ORDER BY seq`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.LedgerEntry{}
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanLedgerEntry(row rowScanner) (types.LedgerEntry, error) {
	var entry types.LedgerEntry
	err := row.Scan(
		&entry.Seq,
		&entry.ID,
		&entry.ElectionID,
		&entry.VoteID,
		&entry.VoterAddress,
		&entry.PayloadHash,
		&entry.PrevHash,
		&entry.EntryHash,
		&entry.Signature,
		&entry.PublicKey,
		&entry.CreatedAt,
	)
	return entry, err
}
