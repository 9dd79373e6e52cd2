package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// WalletRepository handles persistence for wallets.
type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Upsert stores the user's wallet, replacing any previous one.
func (r *WalletRepository) Upsert(ctx context.Context, wallet types.Wallet) (types.Wallet, error) {
	wallet.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO wallets (user_id, public_key, address, sealed_phrase, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET public_key = excluded.public_key,
			address = excluded.address,
			sealed_phrase = excluded.sealed_phrase,
			created_at = excluded.created_at`
	if _, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		wallet.UserID,
		wallet.PublicKey,
		wallet.Address,
		wallet.SealedPhrase,
		wallet.CreatedAt,
	); err != nil {
		return types.Wallet{}, mapError(err)
	}
	return wallet, nil
}

func (r *WalletRepository) Get(ctx context.Context, userID uuid.UUID) (types.Wallet, error) {
	const query = `
		SELECT user_id, public_key, address, sealed_phrase, created_at
		FROM wallets
		WHERE user_id = $1`
	var wallet types.Wallet
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.PublicKey,
		&wallet.Address,
		&wallet.SealedPhrase,
		&wallet.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Wallet{}, ErrNotFound
		}
		return types.Wallet{}, err
	}
	return wallet, nil
}

// Delete removes the user's wallet. A missing wallet is not an error.
func (r *WalletRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	const query = `DELETE FROM wallets WHERE user_id = $1`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}
