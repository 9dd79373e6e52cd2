package services

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/evotar/apiserver/internal/ledger"
	"github.com/evotar/apiserver/internal/session"
	"github.com/evotar/apiserver/internal/store"
	"github.com/evotar/apiserver/internal/syslog"
	"github.com/evotar/apiserver/internal/wallet"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// WalletRepository defines persistence operations for wallets.
type WalletRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (types.Wallet, error)
	Upsert(ctx context.Context, w types.Wallet) (types.Wallet, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// LedgerRepository defines persistence operations for the ballot ledger.
type LedgerRepository interface {
	Lock(ctx context.Context, electionID uuid.UUID) error
	Last(ctx context.Context, electionID uuid.UUID) (types.LedgerEntry, error)
	Append(ctx context.Context, entry types.LedgerEntry) (types.LedgerEntry, error)
	ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.LedgerEntry, error)
}

// VoteLister lists an election's stored votes.
type VoteLister interface {
	ListByElection(ctx context.Context, electionID uuid.UUID) ([]types.Vote, error)
}

// WalletInfo is what a user sees of their wallet.
type WalletInfo struct {
	Mnemonic string `json:"mnemonic,omitempty"`
	Address  string `json:"address"`
}

// WalletService manages ballot-signing wallets and the ballot ledger.
type WalletService struct {
	tx      Transactor
	wallets WalletRepository
	ledger  LedgerRepository
	votes   VoteLister
	sealer  *wallet.Sealer
	events  EventLogger
	now     func() time.Time
}

// NewWalletService returns a service with the ledger enabled. A nil sealer
// disables it.
func NewWalletService(tx Transactor, wallets WalletRepository, ledgerRepo LedgerRepository, votes VoteLister, sealer *wallet.Sealer, events EventLogger) *WalletService {
	if tx == nil {
		tx = noopTx{}
	}
	if events == nil {
		events = noopLogger{}
	}
	return &WalletService{
		tx:      tx,
		wallets: wallets,
		ledger:  ledgerRepo,
		votes:   votes,
		sealer:  sealer,
		events:  events,
		now:     time.Now,
	}
}

// Enabled reports whether wallets and the ledger are in use.
func (s *WalletService) Enabled() bool {
	return s != nil && s.sealer != nil
}

// GenerateUserMnemonic creates the caller's wallet, replacing any previous
// one. The phrase is returned once here and afterwards only on request.
func (s *WalletService) GenerateUserMnemonic(ctx context.Context, sess session.Session) (WalletInfo, error) {
	if err := requireLogin(sess); err != nil {
		return WalletInfo{}, err
	}
	if !s.Enabled() {
		return WalletInfo{}, ErrLedgerDisabled
	}

	w, phrase, err := s.createWallet(ctx, sess.UserID)
	if err != nil {
		return WalletInfo{}, err
	}
	s.events.Log(ctx, syslog.Event{
		Action:      "Wallet Generated",
		Description: fmt.Sprintf("User %s generated a wallet", sess.Name),
		UserID:      actorID(sess),
		Metadata:    map[string]any{"address": w.Address},
	})
	return WalletInfo{Mnemonic: phrase, Address: w.Address}, nil
}

func (s *WalletService) GetUserMnemonic(ctx context.Context, sess session.Session) (WalletInfo, error) {
	if err := requireLogin(sess); err != nil {
		return WalletInfo{}, err
	}
	if !s.Enabled() {
		return WalletInfo{}, ErrLedgerDisabled
	}
	w, err := s.wallets.Get(ctx, sess.UserID)
	if err != nil {
		return WalletInfo{}, err
	}
	phrase, err := s.sealer.Open(w.SealedPhrase, w.UserID[:])
	if err != nil {
		return WalletInfo{}, fmt.Errorf("open recovery phrase: %w", err)
	}
	return WalletInfo{Mnemonic: string(phrase), Address: w.Address}, nil
}

func (s *WalletService) GetUserWalletAddress(ctx context.Context, sess session.Session) (string, error) {
	if err := requireLogin(sess); err != nil {
		return "", err
	}
	if !s.Enabled() {
		return "", ErrLedgerDisabled
	}
	w, err := s.wallets.Get(ctx, sess.UserID)
	if err != nil {
		return "", err
	}
	return w.Address, nil
}

func (s *WalletService) createWallet(ctx context.Context, userID uuid.UUID) (types.Wallet, string, error) {
	phrase, err := wallet.GenerateMnemonic()
	if err != nil {
		return types.Wallet{}, "", err
	}
	key, err := wallet.DeriveKey(phrase, userID)
	if err != nil {
		return types.Wallet{}, "", err
	}
	sealed, err := s.sealer.Seal([]byte(phrase), userID[:])
	if err != nil {
		return types.Wallet{}, "", err
	}
	pub := key.Public().(ed25519.PublicKey)
	w, err := s.wallets.Upsert(ctx, types.Wallet{
		UserID:       userID,
		PublicKey:    pub,
		Address:      wallet.Address(pub),
		SealedPhrase: sealed,
	})
	if err != nil {
		return types.Wallet{}, "", err
	}
	return w, phrase, nil
}

// signingKey unseals the user's phrase and derives their key, creating a
// wallet first when the user has none.
func (s *WalletService) signingKey(ctx context.Context, userID uuid.UUID) (ed25519.PrivateKey, error) {
	w, err := s.wallets.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		_, phrase, err := s.createWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		return wallet.DeriveKey(phrase, userID)
	}
	if err != nil {
		return nil, err
	}
	phrase, err := s.sealer.Open(w.SealedPhrase, userID[:])
	if err != nil {
		return nil, fmt.Errorf("open recovery phrase: %w", err)
	}
	return wallet.DeriveKey(string(phrase), userID)
}

// AppendVotes signs the votes with the voter's key and chains them onto the
// election's ledger. Callers run it in the transaction that stores the votes.
func (s *WalletService) AppendVotes(ctx context.Context, userID uuid.UUID, votes []types.Vote) error {
	if !s.Enabled() || len(votes) == 0 {
		return nil
	}
	key, err := s.signingKey(ctx, userID)
	if err != nil {
		return err
	}

	electionID := votes[0].ElectionID
	if err := s.ledger.Lock(ctx, electionID); err != nil {
		return err
	}
	prev := ledger.GenesisHash
	last, err := s.ledger.Last(ctx, electionID)
	switch {
	case err == nil:
		prev = last.EntryHash
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	now := s.now().UTC()
	for _, vote := range votes {
		entry, err := s.ledger.Append(ctx, ledger.NewEntry(prev, vote, key, now))
		if err != nil {
			return err
		}
		prev = entry.EntryHash
	}
	return nil
}

// VerifyChain recomputes the election's ledger from its stored votes.
func (s *WalletService) VerifyChain(ctx context.Context, actor session.Session, electionID uuid.UUID) (ledger.Report, error) {
	if err := requireStaff(actor); err != nil {
		return ledger.Report{}, err
	}
	if !s.Enabled() {
		return ledger.Report{}, ErrLedgerDisabled
	}

	var (
		entries []types.LedgerEntry
		votes   []types.Vote
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if entries, err = s.ledger.ListByElection(ctx, electionID); err != nil {
			return err
		}
		votes, err = s.votes.ListByElection(ctx, electionID)
		return err
	})
	if err != nil {
		return ledger.Report{}, err
	}

	report := ledger.Verify(electionID, entries, votes)
	if !report.Valid {
		s.events.Log(ctx, syslog.Event{
			Action:      "Ledger Verification Failed",
			Description: report.Reason,
			UserID:      actorID(actor),
			Metadata:    map[string]any{"electionId": electionID.String(), "brokenAt": report.BrokenAt},
		})
	}
	return report, nil
}
