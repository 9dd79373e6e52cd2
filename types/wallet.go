package types

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's ballot-signing identity. The recovery phrase is
// stored sealed; only the owner can reveal it.
type Wallet struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	PublicKey    []byte    `json:"-" db:"public_key"`
	Address      string    `json:"address" db:"address"`
	SealedPhrase []byte    `json:"-" db:"sealed_phrase"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// LedgerEntry is one link of an election's hash-chained ballot ledger.
type LedgerEntry struct {
	Seq          int64     `json:"seq" db:"seq"`
	ID           string    `json:"id" db:"id"`
	ElectionID   uuid.UUID `json:"election_id" db:"election_id"`
	VoteID       uuid.UUID `json:"vote_id" db:"vote_id"`
	VoterAddress string    `json:"voter_address" db:"voter_address"`
	PayloadHash  []byte    `json:"payload_hash" db:"payload_hash"`
	PrevHash     []byte    `json:"prev_hash" db:"prev_hash"`
	EntryHash    []byte    `json:"entry_hash" db:"entry_hash"`
	Signature    []byte    `json:"signature" db:"signature"`
	PublicKey    []byte    `json:"public_key" db:"public_key"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
