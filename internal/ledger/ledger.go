// Package ledger builds and verifies the per-election ballot chain. Every
// stored vote gets one entry whose hash covers the previous entry, so any
// edit, deletion or reordering of votes breaks the chain.
package ledger

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/evotar/apiserver/internal/ids"
	"github.com/evotar/apiserver/internal/wallet"
	"github.com/evotar/apiserver/types"
	"github.com/google/uuid"
)

// GenesisHash is the prev hash of the first entry in every chain.
var GenesisHash = make([]byte, sha256.Size)

// PayloadHash commits to the ballot choice itself.
func PayloadHash(vote types.Vote) []byte {
	buf := make([]byte, 0, 16+4+16+16)
	buf = append(buf, vote.ElectionID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(vote.PositionID))
	buf = append(buf, vote.CandidateID[:]...)
	buf = append(buf, vote.UserID[:]...)
	sum := sha256.Sum256(buf)
	return sum[:]
}

// EntryHash is sha256(prev || election || vote || payload || address).
func EntryHash(prev []byte, electionID, voteID uuid.UUID, payloadHash []byte, voterAddress string) []byte {
	h := sha256.New()
	h.Write(prev)
	h.Write(electionID[:])
	h.Write(voteID[:])
	h.Write(payloadHash)
	h.Write([]byte(voterAddress))
	return h.Sum(nil)
}

// NewEntry builds and signs the entry that appends vote after prev.
func NewEntry(prev []byte, vote types.Vote, key ed25519.PrivateKey, now time.Time) types.LedgerEntry {
	if len(prev) == 0 {
		prev = GenesisHash
	}
	pub := key.Public().(ed25519.PublicKey)
	address := wallet.Address(pub)
	payload := PayloadHash(vote)
	entryHash := EntryHash(prev, vote.ElectionID, vote.ID, payload, address)

	return types.LedgerEntry{
		ID:           ids.NewAt(now),
		ElectionID:   vote.ElectionID,
		VoteID:       vote.ID,
		VoterAddress: address,
		PayloadHash:  payload,
		PrevHash:     append([]byte(nil), prev...),
		EntryHash:    entryHash,
		Signature:    ed25519.Sign(key, entryHash),
		PublicKey:    append([]byte(nil), pub...),
		CreatedAt:    now,
	}
}

// Report is the outcome of walking a chain.
type Report struct {
	ElectionID uuid.UUID `json:"election_id"`
	Entries    int       `json:"entries"`
	Votes      int       `json:"votes"`
	Valid      bool      `json:"valid"`
	BrokenAt   int64     `json:"broken_at,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Verify walks entries in append order, recomputing every hash from the
// stored vote rows and checking every signature. Votes without an entry and
// entries without a vote both invalidate the chain.
func Verify(electionID uuid.UUID, entries []types.LedgerEntry, votes []types.Vote) Report {
	report := Report{ElectionID: electionID, Entries: len(entries), Votes: len(votes), Valid: true}
	fail := func(seq int64, format string, args ...any) Report {
		report.Valid = false
		report.BrokenAt = seq
		report.Reason = fmt.Sprintf(format, args...)
		return report
	}

	byID := make(map[uuid.UUID]types.Vote, len(votes))
	for _, v := range votes {
		byID[v.ID] = v
	}

	prev := GenesisHash
	seen := make(map[uuid.UUID]struct{}, len(entries))
	for _, entry := range entries {
		if entry.ElectionID != electionID {
			return fail(entry.Seq, "entry belongs to election %s", entry.ElectionID)
		}
		if !bytes.Equal(entry.PrevHash, prev) {
			return fail(entry.Seq, "prev hash does not link to previous entry")
		}
		vote, ok := byID[entry.VoteID]
		if !ok {
			return fail(entry.Seq, "vote %s is missing", entry.VoteID)
		}
		if _, dup := seen[entry.VoteID]; dup {
			return fail(entry.Seq, "vote %s appears twice", entry.VoteID)
		}
		seen[entry.VoteID] = struct{}{}

		payload := PayloadHash(vote)
		if !bytes.Equal(payload, entry.PayloadHash) {
			return fail(entry.Seq, "vote %s was modified", entry.VoteID)
		}
		if len(entry.PublicKey) != ed25519.PublicKeySize {
			return fail(entry.Seq, "public key has wrong size")
		}
		pub := ed25519.PublicKey(entry.PublicKey)
		if wallet.Address(pub) != entry.VoterAddress {
			return fail(entry.Seq, "voter address does not match public key")
		}
		entryHash := EntryHash(prev, entry.ElectionID, entry.VoteID, payload, entry.VoterAddress)
		if !bytes.Equal(entryHash, entry.EntryHash) {
			return fail(entry.Seq, "entry hash mismatch")
		}
		if !ed25519.Verify(pub, entryHash, entry.Signature) {
			return fail(entry.Seq, "signature is invalid")
		}
		prev = entry.EntryHash
	}

	if len(seen) != len(votes) {
		return fail(0, "%d votes have no ledger entry", len(votes)-len(seen))
	}
	return report
}
