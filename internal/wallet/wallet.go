// Package wallet manages ballot-signing identities: a recovery phrase, the
// ed25519 key derived from it, and the public address voters see.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// PhraseWords is the number of words in a recovery phrase.
const PhraseWords = 12

const (
	kdfTime    = 2
	kdfMemory  = 19 * 1024
	kdfThreads = 1
)

var (
	ErrInvalidPhrase = errors.New("invalid recovery phrase")
	ErrInvalidKey    = errors.New("wallet encryption key must be 32 bytes")
)

var wordIndex = func() map[string]struct{} {
	index := make(map[string]struct{}, len(words))
	for _, w := range words {
		index[w] = struct{}{}
	}
	return index
}()

// GenerateMnemonic returns a new random recovery phrase.
func GenerateMnemonic() (string, error) {
	var buf [PhraseWords]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	picked := make([]string, PhraseWords)
	for i, b := range buf {
		picked[i] = words[b]
	}
	return strings.Join(picked, " "), nil
}

// NormalizeMnemonic lower-cases the phrase, collapses whitespace and checks
// every word against the vocabulary.
func NormalizeMnemonic(phrase string) (string, error) {
	fields := strings.Fields(strings.ToLower(phrase))
	if len(fields) != PhraseWords {
		return "", ErrInvalidPhrase
	}
	for _, f := range fields {
		if _, ok := wordIndex[f]; !ok {
			return "", ErrInvalidPhrase
		}
	}
	return strings.Join(fields, " "), nil
}

// DeriveKey stretches the phrase with argon2id, salted by the owner's id, into
// an ed25519 signing key.
func DeriveKey(phrase string, userID uuid.UUID) (ed25519.PrivateKey, error) {
	normalized, err := NormalizeMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	salt := []byte("evotar-wallet:" + userID.String())
	seed := argon2.IDKey([]byte(normalized), salt, kdfTime, kdfMemory, kdfThreads, ed25519.SeedSize)
	return ed25519.NewKeyFromSeed(seed), nil
}

// Address is "0x" followed by the first 20 bytes of sha256(pub), hex encoded.
func Address(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "0x" + hex.EncodeToString(sum[:20])
}

// Sealer encrypts recovery phrases at rest with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Sealer{key: append([]byte(nil), key...)}, nil
}

// Seal returns nonce || ciphertext. aad binds the box to its owner.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed phrase too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, aad)
}
