package commitment

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/cbodonnell/fairroll/pkg/store"
)

const (
	// SecretSize is the server seed length in bytes (256 bits).
	SecretSize = 32
	// DefaultTTL bounds how long an unplayed commitment stays redeemable.
	DefaultTTL = time.Hour
)

// RandomSourceError means secure randomness could not be obtained.
// Commitment creation is aborted; there is no fallback source.
type RandomSourceError struct {
	Err error
}

func (e *RandomSourceError) Error() string {
	return fmt.Sprintf("random source failure: %v", e.Err)
}

func (e *RandomSourceError) Unwrap() error {
	return e.Err
}

func IsRandomSource(err error) bool {
	var randomErr *RandomSourceError
	return errors.As(err, &randomErr)
}

// NewSecret reads SecretSize bytes from r.
func NewSecret(r io.Reader) ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, &RandomSourceError{Err: err}
	}
	return secret, nil
}

// Commit returns the lowercase hex SHA-256 digest of secret.
func Commit(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// Generator creates server seeds and locks them into a store under their
// public commitment.
type Generator struct {
	store  store.Store
	ttl    time.Duration
	random io.Reader
}

type NewGeneratorOptions struct {
	Store store.Store
	// TTL defaults to DefaultTTL.
	TTL time.Duration
	// Random defaults to crypto/rand.Reader.
	Random io.Reader
}

func NewGenerator(opts NewGeneratorOptions) *Generator {
	g := &Generator{
		store:  opts.Store,
		ttl:    opts.TTL,
		random: opts.Random,
	}
	if g.ttl <= 0 {
		g.ttl = DefaultTTL
	}
	if g.random == nil {
		g.random = rand.Reader
	}
	return g
}

func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// CreateCommitment generates a fresh secret, stores it and returns only the
// commitment hash.
func (g *Generator) CreateCommitment(ctx context.Context) (string, error) {
	secret, err := NewSecret(g.random)
	if err != nil {
		return "", err
	}

	commitment := Commit(secret)
	if err := g.store.Put(ctx, commitment, secret, g.ttl); err != nil {
		return "", fmt.Errorf("failed to store commitment: %w", err)
	}

	log.Trace("Created commitment %s expiring in %s", commitment, g.ttl)
	return commitment, nil
}
