package round

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/cbodonnell/fairroll/pkg/store"
	"github.com/google/uuid"
)

const (
	// rollHexDigits is how many leading hex characters of the verification
	// hash feed the roll (20 bits).
	rollHexDigits = 5
	// RollModulus is applied before RollRange. The result keeps a small bias
	// which existing verification tooling depends on.
	RollModulus = 10001
	RollRange   = 100
)

// ErrUnknownOrUsedCommitment means the commitment was never issued, has
// already been played or has expired. The client should request a new one.
var ErrUnknownOrUsedCommitment = errors.New("commitment hash not found or already used")

func IsUnknownOrUsed(err error) bool {
	return errors.Is(err, ErrUnknownOrUsedCommitment)
}

// VerificationRecord is the publishable proof of a resolved round.
// It is not retained after being returned.
type VerificationRecord struct {
	RoundID          string `json:"round_id" cbor:"round_id"`
	CommitmentHash   string `json:"commitment_hash" cbor:"commitment_hash"`
	RollResult       int    `json:"roll_result" cbor:"roll_result"`
	ServerSeed       string `json:"server_seed" cbor:"server_seed"`
	ClientSeed       string `json:"client_seed" cbor:"client_seed"`
	VerificationHash string `json:"verification_hash" cbor:"verification_hash"`
}

// VerificationHash returns hex(HMAC-SHA256(key = secret, message = clientSeed)).
func VerificationHash(secret []byte, clientSeed string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(clientSeed))
	return hex.EncodeToString(mac.Sum(nil))
}

// RollFromHash derives the 0-99 roll from the first five hex characters of
// a verification hash: (H mod 10001) mod 100.
func RollFromHash(verificationHash string) (int, error) {
	if len(verificationHash) < rollHexDigits {
		return 0, fmt.Errorf("verification hash too short: %d characters", len(verificationHash))
	}
	h, err := strconv.ParseUint(verificationHash[:rollHexDigits], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse verification hash prefix: %w", err)
	}
	return int((h % RollModulus) % RollRange), nil
}

// Derive computes the verification hash and roll for a secret and client seed.
func Derive(secret []byte, clientSeed string) (string, int) {
	verificationHash := VerificationHash(secret, clientSeed)
	// A hex encoded HMAC always has a valid prefix.
	roll, _ := RollFromHash(verificationHash)
	return verificationHash, roll
}

// NormalizeCommitment lowercases and trims a client supplied commitment hash
// so it matches the form issued by the generator.
func NormalizeCommitment(commitment string) string {
	return strings.ToLower(strings.TrimSpace(commitment))
}

// Resolver consumes a stored secret and reveals it with the round outcome.
type Resolver struct {
	store   store.Store
	roundID func() string
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{
		store:   s,
		roundID: uuid.NewString,
	}
}

// Resolve takes the secret for commitment out of the store and derives the
// round outcome. A commitment resolves at most once.
func (r *Resolver) Resolve(ctx context.Context, commitment string, clientSeed string) (*VerificationRecord, error) {
	commitment = NormalizeCommitment(commitment)

	secret, ok, err := r.store.TakeAndInvalidate(ctx, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to take commitment: %w", err)
	}
	if !ok {
		return nil, ErrUnknownOrUsedCommitment
	}

	verificationHash, roll := Derive(secret, clientSeed)
	record := &VerificationRecord{
		RoundID:          r.roundID(),
		CommitmentHash:   commitment,
		RollResult:       roll,
		ServerSeed:       hex.EncodeToString(secret),
		ClientSeed:       clientSeed,
		VerificationHash: verificationHash,
	}

	log.Debug("Resolved round %s for commitment %s with roll %d", record.RoundID, commitment, roll)
	return record, nil
}
