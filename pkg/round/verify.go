package round

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cbodonnell/fairroll/pkg/commitment"
)

var (
	ErrMalformedServerSeed = errors.New("server seed is not valid hex")
	ErrCommitmentMismatch  = errors.New("server seed does not hash to the commitment")
	ErrHashMismatch        = errors.New("verification hash does not match HMAC-SHA256(server seed, client seed)")
	ErrRollMismatch        = errors.New("roll result does not match the verification hash")
)

// Verify recomputes every value in record from its seeds and checks it
// against the commitment published before the round was played. It needs
// nothing from the server beyond the record and the commitment.
func Verify(commitmentHash string, record *VerificationRecord) error {
	secret, err := hex.DecodeString(record.ServerSeed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedServerSeed, err)
	}

	if !hmac.Equal([]byte(commitment.Commit(secret)), []byte(NormalizeCommitment(commitmentHash))) {
		return ErrCommitmentMismatch
	}

	verificationHash, roll := Derive(secret, record.ClientSeed)
	if !hmac.Equal([]byte(verificationHash), []byte(NormalizeCommitment(record.VerificationHash))) {
		return ErrHashMismatch
	}

	if roll != record.RollResult {
		return fmt.Errorf("%w: got %d, want %d", ErrRollMismatch, record.RollResult, roll)
	}

	return nil
}
