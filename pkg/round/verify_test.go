package round

import (
	"testing"

	"github.com/cbodonnell/fairroll/pkg/commitment"
	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	zeroSeed := "0000000000000000000000000000000000000000000000000000000000000000"
	zeroCommitment := commitment.Commit(make([]byte, 32))
	valid := func() *VerificationRecord {
		return &VerificationRecord{
			RollResult:       50,
			ServerSeed:       zeroSeed,
			ClientSeed:       "abc",
			VerificationHash: "fd7adb152c05ef80dccf50a1fa4c05d5a3ec6da95575fc312ae7c5d091836351",
		}
	}

	tests := []struct {
		name       string
		commitment string
		mutate     func(r *VerificationRecord)
		wantErr    error
	}{
		{name: "valid record", commitment: zeroCommitment, mutate: func(r *VerificationRecord) {}},
		{
			name:       "uppercase hashes are accepted",
			commitment: "66687AADF862BD776C8FC18B8E9F8E20089714856EE233B3902A591D0D5F2925",
			mutate: func(r *VerificationRecord) {
				r.VerificationHash = "FD7ADB152C05EF80DCCF50A1FA4C05D5A3EC6DA95575FC312AE7C5D091836351"
			},
		},
		{
			name:       "seed is not hex",
			commitment: zeroCommitment,
			mutate:     func(r *VerificationRecord) { r.ServerSeed = "not-hex" },
			wantErr:    ErrMalformedServerSeed,
		},
		{
			name:       "seed swapped after commitment",
			commitment: zeroCommitment,
			mutate: func(r *VerificationRecord) {
				r.ServerSeed = "0100000000000000000000000000000000000000000000000000000000000000"
			},
			wantErr: ErrCommitmentMismatch,
		},
		{
			name:       "client seed changed",
			commitment: zeroCommitment,
			mutate:     func(r *VerificationRecord) { r.ClientSeed = "abd" },
			wantErr:    ErrHashMismatch,
		},
		{
			name:       "roll changed",
			commitment: zeroCommitment,
			mutate:     func(r *VerificationRecord) { r.RollResult = 51 },
			wantErr:    ErrRollMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := valid()
			tt.mutate(record)

			err := Verify(tt.commitment, record)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
