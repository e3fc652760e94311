package messages

import "github.com/cbodonnell/fairroll/pkg/round"

// Check runs the third party verification for req.
func (req *VerifyRequest) Check() *VerifyResponse {
	err := round.Verify(req.CommitmentHash, &round.VerificationRecord{
		RollResult:       req.RollResult,
		ServerSeed:       req.ServerSeed,
		ClientSeed:       req.ClientSeed,
		VerificationHash: req.VerificationHash,
	})
	if err != nil {
		return &VerifyResponse{Valid: false, Reason: err.Error()}
	}
	return &VerifyResponse{Valid: true}
}
