package messages

const (
	// MaxMessageSize bounds a single compressed websocket message.
	MaxMessageSize = 64 * 1024
)

type MessageType byte

// Message types
const (
	MessageTypeCommitRequest MessageType = iota + 1
	MessageTypeCommitResponse
	MessageTypePlayRequest
	MessageTypePlayResponse
	MessageTypeVerifyRequest
	MessageTypeVerifyResponse
	MessageTypeError
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeCommitRequest:
		return "commit_request"
	case MessageTypeCommitResponse:
		return "commit_response"
	case MessageTypePlayRequest:
		return "play_request"
	case MessageTypePlayResponse:
		return "play_response"
	case MessageTypeVerifyRequest:
		return "verify_request"
	case MessageTypeVerifyResponse:
		return "verify_response"
	case MessageTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is the envelope exchanged over the websocket binding. ID is chosen
// by the client and echoed on the matching response. Payload holds one of the
// JSON bodies below.
type Message struct {
	Type    MessageType
	ID      string
	Payload []byte
}

type CommitResponse struct {
	CommitmentHash string `json:"commitment_hash"`
}

type PlayRequest struct {
	CommitmentHash *string `json:"commitment_hash"`
	ClientSeed     *string `json:"client_seed"`
}

type VerifyRequest struct {
	CommitmentHash   string `json:"commitment_hash"`
	RollResult       int    `json:"roll_result"`
	ServerSeed       string `json:"server_seed"`
	ClientSeed       string `json:"client_seed"`
	VerificationHash string `json:"verification_hash"`
}

type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse mirrors the HTTP status that the same failure maps to.
type ErrorResponse struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}
