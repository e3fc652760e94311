package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cbodonnell/fairroll/pkg/api/middleware"
	"github.com/cbodonnell/fairroll/pkg/messages"
	"github.com/cbodonnell/fairroll/pkg/round"
	"github.com/cbodonnell/fairroll/pkg/version"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/mux"
)

const maxRequestBodySize = 64 * 1024

type CommitmentCreator interface {
	CreateCommitment(ctx context.Context) (string, error)
}

type RoundResolver interface {
	Resolve(ctx context.Context, commitment string, clientSeed string) (*round.VerificationRecord, error)
}

func HandleGetCommitment(generator CommitmentCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.Logger(r.Context())

		commitmentHash, err := generator.CreateCommitment(r.Context())
		if err != nil {
			if messages.IsAborted(err) {
				logger.Debug("commitment request aborted: %v", err)
			} else {
				logger.Error("failed to create commitment: %v", err)
			}
			writeCoreError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, messages.CommitResponse{CommitmentHash: commitmentHash})
	}
}

// HandlePlayGame resolves a round from a JSON body carrying both the
// commitment hash and the client seed.
func HandlePlayGame(resolver RoundResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &messages.PlayRequest{}
		if err := decodeBody(w, r, req); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.CommitmentHash == nil || req.ClientSeed == nil {
			WriteError(w, http.StatusBadRequest, "commitment_hash and client_seed are required")
			return
		}

		play(w, r, resolver, *req.CommitmentHash, *req.ClientSeed)
	}
}

// HandlePlayCommitment resolves the round named in the path.
func HandlePlayCommitment(resolver RoundResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &messages.PlayRequest{}
		if err := decodeBody(w, r, req); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.ClientSeed == nil {
			WriteError(w, http.StatusBadRequest, "client_seed is required")
			return
		}

		play(w, r, resolver, mux.Vars(r)["commitmentHash"], *req.ClientSeed)
	}
}

func play(w http.ResponseWriter, r *http.Request, resolver RoundResolver, commitmentHash string, clientSeed string) {
	logger := middleware.Logger(r.Context())

	record, err := resolver.Resolve(r.Context(), commitmentHash, clientSeed)
	if err != nil {
		switch {
		case round.IsUnknownOrUsed(err):
			logger.Debug("play rejected for commitment %q: %v", commitmentHash, err)
		case messages.IsAborted(err):
			logger.Debug("play aborted for commitment %q: %v", commitmentHash, err)
		default:
			logger.Error("failed to resolve round: %v", err)
		}
		writeCoreError(w, err)
		return
	}

	logger.Info("round %s resolved", record.RoundID)
	writeRecord(w, r, record)
}

// HandleVerify checks a published record against its commitment. Invalid
// records are a normal 200 response with valid=false.
func HandleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &messages.VerifyRequest{}
		if err := decodeBody(w, r, req); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		WriteJSON(w, http.StatusOK, req.Check())
	}
}

func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func HandleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"version": version.Get()})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("request body is not valid JSON")
	}
	return nil
}

// writeRecord encodes the proof as CBOR when the client asks for it, JSON otherwise.
func writeRecord(w http.ResponseWriter, r *http.Request, record *round.VerificationRecord) {
	if !strings.Contains(r.Header.Get("Accept"), "application/cbor") {
		WriteJSON(w, http.StatusOK, record)
		return
	}

	b, err := cbor.Marshal(record)
	if err != nil {
		middleware.Logger(r.Context()).Error("failed to encode record as cbor: %v", err)
		WriteError(w, http.StatusInternalServerError, "Failed to encode record")
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func writeCoreError(w http.ResponseWriter, err error) {
	resp := messages.NewErrorResponse(err)
	WriteError(w, resp.Status, resp.Detail)
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"detail": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, map[string]string{"detail": detail})
}
