package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cbodonnell/fairroll/pkg/api/handlers"
	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/cbodonnell/fairroll/pkg/messages"
	"github.com/cbodonnell/fairroll/pkg/round"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// WSServer exposes the commitment and play operations over a websocket.
// Each connection carries any number of request/response pairs, answered in
// the order they arrive.
type WSServer struct {
	server         *http.Server
	tls            *TLSConfig
	generator      handlers.CommitmentCreator
	resolver       handlers.RoundResolver
	originPatterns []string

	// hijacked connections are not tracked by http.Server.Shutdown
	connsLock sync.Mutex
	conns     map[*websocket.Conn]struct{}
	stopped   bool
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port      int
	TLS       *TLSConfig
	Generator handlers.CommitmentCreator
	Resolver  handlers.RoundResolver
	// OriginPatterns are passed to websocket.AcceptOptions. Empty allows
	// same-origin connections only; "*" allows any origin.
	OriginPatterns []string
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	s := &WSServer{
		tls:            opts.TLS,
		generator:      opts.Generator,
		resolver:       opts.Resolver,
		originPatterns: opts.OriginPatterns,
		conns:          make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", s)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start starts the WebSocket server and blocks until it is stopped.
func (s *WSServer) Start() error {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return nil
		}
		return fmt.Errorf("WebSocket server error: %w", err)
	}
	return nil
}

// Stop stops accepting connections and closes every open one with
// StatusGoingAway.
func (s *WSServer) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.connsLock.Lock()
	s.stopped = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsLock.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}(conn)
	}
	wg.Wait()

	return err
}

// addConn registers conn and reports false if the server is already stopped.
func (s *WSServer) addConn(conn *websocket.Conn) bool {
	s.connsLock.Lock()
	defer s.connsLock.Unlock()
	if s.stopped {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *WSServer) removeConn(conn *websocket.Conn) {
	s.connsLock.Lock()
	defer s.connsLock.Unlock()
	delete(s.conns, conn)
}

func (s *WSServer) isStopped() bool {
	s.connsLock.Lock()
	defer s.connsLock.Unlock()
	return s.stopped
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(messages.MaxMessageSize)
	if !s.addConn(conn) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer s.removeConn(conn)

	connID := uuid.NewString()
	logger := log.Default().With("conn_id", connID)
	logger.Debug("New WebSocket connection from %s", r.RemoteAddr)

	s.handleWSConnection(r.Context(), conn, logger)
}

func (s *WSServer) handleWSConnection(ctx context.Context, conn *websocket.Conn, logger *log.Logger) {
	defer conn.Close(websocket.StatusInternalError, "")

	for {
		msg, err := ReadMessageFromWS(ctx, conn)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case errors.Is(err, errMalformedMessage):
				logger.Debug("Dropping connection after malformed message: %v", err)
				conn.Close(websocket.StatusUnsupportedData, "malformed message")
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				logger.Trace("Connection closed")
			case s.isStopped():
				logger.Trace("Connection closed by server shutdown")
			case ctx.Err() != nil:
				logger.Trace("Connection context done: %v", ctx.Err())
			default:
				logger.Error("Error reading WebSocket message: %v", err)
			}
			return
		}

		response := s.handleMessage(ctx, msg, logger)
		if err := WriteMessageToWS(ctx, conn, response); err != nil {
			logger.Error("Failed to write WebSocket message: %v", err)
			return
		}
	}
}

// handleMessage dispatches one request and builds the matching response.
func (s *WSServer) handleMessage(ctx context.Context, msg *messages.Message, logger *log.Logger) *messages.Message {
	switch msg.Type {
	case messages.MessageTypeCommitRequest:
		commitmentHash, err := s.generator.CreateCommitment(ctx)
		if err != nil {
			if messages.IsAborted(err) {
				logger.Debug("commitment request aborted: %v", err)
			} else {
				logger.Error("failed to create commitment: %v", err)
			}
			return errorMessage(msg.ID, messages.NewErrorResponse(err))
		}
		return jsonMessage(messages.MessageTypeCommitResponse, msg.ID, messages.CommitResponse{CommitmentHash: commitmentHash})

	case messages.MessageTypePlayRequest:
		req := &messages.PlayRequest{}
		if err := json.Unmarshal(msg.Payload, req); err != nil || req.CommitmentHash == nil || req.ClientSeed == nil {
			return errorMessage(msg.ID, &messages.ErrorResponse{Status: http.StatusBadRequest, Detail: "commitment_hash and client_seed are required"})
		}
		record, err := s.resolver.Resolve(ctx, *req.CommitmentHash, *req.ClientSeed)
		if err != nil {
			switch {
			case round.IsUnknownOrUsed(err):
				logger.Debug("play rejected for commitment %q: %v", *req.CommitmentHash, err)
			case messages.IsAborted(err):
				logger.Debug("play aborted for commitment %q: %v", *req.CommitmentHash, err)
			default:
				logger.Error("failed to resolve round: %v", err)
			}
			return errorMessage(msg.ID, messages.NewErrorResponse(err))
		}
		logger.Info("round %s resolved", record.RoundID)
		return jsonMessage(messages.MessageTypePlayResponse, msg.ID, record)

	case messages.MessageTypeVerifyRequest:
		req := &messages.VerifyRequest{}
		if err := json.Unmarshal(msg.Payload, req); err != nil {
			return errorMessage(msg.ID, &messages.ErrorResponse{Status: http.StatusBadRequest, Detail: "request body is not valid JSON"})
		}
		return jsonMessage(messages.MessageTypeVerifyResponse, msg.ID, req.Check())

	default:
		logger.Warn("Received unsupported message type %d", msg.Type)
		return errorMessage(msg.ID, &messages.ErrorResponse{Status: http.StatusBadRequest, Detail: fmt.Sprintf("unsupported message type %d", msg.Type)})
	}
}

func jsonMessage(t messages.MessageType, id string, v interface{}) *messages.Message {
	payload, err := json.Marshal(v)
	if err != nil {
		return errorMessage(id, &messages.ErrorResponse{Status: http.StatusInternalServerError, Detail: "Failed to encode response"})
	}
	return &messages.Message{Type: t, ID: id, Payload: payload}
}

func errorMessage(id string, resp *messages.ErrorResponse) *messages.Message {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Error("Failed to encode error response: %v", err)
		payload = []byte(`{"status":500,"detail":"Internal server error"}`)
	}
	return &messages.Message{Type: messages.MessageTypeError, ID: id, Payload: payload}
}

var errMalformedMessage = errors.New("malformed message")

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %w", err)
	}

	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn) (*messages.Message, error) {
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageBinary {
		return nil, fmt.Errorf("%w: expected binary frame", errMalformedMessage)
	}

	msg, err := messages.DeserializeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}

	return msg, nil
}
