package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cbodonnell/fairroll/pkg/log"
	"github.com/cbodonnell/fairroll/pkg/messages"
	"github.com/cbodonnell/fairroll/pkg/network"
	"github.com/cbodonnell/fairroll/pkg/round"
	"nhooyr.io/websocket"
)

// ResponseError is a failure reported by the server for one request.
type ResponseError struct {
	Status int
	Detail string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Detail)
}

// WSClient plays rounds over the websocket binding. Requests on one client
// are serialized.
type WSClient struct {
	lock   sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// Dial connects to a fairroll websocket endpoint such as ws://localhost:8081/ws.
func Dial(ctx context.Context, serverAddr string) (*WSClient, error) {
	log.Debug("Connecting to WebSocket server at %s", serverAddr)
	conn, _, err := websocket.Dial(ctx, serverAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	conn.SetReadLimit(messages.MaxMessageSize)
	return &WSClient{conn: conn}, nil
}

func (c *WSClient) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// Commit asks the server for a new commitment hash.
func (c *WSClient) Commit(ctx context.Context) (string, error) {
	resp := &messages.CommitResponse{}
	if err := c.call(ctx, messages.MessageTypeCommitRequest, nil, messages.MessageTypeCommitResponse, resp); err != nil {
		return "", err
	}
	return resp.CommitmentHash, nil
}

// Play resolves the round locked in by commitmentHash and checks the revealed
// record against the commitment before returning it.
func (c *WSClient) Play(ctx context.Context, commitmentHash string, clientSeed string) (*round.VerificationRecord, error) {
	record := &round.VerificationRecord{}
	req := messages.PlayRequest{CommitmentHash: &commitmentHash, ClientSeed: &clientSeed}
	if err := c.call(ctx, messages.MessageTypePlayRequest, req, messages.MessageTypePlayResponse, record); err != nil {
		return nil, err
	}
	if err := round.Verify(commitmentHash, record); err != nil {
		return record, fmt.Errorf("server returned an unverifiable record: %w", err)
	}
	return record, nil
}

func (c *WSClient) call(ctx context.Context, reqType messages.MessageType, req interface{}, wantType messages.MessageType, resp interface{}) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.nextID++
	msg := &messages.Message{Type: reqType, ID: strconv.FormatUint(c.nextID, 10)}
	if req != nil {
		payload, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %v", err)
		}
		msg.Payload = payload
	}

	if err := network.WriteMessageToWS(ctx, c.conn, msg); err != nil {
		return err
	}
	reply, err := network.ReadMessageFromWS(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if reply.ID != msg.ID {
		return fmt.Errorf("response id %q does not match request id %q", reply.ID, msg.ID)
	}

	switch reply.Type {
	case wantType:
		if err := json.Unmarshal(reply.Payload, resp); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %v", reply.Type, err)
		}
		return nil
	case messages.MessageTypeError:
		errResp := &messages.ErrorResponse{}
		if err := json.Unmarshal(reply.Payload, errResp); err != nil {
			return fmt.Errorf("failed to unmarshal error response: %v", err)
		}
		return &ResponseError{Status: errResp.Status, Detail: errResp.Detail}
	default:
		return fmt.Errorf("unexpected response type %s", reply.Type)
	}
}

// IsNotFound reports whether err is the server rejecting an unknown, used or
// expired commitment.
func IsNotFound(err error) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.Status == 404
}
