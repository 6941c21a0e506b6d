package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-livehost-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// obs-websocket v5 opcodes.
const (
	opHello      = 0
	opIdentify   = 1
	opIdentified = 2
	opEvent      = 5
	opRequest    = 6
	opResponse   = 7
)

var (
	// ErrDisconnected is returned for calls and waits interrupted by a
	// control-surface connection loss.
	ErrDisconnected = errors.New("obs: connection lost")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("obs: client closed")
)

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyData struct {
	RPCVersion     int    `json:"rpcVersion"`
	Authentication string `json:"authentication,omitempty"`
}

type requestEnvelope struct {
	RequestType string      `json:"requestType"`
	RequestID   string      `json:"requestId"`
	RequestData interface{} `json:"requestData,omitempty"`
}

type responseEnvelope struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result  bool   `json:"result"`
		Code    int    `json:"code"`
		Comment string `json:"comment"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData"`
}

type eventEnvelope struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

type pendingCall struct {
	ch chan *responseEnvelope
}

// EventWait is a registered one-shot wait for a matching event. Register it
// before triggering the action that produces the event, then Wait.
type EventWait struct {
	eventType string
	match     func(json.RawMessage) bool
	ch        chan error
	client    *Client
}

// Wait blocks until the event arrives, the connection drops, or ctx expires.
func (w *EventWait) Wait(ctx context.Context) error {
	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		w.Cancel()
		return ctx.Err()
	}
}

// Cancel deregisters the wait.
func (w *EventWait) Cancel() {
	w.client.removeWaiter(w)
}

// Client is a minimal obs-websocket v5 client: Hello/Identify handshake with
// optional sha256 challenge auth, request/response correlation by requestId,
// and one-shot event waits. On read failure it runs a bounded reconnect loop
// with fixed backoff; in-flight calls and waits fail with ErrDisconnected.
type Client struct {
	url           string
	password      string
	reconnectWait time.Duration
	maxReconnects int
	log           logger.ILogger

	writeMu sync.Mutex
	connMu  sync.RWMutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	waiterMu sync.Mutex
	waiters  []*EventWait

	hookMu      sync.Mutex
	onReconnect func()

	connected bool
	stateMu   sync.RWMutex
	closed    bool
}

func NewClient(url, password string, reconnectWait time.Duration, maxReconnects int, log logger.ILogger) *Client {
	return &Client{
		url:           url,
		password:      password,
		reconnectWait: reconnectWait,
		maxReconnects: maxReconnects,
		log:           log,
		pending:       make(map[string]*pendingCall),
	}
}

// Connect dials the control surface and completes the Identify handshake.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.handshake(ctx)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.setConnected(true)

	go c.readLoop(conn)
	return nil
}

func (c *Client) handshake(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial obs websocket: %w", err)
	}

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if env.Op != opHello {
		conn.Close()
		return nil, fmt.Errorf("expected hello, got op %d", env.Op)
	}
	var hello helloData
	if err := json.Unmarshal(env.D, &hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unmarshal hello: %w", err)
	}

	identify := identifyData{RPCVersion: 1}
	if hello.Authentication != nil {
		identify.Authentication = authResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	identifyBytes, _ := json.Marshal(identify)
	if err := conn.WriteJSON(envelope{Op: opIdentify, D: identifyBytes}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write identify: %w", err)
	}

	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read identified: %w", err)
	}
	if env.Op != opIdentified {
		conn.Close()
		return nil, fmt.Errorf("identify rejected, got op %d", env.Op)
	}

	return conn, nil
}

// authResponse computes base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secretHash := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(secretHash[:])
	responseHash := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(responseHash[:])
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.handleDisconnect(err)
			return
		}

		switch env.Op {
		case opResponse:
			var resp responseEnvelope
			if err := json.Unmarshal(env.D, &resp); err != nil {
				continue
			}
			c.pendingMu.Lock()
			call, ok := c.pending[resp.RequestID]
			if ok {
				delete(c.pending, resp.RequestID)
			}
			c.pendingMu.Unlock()
			if ok {
				call.ch <- &resp
			}

		case opEvent:
			var evt eventEnvelope
			if err := json.Unmarshal(env.D, &evt); err != nil {
				continue
			}
			c.dispatchEvent(&evt)
		}
	}
}

func (c *Client) dispatchEvent(evt *eventEnvelope) {
	c.waiterMu.Lock()
	var remaining []*EventWait
	var hit []*EventWait
	for _, w := range c.waiters {
		if w.eventType == evt.EventType && (w.match == nil || w.match(evt.EventData)) {
			hit = append(hit, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.waiterMu.Unlock()

	for _, w := range hit {
		w.ch <- nil
	}
}

func (c *Client) handleDisconnect(cause error) {
	c.setConnected(false)
	c.failInflight()

	if c.isClosed() {
		return
	}
	c.log.Warn("Obs", "Connection lost, reconnecting", map[string]interface{}{"error": cause.Error()})

	for attempt := 1; attempt <= c.maxReconnects; attempt++ {
		time.Sleep(c.reconnectWait)
		if c.isClosed() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := c.handshake(ctx)
		cancel()
		if err != nil {
			c.log.Warn("Obs", "Reconnect attempt failed", map[string]interface{}{
				"attempt": attempt, "error": err.Error(),
			})
			continue
		}
		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()
		c.setConnected(true)
		c.log.Info("Obs", "Reconnected to control surface", map[string]interface{}{"attempt": attempt})
		go c.readLoop(conn)
		c.notifyReconnect()
		return
	}
	c.log.Error("Obs", "Giving up on reconnect", map[string]interface{}{"attempts": c.maxReconnects})
}

// SetOnReconnect registers a callback for every re-established connection.
// It runs on its own goroutine so it may issue Calls.
func (c *Client) SetOnReconnect(fn func()) {
	c.hookMu.Lock()
	c.onReconnect = fn
	c.hookMu.Unlock()
}

func (c *Client) notifyReconnect() {
	c.hookMu.Lock()
	fn := c.onReconnect
	c.hookMu.Unlock()
	if fn != nil {
		go fn()
	}
}

func (c *Client) failInflight() {
	c.pendingMu.Lock()
	for id, call := range c.pending {
		delete(c.pending, id)
		call.ch <- nil // nil response signals disconnect to Call
	}
	c.pendingMu.Unlock()

	c.waiterMu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.waiterMu.Unlock()
	for _, w := range waiters {
		w.ch <- ErrDisconnected
	}
}

// Call issues one request and decodes the response payload into out (if
// non-nil). It fails fast when the surface is not connected.
func (c *Client) Call(ctx context.Context, requestType string, reqData interface{}, out interface{}) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.Connected() {
		return ErrDisconnected
	}

	requestID := uuid.NewString()
	call := &pendingCall{ch: make(chan *responseEnvelope, 1)}
	c.pendingMu.Lock()
	c.pending[requestID] = call
	c.pendingMu.Unlock()

	payload, err := json.Marshal(requestEnvelope{
		RequestType: requestType,
		RequestID:   requestID,
		RequestData: reqData,
	})
	if err != nil {
		c.dropPending(requestID)
		return fmt.Errorf("marshal %s request: %w", requestType, err)
	}

	if err := c.write(envelope{Op: opRequest, D: payload}); err != nil {
		c.dropPending(requestID)
		return fmt.Errorf("write %s request: %w", requestType, err)
	}

	select {
	case resp := <-call.ch:
		if resp == nil {
			return ErrDisconnected
		}
		if !resp.RequestStatus.Result {
			return fmt.Errorf("obs %s failed: code %d: %s", requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("unmarshal %s response: %w", requestType, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.dropPending(requestID)
		return ctx.Err()
	}
}

// ExpectEvent registers a one-shot wait. match may be nil to accept any event
// of the type.
func (c *Client) ExpectEvent(eventType string, match func(json.RawMessage) bool) *EventWait {
	w := &EventWait{
		eventType: eventType,
		match:     match,
		ch:        make(chan error, 1),
		client:    c,
	}
	c.waiterMu.Lock()
	c.waiters = append(c.waiters, w)
	c.waiterMu.Unlock()
	return w
}

func (c *Client) removeWaiter(target *EventWait) {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	for i, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

func (c *Client) dropPending(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

func (c *Client) write(env envelope) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrDisconnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

// Connected reports whether the handshake is established right now.
func (c *Client) Connected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.stateMu.Lock()
	c.connected = v
	c.stateMu.Unlock()
}

func (c *Client) isClosed() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.closed
}

// Close shuts the connection down for good; no reconnect is attempted.
func (c *Client) Close() error {
	c.stateMu.Lock()
	c.closed = true
	c.connected = false
	c.stateMu.Unlock()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
