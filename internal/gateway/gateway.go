// Package gateway implements the WebSocket Gateway: a single multiplexed
// session that issues an approval key, connects/reconnects, answers
// PINGPONG, manages per-TR subscriptions under a capacity budget, parses
// inbound frames (including AES-encrypted execution notices), and
// dispatches normalized field maps to registered callbacks. This is the
// hard part of the system: deadlock-safe shared state under concurrent
// reads and writes, bounded subscription capacity, and correct recovery
// from a dropped connection.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	dialTimeout = 15 * time.Second
	writeWait   = 10 * time.Second

	baseReconnectDelay   = 2 * time.Second
	maxReconnectDelay    = 1 * time.Minute
	maxReconnectAttempts = 20

	healthyPongWindow = 90 * time.Second

	trContract       = "H0STCNT0"
	trQuote          = "H0STASP0"
	trExecutionReal  = "H0STCNI0"
	trExecutionDemo  = "H0STCNI9"
)

// ApprovalSource issues fresh WebSocket approval keys from the broker's
// REST API.
type ApprovalSource interface {
	ApprovalKey() (string, error)
}

// Gateway implements domain.Gateway over the broker's pipe-delimited /
// JSON-control WebSocket protocol.
type Gateway struct {
	url       string
	htsID     string
	approvals ApprovalSource

	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.RWMutex
	conn         *websocket.Conn
	connCtx      context.Context
	cancelConn   context.CancelFunc
	connected    bool
	lastPong     time.Time
	approvalKey  string
	aesKey       []byte
	aesIV        []byte

	stopChan chan struct{}
	stopped  bool
	stopOnce sync.Once

	subsMu         sync.RWMutex
	subscribed     map[string]bool
	noticeSubbed   bool
	systemSlots    int
	connsPerStock  int
	maxConnections int

	callbacksMu sync.RWMutex
	callbacks   map[string][]domain.GatewayCallback

	bus *events.Bus // optional; nil means no event emission
}

// Config carries the capacity and deployment parameters spec section 6
// exposes under performance.* and the HTS account id execution notices
// subscribe under.
type Config struct {
	URL                 string
	HTSID               string
	WebsocketMaxConns   int
	ConnectionsPerStock int
	SystemConnections   int
	Bus                 *events.Bus // optional; emits GatewayReconnected
}

// New creates a Gateway. Nothing is dialed until Connect is called.
func New(cfg Config, approvals ApprovalSource, log zerolog.Logger) *Gateway {
	return &Gateway{
		url:            cfg.URL,
		htsID:          cfg.HTSID,
		approvals:      approvals,
		httpClient:     http1Client(),
		log:            log.With().Str("component", "gateway").Logger(),
		subscribed:     make(map[string]bool),
		systemSlots:    cfg.SystemConnections,
		connsPerStock:  cfg.ConnectionsPerStock,
		maxConnections: cfg.WebsocketMaxConns,
		stopChan:       make(chan struct{}),
		callbacks:      make(map[string][]domain.GatewayCallback),
		bus:            cfg.Bus,
	}
}

// http1Client forces HTTP/1.1: the upgrade handshake requires it even
// when the server would otherwise negotiate HTTP/2 via ALPN.
func http1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 15 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSClientConfig: &tls.Config{NextProtos: []string{"http/1.1"}},
			ForceAttemptHTTP2: false,
		},
	}
}

// Connect obtains a fresh approval key, opens the session, and starts the
// single dedicated message loop. It is idempotent: a call while already
// connected returns true without re-dialing.
func (g *Gateway) Connect() bool {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()

	if err := g.connect(); err != nil {
		g.log.Error().Err(err).Msg("initial connect failed, starting reconnect loop")
		go g.reconnectLoop()
		return false
	}

	g.mu.RLock()
	ctx := g.connCtx
	g.mu.RUnlock()
	go g.readLoop(ctx)
	return true
}

func (g *Gateway) connect() error {
	approvalKey, err := g.approvals.ApprovalKey()
	if err != nil {
		return fmt.Errorf("gateway: approval key: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, g.url, &websocket.DialOptions{HTTPClient: g.httpClient})
	if err != nil {
		return fmt.Errorf("gateway: dial: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())

	g.mu.Lock()
	g.conn = conn
	g.connCtx = connCtx
	g.cancelConn = connCancel
	g.connected = true
	g.lastPong = time.Now()
	g.mu.Unlock()

	g.subsMu.Lock()
	prevSubs := make([]string, 0, len(g.subscribed))
	for code := range g.subscribed {
		prevSubs = append(prevSubs, code)
	}
	needsNotice := g.noticeSubbed
	g.subsMu.Unlock()

	g.mu.Lock()
	g.approvalKey = approvalKey
	g.mu.Unlock()

	if needsNotice || g.htsID != "" {
		if err := g.subscribeTR(connCtx, trExecutionReal, g.htsID); err != nil {
			g.log.Warn().Err(err).Msg("failed to subscribe execution notices")
		} else {
			g.subsMu.Lock()
			g.noticeSubbed = true
			g.subsMu.Unlock()
		}
	}

	// Reconnect re-issues every symbol subscription that survived from the
	// prior session; the Monitor still re-subscribes on its next cycle per
	// spec, but doing it here too closes the gap during that cycle.
	for _, code := range prevSubs {
		if err := g.subscribeTR(connCtx, trContract, code); err != nil {
			g.log.Warn().Err(err).Str("code", code).Msg("resubscribe contract failed")
		}
		if err := g.subscribeTR(connCtx, trQuote, code); err != nil {
			g.log.Warn().Err(err).Str("code", code).Msg("resubscribe quote failed")
		}
	}

	g.log.Info().Msg("gateway connected")
	return nil
}

type controlFrame struct {
	Header struct {
		ApprovalKey string `json:"approval_key"`
		CustType    string `json:"custtype"`
		TrType      string `json:"tr_type"`
		ContentType string `json:"content-type"`
	} `json:"header"`
	Body struct {
		Input struct {
			TrID  string `json:"tr_id"`
			TrKey string `json:"tr_key"`
		} `json:"input"`
	} `json:"body"`
}

// subscribeTR sends a "1" (register) control frame for tr/key.
func (g *Gateway) subscribeTR(ctx context.Context, tr, key string) error {
	return g.sendControl(ctx, tr, key, "1")
}

// unsubscribeTR sends a "2" (cancel) control frame for tr/key.
func (g *Gateway) unsubscribeTR(ctx context.Context, tr, key string) error {
	return g.sendControl(ctx, tr, key, "2")
}

func (g *Gateway) sendControl(ctx context.Context, tr, key, trType string) error {
	g.mu.RLock()
	conn := g.conn
	approvalKey := g.approvalKey
	g.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("gateway: not connected")
	}

	var frame controlFrame
	frame.Header.ApprovalKey = approvalKey
	frame.Header.CustType = "P"
	frame.Header.TrType = trType
	frame.Header.ContentType = "utf-8"
	frame.Body.Input.TrID = tr
	frame.Body.Input.TrKey = key

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("gateway: marshal control frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}

// Subscribe registers both the contract and quote TRs for code, subject
// to capacity. It is a no-op if already subscribed.
func (g *Gateway) Subscribe(code string) error {
	g.subsMu.Lock()
	if g.subscribed[code] {
		g.subsMu.Unlock()
		return nil
	}
	if !g.hasCapacityLocked() {
		g.subsMu.Unlock()
		return fmt.Errorf("gateway: no capacity to subscribe %s", code)
	}
	g.subsMu.Unlock()

	g.mu.RLock()
	ctx := g.connCtx
	g.mu.RUnlock()
	if ctx == nil {
		return fmt.Errorf("gateway: not connected")
	}

	if err := g.subscribeTR(ctx, trContract, code); err != nil {
		return fmt.Errorf("gateway: subscribe contract %s: %w", code, err)
	}
	if err := g.subscribeTR(ctx, trQuote, code); err != nil {
		return fmt.Errorf("gateway: subscribe quote %s: %w", code, err)
	}

	g.subsMu.Lock()
	g.subscribed[code] = true
	g.subsMu.Unlock()
	return nil
}

// Unsubscribe cancels both TRs for code.
func (g *Gateway) Unsubscribe(code string) error {
	g.subsMu.Lock()
	if !g.subscribed[code] {
		g.subsMu.Unlock()
		return nil
	}
	g.subsMu.Unlock()

	g.mu.RLock()
	ctx := g.connCtx
	g.mu.RUnlock()
	if ctx == nil {
		return fmt.Errorf("gateway: not connected")
	}

	if err := g.unsubscribeTR(ctx, trContract, code); err != nil {
		g.log.Warn().Err(err).Str("code", code).Msg("unsubscribe contract failed")
	}
	if err := g.unsubscribeTR(ctx, trQuote, code); err != nil {
		g.log.Warn().Err(err).Str("code", code).Msg("unsubscribe quote failed")
	}

	g.subsMu.Lock()
	delete(g.subscribed, code)
	g.subsMu.Unlock()
	return nil
}

// On registers a callback for tr. Multiple callbacks for the same tr are
// all invoked, in registration order.
func (g *Gateway) On(tr string, cb domain.GatewayCallback) {
	g.callbacksMu.Lock()
	defer g.callbacksMu.Unlock()
	g.callbacks[tr] = append(g.callbacks[tr], cb)
}

// HasCapacity reports whether one more symbol subscription (2 slots) fits
// under websocket_max_connections.
func (g *Gateway) HasCapacity() bool {
	g.subsMu.RLock()
	defer g.subsMu.RUnlock()
	return g.hasCapacityLocked()
}

func (g *Gateway) hasCapacityLocked() bool {
	used := len(g.subscribed)*g.connsPerStock + g.systemSlots
	return used+g.connsPerStock <= g.maxConnections
}

// IsHealthy reports whether the socket is open and a pong (or any inbound
// frame, per the broker's protocol where data frames double as liveness)
// was observed within the healthy window.
func (g *Gateway) IsHealthy() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected && time.Since(g.lastPong) < healthyPongWindow
}

// SafeCleanup closes the socket, terminates the message loop, and clears
// subscriptions. Safe to call multiple times.
func (g *Gateway) SafeCleanup() {
	g.stopOnce.Do(func() {
		close(g.stopChan)
	})

	g.mu.Lock()
	g.stopped = true
	if g.cancelConn != nil {
		g.cancelConn()
	}
	conn := g.conn
	g.conn = nil
	g.connected = false
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}

	g.subsMu.Lock()
	g.subscribed = make(map[string]bool)
	g.noticeSubbed = false
	g.subsMu.Unlock()
}

func (g *Gateway) readLoop(ctx context.Context) {
	defer func() {
		g.mu.RLock()
		stopped := g.stopped
		g.mu.RUnlock()
		if !stopped {
			go g.reconnectLoop()
		}
	}()

	errStreak := 0
	for {
		select {
		case <-g.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errStreak++
			g.log.Warn().Err(err).Int("consecutive_errors", errStreak).Msg("read error")
			if errStreak >= maxConsecutiveReadErrors {
				return
			}
			continue
		}
		errStreak = 0

		g.mu.Lock()
		g.lastPong = time.Now()
		g.mu.Unlock()

		if msgType != websocket.MessageText {
			continue
		}
		g.handleMessage(data)
	}
}

const maxConsecutiveReadErrors = 5

func (g *Gateway) reconnectLoop() {
	attempt := 0
	for {
		select {
		case <-g.stopChan:
			return
		default:
		}

		attempt++
		delay := backoff(attempt)
		g.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting gateway")

		select {
		case <-time.After(delay):
		case <-g.stopChan:
			return
		}

		if err := g.connect(); err != nil {
			g.log.Error().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			if attempt > maxReconnectAttempts {
				attempt = maxReconnectAttempts // keep retrying at the capped delay
			}
			continue
		}

		g.mu.RLock()
		ctx := g.connCtx
		g.mu.RUnlock()
		go g.readLoop(ctx)

		if g.bus != nil {
			g.bus.Emit(events.GatewayReconnected, attempt)
		}
		return
	}
}

func backoff(attempt int) time.Duration {
	d := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(maxReconnectDelay) {
		d = float64(maxReconnectDelay)
	}
	return time.Duration(d)
}

