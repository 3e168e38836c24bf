package market

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
)

const (
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 30 * time.Second
	maxFills        = 500
)

var errNotConnected = errors.New("websocket not connected")

// Subscription is the body of a {"method":"subscribe"} request,
// e.g. {"type":"allMids"} or {"type":"l2Book","coin":"BTC"}.
type Subscription map[string]string

func (s Subscription) key() string {
	return s["type"] + "|" + s["coin"] + "|" + s["user"]
}

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type allMidsData struct {
	Mids map[string]string `json:"mids"`
}

// Stream keeps one websocket to the exchange and fans the allMids, l2Book
// and userFills channels into in-memory state.
type Stream struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger

	mu          sync.RWMutex
	writeMu     sync.Mutex
	conn        *websocket.Conn
	subs        []Subscription
	mids        map[string]midEntry
	books       map[string]*Orderbook
	fills       []Fill
	isConnected bool
	started     atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStream(url string, log *slog.Logger) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    logger.Component(log, "market_stream"),
		mids:   make(map[string]midEntry),
		books:  make(map[string]*Orderbook),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the connection loop in a background goroutine.
func (s *Stream) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.runLoop()
}

// Stop closes the stream and waits for the loop to exit.
func (s *Stream) Stop() {
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	if s.started.Load() {
		<-s.done
	}
}

func (s *Stream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

func (s *Stream) SubscribeMids() {
	s.subscribe(Subscription{"type": "allMids"})
}

func (s *Stream) SubscribeBook(coin string) {
	s.mu.Lock()
	if _, ok := s.books[coin]; !ok {
		s.books[coin] = NewOrderbook(coin)
	}
	s.mu.Unlock()
	s.subscribe(Subscription{"type": "l2Book", "coin": coin})
}

func (s *Stream) SubscribeUserFills(user string) {
	s.subscribe(Subscription{"type": "userFills", "user": user})
}

func (s *Stream) subscribe(sub Subscription) {
	s.mu.Lock()
	for _, existing := range s.subs {
		if existing.key() == sub.key() {
			s.mu.Unlock()
			return
		}
	}
	s.subs = append(s.subs, sub)
	connected := s.isConnected
	s.mu.Unlock()

	if connected {
		if err := s.send(sub); err != nil {
			s.log.Warn("subscribe failed", "subscription", sub, "error", err)
		}
	}
}

func (s *Stream) runLoop() {
	defer close(s.done)
	delay := ReconnBaseDelay

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.connect()
		if err != nil {
			s.log.Error("connection failed", "error", err, "retry_in", delay)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}
		delay = ReconnBaseDelay

		s.mu.Lock()
		s.conn = conn
		s.isConnected = true
		subs := append([]Subscription(nil), s.subs...)
		s.mu.Unlock()

		resubscribed := true
		for _, sub := range subs {
			if err := s.send(sub); err != nil {
				s.log.Error("failed to resubscribe", "error", err)
				resubscribed = false
				break
			}
		}

		if resubscribed {
			pingDone := make(chan struct{})
			go s.pingLoop(pingDone)
			s.readLoop(conn)
			close(pingDone)
		}
		conn.Close()

		s.mu.Lock()
		s.isConnected = false
		s.conn = nil
		s.mu.Unlock()
	}
}

func (s *Stream) connect() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// pingLoop sends the application-level {"method":"ping"} the server expects
// on idle connections. Any inbound frame, pong included, extends the read deadline.
func (s *Stream) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := s.writeJSON(map[string]string{"method": "ping"}); err != nil {
				return
			}
		}
	}
}

func (s *Stream) send(sub Subscription) error {
	return s.writeJSON(map[string]any{
		"method":       "subscribe",
		"subscription": sub,
	})
}

func (s *Stream) writeJSON(v any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

func (s *Stream) readLoop(conn *websocket.Conn) {
	readTimeout := PingPeriod + 20*time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				s.log.Warn("read error", "error", err)
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *Stream) handleMessage(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Debug("unparseable frame", "error", err)
		return
	}
	switch env.Channel {
	case "allMids":
		var data allMidsData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			s.log.Debug("bad allMids frame", "error", err)
			return
		}
		s.applyMids(data.Mids)
	case "l2Book":
		var data bookData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			s.log.Debug("bad l2Book frame", "error", err)
			return
		}
		s.applyBook(data)
	case "userFills":
		var data userFillsData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			s.log.Debug("bad userFills frame", "error", err)
			return
		}
		s.applyFills(data)
	case "pong", "subscriptionResponse":
	case "error":
		s.log.Warn("stream error frame", "data", string(env.Data))
	}
}
