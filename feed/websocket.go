package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alpaquero/alpaquero/market"
)

// WebsocketOptions configures a websocket bar feed.
type WebsocketOptions struct {
	URL     string
	Symbols []string

	ReadTimeout  time.Duration // default 60s
	WriteTimeout time.Duration // default 10s
	PingInterval time.Duration // default 20s

	Log *zap.Logger
}

func (o *WebsocketOptions) defaults() {
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval == 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
}

// Websocket streams bars from a JSON-over-websocket endpoint. One
// goroutine reads and decodes, one writes pings and subscriptions.
// Malformed bar messages are logged and skipped; only transport
// failures end the feed.
type Websocket struct {
	opts WebsocketOptions
	conn *websocket.Conn
	log  *zap.Logger

	bars chan market.Bar
	send chan []byte
	done chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

// DialWebsocket connects, subscribes to the configured symbols and
// starts the pumps. The returned feed is live immediately.
func DialWebsocket(ctx context.Context, opts WebsocketOptions) (*Websocket, error) {
	opts.defaults()
	if opts.URL == "" {
		return nil, fmt.Errorf("feed url is required")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	w := &Websocket{
		opts: opts,
		conn: conn,
		log:  opts.Log,
		bars: make(chan market.Bar, 256),
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}

	go w.readPump()
	go w.writePump()

	if len(opts.Symbols) > 0 {
		if err := w.subscribe(opts.Symbols); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Websocket) Bars() <-chan market.Bar { return w.bars }

func (w *Websocket) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close requests shutdown. The bars channel closes once the read pump
// drains; a close requested here does not count as a feed error.
func (w *Websocket) Close() error {
	w.once.Do(func() {
		close(w.done)
		deadline := time.Now().Add(w.opts.WriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = w.conn.Close()
	})
	return nil
}

func (w *Websocket) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *Websocket) subscribe(symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, s+"@bar")
	}
	payload, err := json.Marshal(map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	select {
	case w.send <- payload:
		return nil
	case <-w.done:
		return fmt.Errorf("subscribe: feed closed")
	}
}

func (w *Websocket) readPump() {
	defer close(w.bars)

	w.conn.SetReadLimit(1 << 20)
	w.conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				// shutdown we asked for
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					w.setErr(fmt.Errorf("read: %w", err))
				}
			}
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))

		b, ok, err := parseBarMessage(raw)
		if err != nil {
			w.log.Warn("bad bar message", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		select {
		case w.bars <- b:
		case <-w.done:
			return
		}
	}
}

func (w *Websocket) writePump() {
	ticker := time.NewTicker(w.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case msg := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				w.setErr(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// barMessage is the wire shape of one bar event. Prices arrive as
// strings, matching how exchange streams quote them.
type barMessage struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Time   string `json:"t"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// parseBarMessage decodes raw into a bar. ok=false for events other
// than bars (subscription acks, heartbeats), which are not errors.
func parseBarMessage(raw []byte) (market.Bar, bool, error) {
	var m barMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return market.Bar{}, false, fmt.Errorf("decode: %w", err)
	}
	if m.Event != "bar" {
		return market.Bar{}, false, nil
	}
	b, err := m.bar()
	if err != nil {
		return market.Bar{}, false, err
	}
	return b, true, nil
}

// bar converts the wire fields. The REST backfill path decodes the
// same shape without the event envelope.
func (m barMessage) bar() (market.Bar, error) {
	if m.Symbol == "" {
		return market.Bar{}, fmt.Errorf("bar without symbol")
	}

	t, err := time.Parse(time.RFC3339, m.Time)
	if err != nil {
		return market.Bar{}, fmt.Errorf("bad time %q: %w", m.Time, err)
	}

	b := market.Bar{Symbol: m.Symbol, Time: t}
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", m.Open, &b.Open},
		{"high", m.High, &b.High},
		{"low", m.Low, &b.Low},
		{"close", m.Close, &b.Close},
	} {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	if m.Volume != "" {
		v, err := strconv.ParseFloat(m.Volume, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad volume %q: %w", m.Volume, err)
		}
		b.Volume = v
	}
	if b.High < b.Low {
		return market.Bar{}, fmt.Errorf("%s: high %g below low %g", m.Symbol, b.High, b.Low)
	}
	return b, nil
}
