// Package gateway exposes the engine's audio device over a WebSocket. The
// embedding surface (browser, desktop shell, kiosk) connects once, streams
// microphone PCM to the server, and plays back the clips the server sends.
//
// Wire protocol: client-to-server binary messages are 16-bit little-endian
// PCM frames in the negotiated format. Server-to-client clips travel as a
// JSON envelope ({"type":"clip","id":N,"mime":…}) followed by one binary
// message with the encoded audio; the client answers with
// {"type":"played","id":N} once the clip finished, or
// {"type":"playback_error","id":N,"error":…}. The server sends
// {"type":"stop","id":N} to cut a clip short.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voxloop/voxloop/pkg/audio"
)

// frameBuffer is the source channel depth. The capture loop drains quickly;
// a stalled consumer drops frames rather than backpressuring the socket.
const frameBuffer = 64

// stopWriteTimeout bounds the best-effort stop notification.
const stopWriteTimeout = 2 * time.Second

// Config fixes the PCM format the client must stream.
type Config struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int

	// Channels. Default: 1.
	Channels int
}

func (c *Config) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// envelope is the JSON control message in both directions.
type envelope struct {
	Type  string `json:"type"`
	ID    int64  `json:"id,omitempty"`
	MIME  string `json:"mime,omitempty"`
	Error string `json:"error,omitempty"`
}

// Gateway is an [audio.Device] backed by one connected WebSocket client. At
// most one client is attached at a time; a new connection replaces the old
// one, which ends its capture stream and fails its in-flight playbacks.
// With no client attached, OpenSource and Play report
// [audio.ErrDeviceUnavailable].
type Gateway struct {
	cfg Config

	mu      sync.Mutex
	conn    *websocket.Conn
	source  *wsSource
	pending map[int64]*wsPlayback
	nextID  int64
}

var _ audio.Device = (*Gateway)(nil)

// New creates a Gateway with no client attached.
func New(cfg Config) *Gateway {
	cfg.applyDefaults()
	return &Gateway{cfg: cfg, pending: make(map[int64]*wsPlayback)}
}

// Connected reports whether a client is currently attached.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn != nil
}

// Handler upgrades the request to a WebSocket and serves the client until it
// disconnects.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("gateway: websocket accept failed", "error", err)
			return
		}
		slog.Info("gateway: client connected", "remote", r.RemoteAddr)

		g.attach(conn)
		g.readLoop(r.Context(), conn)
	}
}

// ─── audio.Device ────────────────────────────────────────────────────────────

// OpenSource implements [audio.Device]. One source may be open at a time.
func (g *Gateway) OpenSource(_ context.Context) (audio.Source, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil, fmt.Errorf("gateway: no client attached: %w", audio.ErrDeviceUnavailable)
	}
	if g.source != nil {
		return nil, errors.New("gateway: capture source already open")
	}

	src := &wsSource{
		g:       g,
		frames:  make(chan audio.Frame, frameBuffer),
		started: time.Now(),
	}
	g.source = src
	return src, nil
}

// Sink implements [audio.Device].
func (g *Gateway) Sink() audio.Sink { return (*gatewaySink)(g) }

// gatewaySink adapts Gateway to [audio.Sink] without a second allocation.
type gatewaySink Gateway

func (s *gatewaySink) Play(ctx context.Context, clip audio.Clip) (audio.Playback, error) {
	return (*Gateway)(s).play(ctx, clip)
}

func (g *Gateway) play(ctx context.Context, clip audio.Clip) (audio.Playback, error) {
	g.mu.Lock()
	conn := g.conn
	if conn == nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("gateway: no client attached: %w", audio.ErrDeviceUnavailable)
	}
	g.nextID++
	pb := &wsPlayback{g: g, id: g.nextID, done: make(chan error, 1)}
	g.pending[pb.id] = pb
	g.mu.Unlock()

	if err := wsjson.Write(ctx, conn, envelope{Type: "clip", ID: pb.id, MIME: clip.MIMEType}); err != nil {
		g.drop(pb.id)
		return nil, fmt.Errorf("gateway: send clip envelope: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, clip.Data); err != nil {
		g.drop(pb.id)
		return nil, fmt.Errorf("gateway: send clip: %w", err)
	}
	return pb, nil
}

// ─── Connection lifecycle ────────────────────────────────────────────────────

// attach installs conn as the active client, displacing any previous one.
func (g *Gateway) attach(conn *websocket.Conn) {
	g.mu.Lock()
	old := g.conn
	src := g.source
	g.source = nil
	pend := g.pending
	g.pending = make(map[int64]*wsPlayback)
	g.conn = conn
	g.mu.Unlock()

	if src != nil {
		close(src.frames)
	}
	for _, pb := range pend {
		pb.resolve(errors.New("gateway: client replaced"))
	}
	if old != nil {
		old.Close(websocket.StatusPolicyViolation, "replaced by new client")
	}
}

// detach tears down conn's state if it is still the active client.
func (g *Gateway) detach(conn *websocket.Conn, cause error) {
	g.mu.Lock()
	if g.conn != conn {
		g.mu.Unlock()
		return
	}
	g.conn = nil
	src := g.source
	g.source = nil
	pend := g.pending
	g.pending = make(map[int64]*wsPlayback)
	g.mu.Unlock()

	if src != nil {
		close(src.frames)
	}
	for _, pb := range pend {
		pb.resolve(fmt.Errorf("gateway: client disconnected: %w", cause))
	}
	conn.Close(websocket.StatusNormalClosure, "")
	slog.Info("gateway: client disconnected", "error", cause)
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			g.detach(conn, err)
			return
		}
		switch typ {
		case websocket.MessageBinary:
			g.deliverFrame(data)
		case websocket.MessageText:
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				slog.Warn("gateway: bad control message", "error", err)
				continue
			}
			g.handleControl(env)
		}
	}
}

// deliverFrame routes one PCM frame to the open source, if any. Frames
// arriving with no open source, or faster than the consumer drains them, are
// dropped.
func (g *Gateway) deliverFrame(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	src := g.source
	if src == nil {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	frame := audio.Frame{
		Data:       buf,
		SampleRate: g.cfg.SampleRate,
		Channels:   g.cfg.Channels,
		Timestamp:  time.Since(src.started),
	}
	select {
	case src.frames <- frame:
	default:
		slog.Debug("gateway: frame dropped, consumer stalled")
	}
}

func (g *Gateway) handleControl(env envelope) {
	switch env.Type {
	case "played":
		g.resolvePlayback(env.ID, nil)
	case "playback_error":
		g.resolvePlayback(env.ID, errors.New(env.Error))
	default:
		slog.Warn("gateway: unknown control message", "type", env.Type)
	}
}

func (g *Gateway) resolvePlayback(id int64, err error) {
	g.mu.Lock()
	pb := g.pending[id]
	delete(g.pending, id)
	g.mu.Unlock()

	if pb != nil {
		pb.resolve(err)
	}
}

// drop removes a pending playback without resolving it; used when the clip
// never made it onto the wire.
func (g *Gateway) drop(id int64) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

// releaseSource detaches src as the gateway's open source.
func (g *Gateway) releaseSource(src *wsSource) {
	g.mu.Lock()
	owned := g.source == src
	if owned {
		g.source = nil
	}
	g.mu.Unlock()

	if owned {
		close(src.frames)
	}
}

// ─── Source / Playback ───────────────────────────────────────────────────────

type wsSource struct {
	g       *Gateway
	frames  chan audio.Frame
	started time.Time
	once    sync.Once
}

var _ audio.Source = (*wsSource)(nil)

func (s *wsSource) Frames() <-chan audio.Frame { return s.frames }

func (s *wsSource) Close() error {
	s.once.Do(func() { s.g.releaseSource(s) })
	return nil
}

type wsPlayback struct {
	g  *Gateway
	id int64

	mu       sync.Mutex
	resolved bool
	done     chan error
}

var _ audio.Playback = (*wsPlayback)(nil)

func (p *wsPlayback) Done() <-chan error { return p.done }

// Stop tells the client to cut the clip and resolves the playback as
// stopped. The notification is best-effort; a client that already went away
// has nothing left to stop.
func (p *wsPlayback) Stop() error {
	p.g.mu.Lock()
	conn := p.g.conn
	delete(p.g.pending, p.id)
	p.g.mu.Unlock()

	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopWriteTimeout)
		_ = wsjson.Write(ctx, conn, envelope{Type: "stop", ID: p.id})
		cancel()
	}
	p.resolve(nil)
	return nil
}

func (p *wsPlayback) resolve(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.done <- err
	close(p.done)
}
