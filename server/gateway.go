package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Gateway accepts websocket connections, binds each to a Session, pumps frames into it and
// guarantees the session is destroyed exactly once when the connection ends.
type Gateway struct {
	cfg      Config
	deps     *Deps
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*Conn]struct{}
	draining bool
	wg       sync.WaitGroup
}

func NewGateway(cfg Config, deps Deps) *Gateway {
	cfg = cfg.withDefaults()
	if deps.Rules == nil {
		deps.Rules = NewMovementRules(cfg.MaxStep)
	}
	deps.normalize()
	g := &Gateway{
		cfg:   cfg,
		deps:  &deps,
		conns: make(map[*Conn]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) Registry() *Registry   { return g.deps.Registry }
func (g *Gateway) Metrics() *Metrics     { return g.deps.Metrics }
func (g *Gateway) Rules() *MovementRules { return g.deps.Rules }

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and starts the connection's pumps.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	draining := g.draining
	g.mu.Unlock()
	if draining {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Debugf("upgrade error: %v", err)
		return
	}

	conn := NewConn(ws, g.cfg.SendBuffer, g.deps.Metrics)
	if !g.track(conn) {
		conn.CloseWithCode(websocket.CloseGoingAway, "shutting down")
		return
	}
	sess := NewSession(conn, g.deps)
	g.deps.Metrics.IncOpened()
	Log.Debugw("connected", "session", sess.ID(), "remote", r.RemoteAddr)

	go conn.writePump()
	go g.readPump(conn, sess)
}

func (g *Gateway) track(c *Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.conns[c] = struct{}{}
	g.wg.Add(1)
	return true
}

func (g *Gateway) untrack(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
	g.wg.Done()
}

// readPump feeds frames to the session in arrival order. Its exit is the single close path.
func (g *Gateway) readPump(conn *Conn, sess *Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		conn.Close()
		sess.Destroy()
		g.deps.Metrics.IncClosed()
		Log.Debugw("disconnected", "session", sess.ID())
		g.untrack(conn)
	}()

	// a closed connection cancels in-flight identity and space lookups
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if g.cfg.JoinTimeout > 0 {
		t := time.AfterFunc(g.cfg.JoinTimeout, func() {
			if sess.State() == StateConnected {
				Log.Infow("join timeout", "session", sess.ID())
				conn.CloseWithCode(websocket.ClosePolicyViolation, "join timeout")
			}
		})
		defer t.Stop()
	}

	var limiter *rate.Limiter
	if g.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.cfg.RateLimit), g.cfg.RateBurst)
	}

	ws := conn.ws
	ws.SetReadLimit(g.cfg.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				Log.Debugw("read error", "session", sess.ID(), "err", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		if limiter != nil && !limiter.Allow() {
			g.deps.Metrics.IncRateLimited()
			Log.Infow("rate limit exceeded", "session", sess.ID(), "user", sess.UserID())
			conn.CloseWithCode(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		sess.HandleFrame(ctx, data)
	}
}

// Shutdown stops accepting connections, closes every live one and waits for their sessions to
// be destroyed or ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.draining = true
	conns := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.CloseWithCode(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LiveConnections is the number of connections whose teardown has not finished.
func (g *Gateway) LiveConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}
