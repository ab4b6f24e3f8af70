package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed between frames or pongs from the peer.
	pongWait = 60 * time.Second
	// Ping period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Conn owns a websocket and its outbound queue. A full queue disconnects the peer rather than
// dropping frames, so every live client sees every room event addressed to it.
type Conn struct {
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	metrics *Metrics
}

func NewConn(ws *websocket.Conn, buffer int, metrics *Metrics) *Conn {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Conn{
		ws:      ws,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		metrics: metrics,
	}
}

// Enqueue queues b for the write pump without blocking.
func (c *Conn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		c.metrics.IncSlowConsumer()
		Log.Infow("send queue full, disconnecting", "remote", c.ws.RemoteAddr().String())
		c.Close()
		return false
	}
}

// Close tears the socket down. Safe to call from any goroutine, any number of times.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// CloseWithCode sends a close frame before closing.
func (c *Conn) CloseWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.Close()
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// writePump is the only writer of data frames.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
