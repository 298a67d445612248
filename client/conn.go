package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/net/proto"
)

const (
	connWriteWait = 10 * time.Second
	inboundQueue  = 256
)

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("client: connection closed")

// Conn is the websocket transport. A background reader queues inbound frames
// so the frame loop can drain them without blocking.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	inbound chan []byte
	done    chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to url presenting token as a bearer credential.
func Dial(ctx context.Context, url, token string) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	c := &Conn{
		ws:      ws,
		inbound: make(chan []byte, inboundQueue),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		select {
		case c.inbound <- payload:
		default:
			c.makeRoom()
			c.inbound <- payload
		}
	}
}

// makeRoom frees one inbound slot. Only the reader sends on inbound, so the
// refill cannot block.
func (c *Conn) makeRoom() {
	queued := make([][]byte, 0, cap(c.inbound))
drain:
	for len(queued) < cap(c.inbound) {
		select {
		case frame := <-c.inbound:
			queued = append(queued, frame)
		default:
			break drain
		}
	}
	for _, frame := range evictFrame(queued) {
		c.inbound <- frame
	}
}

// evictFrame removes the oldest state frame, since the next tick's snapshot
// supersedes it. Discrete messages are dropped only when no state frame is
// queued, oldest first.
func evictFrame(frames [][]byte) [][]byte {
	if len(frames) == 0 {
		return frames
	}
	victim := 0
	for i, frame := range frames {
		if env, err := proto.DecodeEnvelope(frame); err == nil && env.Type == proto.TypeState {
			victim = i
			break
		}
	}
	return append(frames[:victim], frames[victim+1:]...)
}

// Inbound yields raw server frames.
func (c *Conn) Inbound() <-chan []byte { return c.inbound }

// Done closes when the reader stops.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the reader stopped.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Send satisfies Sender.
func (c *Conn) Send(msg proto.ClientMessage) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := proto.EncodeClientMessage(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(connWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and releases the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(connWriteWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
