package relay

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"whist/internal/ports"
	"whist/internal/sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one peer's connection to the relay, exposed to the engine as a
// ports.Transport. Outbound payloads are wrapped in envelopes carrying the
// sender identity so receivers can tell echoes from peer traffic.
type Client struct {
	conn    *websocket.Conn
	localID string
	logger  *zap.Logger

	frames chan ports.Frame

	writeMu   gosync.Mutex
	closeOnce gosync.Once
}

// Dial connects to the relay and joins the given session room.
func Dial(ctx context.Context, hubURL, sessionID, localID string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	url := fmt.Sprintf("%s?session=%s", hubURL, sessionID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", hubURL, err)
	}

	c := &Client{
		conn:    conn,
		localID: localID,
		logger:  logger,
		frames:  make(chan ports.Frame, 64),
	}
	go c.readLoop()
	return c, nil
}

// Send publishes one tagged payload to the session room. The relay will
// deliver it to every room member, this client included.
func (c *Client) Send(op int64, data []byte) error {
	env, err := sync.NewEnvelope(c.localID, op, json.RawMessage(data))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// Receive returns the inbound frame stream. The channel closes when the
// connection drops.
func (c *Client) Receive() <-chan ports.Frame {
	return c.frames
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("relay read failed", zap.Error(err))
			}
			return
		}

		var env sync.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn("malformed relay frame dropped", zap.Error(err))
			continue
		}

		c.frames <- ports.Frame{ID: env.ID, Op: env.Op, Data: env.Data, Sender: env.Sender}
	}
}
