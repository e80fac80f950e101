package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"veery/internal/protocol"
	"veery/internal/relay"
)

// client sits between one websocket connection and the relay. Outbound
// traffic goes through the buffered send channel so the write pump owns the
// connection's write side; a full buffer counts as a failed delivery.
type client struct {
	relay *relay.Relay
	conn  *websocket.Conn
	send  chan any
	done  chan struct{}
	once  sync.Once
	log   logrus.FieldLogger
}

func newClient(r *relay.Relay, conn *websocket.Conn, log logrus.FieldLogger) *client {
	return &client{
		relay: r,
		conn:  conn,
		send:  make(chan any, 256),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Deliver queues v for the write pump without blocking.
func (c *client) Deliver(v any) error {
	select {
	case <-c.done:
		return errors.New("session closed")
	default:
	}
	select {
	case c.send <- v:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readPump() {
	defer func() {
		c.relay.Registry().Unregister(c)
		c.close()
	}()
	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		var in protocol.Inbound
		if err := json.Unmarshal(messageBytes, &in); err != nil {
			c.log.WithError(err).Warn("skipping unparseable message event")
			continue
		}

		// identity is asserted per event, not bound to this connection
		_, err = c.relay.Submit(context.Background(), in.UserID, in.Recipient, in.Content, c)
		if err != nil {
			if errors.Is(err, relay.ErrUnknownSender) || errors.Is(err, relay.ErrValidation) {
				c.Deliver(protocol.ErrorReply{Error: "Invalid user ID"})
				continue
			}
			c.log.WithError(err).Error("message submission failed")
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case v := <-c.send:
			if err := c.conn.WriteJSON(v); err != nil {
				c.log.WithError(err).Warn("websocket write failed")
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
