// Package kvserver provides the TCP wire protocol server.
package kvserver

import (
	"errors"
	"io"
	"net"

	"github.com/oklog/ulid/v2"

	"github.com/noxkv/nox-go/internal/pubsub"
	"github.com/noxkv/nox-go/internal/resp"
	"github.com/noxkv/nox-go/internal/telemetry/logger"
)

// connHandler owns one client connection: its frame codec, its
// subscriber state and the delivery sink shared by all of its
// subscriptions.
type connHandler struct {
	srv  *Server
	conn net.Conn
	rc   *resp.Conn
	log  logger.Logger

	// subscriber mode is entered on the first SUBSCRIBE and left only
	// by disconnect.
	subscriber bool
	subs       map[string]*pubsub.Subscription
	sink       chan pubsub.Message
}

// readResult carries one frame (or the read error) from the reader
// goroutine to the handler loop.
type readResult struct {
	frame resp.Frame
	err   error
}

func newConnHandler(s *Server, c net.Conn) *connHandler {
	return &connHandler{
		srv:  s,
		conn: c,
		rc:   resp.NewConn(c),
		log: s.log.With(
			"conn_id", ulid.Make().String(),
			"remote", c.RemoteAddr().String(),
		),
		subs: make(map[string]*pubsub.Subscription),
		sink: make(chan pubsub.Message, s.cfg.SinkBuffer),
	}
}

// serve runs the connection to completion. Frames are read by a
// separate goroutine so the loop can also react to subscription
// deliveries and server shutdown while no command is in flight.
func (h *connHandler) serve() {
	defer h.close()

	h.log.Debug("connection opened")

	frames := make(chan readResult)
	readerDone := make(chan struct{})
	defer close(readerDone)

	go func() {
		for {
			f, err := h.rc.ReadFrame()
			select {
			case frames <- readResult{frame: f, err: err}:
			case <-readerDone:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-h.sink:
			if err := h.deliver(msg); err != nil {
				return
			}

		case r := <-frames:
			if r.err != nil {
				h.readFailed(r.err)
				return
			}
			closing := h.dispatch(r.frame)
			if err := h.rc.Flush(); err != nil {
				return
			}
			if closing {
				return
			}

		case <-h.srv.shutdown:
			h.log.Debug("connection closed by shutdown")
			return
		}
	}
}

func (h *connHandler) close() {
	for _, sub := range h.subs {
		sub.Cancel()
	}
	_ = h.conn.Close()
	h.log.Debug("connection closed")
}

// readFailed reports a terminal read error. Protocol violations get a
// final Error frame before the connection drops.
func (h *connHandler) readFailed(err error) {
	switch {
	case errors.Is(err, io.EOF):
	case errors.Is(err, resp.ErrConnReset):
		h.log.Debug("connection reset mid-frame")
	case errors.Is(err, resp.ErrLimitExceeded):
		h.log.Warn("protocol limit exceeded", "error", err)
		_ = h.rc.WriteFrame(resp.Error("ERR protocol limit exceeded"))
		_ = h.rc.Flush()
	case errors.Is(err, resp.ErrProtocol):
		h.log.Debug("protocol error", "error", err)
		_ = h.rc.WriteFrame(resp.Error("ERR protocol error"))
		_ = h.rc.Flush()
	default:
		h.log.Debug("connection read error", "error", err)
	}
}

// deliver writes one subscription message to the client.
func (h *connHandler) deliver(msg pubsub.Message) error {
	frame := resp.Array{
		resp.Bulk("message"),
		resp.Bulk(msg.Channel),
		resp.Bulk(msg.Payload),
	}
	if err := h.rc.WriteFrame(frame); err != nil {
		return err
	}
	return h.rc.Flush()
}

// dispatch executes one request frame and writes the response. The
// return value reports whether the connection should close.
func (h *connHandler) dispatch(f resp.Frame) bool {
	if h.srv.limiter != nil && !h.srv.limiter.allow(h.conn.RemoteAddr().String()) {
		h.countError()
		h.reply(resp.Error("ERR rate limit exceeded"))
		return false
	}

	cmd, err := ParseCommand(f)
	if err != nil {
		h.countError()
		var ce *CommandError
		if errors.As(err, &ce) {
			h.reply(resp.Error("ERR " + ce.Message))
		} else {
			h.reply(resp.Error("ERR " + err.Error()))
		}
		return false
	}

	if h.srv.metrics != nil {
		h.srv.metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()
	}

	if h.subscriber {
		switch cmd.(type) {
		case Subscribe, Unsubscribe, Ping, Quit:
		default:
			h.countError()
			h.reply(resp.Error("ERR only SUBSCRIBE, UNSUBSCRIBE, PING and QUIT are allowed in subscriber mode"))
			return false
		}
	}

	switch c := cmd.(type) {
	case Get:
		h.execGet(c)
	case Set:
		h.execSet(c)
	case Del:
		h.reply(resp.Integer(h.srv.store.Del(c.Keys...)))
	case Publish:
		h.reply(resp.Integer(h.srv.pubsub.Publish(c.Channel, c.Payload)))
	case Subscribe:
		h.execSubscribe(c)
	case Unsubscribe:
		h.execUnsubscribe(c)
	case Ping:
		if c.Message != nil {
			h.reply(resp.Bulk(c.Message))
		} else {
			h.reply(resp.Simple("PONG"))
		}
	case Quit:
		h.reply(resp.Simple("OK"))
		return true
	case Unknown:
		h.countError()
		h.reply(resp.Error("ERR unknown command '" + c.Cmd + "'"))
	}
	return false
}

func (h *connHandler) execGet(c Get) {
	value, ok := h.srv.store.Get(c.Key)
	if !ok {
		h.reply(resp.Null{})
		return
	}
	h.reply(resp.Bulk(value))
}

func (h *connHandler) execSet(c Set) {
	if c.HasTTL {
		h.srv.store.SetTTL(c.Key, c.Value, c.TTL)
	} else {
		h.srv.store.Set(c.Key, c.Value)
	}
	h.reply(resp.Simple("OK"))
}

// execSubscribe enters subscriber mode and confirms each channel with
// the running subscription count.
func (h *connHandler) execSubscribe(c Subscribe) {
	h.subscriber = true
	for _, name := range c.Channels {
		if _, ok := h.subs[name]; !ok {
			h.subs[name] = h.srv.pubsub.Subscribe(name, h.sink)
		}
		h.reply(resp.Array{
			resp.Bulk("subscribe"),
			resp.Bulk(name),
			resp.Integer(len(h.subs)),
		})
	}
}

// execUnsubscribe drops the named subscriptions, or all of them when no
// channels are given. Each drop is confirmed with the remaining count.
func (h *connHandler) execUnsubscribe(c Unsubscribe) {
	channels := c.Channels
	if len(channels) == 0 {
		channels = make([]string, 0, len(h.subs))
		for name := range h.subs {
			channels = append(channels, name)
		}
	}

	if len(channels) == 0 {
		h.reply(resp.Array{
			resp.Bulk("unsubscribe"),
			resp.Null{},
			resp.Integer(0),
		})
		return
	}

	for _, name := range channels {
		if sub, ok := h.subs[name]; ok {
			sub.Cancel()
			delete(h.subs, name)
		}
		h.reply(resp.Array{
			resp.Bulk("unsubscribe"),
			resp.Bulk(name),
			resp.Integer(len(h.subs)),
		})
	}
}

func (h *connHandler) reply(f resp.Frame) {
	_ = h.rc.WriteFrame(f)
}

func (h *connHandler) countError() {
	if h.srv.metrics != nil {
		h.srv.metrics.CommandErrors.Inc()
	}
}
