package webaccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/VentureIA/chorus/internal/eventbus"
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer ws.Close()

	// Unblocks a read pending at any stage, including before auth.
	stop := context.AfterFunc(s.ctx, func() { _ = ws.Close() })
	defer stop()

	if !s.authenticate(ws) {
		return
	}

	total := s.clients.Add(1)
	s.log.Info("websocket client connected", "remote", r.RemoteAddr, "total", total)
	defer func() {
		total := s.clients.Add(-1)
		s.log.Info("websocket client disconnected", "remote", r.RemoteAddr, "total", total)
	}()

	newConn(s, ws).run()
}

// authenticate waits for the first frame, which must be a valid Auth.
// Timeouts and read errors close the connection without a reply.
func (s *Server) authenticate(ws *websocket.Conn) bool {
	ws.SetReadLimit(authFrameLimit)
	_ = ws.SetReadDeadline(time.Now().Add(s.authTimeout))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		s.log.Debug("websocket closed before auth", "err", err)
		return false
	}
	if mt != websocket.TextMessage {
		return false
	}
	_ = ws.SetReadDeadline(time.Time{})

	msg, err := DecodeClientMessage(data)
	auth, ok := msg.(Auth)
	switch {
	case err != nil || !ok:
		s.writeDirect(ws, AuthResult{Success: false, Error: "First message must be Auth"})
		return false
	case !s.tokens.Validate(auth.Token):
		s.writeDirect(ws, AuthResult{Success: false, Error: "Invalid or expired token"})
		return false
	}
	ws.SetReadLimit(frameLimit)
	s.writeDirect(ws, AuthResult{Success: true})
	return true
}

// writeDirect is only used before the connection's writer goroutine exists.
func (s *Server) writeDirect(ws *websocket.Conn, m ServerMessage) {
	b, err := EncodeServerMessage(m)
	if err != nil {
		s.log.Error("encode server message", "err", err)
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = ws.WriteMessage(websocket.TextMessage, b)
}

// conn is one authenticated client. Only writeLoop writes to the socket;
// every other producer goes through out.
type conn struct {
	srv *Server
	ws  *websocket.Conn
	out chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	subsMu sync.RWMutex
	subs   map[string]struct{}
}

func newConn(s *Server, ws *websocket.Conn) *conn {
	ctx, cancel := context.WithCancel(s.ctx)
	return &conn{
		srv:    s,
		ws:     ws,
		out:    make(chan []byte, outboundQueueSize),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]struct{}),
	}
}

func (c *conn) run() {
	rx := c.srv.bus.Subscribe()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer wg.Done()
		defer rx.Close()
		c.forwardEvents(rx)
	}()

	// A blocked ReadMessage only returns once the socket closes.
	stop := context.AfterFunc(c.ctx, func() { _ = c.ws.Close() })
	defer stop()

	c.readLoop()

	c.cancel()
	wg.Wait()
}

func (c *conn) readLoop() {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			c.srv.log.Warn("invalid websocket message", "err", err)
			continue
		}

		switch m := msg.(type) {
		case Auth:
			// Already authenticated.
		case Invoke:
			go c.invoke(m)
		case Subscribe:
			c.subsMu.Lock()
			c.subs[m.Event] = struct{}{}
			c.subsMu.Unlock()
		case Unsubscribe:
			c.subsMu.Lock()
			delete(c.subs, m.Event)
			c.subsMu.Unlock()
		}
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case b := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.srv.log.Debug("websocket write failed", "err", err)
				c.cancel()
				return
			}
		}
	}
}

func (c *conn) forwardEvents(rx *eventbus.Receiver) {
	for {
		ev, err := rx.Recv(c.ctx)
		var lagged *eventbus.LaggedError
		switch {
		case errors.As(err, &lagged):
			c.srv.log.Warn("websocket client lagged", "dropped", lagged.Dropped)
			continue
		case err != nil:
			return
		}

		if !c.subscribed(ev.Name) {
			continue
		}
		if !c.send(EventMessage{Event: ev.Name, Payload: ev.Payload}) {
			return
		}
	}
}

func (c *conn) subscribed(event string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	_, ok := c.subs[event]
	return ok
}

// invoke runs one command and queues exactly one correlated result. If the
// connection is gone by then the result is dropped.
func (c *conn) invoke(m Invoke) {
	res := InvokeResult{ID: m.ID}
	value, err := c.dispatch(m)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Result = value
		if res.Result == nil {
			res.Result = json.RawMessage("null")
		}
	}
	c.send(res)
}

func (c *conn) dispatch(m Invoke) (value json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.srv.log.Error("command panicked", "command", m.Command, "panic", r)
			err = fmt.Errorf("command %q panicked", m.Command)
		}
	}()
	return c.srv.dispatcher.Dispatch(c.ctx, m.Command, m.Args)
}

// send queues m for the writer; it reports false once the connection is closing.
func (c *conn) send(m ServerMessage) bool {
	b, err := EncodeServerMessage(m)
	if err != nil {
		c.srv.log.Error("encode server message", "err", err)
		return true
	}
	select {
	case c.out <- b:
		return true
	case <-c.ctx.Done():
		return false
	}
}
