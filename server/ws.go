package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/civicline/civicline-relay/model"
	"github.com/civicline/civicline-relay/relay"
)

const (
	wsWriteWait       = 10 * time.Second
	wsMaxMessageBytes = 64 * 1024
	wsSendQueueSize   = 32
)

var upgrader = websocket.Upgrader{
	// The CORS middleware governs the HTTP surface; the gateway itself
	// accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Connect upgrades the connection and runs the gateway loop for it. One
// client may join any number of sessions over the same connection.
func (s *Server) Connect(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := newClient(s, conn, s.e.Logger)
	go cl.writePump()
	cl.readPump()
	return nil
}

// client is one connected transport endpoint. Outbound events go through a
// buffered send queue so one slow connection never stalls a broadcast.
type client struct {
	srv  *Server
	conn *websocket.Conn
	log  echo.Logger

	send      chan model.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(s *Server, conn *websocket.Conn, log echo.Logger) *client {
	return &client{
		srv:  s,
		conn: conn,
		log:  log,
		send: make(chan model.Event, wsSendQueueSize),
		done: make(chan struct{}),
	}
}

// Deliver implements relay.Subscriber. It never blocks: when the queue is
// full the event is dropped for this connection only.
func (cl *client) Deliver(ev model.Event) bool {
	select {
	case <-cl.done:
		return false
	default:
	}
	select {
	case cl.send <- ev:
		return true
	default:
		cl.log.Warnf("send queue full, dropping %s event", ev.Event)
		return false
	}
}

func (cl *client) writePump() {
	for {
		select {
		case ev := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteJSON(ev); err != nil {
				cl.close()
				return
			}
		case <-cl.done:
			return
		}
	}
}

func (cl *client) readPump() {
	defer cl.close()
	defer cl.srv.deps.Hub.UnsubscribeAll(cl)

	cl.conn.SetReadLimit(wsMaxMessageBytes)
	for {
		msgType, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			cl.fail("bad_message", "expected text message", websocket.CloseUnsupportedData)
			return
		}
		ev, err := parseEvent(data)
		if err != nil {
			cl.fail("bad_message", err.Error(), websocket.ClosePolicyViolation)
			return
		}
		cl.handleEvent(ev)
	}
}

func (cl *client) handleEvent(ev *model.Event) {
	switch ev.Event {
	case model.EventJoinSession:
		cl.handleJoin(ev)
	case model.EventSendMessage:
		cl.handleSendMessage(ev)
	case model.EventOffer, model.EventAnswer, model.EventICECandidate:
		cl.handleSignal(ev)
	case model.EventTerminateSession:
		cl.handleTerminate(ev)
	default:
		cl.sendError("bad_message", fmt.Sprintf("unexpected event %q", ev.Event))
	}
}

func (cl *client) handleJoin(ev *model.Event) {
	if ev.UserID == "" || ev.AdminID == "" {
		cl.sendError("bad_message", "joinSession requires user_id and admin_id")
		return
	}
	sessionID, _ := cl.srv.deps.Registry.CreateSession(ev.UserID, ev.AdminID)
	cl.srv.deps.Hub.Subscribe(sessionID, cl)
	// Acknowledged to the joining connection only, not the group.
	cl.Deliver(model.Event{Event: model.EventSessionReady, SessionID: sessionID})
}

func (cl *client) handleSendMessage(ev *model.Event) {
	if !ev.Kind.Valid() {
		cl.sendError("bad_message", fmt.Sprintf("unknown message kind %q", ev.Kind))
		return
	}
	_, err := cl.srv.deps.Broadcaster.PostMessage(context.Background(), ev.SessionID, ev.Sender, ev.Kind, ev.Content)
	if errors.Is(err, relay.ErrSessionNotFound) {
		cl.sendError("session_not_found", fmt.Sprintf("no live session %s", ev.SessionID))
		return
	}
	// No direct reply: the sender's copy arrives through the broadcast.
}

func (cl *client) handleSignal(ev *model.Event) {
	err := cl.srv.deps.Signaler.Relay(ev.SessionID, ev.Event, ev.Payload, cl)
	if errors.Is(err, relay.ErrSessionNotFound) {
		cl.sendError("session_not_found", fmt.Sprintf("no live session %s", ev.SessionID))
	}
}

func (cl *client) handleTerminate(ev *model.Event) {
	// Notify the group before dropping it so every member observes the
	// termination.
	cl.srv.deps.Hub.Broadcast(ev.SessionID, model.Event{
		Event:     model.EventSessionTerminated,
		SessionID: ev.SessionID,
	})
	if err := cl.srv.deps.Registry.TerminateSession(ev.SessionID); err != nil {
		// Terminating an unknown id is best-effort cleanup, not an error.
		cl.log.Debugf("terminate %s: %s", ev.SessionID, err)
	}
	cl.srv.deps.Hub.DropGroup(ev.SessionID)
	if cl.srv.deps.Recorder != nil {
		_ = cl.srv.deps.Recorder.RecordTermination(context.Background(), ev.SessionID)
	}
}

func (cl *client) sendError(code, reason string) {
	cl.Deliver(model.Event{Event: model.EventError, Code: code, Reason: reason})
}

func (cl *client) fail(code, reason string, closeCode int) {
	cl.sendError(code, reason)
	_ = cl.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, reason), time.Now().Add(wsWriteWait))
}

func (cl *client) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
		_ = cl.conn.Close()
	})
}
