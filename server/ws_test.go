package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/civicline/civicline-relay/model"
)

func startGateway(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)
	return env, ts
}

func dialGateway(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connect"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev model.Event) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ev))
}

func readEvent(t *testing.T, conn *websocket.Conn) model.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev model.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestGatewayChatFlow(t *testing.T) {
	env, ts := startGateway(t)
	citizen := dialGateway(t, ts)
	admin := dialGateway(t, ts)

	// Both parties join the same pair; the session id is stable.
	sendEvent(t, citizen, model.Event{Event: model.EventJoinSession, UserID: "u1", AdminID: "a1"})
	ready := readEvent(t, citizen)
	require.Equal(t, model.EventSessionReady, ready.Event)
	require.Equal(t, "u1-a1", ready.SessionID)

	sendEvent(t, admin, model.Event{Event: model.EventJoinSession, UserID: "u1", AdminID: "a1"})
	require.Equal(t, "u1-a1", readEvent(t, admin).SessionID)

	// A message fans out to both members, sender included.
	sendEvent(t, citizen, model.Event{
		Event:     model.EventSendMessage,
		SessionID: "u1-a1",
		Sender:    "u1",
		Kind:      model.KindText,
		Content:   "hi",
	})
	for _, conn := range []*websocket.Conn{citizen, admin} {
		ev := readEvent(t, conn)
		require.Equal(t, model.EventMessage, ev.Event)
		require.Equal(t, "u1", ev.Message.Sender)
		require.Equal(t, model.KindText, ev.Message.Kind)
		require.Equal(t, "hi", ev.Message.Content)
		require.False(t, ev.Message.Timestamp.IsZero())
	}

	// Signaling reaches the peer only; the sender's next event is the
	// termination, proving the offer was not echoed back.
	sendEvent(t, citizen, model.Event{
		Event:     model.EventOffer,
		SessionID: "u1-a1",
		Payload:   json.RawMessage(`{"sdp":"v=0..."}`),
	})
	offer := readEvent(t, admin)
	require.Equal(t, model.EventOffer, offer.Event)
	require.JSONEq(t, `{"sdp":"v=0..."}`, string(offer.Payload))

	sendEvent(t, admin, model.Event{Event: model.EventTerminateSession, SessionID: "u1-a1"})
	for _, conn := range []*websocket.Conn{citizen, admin} {
		ev := readEvent(t, conn)
		require.Equal(t, model.EventSessionTerminated, ev.Event)
		require.Equal(t, "u1-a1", ev.SessionID)
	}
	require.False(t, env.registry.Has("u1-a1"))
}

func TestGatewayMediaMessage(t *testing.T) {
	_, ts := startGateway(t)
	citizen := dialGateway(t, ts)

	sendEvent(t, citizen, model.Event{Event: model.EventJoinSession, UserID: "u1", AdminID: "a1"})
	readEvent(t, citizen)

	sendEvent(t, citizen, model.Event{
		Event:     model.EventSendMessage,
		SessionID: "u1-a1",
		Sender:    "u1",
		Kind:      model.KindImage,
		Content:   "https://cdn.example/photo.jpg",
	})
	ev := readEvent(t, citizen)
	require.Equal(t, model.KindImage, ev.Message.Kind)
	require.Equal(t, "https://cdn.example/photo.jpg", ev.Message.Content)
}

func TestGatewaySendMessageUnknownSession(t *testing.T) {
	_, ts := startGateway(t)
	conn := dialGateway(t, ts)

	sendEvent(t, conn, model.Event{
		Event:     model.EventSendMessage,
		SessionID: "nope",
		Sender:    "u1",
		Kind:      model.KindText,
		Content:   "hi",
	})
	ev := readEvent(t, conn)
	require.Equal(t, model.EventError, ev.Event)
	require.Equal(t, "session_not_found", ev.Code)
}

func TestGatewaySignalUnknownSession(t *testing.T) {
	_, ts := startGateway(t)
	conn := dialGateway(t, ts)

	sendEvent(t, conn, model.Event{
		Event:     model.EventOffer,
		SessionID: "nope",
		Payload:   json.RawMessage(`{}`),
	})
	ev := readEvent(t, conn)
	require.Equal(t, model.EventError, ev.Event)
	require.Equal(t, "session_not_found", ev.Code)
}

func TestGatewaySessionSurvivesDisconnect(t *testing.T) {
	env, ts := startGateway(t)
	citizen := dialGateway(t, ts)

	sendEvent(t, citizen, model.Event{Event: model.EventJoinSession, UserID: "u1", AdminID: "a1"})
	readEvent(t, citizen)
	require.NoError(t, citizen.Close())

	require.Eventually(t, func() bool {
		return env.hub.GroupSize("u1-a1") == 0
	}, 2*time.Second, 10*time.Millisecond)
	// The session itself outlives the connection.
	require.True(t, env.registry.Has("u1-a1"))
}

func TestGatewayRejectsMalformedFrames(t *testing.T) {
	_, ts := startGateway(t)
	conn := dialGateway(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":`)))

	// The gateway may flush an error event before closing; either way the
	// connection must end up closed.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 2; i++ {
		var ev model.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		require.Equal(t, model.EventError, ev.Event)
	}
	t.Fatal("connection still open after malformed frame")
}

func TestGatewayRejectsUnknownKind(t *testing.T) {
	_, ts := startGateway(t)
	conn := dialGateway(t, ts)

	sendEvent(t, conn, model.Event{Event: model.EventJoinSession, UserID: "u1", AdminID: "a1"})
	readEvent(t, conn)

	sendEvent(t, conn, model.Event{
		Event:     model.EventSendMessage,
		SessionID: "u1-a1",
		Sender:    "u1",
		Kind:      "audio",
		Content:   "x",
	})
	ev := readEvent(t, conn)
	require.Equal(t, model.EventError, ev.Event)
	require.Equal(t, "bad_message", ev.Code)
}
