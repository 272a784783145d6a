package internal

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startWSServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	server := newTestServer(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.ServeWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return server, ts
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	return ev
}

func expectNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var ev Event
	if err := conn.ReadJSON(&ev); err == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func expectPresence(t *testing.T, conn *websocket.Conn, want ...int64) {
	t.Helper()
	ev := readEvent(t, conn)
	if ev.Type != EventPresence {
		t.Fatalf("event type = %q; want %q", ev.Type, EventPresence)
	}
	got := append([]int64(nil), ev.Online...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(got) != len(want) {
		t.Fatalf("online set = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("online set = %v; want %v", got, want)
		}
	}
}

func waitForOffline(t *testing.T, server *Server, userID int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !server.registry.Online(userID) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d still online", userID)
}

func TestAnnounceAndPresenceBroadcast(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")
	bob := createTestUser(t, server, "bob", "hunter22")

	aliceConn := dialWS(t, ts, testToken(t, server, alice))
	if err := aliceConn.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID}); err != nil {
		t.Fatalf("announce alice: %v", err)
	}
	expectPresence(t, aliceConn, alice.ID)

	bobConn := dialWS(t, ts, testToken(t, server, bob))
	if err := bobConn.WriteJSON(Event{Type: EventAnnounce, UserID: bob.ID}); err != nil {
		t.Fatalf("announce bob: %v", err)
	}
	// both ends see the grown set.
	expectPresence(t, bobConn, alice.ID, bob.ID)
	expectPresence(t, aliceConn, alice.ID, bob.ID)
}

func TestSendDeliversToRecipient(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")
	bob := createTestUser(t, server, "bob", "hunter22")

	aliceConn := dialWS(t, ts, testToken(t, server, alice))
	_ = aliceConn.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID})
	expectPresence(t, aliceConn, alice.ID)

	bobConn := dialWS(t, ts, testToken(t, server, bob))
	_ = bobConn.WriteJSON(Event{Type: EventAnnounce, UserID: bob.ID})
	expectPresence(t, bobConn, alice.ID, bob.ID)
	expectPresence(t, aliceConn, alice.ID, bob.ID)

	msg := Message{ID: 42, RecipientID: bob.ID, Text: "hi", CreatedAt: time.Now().UTC()}
	if err := aliceConn.WriteJSON(Event{Type: EventSend, RecipientID: bob.ID, Message: &msg}); err != nil {
		t.Fatalf("send: %v", err)
	}

	ev := readEvent(t, bobConn)
	if ev.Type != EventDeliver {
		t.Fatalf("event type = %q; want %q", ev.Type, EventDeliver)
	}
	if ev.Message == nil || ev.Message.Text != "hi" {
		t.Fatalf("delivered message = %+v; want text hi", ev.Message)
	}
	// sender identity comes from the connection, not the frame.
	if ev.Message.SenderID != alice.ID {
		t.Fatalf("SenderID = %d; want %d", ev.Message.SenderID, alice.ID)
	}
}

func TestDisconnectBroadcastsShrunkSet(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")
	bob := createTestUser(t, server, "bob", "hunter22")

	aliceConn := dialWS(t, ts, testToken(t, server, alice))
	_ = aliceConn.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID})
	expectPresence(t, aliceConn, alice.ID)

	bobConn := dialWS(t, ts, testToken(t, server, bob))
	_ = bobConn.WriteJSON(Event{Type: EventAnnounce, UserID: bob.ID})
	expectPresence(t, bobConn, alice.ID, bob.ID)
	expectPresence(t, aliceConn, alice.ID, bob.ID)

	bobConn.Close()
	waitForOffline(t, server, bob.ID)
	expectPresence(t, aliceConn, alice.ID)
}

func TestSendToOfflineRecipientIsQuiet(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")
	bob := createTestUser(t, server, "bob", "hunter22")

	aliceConn := dialWS(t, ts, testToken(t, server, alice))
	_ = aliceConn.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID})
	expectPresence(t, aliceConn, alice.ID)

	msg := Message{RecipientID: bob.ID, Text: "are you there"}
	if err := aliceConn.WriteJSON(Event{Type: EventSend, RecipientID: bob.ID, Message: &msg}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// no error frame, no echo; the message simply waits in history.
	expectNoEvent(t, aliceConn)
	if server.registry.Online(bob.ID) {
		t.Fatalf("routing must not register the recipient")
	}
}

func TestAnnounceForAnotherUserIgnored(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")
	bob := createTestUser(t, server, "bob", "hunter22")

	aliceConn := dialWS(t, ts, testToken(t, server, alice))
	_ = aliceConn.WriteJSON(Event{Type: EventAnnounce, UserID: bob.ID})

	expectNoEvent(t, aliceConn)
	if server.registry.Online(bob.ID) || server.registry.Online(alice.ID) {
		t.Fatalf("a mismatched announcement must not register anyone")
	}
}

func TestMalformedFramesKeepConnectionAlive(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")

	aliceConn := dialWS(t, ts, testToken(t, server, alice))
	if err := aliceConn.WriteMessage(websocket.TextMessage, []byte("this is not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	// the connection survives and a later announce still works.
	_ = aliceConn.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID})
	expectPresence(t, aliceConn, alice.ID)
}

func TestUpgradeRequiresValidToken(t *testing.T) {
	_, ts := startWSServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=junk"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("dial with junk token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v; want 401", resp)
	}
}

func TestSecondConnectionSupersedesFirst(t *testing.T) {
	server, ts := startWSServer(t)
	alice := createTestUser(t, server, "alice", "hunter22")
	token := testToken(t, server, alice)

	first := dialWS(t, ts, token)
	_ = first.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID})
	expectPresence(t, first, alice.ID)

	second := dialWS(t, ts, token)
	_ = second.WriteJSON(Event{Type: EventAnnounce, UserID: alice.ID})
	expectPresence(t, second, alice.ID)
	expectPresence(t, first, alice.ID)

	// closing the superseded connection must not take alice offline.
	first.Close()
	time.Sleep(100 * time.Millisecond)
	if !server.registry.Online(alice.ID) {
		t.Fatalf("alice went offline when her stale connection closed")
	}
	// and the newer connection heard nothing about it.
	expectNoEvent(t, second)
}
