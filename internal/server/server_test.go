package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"veery/internal/cipher"
	"veery/internal/directory"
	"veery/internal/protocol"
	"veery/internal/relay"
	"veery/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *relay.Relay) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	dir := directory.NewMemory()
	st := store.NewMemory()
	r := relay.New(dir, st, relay.NewRegistry(log), log)
	ts := httptest.NewServer(New(dir, st, r, log).Router())
	t.Cleanup(ts.Close)
	return ts, r
}

// waitForSessions blocks until n realtime sessions are registered, so a test
// can dial several peers and then broadcast without racing registration.
func waitForSessions(t *testing.T, r *relay.Relay, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Registry().Len() == n
	}, 2*time.Second, 5*time.Millisecond)
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func register(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	resp, body := postJSON(t, ts.URL+"/register", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID, _ := body["userId"].(string)
	require.NotEmpty(t, userID)
	return userID
}

func TestRegisterLoginFlow(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	aliceID := register(t, ts, "alice", "p1")

	resp, body := postJSON(t, ts.URL+"/login", map[string]string{"username": "alice", "password": "p1"})
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(aliceID, body["userId"])

	resp, body = postJSON(t, ts.URL+"/login", map[string]string{"username": "alice", "password": "wrong"})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.NotEmpty(body["error"])

	// a duplicate registration is a server fault, not a client error
	resp, _ = postJSON(t, ts.URL+"/register", map[string]string{"username": "alice", "password": "p9"})
	req.Equal(http.StatusInternalServerError, resp.StatusCode)
}

func TestUpdatePasswordFlow(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)
	register(t, ts, "alice", "p1")

	resp, _ := postJSON(t, ts.URL+"/update-password", map[string]string{
		"username": "alice", "currentPassword": "wrong", "newPassword": "p2",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// credential unchanged after the failed update
	resp, _ = postJSON(t, ts.URL+"/login", map[string]string{"username": "alice", "password": "p1"})
	req.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/update-password", map[string]string{
		"username": "alice", "currentPassword": "p1", "newPassword": "p2",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/login", map[string]string{"username": "alice", "password": "p2"})
	req.Equal(http.StatusOK, resp.StatusCode)
	resp, _ = postJSON(t, ts.URL+"/login", map[string]string{"username": "alice", "password": "p1"})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, ts.URL+"/update-password", map[string]string{
		"username": "ghost", "currentPassword": "p1", "newPassword": "p2",
	})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestSynchronousSendEndToEnd(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	aliceID := register(t, ts, "alice", "p1")
	register(t, ts, "bob", "p2")

	resp, body := postJSON(t, ts.URL+"/send", map[string]string{
		"userId": aliceID, "recipient": "bob", "message": "hi",
	})
	req.Equal(http.StatusOK, resp.StatusCode)

	block, ok := body["block"].(map[string]any)
	req.True(ok)
	req.Equal("alice", block["sender"])
	req.Equal("bob", block["recipient"])

	payload, ok := block["payload"].(map[string]any)
	req.True(ok)
	key, err := hex.DecodeString(payload["key"].(string))
	req.NoError(err)
	req.Len(key, 16)

	plain, err := cipher.Decode(cipher.Payload{
		Ciphertext: payload["ciphertext"].(string),
		Key:        payload["key"].(string),
	})
	req.NoError(err)
	req.Equal("hi", plain)

	resp, body = getJSON(t, ts.URL+"/user/messages/bob")
	req.Equal(http.StatusOK, resp.StatusCode)
	messages, ok := body["messages"].([]any)
	req.True(ok)
	req.Len(messages, 1)
	req.Equal(block["id"], messages[0].(map[string]any)["id"])
}

type faultDirectory struct {
	directory.Directory
}

func (faultDirectory) ResolveByID(ctx context.Context, id string) (*directory.User, error) {
	return nil, errors.New("disk I/O error")
}

func TestSendDirectoryFaultIsServerFault(t *testing.T) {
	req := require.New(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	dir := faultDirectory{}
	st := store.NewMemory()
	r := relay.New(dir, st, relay.NewRegistry(log), log)
	ts := httptest.NewServer(New(dir, st, r, log).Router())
	t.Cleanup(ts.Close)

	resp, body := postJSON(t, ts.URL+"/send", map[string]string{
		"userId": "some-id", "recipient": "bob", "message": "hi",
	})
	req.Equal(http.StatusInternalServerError, resp.StatusCode)
	req.Equal("Internal Server Error", body["error"])
}

func TestSendUnknownUserID(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	resp, body := postJSON(t, ts.URL+"/send", map[string]string{
		"userId": "no-such-id", "recipient": "bob", "message": "hi",
	})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	req.NotEmpty(body["error"])

	resp, body = getJSON(t, ts.URL+"/chat")
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Empty(body["blockchain"])
}

func TestReadEndpoints(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t)

	aliceID := register(t, ts, "alice", "p1")
	bobID := register(t, ts, "bob", "p2")

	send := func(userID, recipient, msg string) {
		resp, _ := postJSON(t, ts.URL+"/send", map[string]string{
			"userId": userID, "recipient": recipient, "message": msg,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	send(aliceID, "bob", "one")
	send(bobID, "alice", "two")
	send(aliceID, "bob", "three")

	resp, body := getJSON(t, ts.URL+"/user")
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(body["users"].([]any), 2)

	_, body = getJSON(t, ts.URL+"/user/alice")
	req.Len(body["messages"].([]any), 2, "messages from alice")

	_, body = getJSON(t, ts.URL+"/user/messages/alice")
	req.Len(body["messages"].([]any), 1, "messages to alice")

	// directional only: alice->bob, never the reversed pair
	_, body = getJSON(t, ts.URL+"/user/alice/bob")
	between := body["messages"].([]any)
	req.Len(between, 2)
	for _, m := range between {
		req.Equal("alice", m.(map[string]any)["sender"])
		req.Equal("bob", m.(map[string]any)["recipient"])
	}

	_, body = getJSON(t, ts.URL+"/chat")
	req.Len(body["blockchain"].([]any), 3)

	_, body = getJSON(t, ts.URL+"/chat/alice/bob")
	decoded := body["messages"].([]any)
	req.Len(decoded, 2)
	req.Equal("one", decoded[0].(map[string]any)["message"])
	req.Equal("three", decoded[1].(map[string]any)["message"])
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readBroadcast(t *testing.T, conn *websocket.Conn) protocol.Broadcast {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var b protocol.Broadcast
	require.NoError(t, conn.ReadJSON(&b))
	return b
}

func TestWebsocketFanout(t *testing.T) {
	req := require.New(t)
	ts, r := newTestServer(t)

	aliceID := register(t, ts, "alice", "p1")
	register(t, ts, "bob", "p2")

	origin := dialWS(t, ts)
	peer2 := dialWS(t, ts)
	peer3 := dialWS(t, ts)
	waitForSessions(t, r, 3)

	err := origin.WriteJSON(protocol.Inbound{UserID: aliceID, Recipient: "bob", Content: "hi"})
	req.NoError(err)

	// every other peer receives the record, whatever the recipient field says
	for _, peer := range []*websocket.Conn{peer2, peer3} {
		b := readBroadcast(t, peer)
		req.Equal("message", b.Type)
		req.Equal("alice", b.Block.Sender)
		req.Equal("bob", b.Block.Recipient)

		plain, err := cipher.Decode(b.Block.Payload)
		req.NoError(err)
		req.Equal("hi", plain)
	}

	// the record was persisted before fanout
	_, body := getJSON(t, ts.URL+"/user/messages/bob")
	req.Len(body["messages"].([]any), 1)

	// the originator gets no echo
	origin.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var ignored json.RawMessage
	req.Error(origin.ReadJSON(&ignored))
}

func TestWebsocketUnknownSenderRepliesToOriginOnly(t *testing.T) {
	req := require.New(t)
	ts, r := newTestServer(t)

	origin := dialWS(t, ts)
	peer := dialWS(t, ts)
	waitForSessions(t, r, 2)

	err := origin.WriteJSON(protocol.Inbound{UserID: "no-such-id", Recipient: "bob", Content: "hi"})
	req.NoError(err)

	origin.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply protocol.ErrorReply
	req.NoError(origin.ReadJSON(&reply))
	req.Equal("Invalid user ID", reply.Error)

	peer.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var ignored json.RawMessage
	req.Error(peer.ReadJSON(&ignored), "no broadcast for a rejected event")

	_, body := getJSON(t, ts.URL+"/chat")
	req.Empty(body["blockchain"], "no store write for a rejected event")
}
