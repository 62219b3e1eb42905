package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialRoom(t *testing.T, apiURL string, groupID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(apiURL, "http") + "/ws/" + groupID

	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	// let the handler register the subscription before anything is broadcast
	time.Sleep(20 * time.Millisecond)

	return c
}

func readJSON(t *testing.T, c *websocket.Conn) map[string]interface{} {
	t.Helper()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, data, err := c.ReadMessage()
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	return out
}

func TestRoomReceivesPostedMessages(t *testing.T) {
	env := newTestEnv(t, true)

	first := dialRoom(t, env.api.URL, "3")
	second := dialRoom(t, env.api.URL, "3")
	other := dialRoom(t, env.api.URL, "4")

	status, _ := doJSON(t, http.MethodPost, env.api.URL+"/message", map[string]interface{}{
		"groupId": 3, "senderId": 1, "content": "howdy",
	})
	require.Equal(t, http.StatusOK, status)

	// both subscribers of the group's room see the message
	require.Equal(t, "howdy", readJSON(t, first)["content"])
	require.Equal(t, "howdy", readJSON(t, second)["content"])

	// a subscriber of another room does not
	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	_, _, err := other.ReadMessage()
	require.Error(t, err)
}

func TestRoomEchoesClientFrames(t *testing.T) {
	env := newTestEnv(t, true)

	a := dialRoom(t, env.api.URL, "7")
	b := dialRoom(t, env.api.URL, "7")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"content":"ping"}`)))

	require.Equal(t, "ping", readJSON(t, b)["content"])
	require.Equal(t, "ping", readJSON(t, a)["content"])
}

func TestRoomDropsClosedConnections(t *testing.T) {
	env := newTestEnv(t, true)

	gone := dialRoom(t, env.api.URL, "9")
	stay := dialRoom(t, env.api.URL, "9")
	gone.Close()

	// give the reader loop a moment to unsubscribe the closed connection
	time.Sleep(50 * time.Millisecond)

	status, _ := doJSON(t, http.MethodPost, env.api.URL+"/message", map[string]interface{}{
		"groupId": 9, "senderId": 1, "content": "still here",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "still here", readJSON(t, stay)["content"])
}
