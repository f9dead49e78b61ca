package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"barstock/internal/broker"
	"barstock/internal/market"
)

func (env *testEnv) dialWS(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + path + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode websocket message: %v", err)
	}
	return event
}

func waitForEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatal("timed out waiting for matching event")
		}
		event := readEvent(t, conn, remaining)
		if match(event) {
			return event
		}
	}
}

func expectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration, match func(map[string]any) bool) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			netErr, ok := err.(net.Error)
			if !ok || !netErr.Timeout() {
				t.Fatalf("expected websocket timeout, got %v", err)
			}
			return
		}
		var event map[string]any
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		if match(event) {
			t.Fatalf("received event that should not have arrived: %v", event)
		}
	}
}

func isCrashUpdate(event map[string]any) bool {
	if event["type"] != broker.EventPriceUpdate {
		return false
	}
	payload, _ := event["payload"].(map[string]any)
	return payload != nil && payload["status"] == "crash"
}

func TestWebsocketSnapshotOnConnect(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, 2)

	conn := env.dialWS(t, fmt.Sprintf("/ws/games/%d", game.ID), env.buyer.Token)
	event := readEvent(t, conn, 2*time.Second)
	if event["type"] != broker.EventPriceUpdate {
		t.Fatalf("expected snapshot price update first, got %v", event["type"])
	}
}

func TestWebsocketBroadcastScoping(t *testing.T) {
	env := newTestEnv(t)
	gameA := env.seedGame(t, 2)
	gameB := env.seedGame(t, 2)

	connA1 := env.dialWS(t, fmt.Sprintf("/ws/games/%d", gameA.ID), env.buyer.Token)
	connA2 := env.dialWS(t, fmt.Sprintf("/ws/games/%d", gameA.ID), env.owner.Token)
	connB := env.dialWS(t, fmt.Sprintf("/ws/games/%d", gameB.ID), env.buyer.Token)

	// Wait for both game-A sessions to be registered before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Broker().Count(broker.GameScope(gameA.ID)) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sessions never registered with the broker")
		}
		time.Sleep(10 * time.Millisecond)
	}

	update := market.TickResult{
		Status: market.StatusCrash,
		Prices: []market.SlotPrice{{SlotIndex: 0, Name: "beer-0", Price: decimal.NewFromInt(50)}},
	}
	env.srv.Broker().Broadcast(broker.GameScope(gameA.ID), broker.PriceUpdate(gameA.ID, update))

	waitForEvent(t, connA1, 2*time.Second, isCrashUpdate)
	waitForEvent(t, connA2, 2*time.Second, isCrashUpdate)
	expectNoEvent(t, connB, 300*time.Millisecond, isCrashUpdate)
}

func TestWebsocketForbiddenForStrangers(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, 2)

	resp := env.doRequest(t, http.MethodPost, "/api/users", "", map[string]any{"name": "Stranger"})
	body := decodeBody(t, resp)
	token, _ := body["token"].(string)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") +
		fmt.Sprintf("/ws/games/%d?token=%s", game.ID, token)
	_, httpResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for non-participant")
	}
	if httpResp == nil || httpResp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status %d, got %v", http.StatusForbidden, httpResp)
	}
}

func TestWebsocketHeartbeatTimeout(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, 2)
	scope := broker.GameScope(game.ID)

	conn := env.dialWS(t, fmt.Sprintf("/ws/games/%d", game.ID), env.buyer.Token)
	// Swallow pings instead of answering, simulating a dead client.
	conn.SetPingHandler(func(string) error { return nil })

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Broker().Count(scope) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered with the broker")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The server should drop us once the pong window expires.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	deadline = time.Now().Add(3 * time.Second)
	for env.srv.Broker().Count(scope) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected connection count 0 after heartbeat timeout, got %d", env.srv.Broker().Count(scope))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWebsocketProtocolViolation(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, 2)
	scope := broker.GameScope(game.ID)

	conn := env.dialWS(t, fmt.Sprintf("/ws/games/%d", game.ID), env.buyer.Token)
	deadline := time.Now().Add(2 * time.Second)
	for env.srv.Broker().Count(scope) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered with the broker")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Clients may only answer pings; a data frame forces the session closed.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("chatter")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline = time.Now().Add(3 * time.Second)
	for env.srv.Broker().Count(scope) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected session dropped after protocol violation, got count %d", env.srv.Broker().Count(scope))
		}
		time.Sleep(20 * time.Millisecond)
	}
}
