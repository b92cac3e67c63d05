package ethrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsTestServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func keepOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWSClientConnect(t *testing.T) {
	wsURL := wsTestServer(t, keepOpen)

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClientSubscribeLogs(t *testing.T) {
	watched := common.HexToAddress("0xaa01")
	emitted := types.Log{
		Address:     watched,
		Topics:      []common.Hash{common.HexToHash("0x01")},
		Data:        []byte{0x02},
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xbb"),
		Index:       3,
	}

	wsURL := wsTestServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "eth_subscribe" {
			t.Errorf("expected eth_subscribe, got %s", req.Method)
		}
		if len(req.Params) != 2 || req.Params[0] != "logs" {
			t.Errorf("unexpected params: %v", req.Params)
		}

		resp := wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: "0xsub1"}
		if err := conn.WriteJSON(resp); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		raw, err := json.Marshal(&emitted)
		if err != nil {
			t.Errorf("marshal log: %v", err)
			return
		}
		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "eth_subscription",
			Params:  &wsNotificationParams{Subscription: "0xsub1", Result: raw},
		}
		if err := conn.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		keepOpen(conn)
	})

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogFilter{
		Addresses: []common.Address{watched},
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case lg := <-ch:
		if lg.Address != watched {
			t.Errorf("Address = %s, want %s", lg.Address.Hex(), watched.Hex())
		}
		if lg.BlockNumber != 42 {
			t.Errorf("BlockNumber = %d, want 42", lg.BlockNumber)
		}
		if lg.TxHash != emitted.TxHash {
			t.Errorf("TxHash = %s", lg.TxHash.Hex())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for log")
	}
}

func TestWSClientClose(t *testing.T) {
	wsURL := wsTestServer(t, keepOpen)

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close is safe.
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClientSubscribeAfterClose(t *testing.T) {
	wsURL := wsTestServer(t, keepOpen)

	client, err := NewWSClient(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}
