package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// arenacheck probes a running chess-server: fetches /healthz over HTTP, then
// performs a websocket auth round-trip and reports latency.

type healthResponse struct {
	Rooms       int    `json:"rooms"`
	Queued      int    `json:"queued"`
	Connections int    `json:"connections"`
	UptimeSec   int64  `json:"uptime_sec"`
	Status      string `json:"status"`
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	baseURL := os.Getenv("SERVER_BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	wsURL := os.Getenv("SERVER_WS_URL")
	if wsURL == "" {
		wsURL = "ws://127.0.0.1:8080/ws"
	}

	client := &fasthttp.Client{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.SetRequestURI(baseURL + "/healthz")
	req.Header.SetMethod(fasthttp.MethodGet)

	start := time.Now()
	if err := client.DoTimeout(req, resp, 5*time.Second); err != nil {
		log.Fatalf("/healthz error: %v", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		log.Fatalf("/healthz status: %d", resp.StatusCode())
	}
	var health healthResponse
	if err := json.Unmarshal(resp.Body(), &health); err != nil {
		log.Fatalf("/healthz decode: %v", err)
	}
	log.Printf("/healthz ok in %s: status=%s rooms=%d queued=%d conns=%d uptime=%ds",
		time.Since(start).Round(time.Millisecond),
		health.Status, health.Rooms, health.Queued, health.Connections, health.UptimeSec)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsStart := time.Now()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("ws dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	auth := envelope{Type: "auth", Payload: json.RawMessage(fmt.Sprintf(`{"sessionId":"arenacheck-%d"}`, time.Now().UnixNano()))}
	if err := wsjson.Write(ctx, conn, auth); err != nil {
		log.Fatalf("ws auth write: %v", err)
	}
	var reply envelope
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		log.Fatalf("ws auth read: %v", err)
	}
	if reply.Type != "auth_ok" {
		log.Fatalf("ws auth: expected auth_ok, got %q (%s)", reply.Type, string(reply.Payload))
	}
	log.Printf("ws auth ok in %s", time.Since(wsStart).Round(time.Millisecond))
}
