package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rhuss/mcpgate/pkg/api"
	"github.com/rhuss/mcpgate/pkg/debug"
	"github.com/rhuss/mcpgate/pkg/observability"
	"github.com/rhuss/mcpgate/pkg/stream"
	"github.com/rhuss/mcpgate/pkg/transport"
)

const wsWriteTimeout = 10 * time.Second

// wsSink implements stream.Sink over a WebSocket connection, one text
// frame per event. The emitter serializes writes, so the connection only
// ever has one writer.
type wsSink struct {
	conn *websocket.Conn
}

var _ stream.Sink = (*wsSink)(nil)

func (s *wsSink) Write(_ context.Context, event api.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *Adapter) newUpgrader() *websocket.Upgrader {
	origins := a.config.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(origins) == 0 || origin == "" || slices.Contains(origins, origin)
		},
	}
}

// handleWebSocket handles GET /api/v1/mcp/ws. Each text frame from the
// client is one ProcessRequest; the reply is its event stream, ending
// with COMPLETED. Requests on one connection run one after the other
// until the client disconnects.
func (a *Adapter) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		slog.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()
	defer observability.TrackStream()()

	conn.SetReadLimit(a.config.MaxBodySize)
	ctx := r.Context()
	sink := &wsSink{conn: conn}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Log("transport", "websocket read ended", "error", err.Error())
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		// Every frame is its own request with its own ID.
		reqCtx := transport.ContextWithRequestID(ctx, api.NewRequestID())
		em := stream.New(sink)

		var req api.ProcessRequest
		if err := json.Unmarshal(data, &req); err != nil {
			rejectStream(reqCtx, em, "invalid JSON: "+err.Error())
			continue
		}
		a.processor.Process(reqCtx, &req, em)
	}
}

// rejectStream narrates a request that could not be decoded.
func rejectStream(ctx context.Context, em stream.Emitter, msg string) {
	_ = em.Emit(ctx, stream.Started())
	_ = em.Emit(ctx, stream.Failure(nil, msg))
	_ = em.Close(ctx)
}
