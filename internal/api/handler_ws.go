package api

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"
)

// wsStream adapts a coder/websocket connection to presence.Stream so the
// presence registry can push events without knowing about websockets.
type wsStream struct {
	conn *websocket.Conn
}

func (w wsStream) Send(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

// wsAgentHandler handles GET /ws/agent/:id — an agent's own presence stream.
func (s *Server) wsAgentHandler(c *echo.Context) error {
	return s.serveStream(c, func(streamID string, stream wsStream) {
		s.presence.ConnectAgent(c.Param("id"), streamID, stream)
	}, func(streamID string) {
		s.presence.DisconnectAgent(c.Param("id"), streamID)
	})
}

// wsTaskHandler handles GET /ws/task/:id — progress events for one
// orchestration plan.
func (s *Server) wsTaskHandler(c *echo.Context) error {
	return s.serveStream(c, func(streamID string, stream wsStream) {
		s.presence.ConnectTask(c.Param("id"), streamID, stream)
	}, func(streamID string) {
		s.presence.DisconnectTask(c.Param("id"), streamID)
	})
}

// wsUserHandler handles GET /ws/user/:id — all events for a user's agents.
func (s *Server) wsUserHandler(c *echo.Context) error {
	return s.serveStream(c, func(streamID string, stream wsStream) {
		s.presence.ConnectUser(c.Param("id"), streamID, stream)
	}, func(streamID string) {
		s.presence.DisconnectUser(c.Param("id"), streamID)
	})
}

// serveStream upgrades the connection, registers it via connect, sends a
// "connection.established" message, then blocks reading frames (discarding
// their content — clients only receive on these streams) until the
// connection closes, at which point it disconnects.
func (s *Server) serveStream(c *echo.Context, connect func(streamID string, stream wsStream), disconnect func(streamID string)) error {
	if err := requireService(s.presence != nil, "presence registry"); err != nil {
		return err
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	streamID := uuid.NewString()
	stream := wsStream{conn: conn}
	connect(streamID, stream)
	defer disconnect(streamID)

	ctx := c.Request().Context()
	established, _ := json.Marshal(map[string]string{"type": "connection.established", "stream_id": streamID})
	if err := stream.Send(ctx, established); err != nil {
		return nil
	}

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return nil
		}
	}
}
