package server

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"scratch2x/internal/game"
)

// clientFrame is every message a browser may send over /ws.
type clientFrame struct {
	Type  string   `json:"type"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Index *int     `json:"index"`
	Bet   betValue `json:"bet"`
}

func errorFrame(err error) game.WSMessage {
	return game.WSMessage{Type: "error", Data: map[string]string{"message": game.UserMessage(err)}}
}

// gameWebSocketHandler serves one player connection. Snapshots after state
// changes reach the player through the hub; progress and errors are answered
// on this connection only.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := conn.Query("user_id")
	if userID == "" {
		data, _ := json.Marshal(game.WSMessage{Type: "error", Data: map[string]string{"message": "user_id is required"}})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.Close()
		return
	}

	log := s.log.With(zap.String("user_id", userID))
	log.Debug("websocket connected")

	client := s.gameHub.RegisterClient(conn, userID)
	defer s.gameHub.UnregisterClient(client)

	ctx := context.Background()
	if snap, err := s.gameManager.Snapshot(ctx, userID); err != nil {
		client.Send(errorFrame(err))
	} else {
		client.Send(game.WSMessage{Type: "snapshot", Data: snap})
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Debug("websocket read ended", zap.Error(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame clientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}
		if reply := s.handleFrame(ctx, userID, frame); reply != nil {
			client.Send(reply)
		}
	}
}

// handleFrame applies one frame. It returns the direct reply, if any.
func (s *FiberServer) handleFrame(ctx context.Context, userID string, frame clientFrame) interface{} {
	var err error
	switch frame.Type {
	case "ping":
		return game.WSMessage{Type: "pong"}

	case "scratch_start", "scratch_move", "scratch_end":
		phase := game.ScratchPhase(frame.Type[len("scratch_"):])
		res, serr := s.gameManager.Scratch(ctx, userID, game.ScratchEvent{Phase: phase, X: frame.X, Y: frame.Y})
		if serr != nil {
			return errorFrame(serr)
		}
		return game.WSMessage{Type: "progress", Data: game.ProgressMessage{
			Index:   res.Index,
			Percent: res.Coverage * 100,
		}}

	case "select":
		if frame.Index == nil {
			return errorFrame(game.ErrInvalidSelection)
		}
		_, err = s.gameManager.SelectCard(ctx, userID, *frame.Index)

	case "dismiss":
		_, err = s.gameManager.Dismiss(ctx, userID)

	case "start":
		raw := string(frame.Bet)
		if raw == "" {
			raw = game.DefaultBet.String()
		}
		bet, perr := game.ParseBet(raw)
		if perr != nil {
			return errorFrame(perr)
		}
		_, err = s.gameManager.StartRound(ctx, userID, bet)

	case "reset":
		_, err = s.gameManager.Reset(ctx, userID)

	case "snapshot":
		snap, serr := s.gameManager.Snapshot(ctx, userID)
		if serr != nil {
			return errorFrame(serr)
		}
		return game.WSMessage{Type: "snapshot", Data: snap}

	default:
		return nil
	}

	if err != nil {
		return errorFrame(err)
	}
	return nil
}
