package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"doc-assistant/types"
)

// ChatStreamer answers a chat question, invoking the handler for each
// token as it arrives. *RAGService implements it.
type ChatStreamer interface {
	AskStream(ctx context.Context, chatID, question string, handler types.StreamHandler) (*types.ChatResponse, error)
}

// WebSocketService streams chat answers over a websocket connection,
// sending delta frames as tokens arrive followed by a final chat frame
// with sources.
type WebSocketService struct {
	rag      ChatStreamer
	upgrader websocket.Upgrader
}

func NewWebSocketService(rag ChatStreamer) *WebSocketService {
	return &WebSocketService{
		rag: rag,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

func (s *WebSocketService) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// WriteJSON is not safe for concurrent use; deltas arrive from the
	// streaming callback while pings are answered on this goroutine.
	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("websocket read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var req types.WebsocketRequest
		if err := json.Unmarshal(p, &req); err != nil {
			s.writeError(writeJSON, "invalid message")
			continue
		}

		switch req.Type {
		case types.TypeWebsocketPing:
			if err := writeJSON(types.WebSocketResponse{Type: types.TypeWebsocketPong}); err != nil {
				log.Error().Err(err).Msg("websocket write failed")
			}
		case types.TypeWebsocketChat:
			payloadBytes, err := json.Marshal(req.Payload)
			if err != nil {
				s.writeError(writeJSON, "invalid message")
				continue
			}
			var payload types.WebSocketChatPayload
			if err := json.Unmarshal(payloadBytes, &payload); err != nil {
				s.writeError(writeJSON, "invalid chat payload")
				continue
			}
			s.streamAnswer(ctx, writeJSON, payload)
		default:
			s.writeError(writeJSON, "unknown message type")
		}
	}
}

func (s *WebSocketService) streamAnswer(ctx context.Context, writeJSON func(any) error, payload types.WebSocketChatPayload) {
	res, err := s.rag.AskStream(ctx, payload.ChatId, payload.Message, func(delta string) {
		frame := types.WebSocketResponse{
			Type: types.TypeWebsocketDelta,
			Payload: types.WebSocketDeltaResponse{
				ChatId: payload.ChatId,
				Delta:  delta,
			},
		}
		if err := writeJSON(frame); err != nil {
			log.Error().Err(err).Msg("websocket write failed")
		}
	})
	if err != nil {
		if errors.Is(err, ErrNoDocuments) {
			s.writeError(writeJSON, "No documents have been indexed yet. Upload a document first.")
			return
		}
		log.Error().Err(err).Msg("chat stream failed")
		s.writeError(writeJSON, "failed to answer question")
		return
	}

	final := types.WebSocketResponse{
		Type: types.TypeWebsocketChat,
		Payload: types.WebSocketChatResponse{
			ChatId:  res.ChatId,
			Message: res.Message.Content,
			Sources: res.Sources,
		},
	}
	if err := writeJSON(final); err != nil {
		log.Error().Err(err).Msg("websocket write failed")
	}
}

func (s *WebSocketService) writeError(writeJSON func(any) error, msg string) {
	frame := types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: msg,
	}
	if err := writeJSON(frame); err != nil {
		log.Error().Err(err).Msg("websocket write failed")
	}
}
