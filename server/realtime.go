package server

import (
	"context"
	"io"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/SyedAnees21/spatial/featureflag"
	"github.com/SyedAnees21/spatial/hashgrid"
)

const sendChanSize = 128

// Message types exchanged over a realtime connection.
const (
	MsgTypePing            = "ping"
	MsgTypePong            = "pong"
	MsgTypeSessionJoined   = "session_joined"
	MsgTypeEntityAdd       = "entity_add"
	MsgTypeEntityAdded     = "entity_added"
	MsgTypeEntityUpdate    = "entity_update"
	MsgTypeEntityUpdated   = "entity_updated"
	MsgTypeNeighbourQuery  = "neighbour_query"
	MsgTypeNeighbourResult = "neighbour_result"
	MsgTypeError           = "error"
)

// Message is the JSON frame exchanged over a realtime connection. The fields
// that matter depend on Type.
type Message struct {
	Type      string   `json:"type"`
	RequestID uint64   `json:"request_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	Entity    *Entity  `json:"entity,omitempty"`
	Entities  []Entity `json:"entities,omitempty"`
	Cells     []uint64 `json:"cells,omitempty"`
	X         float64  `json:"x,omitempty"`
	Y         float64  `json:"y,omitempty"`
	Z         float64  `json:"z,omitempty"`
	Radius    float64  `json:"radius,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// RealtimeHandler relays entity changes between connected clients and
// answers neighborhood queries against the shared indexes.
type RealtimeHandler struct {
	// The indexes shared with the HTTP API.
	Index *Handler

	Flags featureflag.FeatureFlag

	ids sequentialIDGenerator

	mu       sync.RWMutex
	sessions map[string]*realtimeSession
}

type realtimeSession struct {
	id   string
	send chan Message
}

// Handle serves one client connection until it closes or the context is
// canceled.
func (h *RealtimeHandler) Handle(ctx context.Context, conn *websocket.Conn) {
	session := &realtimeSession{
		id:   uuid.NewString(),
		send: make(chan Message, sendChanSize),
	}

	h.register(session)
	defer h.unregister(session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return

			case msg := <-session.send:
				if err := websocket.JSON.Send(conn, msg); err != nil {
					logs.WithTag("session_id", session.id).
						Warn(errors.New("sending realtime message failed").Wrap(err))
					cancel()
					return
				}
			}
		}
	}()

	session.send <- Message{Type: MsgTypeSessionJoined, SessionID: session.id}

	for {
		var msg Message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logs.WithTag("session_id", session.id).
					Warn(errors.New("receiving realtime message failed").Wrap(err))
			}
			return
		}

		h.handleMessage(session, msg)
	}
}

func (h *RealtimeHandler) handleMessage(session *realtimeSession, msg Message) {
	switch msg.Type {
	case MsgTypePing:
		session.send <- Message{Type: MsgTypePong, RequestID: msg.RequestID}

	case MsgTypeEntityAdd:
		h.handleEntityChange(session, msg, MsgTypeEntityAdded)

	case MsgTypeEntityUpdate:
		h.handleEntityChange(session, msg, MsgTypeEntityUpdated)

	case MsgTypeNeighbourQuery:
		result := h.Index.QueryGrid(hashgrid.NeighbourQuery(msg.X, msg.Y, msg.Z, msg.Radius))

		resp := Message{
			Type:      MsgTypeNeighbourResult,
			RequestID: msg.RequestID,
			Cells:     result.Cells,
		}
		for _, e := range result.Data {
			resp.Entities = append(resp.Entities, e.Entity)
		}
		session.send <- resp

	default:
		session.send <- Message{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     "unknown message type: " + msg.Type,
		}
	}
}

func (h *RealtimeHandler) handleEntityChange(session *realtimeSession, msg Message, responseType string) {
	if msg.Entity == nil {
		session.send <- Message{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     "missing entity",
		}
		return
	}

	entity := *msg.Entity
	assigned := entity.EntityID == 0
	if assigned {
		entity.EntityID = h.ids.New()
	}

	if _, rejected := h.Index.Insert(entity); len(rejected) > 0 {
		if assigned {
			// The id never made it into the indexes, hand it back.
			h.ids.Reuse(entity.EntityID)
		}
		session.send <- Message{
			Type:      MsgTypeError,
			RequestID: msg.RequestID,
			Error:     "entity out of bounds",
			Entity:    &entity,
		}
		return
	}

	session.send <- Message{
		Type:      responseType,
		RequestID: msg.RequestID,
		Entity:    &entity,
	}

	h.Flags.IfNotSet(featureflag.FlagDisableNeighbourBroadcast, func() {
		h.broadcast(session.id, Message{
			Type:      responseType,
			SessionID: session.id,
			Entity:    &entity,
		})
	})
}

// broadcast fans the message out to every other session, dropping it for
// sessions whose send queue is full.
func (h *RealtimeHandler) broadcast(from string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, s := range h.sessions {
		if id == from {
			continue
		}
		select {
		case s.send <- msg:
		default:
		}
	}
}

func (h *RealtimeHandler) register(s *realtimeSession) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions == nil {
		h.sessions = make(map[string]*realtimeSession)
	}
	h.sessions[s.id] = s
	realtimeSessions.Set(float64(len(h.sessions)))
}

func (h *RealtimeHandler) unregister(s *realtimeSession) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, s.id)
	realtimeSessions.Set(float64(len(h.sessions)))
}
