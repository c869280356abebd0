package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/engine"
	"github.com/vudinhan2525/CamQuizz-sub002/internal/identity"
)

// Gateway is the only component touching the transport: it resolves who sent
// each command via the Registry, forwards commands to the engine, and fans the
// engine's events out to every connection in a room.
//
// Gateway implements engine.EventSink. Publish only enqueues onto per-client
// buffers, so it is safe for the engine to call it while holding a room lock.
type Gateway struct {
	engine   *engine.Engine
	registry *Registry
	resolver identity.Resolver
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewGateway(registry *Registry, resolver identity.Resolver) *Gateway {
	return &Gateway{
		registry: registry,
		resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// BindEngine closes the construction cycle: the engine needs the gateway as
// its event sink, the gateway needs the engine for commands.
func (g *Gateway) BindEngine(e *engine.Engine) {
	g.engine = e
}

// Publish fans events out to every connection attached to the room, in order.
func (g *Gateway) Publish(roomCode string, events ...engine.Event) {
	g.mu.RLock()
	clients := make([]*Client, 0, len(g.rooms[roomCode]))
	for c := range g.rooms[roomCode] {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, ev := range events {
		msg := Message{Type: string(ev.Type), Payload: ev.Payload}
		for _, c := range clients {
			c.enqueue(msg)
		}
	}
}

// ServeWS upgrades the connection, resolves the caller's identity once, and
// runs the read/write pumps until the peer goes away.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	who, err := g.resolver.ResolveParticipant(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	client := newClient(g, conn, uuid.NewString(), who)
	go client.writePump()
	client.readPump()
}

func (g *Gateway) handleCommand(c *Client, cmd Command) {
	switch cmd.Type {
	case CommandCreateRoom:
		g.handleCreateRoom(c, cmd.Payload)
	case CommandJoinRoom:
		g.handleJoinRoom(c, cmd.Payload)
	case CommandLeaveRoom:
		g.handleLeaveRoom(c)
	case CommandStartGame:
		g.handleStartGame(c)
	case CommandSubmitAnswer:
		g.handleSubmitAnswer(c, cmd.Payload)
	case CommandPing:
		c.enqueue(Message{Type: MessagePong})
	default:
		c.sendError(cmd.Type, "unknown command")
	}
}

func (g *Gateway) handleCreateRoom(c *Client, raw json.RawMessage) {
	var payload CreateRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.QuizID == "" {
		c.sendError(CommandCreateRoom, "invalid payload")
		return
	}
	if _, bound := g.registry.Resolve(c.connID); bound {
		c.sendError(CommandCreateRoom, "connection already in a room")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	view, err := g.engine.CreateRoom(ctx, payload.QuizID, c.who.ParticipantID, c.who.DisplayName, c.connID)
	if err != nil {
		c.sendError(CommandCreateRoom, err.Error())
		return
	}

	g.attach(view.Code, c)
	c.enqueue(Message{Type: MessageRoomCreated, Payload: view})
}

func (g *Gateway) handleJoinRoom(c *Client, raw json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.RoomCode == "" {
		c.sendError(CommandJoinRoom, "invalid payload")
		return
	}
	if _, bound := g.registry.Resolve(c.connID); bound {
		c.sendError(CommandJoinRoom, "connection already in a room")
		return
	}

	// Attach before Join so this connection sees its own ParticipantJoined.
	g.attach(payload.RoomCode, c)
	view, err := g.engine.Join(payload.RoomCode, c.who.ParticipantID, c.who.DisplayName, c.connID)
	if err != nil {
		g.detach(payload.RoomCode, c)
		g.registry.Unregister(c.connID)
		c.sendError(CommandJoinRoom, err.Error())
		return
	}
	c.enqueue(Message{Type: MessageJoined, Payload: view})
}

func (g *Gateway) handleLeaveRoom(c *Client) {
	binding, ok := g.registry.Resolve(c.connID)
	if !ok {
		c.sendError(CommandLeaveRoom, "not in a room")
		return
	}
	if err := g.engine.Leave(binding.RoomCode, binding.ParticipantID); err != nil {
		c.sendError(CommandLeaveRoom, err.Error())
		return
	}
	g.detach(binding.RoomCode, c)
	g.registry.Unregister(c.connID)
	c.enqueue(Message{Type: MessageLeft})
}

func (g *Gateway) handleStartGame(c *Client) {
	binding, ok := g.registry.Resolve(c.connID)
	if !ok {
		c.sendError(CommandStartGame, "not in a room")
		return
	}
	if err := g.engine.StartGame(binding.RoomCode, binding.ParticipantID); err != nil {
		c.sendError(CommandStartGame, err.Error())
		return
	}
	c.enqueue(Message{Type: MessageStarted})
}

func (g *Gateway) handleSubmitAnswer(c *Client, raw json.RawMessage) {
	var payload SubmitAnswerPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.QuestionID == "" {
		c.sendError(CommandSubmitAnswer, "invalid payload")
		return
	}
	binding, ok := g.registry.Resolve(c.connID)
	if !ok {
		c.sendError(CommandSubmitAnswer, "not in a room")
		return
	}
	// The room is implied by the binding; a stated roomCode must agree with it.
	if payload.RoomCode != "" && payload.RoomCode != binding.RoomCode {
		c.sendError(CommandSubmitAnswer, "room code does not match this connection")
		return
	}
	ack, err := g.engine.SubmitAnswer(binding.RoomCode, binding.ParticipantID, payload.QuestionID, payload.SelectedLabels)
	if err != nil {
		c.sendError(CommandSubmitAnswer, err.Error())
		return
	}
	// Answers stay private until grading; only the submitter gets this ack.
	c.enqueue(Message{Type: MessageSubmitResult, Payload: ack})
}

// commandContext bounds catalog lookups triggered by a single command.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// attach wires the client into the room's fan-out set and the registry.
func (g *Gateway) attach(roomCode string, c *Client) {
	g.mu.Lock()
	if g.rooms[roomCode] == nil {
		g.rooms[roomCode] = make(map[*Client]struct{})
	}
	g.rooms[roomCode][c] = struct{}{}
	g.mu.Unlock()
	g.registry.Register(c.connID, Binding{RoomCode: roomCode, ParticipantID: c.who.ParticipantID})
}

func (g *Gateway) detach(roomCode string, c *Client) {
	g.mu.Lock()
	if clients, ok := g.rooms[roomCode]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(g.rooms, roomCode)
		}
	}
	g.mu.Unlock()
}

// dropClient runs when a connection dies: the engine is told so it can rebind
// later or end the game if this was the host.
func (g *Gateway) dropClient(c *Client) {
	if binding, ok := g.registry.Resolve(c.connID); ok {
		g.detach(binding.RoomCode, c)
		g.registry.Unregister(c.connID)
		g.engine.Detach(binding.RoomCode, binding.ParticipantID)
	}
	c.closeSend()
}
