package server

import (
	"context"
	"encoding/json"
	"net/http"
	netrpc "net/rpc"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/pongserver/broadcast"
	"github.com/wfunc/pongserver/config"
	"github.com/wfunc/pongserver/engine"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/monitor"
	"github.com/wfunc/pongserver/network"
	"github.com/wfunc/pongserver/persistence"
	pongserver_rpc "github.com/wfunc/pongserver/rpc"
	"github.com/wfunc/pongserver/services"
)

const readLimit = 4096

// AuthFunc resolves a client token to a stable identity. Returning an
// error refuses the connection.
type AuthFunc func(token string) (string, error)

// TokenIdentity is the default authenticator: the token is taken as the
// identity verbatim, and a missing token gets a fresh offline alias.
func TokenIdentity(token string) (string, error) {
	if token == "" {
		return "guest-" + uuid.New().String()[:8], nil
	}
	return token, nil
}

type PongServer struct {
	addr         string
	upgrader     websocket.Upgrader
	engine       *engine.Engine
	registry     *broadcast.Registry
	broadcaster  *broadcast.Broadcaster
	matchService *services.MatchService
	mon          *monitor.Monitor
	auth         AuthFunc
	chatMax      int
	rpcServer    *pongserver_rpc.Server
	httpServer   *http.Server
	shutdownChan chan struct{}
}

func NewPongServer(cfg config.ServerConfig, game config.GameConfig, db persistence.Database,
	e *engine.Engine, registry *broadcast.Registry, mon *monitor.Monitor) *PongServer {
	s := &PongServer{
		addr:         cfg.HTTPAddress,
		engine:       e,
		registry:     registry,
		broadcaster:  broadcast.NewBroadcaster(registry),
		matchService: services.NewMatchService(db),
		mon:          mon,
		auth:         TokenIdentity,
		chatMax:      game.ChatMaxLength,
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	if s.chatMax <= 0 {
		s.chatMax = 500
	}

	// 初始化RPC服务器
	rpcServer, err := pongserver_rpc.NewServer(cfg.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	partyService := pongserver_rpc.NewPartyService(e, s.matchService)
	if err := netrpc.Register(partyService); err != nil {
		logger.Log.Errorf("Failed to register RPC service: %v", err)
	}

	return s
}

// SetAuthenticator replaces the token resolver. Call before Start.
func (s *PongServer) SetAuthenticator(auth AuthFunc) {
	s.auth = auth
}

func (s *PongServer) Start() error {
	go s.rpcServer.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/party/join", s.handleJoin)
	mux.HandleFunc("/party/start", s.handleStart)
	mux.HandleFunc("/party/leave", s.handleLeave)
	mux.HandleFunc("/party/resume", s.handleResume)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	logger.Log.Infof("Pong server listening on %s", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *PongServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

func (s *PongServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(identity, conn)
}

func (s *PongServer) handleConnection(identity string, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetReadLimit(readLimit)
	s.registry.Add(identity, wsConn)
	s.mon.SetOnlinePlayers(s.registry.Count())

	logger.Log.Infof("New connection from %s, identity: %s", wsConn.RemoteAddr(), identity)

	defer func() {
		logger.Log.Infof("Connection closed from %s, identity: %s", wsConn.RemoteAddr(), identity)
		s.dropConnection(identity, wsConn)
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			s.handleMessage(identity, data)
		}
	}
}

// dropConnection tears down one read loop's connection. The disconnect
// side effect only fires while the registry still maps identity to this
// connection: a reconnect that superseded it must not pause the party.
func (s *PongServer) dropConnection(identity string, wsConn network.Connection) {
	current, ok := s.registry.Get(identity)
	if ok && current == wsConn {
		s.engine.Disconnect(identity)
	}
	s.registry.Remove(identity, wsConn)
	s.mon.SetOnlinePlayers(s.registry.Count())
	wsConn.Close()
}

func (s *PongServer) handleMessage(identity string, data []byte) {
	s.mon.IncMessagesReceived()

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		logger.Log.Warnf("Malformed frame from %s: %v", identity, err)
		return
	}

	switch head.Type {
	case models.MsgTypeInput:
		var msg models.InputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		s.engine.Input(identity, msg)
	case models.MsgTypePrivate:
		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		s.handlePrivateChat(identity, msg)
	case models.MsgTypeParty:
		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		if s.validChatText(identity, msg.Message) {
			if err := s.engine.PartyChat(identity, msg.Message); err != nil {
				logger.Log.Infof("Party chat from %s rejected: %v", identity, err)
			}
		}
	default:
		logger.Log.Infof("Unknown message type from %s: %q", identity, head.Type)
	}
}

// handlePrivateChat relays direct messages between identities. Every
// failure mode is rejected locally; the connection stays open.
func (s *PongServer) handlePrivateChat(from string, msg models.ChatMessage) {
	if !s.validChatText(from, msg.Message) {
		return
	}
	if msg.To == "" {
		logger.Log.Infof("Private chat from %s without a recipient", from)
		return
	}
	if msg.To == from {
		logger.Log.Infof("Private chat from %s addressed to self", from)
		return
	}

	ok, err := s.matchService.CanMessage(from, msg.To)
	if err != nil {
		logger.Log.Errorf("Block-list check for %s -> %s failed: %v", from, msg.To, err)
		return
	}
	if !ok {
		logger.Log.Infof("Private chat from %s to %s silenced by block list", from, msg.To)
		return
	}

	out := models.ChatMessage{
		Type:    models.MsgTypePrivate,
		To:      msg.To,
		From:    from,
		Message: msg.Message,
		SendAt:  time.Now(),
	}
	if err := s.broadcaster.SendToUser(msg.To, out); err != nil {
		logger.Log.Infof("Private chat to %s undeliverable: %v", msg.To, err)
	}
}

func (s *PongServer) validChatText(from, text string) bool {
	if strings.TrimSpace(text) == "" {
		logger.Log.Infof("Empty chat message from %s dropped", from)
		return false
	}
	if len(text) > s.chatMax {
		logger.Log.Infof("Oversized chat message from %s dropped (%d bytes)", from, len(text))
		return false
	}
	return true
}
