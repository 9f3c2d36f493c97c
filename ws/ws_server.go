package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/position"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const WS_PATH = "/ws"

const RETRY_DELAY = 10 * time.Second

type PositionSource interface {
	Snapshot() *position.Snapshot
}

type Depositor interface {
	Deposit(ctx context.Context, input string) error
	Status() bus.B_DepositStatus
}

type ConContext struct {
	Agent      string
	Connection *websocket.Conn
	SM         *subManger
	writeMu    sync.Mutex
}

type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type BroadcastParams struct {
	Subscription string `json:"subscription,omitempty"`
	Result       any    `json:"result,omitempty"`
}

type RPCBroadcast struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  BroadcastParams `json:"params"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result"`
	Error   *RPCError   `json:"error,omitempty"`
}

// Server exposes the position and deposit flow as JSON-RPC over a websocket
// and pushes position and deposit updates to subscribers.
type Server struct {
	cfg      *cmn.SConfig
	bus      *bus.Bus
	position PositionSource
	deposit  Depositor
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*ConContext
}

func NewServer(cfg *cmn.SConfig, b *bus.Bus, p PositionSource, d Depositor) *Server {
	return &Server{
		cfg:      cfg,
		bus:      b,
		position: p,
		deposit:  d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				log.Debug().Msgf("CheckOrigin: %s", r.Header.Get("Origin"))
				return true
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WS_PATH, s.handle)
	return mux
}

// Start serves on the configured port until ctx is done, retrying when the
// listener fails.
func (s *Server) Start(ctx context.Context) {
	addr := ":" + strconv.Itoa(s.cfg.WSPort)

	for {
		server := &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Hour,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			server.Close()
		}()

		log.Info().Msgf("ws server listening on port %d", s.cfg.WSPort)
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msgf("WS server failed on port %d", s.cfg.WSPort)

		select {
		case <-ctx.Done():
			return
		case <-time.After(RETRY_DELAY):
		}
	}
}

// Loop forwards position and deposit updates to subscribed connections.
func (s *Server) Loop(ctx context.Context) {
	ch := s.bus.Subscribe("position", "deposit")
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			s.process(msg)
		}
	}
}

func (s *Server) process(msg *bus.Message) {
	switch msg.Topic {
	case "position":
		if msg.Type != "updated" {
			return
		}
		snap, ok := msg.Data.(*position.Snapshot)
		if !ok {
			log.Error().Msgf("ws_broadcast: Invalid data type: %T", msg.Data)
			return
		}
		s.broadcast(SUB_POSITION, snap.View())
	case "deposit":
		if msg.Type != "status" {
			return
		}
		st, ok := msg.Data.(*bus.B_DepositStatus)
		if !ok {
			log.Error().Msgf("ws_broadcast: Invalid data type: %T", msg.Data)
			return
		}
		s.broadcast(SUB_DEPOSIT, statusView(*st))
	}
}

func (s *Server) broadcast(event string, result any) {
	for _, conn := range s.connections() {
		for _, sub := range conn.SM.getSubsForEvent(event) {
			conn.send(&RPCBroadcast{
				JSONRPC: "2.0",
				Method:  "kobo_subscription",
				Params: BroadcastParams{
					Subscription: sub.id,
					Result:       result,
				},
			})
		}
	}
}

func (s *Server) connections() []*ConContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ConContext(nil), s.conns...)
}

func (s *Server) addConnection(conn *ConContext) {
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) removeConnection(conn *ConContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := &ConContext{
		Agent:      r.Header.Get("User-Agent"),
		Connection: conn,
		SM:         newSubManager(),
	}
	s.addConnection(ctx)
	defer s.removeConnection(ctx)

	// cancelled when the connection goes away
	reqCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Msgf("Read error: %v", err)
			}
			break
		}

		log.Debug().Msgf("ws-> %v", string(msg))

		if msgType != websocket.TextMessage {
			log.Trace().Msgf("Received non-text message: %d", msgType)
			break
		}

		var req RPCRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Error().Msgf("JSON parse error: %v", err)
			ctx.send(&RPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: -32700, Message: "Parse error"},
			})
			continue
		}

		// deposits wait for receipts, keep reading meanwhile
		if req.Method == "kobo_deposit" {
			go s.dispatch(reqCtx, req, ctx)
			continue
		}
		s.dispatch(reqCtx, req, ctx)
	}
}

func (s *Server) dispatch(ctx context.Context, req RPCRequest, con *ConContext) {
	response := &RPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch {
	case strings.HasPrefix(req.Method, "kobo_"):
		s.handleKoboMethod(ctx, req, con, response)
	default:
		log.Error().Msgf("Unknown method: %v", req.Method)
		response.Error = &RPCError{
			Code:    -32601,
			Message: "Method not found",
		}
	}

	con.send(response)
}

func (con *ConContext) send(data any) {
	respBytes, err := json.Marshal(data)
	if err != nil {
		log.Error().Msgf("JSON marshal error: %v", err)
		return
	}

	log.Debug().Msgf("ws<- %v", string(respBytes))

	con.writeMu.Lock()
	defer con.writeMu.Unlock()
	if err := con.Connection.WriteMessage(websocket.TextMessage, respBytes); err != nil {
		log.Error().Msgf("Write error: %v", err)
	}
}
