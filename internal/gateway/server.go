// Package gateway is the ingress/egress TCP transport: newline-delimited
// flat JSON messages (internal/wire) in, JSON responses and market-data
// pushes out. Structurally adapted from the teacher's
// internal/net/server.go -- same tomb.v2 lifecycle, utils.WorkerPool
// connection handling and per-client session map -- generalized from a
// single-read-then-requeue binary protocol into a persistent,
// line-delimited JSON session that can also carry asynchronous
// market-data pushes.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/broadcast"
	"fenrir/internal/router"
	"fenrir/internal/utils"
	"fenrir/internal/wire"
)

const defaultNWorkers = 16

// Server is the TCP ingress gateway: one goroutine accepts connections,
// a utils.WorkerPool of size defaultNWorkers services them.
type Server struct {
	address string
	port    int
	router  *router.Router
	bus     broadcast.Bus
	pool    utils.WorkerPool
	log     zerolog.Logger

	sessionsMu sync.Mutex
	sessions   map[string]*session
}

// session is one connected client: its socket, a write mutex (the
// request/response loop and market-data push goroutines share the
// connection) and its live subscriptions' unsubscribe funcs.
type session struct {
	conn    net.Conn
	writeMu sync.Mutex
	subsMu  sync.Mutex
	subs    map[string]func()
}

// New builds a Server over r, pushing market-data updates read from bus.
func New(address string, port int, r *router.Router, bus broadcast.Bus, logger zerolog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		router:   r,
		bus:      bus,
		pool:     utils.NewWorkerPool(defaultNWorkers),
		log:      logger.With().Str("component", "gateway.server").Logger(),
		sessions: make(map[string]*session),
	}
}

// Run accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("gateway: starting listener: %w", err)
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	s.log.Info().Str("address", listener.Addr().String()).Msg("gateway listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					s.log.Error().Err(err).Msg("accept failed")
					continue
				}
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// handleConnection services one connection for its whole lifetime,
// reading newline-delimited JSON messages and writing a response line
// per request. Unlike the teacher's single-read-then-requeue version,
// one worker owns a connection until it closes -- requeuing a
// persistent connection onto a shared pool would let two workers race
// on the same socket.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("gateway: unexpected task type %T", task)
	}
	addr := conn.RemoteAddr().String()
	defer func() {
		s.removeSession(addr)
		conn.Close()
	}()

	sess := s.getSession(addr)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	for scanner.Scan() {
		select {
		case <-t.Dying():
			return nil
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.dispatch(sess, append([]byte(nil), line...))
	}
	return nil
}

func (s *Server) dispatch(sess *session, line []byte) {
	msgType, err := wire.ParseType(line)
	if err != nil {
		s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
		return
	}

	switch msgType {
	case wire.TypeOrder:
		order, err := wire.DecodeNewOrder(line)
		if err != nil {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
			return
		}
		result, submitErr := s.router.Submit(order)
		s.write(sess, wire.EncodeResult(result, submitErr))

	case wire.TypeCancel:
		symbol, orderID, err := wire.DecodeCancel(line)
		if err != nil {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
			return
		}
		if err := s.router.Cancel(symbol, orderID); err != nil {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
			return
		}
		s.write(sess, wire.OrderResponse{Type: wire.TypeOrderResponse, Success: true, OrderID: orderID, Status: "cancelled"})

	case wire.TypeGetBBO:
		req, err := wire.DecodeQuery(line)
		if err != nil {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
			return
		}
		bbo, ok := s.router.BBO(req.Symbol)
		if !ok {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: "unknown symbol"})
			return
		}
		s.write(sess, wire.EncodeBBO(req.Symbol, bbo))

	case wire.TypeGetOrderbook:
		req, err := wire.DecodeQuery(line)
		if err != nil {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
			return
		}
		depth, ok := s.router.Depth(req.Symbol, req.Depth)
		if !ok {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: "unknown symbol"})
			return
		}
		s.write(sess, wire.EncodeDepth(req.Symbol, depth))

	case wire.TypeSubscribe:
		req, err := wire.DecodeSubscribe(line)
		if err != nil {
			s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: err.Error()})
			return
		}
		s.subscribe(sess, req)

	default:
		s.write(sess, wire.ErrorResponse{Type: wire.TypeError, Error: fmt.Sprintf("unrecognized message type %q", msgType)})
	}
}

// subscribe opens the requested streams (trades and/or market-data, per
// spec.md §4.6) for each symbol not already subscribed to that stream on
// this session, pushing every update as its own line for the session's
// lifetime. On a fresh market-data subscription, the current BBO/depth
// snapshot is pushed immediately, before any subsequent book mutation.
func (s *Server) subscribe(sess *session, req wire.SubscribeRequest) {
	sess.subsMu.Lock()
	if sess.subs == nil {
		sess.subs = make(map[string]func())
	}
	var freshMarketData []string
	for _, symbol := range req.Symbols {
		if req.Trades {
			key := symbol + ":" + broadcast.StreamTrades
			if _, already := sess.subs[key]; !already {
				ch, stop := s.bus.Subscribe(symbol, broadcast.StreamTrades)
				sess.subs[key] = stop
				go s.pushLoop(sess, ch)
			}
		}
		if req.MarketData {
			key := symbol + ":" + broadcast.StreamMarketData
			if _, already := sess.subs[key]; !already {
				ch, stop := s.bus.Subscribe(symbol, broadcast.StreamMarketData)
				sess.subs[key] = stop
				go s.pushLoop(sess, ch)
				freshMarketData = append(freshMarketData, symbol)
			}
		}
	}
	sess.subsMu.Unlock()

	for _, symbol := range freshMarketData {
		s.sendSnapshot(sess, symbol)
	}
}

// sendSnapshot pushes the current BBO/depth for symbol immediately, per
// spec.md §4.6's "on subscribe, the current BBO/depth snapshot is sent
// immediately."
func (s *Server) sendSnapshot(sess *session, symbol string) {
	bbo, ok := s.router.BBO(symbol)
	if !ok {
		return
	}
	depth, _ := s.router.Depth(symbol, 0)
	s.write(sess, wire.EncodeMarketData(symbol, bbo, depth, time.Now()))
}

func (s *Server) pushLoop(sess *session, ch <-chan []byte) {
	for payload := range ch {
		sess.writeMu.Lock()
		sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_, err := sess.conn.Write(append(payload, '\n'))
		sess.writeMu.Unlock()
		if err != nil {
			// A failed push drops the subscriber: closing the connection
			// ends handleConnection's read loop, which removes the session
			// and stops every one of its subscriptions.
			sess.conn.Close()
		}
	}
}

func (s *Server) write(sess *session, v interface{}) {
	encoded, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding response failed")
		return
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, _ = sess.conn.Write(append(encoded, '\n'))
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = &session{conn: conn, subs: make(map[string]func())}
}

func (s *Server) getSession(addr string) *session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return s.sessions[addr]
}

func (s *Server) removeSession(addr string) {
	s.sessionsMu.Lock()
	sess, ok := s.sessions[addr]
	delete(s.sessions, addr)
	s.sessionsMu.Unlock()
	if !ok {
		return
	}
	sess.subsMu.Lock()
	for _, stop := range sess.subs {
		stop()
	}
	sess.subsMu.Unlock()
}
