package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// RequestHandler answers every RPC method the server dispatches.
// Allow reports whether method is currently allowed (the Lifecycle
// State Machine's startup gating); the server checks it before
// dispatching any non-whitelisted method.
type RequestHandler interface {
	Allow(method string) bool

	Search(ctx context.Context, params SearchParams) ([]SearchResult, error)
	IndexProgress(ctx context.Context) IndexProgressResult
	IndexPause(ctx context.Context, params IndexPathParams) error
	IndexResume(ctx context.Context, params IndexPathParams) error
	IndexCancel(ctx context.Context, params IndexPathParams) error
	DBStats(ctx context.Context) (DBStatsResult, error)
	DBClear(ctx context.Context) error
	ModelCheck(ctx context.Context) (ModelCheckResult, error)
	DiagnosticsGetLogs(ctx context.Context, params DiagnosticsLogsParams) (DiagnosticsLogsResult, error)
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	return &Server{
		socketPath: socketPath,
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		slog.Warn("failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)
}

// handleRequest gates req.Method against the handler's startup
// whitelist, then dispatches.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no request handler configured")
	}
	if !s.handler.Allow(req.Method) {
		return NewErrorResponse(req.ID, ErrCodeNotReady, "daemon is not ready")
	}

	switch req.Method {
	case MethodInit:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodSearch:
		return s.handleSearch(ctx, req)

	case MethodIndexProgress:
		return NewSuccessResponse(req.ID, s.handler.IndexProgress(ctx))

	case MethodIndexPause:
		return s.handleIndexControl(ctx, req, s.handler.IndexPause)

	case MethodIndexResume:
		return s.handleIndexControl(ctx, req, s.handler.IndexResume)

	case MethodIndexCancel:
		return s.handleIndexControl(ctx, req, s.handler.IndexCancel)

	case MethodDBStats:
		stats, err := s.handler.DBStats(ctx)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
		}
		return NewSuccessResponse(req.ID, stats)

	case MethodDBClear:
		if err := s.handler.DBClear(ctx); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
		}
		return NewSuccessResponse(req.ID, struct{}{})

	case MethodModelCheck, MethodCheckModel:
		result, err := s.handler.ModelCheck(ctx)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
		}
		return NewSuccessResponse(req.ID, result)

	case MethodDiagnosticsGetLogs:
		var params DiagnosticsLogsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result, err := s.handler.DiagnosticsGetLogs(ctx, params)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
		}
		return NewSuccessResponse(req.ID, result)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	var params SearchParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	results, err := s.handler.Search(ctx, params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeSearchFailed, err.Error())
	}
	return NewSuccessResponse(req.ID, results)
}

func (s *Server) handleIndexControl(ctx context.Context, req Request, fn func(context.Context, IndexPathParams) error) Response {
	var params IndexPathParams
	if err := decodeParams(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}
	if err := fn(ctx, params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
	}
	return NewSuccessResponse(req.ID, struct{}{})
}

// decodeParams round-trips req.Params through JSON into dst, since
// encoding/json decodes inbound params as map[string]any first.
func decodeParams(raw any, dst any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
