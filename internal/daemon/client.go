package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Client connects to the daemon over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Init performs the initial handshake, answered even before the
// daemon reaches StageReady.
func (c *Client) Init(ctx context.Context) error {
	var result PingResult
	return c.call(ctx, MethodInit, nil, &result)
}

// Search sends a search request to the daemon.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var results []SearchResult
	if err := c.call(ctx, MethodSearch, params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// IndexProgress retrieves the embedding queue's current backlog.
func (c *Client) IndexProgress(ctx context.Context) (IndexProgressResult, error) {
	var result IndexProgressResult
	err := c.call(ctx, MethodIndexProgress, nil, &result)
	return result, err
}

// IndexPause suspends indexing for path.
func (c *Client) IndexPause(ctx context.Context, path string) error {
	var result struct{}
	return c.call(ctx, MethodIndexPause, IndexPathParams{Path: path}, &result)
}

// IndexResume resumes indexing for path.
func (c *Client) IndexResume(ctx context.Context, path string) error {
	var result struct{}
	return c.call(ctx, MethodIndexResume, IndexPathParams{Path: path}, &result)
}

// IndexCancel cancels any pending indexing work for path.
func (c *Client) IndexCancel(ctx context.Context, path string) error {
	var result struct{}
	return c.call(ctx, MethodIndexCancel, IndexPathParams{Path: path}, &result)
}

// DBStats retrieves database statistics.
func (c *Client) DBStats(ctx context.Context) (DBStatsResult, error) {
	var result DBStatsResult
	err := c.call(ctx, MethodDBStats, nil, &result)
	return result, err
}

// DBClear wipes the entire index.
func (c *Client) DBClear(ctx context.Context) error {
	var result struct{}
	return c.call(ctx, MethodDBClear, nil, &result)
}

// ModelCheck checks whether the embedder's model is ready.
func (c *Client) ModelCheck(ctx context.Context) (ModelCheckResult, error) {
	var result ModelCheckResult
	err := c.call(ctx, MethodModelCheck, nil, &result)
	return result, err
}

// DiagnosticsGetLogs retrieves the daemon's trailing log lines.
func (c *Client) DiagnosticsGetLogs(ctx context.Context, lines int) (DiagnosticsLogsResult, error) {
	var result DiagnosticsLogsResult
	err := c.call(ctx, MethodDiagnosticsGetLogs, DiagnosticsLogsParams{Lines: lines}, &result)
	return result, err
}

// call sends one request and decodes its result into dst.
func (c *Client) call(ctx context.Context, method string, params any, dst any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := c.send(conn, req); err != nil {
		return err
	}

	resp, err := c.receive(conn)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("%s failed: %s (code: %d)", method, resp.Error.Message, resp.Error.Code)
	}

	resultData, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultData, dst); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// send encodes and writes a request to the connection.
func (c *Client) send(conn net.Conn, req Request) error {
	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// receive reads and decodes a response from the connection.
func (c *Client) receive(conn net.Conn) (*Response, error) {
	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return &resp, nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
