package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/widgetd/pkg/codec"
	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// IPCRequest is the CBOR request a client sends. Only the fields the action
// needs are set.
type IPCRequest struct {
	Action  string        `cbor:"action"`
	Window  string        `cbor:"window,omitempty"`
	Windows []string      `cbor:"windows,omitempty"`
	Pos     *value.Coords `cbor:"pos,omitempty"`
	Size    *value.Coords `cbor:"size,omitempty"`
	Anchor  string        `cbor:"anchor,omitempty"`
	Vars    []IPCVar      `cbor:"vars,omitempty"`
}

// IPCVar is one name=value assignment of an update request, kept in the
// order the user gave it.
type IPCVar struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`
}

// IPCResponse is the CBOR envelope the server answers with.
type IPCResponse struct {
	OK     bool   `cbor:"ok"`
	Output string `cbor:"output,omitempty"`
	Error  string `cbor:"error,omitempty"`
}

// Control socket actions.
const (
	ActionOpen     = "open"
	ActionOpenMany = "open-many"
	ActionClose    = "close"
	ActionCloseAll = "close-all"
	ActionReload   = "reload"
	ActionKill     = "kill"
	ActionState    = "state"
	ActionWindows  = "windows"
	ActionDebug    = "debug"
	ActionUpdate   = "update"
	ActionPing     = "ping"
)

const (
	// readTimeout bounds how long a client may take to send its request.
	readTimeout = 10 * time.Second
	// writeTimeout bounds writing the response.
	writeTimeout = 10 * time.Second
	// maxRequestSize caps a single CBOR request.
	maxRequestSize = 1 << 20
	// DefaultReplyTimeout bounds how long a connection waits for the
	// dispatcher to answer.
	DefaultReplyTimeout = 10 * time.Second
)

// IPCServer listens on a Unix domain socket. Each connection carries one
// CBOR request and one CBOR response. Requests become commands on the
// dispatcher queue.
type IPCServer struct {
	socketPath   string
	queue        *Queue
	logger       *slog.Logger
	replyTimeout time.Duration

	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewIPCServer creates an IPC server that will listen on socketPath and
// submit commands to queue.
func NewIPCServer(socketPath string, queue *Queue, logger *slog.Logger) *IPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPCServer{
		socketPath:   socketPath,
		queue:        queue,
		logger:       logger,
		replyTimeout: DefaultReplyTimeout,
		done:         make(chan struct{}),
	}
}

// SetReplyTimeout changes how long a connection waits for its response.
func (s *IPCServer) SetReplyTimeout(d time.Duration) { s.replyTimeout = d }

// Start begins listening. The socket file is created with mode 0600; any
// stale file at the path is removed first.
func (s *IPCServer) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", s.socketPath, err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln
	s.logger.Info("control socket listening", "path", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits for in-flight connections and removes
// the socket file.
func (s *IPCServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *IPCServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *IPCServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	logger := s.logger.With("request", uuid.NewString())
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.write(conn, logger, IPCResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		if diag, err := codec.Diagnose(raw); err == nil {
			logger.Debug("request received", "cbor", diag)
		}
	}

	var req IPCRequest
	if err := codec.Unmarshal(raw, &req); err != nil {
		s.write(conn, logger, IPCResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	s.write(conn, logger, s.serve(req, logger))
}

// serve submits the command for req and waits for its response.
func (s *IPCServer) serve(req IPCRequest, logger *slog.Logger) IPCResponse {
	cmd, replies, err := CommandFor(req)
	if err != nil {
		return IPCResponse{Error: err.Error()}
	}
	if !s.queue.Submit(cmd) {
		return IPCResponse{Error: "daemon is shutting down"}
	}
	logger.Debug("command submitted", "command", cmd.command())

	if req.Action == ActionPing {
		return IPCResponse{OK: true, Output: "pong"}
	}
	if replies == nil {
		return IPCResponse{OK: true}
	}

	timer := time.NewTimer(s.replyTimeout)
	defer timer.Stop()
	select {
	case resp := <-replies:
		if resp.OK {
			return IPCResponse{OK: true, Output: resp.Text}
		}
		return IPCResponse{Error: resp.Text}
	case <-timer.C:
		logger.Warn("timed out waiting for dispatcher", "command", cmd.command())
		return IPCResponse{Error: "timed out waiting for the daemon"}
	case <-s.done:
		return IPCResponse{Error: "daemon is shutting down"}
	}
}

func (s *IPCServer) write(conn net.Conn, logger *slog.Logger, resp IPCResponse) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(resp); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

// CommandFor maps a request to its command. The returned channel is nil for
// fire-and-forget commands.
func CommandFor(req IPCRequest) (Command, <-chan Response, error) {
	needWindow := func() error {
		if req.Window == "" {
			return fmt.Errorf("action %q requires a window name", req.Action)
		}
		return nil
	}

	reply, replies := NewReply()
	switch req.Action {
	case ActionOpen:
		if err := needWindow(); err != nil {
			return nil, nil, err
		}
		cmd := OpenWindow{Name: value.WindowName(req.Window), Pos: req.Pos, Size: req.Size, Reply: reply}
		if req.Anchor != "" {
			anchor, err := config.ParseAnchorPoint(req.Anchor)
			if err != nil {
				return nil, nil, err
			}
			cmd.Anchor = &anchor
		}
		return cmd, replies, nil
	case ActionOpenMany:
		if len(req.Windows) == 0 {
			return nil, nil, fmt.Errorf("action %q requires at least one window name", req.Action)
		}
		names := make([]value.WindowName, len(req.Windows))
		for i, w := range req.Windows {
			names[i] = value.WindowName(w)
		}
		return OpenMany{Names: names, Reply: reply}, replies, nil
	case ActionClose:
		if err := needWindow(); err != nil {
			return nil, nil, err
		}
		return CloseWindow{Name: value.WindowName(req.Window), Reply: reply}, replies, nil
	case ActionCloseAll:
		return CloseAll{}, nil, nil
	case ActionReload:
		return ReloadConfigAndCss{Reply: reply}, replies, nil
	case ActionKill:
		return KillServer{}, nil, nil
	case ActionState:
		return PrintState{Reply: reply}, replies, nil
	case ActionWindows:
		return PrintWindows{Reply: reply}, replies, nil
	case ActionDebug:
		return PrintDebug{Reply: reply}, replies, nil
	case ActionUpdate:
		if len(req.Vars) == 0 {
			return nil, nil, fmt.Errorf("action %q requires at least one variable", req.Action)
		}
		updates := make([]VarUpdate, 0, len(req.Vars))
		for _, v := range req.Vars {
			updates = append(updates, VarUpdate{Name: value.VarName(v.Name), Value: value.Parse(v.Value)})
		}
		return UpdateVariables{Updates: updates, Reply: reply}, replies, nil
	case ActionPing:
		return NoOp{}, nil, nil
	case "":
		return nil, nil, errors.New("missing required field: action")
	default:
		return nil, nil, fmt.Errorf("unknown action %q", req.Action)
	}
}

// IPCClient sends requests to a running daemon.
type IPCClient struct {
	socketPath string
	timeout    time.Duration
}

// NewIPCClient creates a client for the daemon at socketPath.
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath, timeout: DefaultReplyTimeout + 5*time.Second}
}

// Send opens a connection, writes req and reads the response.
func (c *IPCClient) Send(req IPCRequest) (*IPCResponse, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	var resp IPCResponse
	if err := codec.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &resp, nil
}

// Call sends req and turns a failed response into an error.
func (c *IPCClient) Call(req IPCRequest) (string, error) {
	resp, err := c.Send(req)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", errors.New(resp.Error)
	}
	return resp.Output, nil
}
