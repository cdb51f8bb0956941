package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/widgetd/pkg/codec"
	"gitlab.com/tinyland/lab/widgetd/pkg/config"
	"gitlab.com/tinyland/lab/widgetd/pkg/value"
)

// socketPath returns a short socket path; t.TempDir can exceed the Unix
// socket path limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "widgetd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestCommandFor(t *testing.T) {
	tests := []struct {
		name      string
		req       IPCRequest
		wantCmd   string
		wantReply bool
		wantErr   string
	}{
		{name: "open", req: IPCRequest{Action: ActionOpen, Window: "bar"}, wantCmd: "open", wantReply: true},
		{name: "open without window", req: IPCRequest{Action: ActionOpen}, wantErr: "requires a window name"},
		{name: "open bad anchor", req: IPCRequest{Action: ActionOpen, Window: "bar", Anchor: "sideways"}, wantErr: "invalid anchor"},
		{name: "open many", req: IPCRequest{Action: ActionOpenMany, Windows: []string{"a", "b"}}, wantCmd: "open-many", wantReply: true},
		{name: "open many empty", req: IPCRequest{Action: ActionOpenMany}, wantErr: "at least one window"},
		{name: "close", req: IPCRequest{Action: ActionClose, Window: "bar"}, wantCmd: "close", wantReply: true},
		{name: "close without window", req: IPCRequest{Action: ActionClose}, wantErr: "requires a window name"},
		{name: "close all", req: IPCRequest{Action: ActionCloseAll}, wantCmd: "close-all"},
		{name: "reload", req: IPCRequest{Action: ActionReload}, wantCmd: "reload", wantReply: true},
		{name: "kill", req: IPCRequest{Action: ActionKill}, wantCmd: "kill"},
		{name: "state", req: IPCRequest{Action: ActionState}, wantCmd: "state", wantReply: true},
		{name: "windows", req: IPCRequest{Action: ActionWindows}, wantCmd: "windows", wantReply: true},
		{name: "debug", req: IPCRequest{Action: ActionDebug}, wantCmd: "debug", wantReply: true},
		{name: "update", req: IPCRequest{Action: ActionUpdate, Vars: []IPCVar{{Name: "a", Value: "1"}}}, wantCmd: "update-variables", wantReply: true},
		{name: "update empty", req: IPCRequest{Action: ActionUpdate}, wantErr: "at least one variable"},
		{name: "ping", req: IPCRequest{Action: ActionPing}, wantCmd: "noop"},
		{name: "missing action", req: IPCRequest{}, wantErr: "missing required field: action"},
		{name: "unknown action", req: IPCRequest{Action: "dance"}, wantErr: `unknown action "dance"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, replies, err := CommandFor(tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd.command())
			assert.Equal(t, tt.wantReply, replies != nil)
		})
	}
}

func TestCommandFor_OpenOverrides(t *testing.T) {
	pos := value.Coords{X: value.NumWithUnit{Value: 5}, Y: value.NumWithUnit{Value: 10, Unit: value.UnitPercent}}
	cmd, _, err := CommandFor(IPCRequest{Action: ActionOpen, Window: "bar", Pos: &pos, Anchor: "bottom right"})
	require.NoError(t, err)

	open := cmd.(OpenWindow)
	assert.Equal(t, value.WindowName("bar"), open.Name)
	assert.Equal(t, &pos, open.Pos)
	assert.Nil(t, open.Size)
	require.NotNil(t, open.Anchor)
	assert.Equal(t, config.AnchorPoint{X: config.AlignEnd, Y: config.AlignEnd}, *open.Anchor)
}

func TestCommandFor_UpdateKeepsOrderAndParses(t *testing.T) {
	cmd, _, err := CommandFor(IPCRequest{Action: ActionUpdate, Vars: []IPCVar{
		{Name: "volume", Value: "42%"},
		{Name: "muted", Value: "true"},
		{Name: "title", Value: "hello"},
		{Name: "volume", Value: "7"},
	}})
	require.NoError(t, err)

	updates := cmd.(UpdateVariables).Updates
	require.Len(t, updates, 4)
	assert.Equal(t, value.VarName("volume"), updates[0].Name)
	assert.Equal(t, "42%", updates[0].Value.String())
	assert.Equal(t, value.VarName("muted"), updates[1].Name)
	assert.Equal(t, value.KindBool, updates[1].Value.Kind())
	assert.Equal(t, value.VarName("title"), updates[2].Name)
	assert.Equal(t, value.KindString, updates[2].Value.Kind())
	assert.Equal(t, value.VarName("volume"), updates[3].Name)
	assert.Equal(t, "7", updates[3].Value.String())
}

func startServer(t *testing.T, ta *testApp) *IPCClient {
	t.Helper()
	path := socketPath(t)
	srv := NewIPCServer(path, ta.Queue(), discardLogger())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return NewIPCClient(path)
}

func TestIPCServer_RoundTrip(t *testing.T) {
	ta := newTestApp(t)
	client := startServer(t, ta)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- ta.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-runErr
	})

	out, err := client.Call(IPCRequest{Action: ActionPing})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	_, err = client.Call(IPCRequest{Action: ActionOpen, Window: "bar"})
	require.NoError(t, err)

	_, err = client.Call(IPCRequest{Action: ActionUpdate, Vars: []IPCVar{
		{Name: "volume", Value: "10"},
		{Name: "volume", Value: "50"},
	}})
	require.NoError(t, err)

	out, err = client.Call(IPCRequest{Action: ActionState})
	require.NoError(t, err)
	assert.Equal(t, "greeting: hi\nvolume: 50", out)

	_, err = client.Call(IPCRequest{Action: ActionClose, Window: "bar"})
	require.NoError(t, err)

	_, err = client.Call(IPCRequest{Action: ActionUpdate, Vars: []IPCVar{{Name: "volume", Value: "51"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = client.Call(IPCRequest{Action: ActionClose, Window: "bar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not open")
}

func TestIPCServer_ReplyTimeout(t *testing.T) {
	q := NewQueue()
	path := socketPath(t)
	srv := NewIPCServer(path, q, discardLogger())
	srv.SetReplyTimeout(50 * time.Millisecond)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	// Nothing drains the queue.
	resp, err := NewIPCClient(path).Send(IPCRequest{Action: ActionState})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "timed out waiting for the daemon", resp.Error)
	assert.Equal(t, 1, q.Len())
}

func TestIPCServer_ClosedQueue(t *testing.T) {
	q := NewQueue()
	q.Close()
	path := socketPath(t)
	srv := NewIPCServer(path, q, discardLogger())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	_, err := NewIPCClient(path).Call(IPCRequest{Action: ActionCloseAll})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutting down")
}

func TestIPCServer_InvalidRequest(t *testing.T) {
	path := socketPath(t)
	srv := NewIPCServer(path, NewQueue(), discardLogger())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	// A CBOR text string where a map is expected.
	_, err = conn.Write([]byte{0x63, 'a', 'b', 'c'})
	require.NoError(t, err)

	var resp IPCResponse
	require.NoError(t, codec.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "invalid request")
}

func TestIPCServer_SocketPermissions(t *testing.T) {
	path := socketPath(t)
	srv := NewIPCServer(path, NewQueue(), discardLogger())
	require.NoError(t, srv.Start())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	srv.Stop()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket should be removed on stop")
}
