package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/musescore-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/musescore-mcp/internal/services/mcp/host"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/net/websocket"
)

// fakeMuseScore records every frame and answers with reply.
type fakeMuseScore struct {
	reply string

	mu     sync.Mutex
	conns  int
	frames []map[string]any
}

func (f *fakeMuseScore) handle(conn *websocket.Conn) {
	f.mu.Lock()
	f.conns++
	f.mu.Unlock()
	for {
		var msg string
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(msg), &frame); err != nil {
			return
		}
		f.mu.Lock()
		f.frames = append(f.frames, frame)
		f.mu.Unlock()
		if err := websocket.Message.Send(conn, f.reply); err != nil {
			return
		}
	}
}

func (f *fakeMuseScore) received() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeMuseScore) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns
}

func startFakeMuseScore(t *testing.T, reply string) (*fakeMuseScore, int) {
	t.Helper()
	fake := &fakeMuseScore{reply: reply}
	srv := httptest.NewServer(websocket.Handler(fake.handle))
	t.Cleanup(srv.Close)
	return fake, srv.Listener.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()
	return port
}

func newTestServer(t *testing.T, port int, opts Options) *Server {
	t.Helper()
	client := host.NewClient(host.Options{Host: "127.0.0.1", Port: port, RequestTimeout: 2 * time.Second})
	server, err := newServer(client, opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func connectTestSession(t *testing.T, server *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	if _, err := server.mcpServer.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("connect server: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return result
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected tool result content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatalf("decode tool result %q: %v", text.Text, err)
	}
	return decoded
}

func listToolNames(t *testing.T, session *mcp.ClientSession) []string {
	t.Helper()
	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	return names
}

func TestServerListsCoreTools(t *testing.T) {
	server := newTestServer(t, closedPort(t), Options{})
	session := connectTestSession(t, server)

	got := listToolNames(t, session)
	want := []string{"connect_to_musescore", "get_cursor_info", "get_score", "ping_musescore", "processSequence"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected tools %v, got %v", want, got)
	}
}

func TestServerListsStepToolsWhenEnabled(t *testing.T) {
	server := newTestServer(t, closedPort(t), Options{StepTools: true})
	session := connectTestSession(t, server)

	got := listToolNames(t, session)
	if len(got) != 19 {
		t.Fatalf("expected 19 tools, got %d: %v", len(got), got)
	}
	listed := make(map[string]bool, len(got))
	for _, name := range got {
		listed[name] = true
	}
	for _, name := range []string{"add_note", "add_tuplet", "go_to_measure", "undo", "set_time_signature"} {
		if !listed[name] {
			t.Fatalf("expected %q in %v", name, got)
		}
	}
}

func TestServerPingRoundTrip(t *testing.T) {
	fake, port := startFakeMuseScore(t, `{"result":"pong"}`)
	server := newTestServer(t, port, Options{})
	session := connectTestSession(t, server)

	for i := 0; i < 2; i++ {
		result := callTool(t, session, "ping_musescore", map[string]any{})
		if result.IsError {
			t.Fatalf("ping %d: unexpected error result", i)
		}
		if got := resultJSON(t, result); got["result"] != "pong" {
			t.Fatalf("ping %d: expected pong, got %v", i, got)
		}
	}

	frames := fake.received()
	if len(frames) != 2 {
		t.Fatalf("expected two round trips, got %d", len(frames))
	}
	if frames[0]["action"] != "ping" {
		t.Fatalf("expected ping action, got %v", frames[0]["action"])
	}
	if fake.connCount() != 1 {
		t.Fatalf("expected one websocket for both pings, got %d", fake.connCount())
	}
}

func TestServerProcessSequenceIsOneRoundTrip(t *testing.T) {
	fake, port := startFakeMuseScore(t, `{"success":true,"results":[{},{}]}`)
	server := newTestServer(t, port, Options{})
	session := connectTestSession(t, server)

	sequence := []any{
		map[string]any{"action": "addNote", "params": map[string]any{
			"pitch":    64,
			"duration": map[string]any{"numerator": 1, "denominator": 4},
		}},
		map[string]any{"action": "nextElement", "params": map[string]any{}},
	}
	result := callTool(t, session, "processSequence", map[string]any{"sequence": sequence})
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, result))
	}
	if got := resultJSON(t, result); got["success"] != true {
		t.Fatalf("expected the host's single reply, got %v", got)
	}

	frames := fake.received()
	if len(frames) != 1 {
		t.Fatalf("expected exactly one round trip, got %d", len(frames))
	}
	if frames[0]["action"] != "processSequence" {
		t.Fatalf("expected processSequence action, got %v", frames[0]["action"])
	}
	var want any
	raw, _ := json.Marshal(map[string]any{"sequence": sequence})
	_ = json.Unmarshal(raw, &want)
	if !reflect.DeepEqual(frames[0]["params"], want) {
		t.Fatalf("expected params %v, got %v", want, frames[0]["params"])
	}
}

func TestServerEmptySequenceStillRoundTrips(t *testing.T) {
	fake, port := startFakeMuseScore(t, `{"success":true,"results":[]}`)
	server := newTestServer(t, port, Options{})
	session := connectTestSession(t, server)

	result := callTool(t, session, "processSequence", map[string]any{"sequence": []any{}})
	if result.IsError {
		t.Fatal("unexpected error result")
	}
	frames := fake.received()
	if len(frames) != 1 {
		t.Fatalf("expected one round trip, got %d", len(frames))
	}
	params, _ := frames[0]["params"].(map[string]any)
	if seq, ok := params["sequence"].([]any); !ok || len(seq) != 0 {
		t.Fatalf("expected empty sequence, got %#v", frames[0]["params"])
	}
}

func TestServerRejectsUnknownSequenceAction(t *testing.T) {
	fake, port := startFakeMuseScore(t, `{}`)
	server := newTestServer(t, port, Options{})
	session := connectTestSession(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "processSequence",
		Arguments: map[string]any{"sequence": []any{
			map[string]any{"action": "undo", "params": map[string]any{}},
			map[string]any{"action": "transpose", "params": map[string]any{}},
		}},
	})
	if err == nil && (result == nil || !result.IsError) {
		t.Fatal("expected unknown action to be rejected")
	}
	if got := len(fake.received()); got != 0 {
		t.Fatalf("expected nothing sent to MuseScore, got %d frames", got)
	}
	if fake.connCount() != 0 {
		t.Fatal("expected no connection for a rejected batch")
	}
}

func TestServerUnreachableHostReturnsErrorRecord(t *testing.T) {
	server := newTestServer(t, closedPort(t), Options{})
	session := connectTestSession(t, server)

	result := callTool(t, session, "get_score", map[string]any{})
	if !result.IsError {
		t.Fatal("expected IsError for an unreachable host")
	}
	record := resultJSON(t, result)
	if _, ok := record[host.ErrorField]; !ok {
		t.Fatalf("expected error field, got %v", record)
	}
	if record[host.KindField] != string(host.KindUnavailable) {
		t.Fatalf("expected unavailable kind, got %v", record[host.KindField])
	}
	if server.client.Connected() {
		t.Fatal("expected no open channel after failed connect")
	}
}

func TestServerHostErrorIsNotToolError(t *testing.T) {
	_, port := startFakeMuseScore(t, `{"error":"No score open"}`)
	server := newTestServer(t, port, Options{})
	session := connectTestSession(t, server)

	result := callTool(t, session, "get_cursor_info", map[string]any{})
	if result.IsError {
		t.Fatal("host-reported errors must pass through as normal results")
	}
	if got := resultJSON(t, result); got["error"] != "No score open" {
		t.Fatalf("expected host reply untouched, got %v", got)
	}
}

func TestServerConnectTool(t *testing.T) {
	fake, port := startFakeMuseScore(t, `{}`)
	server := newTestServer(t, port, Options{})
	session := connectTestSession(t, server)

	result := callTool(t, session, "connect_to_musescore", map[string]any{})
	if got := resultJSON(t, result); got["success"] != true {
		t.Fatalf("expected success, got %v", got)
	}
	_ = callTool(t, session, "connect_to_musescore", map[string]any{})
	_ = callTool(t, session, "ping_musescore", map[string]any{})
	if fake.connCount() != 1 {
		t.Fatalf("expected repeated connects to reuse the channel, got %d", fake.connCount())
	}

	failing := newTestServer(t, closedPort(t), Options{})
	failingSession := connectTestSession(t, failing)
	result = callTool(t, failingSession, "connect_to_musescore", map[string]any{})
	if got := resultJSON(t, result); got["success"] != false {
		t.Fatalf("expected success=false, got %v", got)
	}
}

func TestServerStepToolAppliesDefaults(t *testing.T) {
	fake, port := startFakeMuseScore(t, `{"success":true}`)
	server := newTestServer(t, port, Options{StepTools: true})
	session := connectTestSession(t, server)

	result := callTool(t, session, "add_note", map[string]any{"advanceCursorAfterAction": true})
	if result.IsError {
		t.Fatalf("unexpected error result: %v", resultJSON(t, result))
	}
	frames := fake.received()
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	want := map[string]any{
		"pitch":                    float64(64),
		"duration":                 map[string]any{"numerator": float64(1), "denominator": float64(4)},
		"advanceCursorAfterAction": true,
	}
	if frames[0]["action"] != "addNote" || !reflect.DeepEqual(frames[0]["params"], want) {
		t.Fatalf("unexpected frame %v", frames[0])
	}
}

func TestServerCatalogResource(t *testing.T) {
	server := newTestServer(t, closedPort(t), Options{})
	session := connectTestSession(t, server)

	result, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: domain.CatalogResourceURI})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected one content entry, got %d", len(result.Contents))
	}
	var payload domain.CatalogPayload
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if len(payload.Sequenceable) != 16 {
		t.Fatalf("expected 16 sequenceable actions, got %d", len(payload.Sequenceable))
	}
}

func TestNewServerRequiresClient(t *testing.T) {
	if _, err := newServer(nil, Options{}); err == nil {
		t.Fatal("expected error for nil client")
	}
}

// TestRunUnsupportedTransport ensures Run rejects unknown transport kinds.
func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "websocket"})
	if err == nil {
		t.Fatal("expected error for unsupported transport")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("expected 'not supported' in error, got: %v", err)
	}
}

// TestRunWithTransportServesAndStops ensures runWithTransport serves and exits on cancel.
func TestRunWithTransportServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	cfg := Config{Host: "127.0.0.1", Port: closedPort(t)}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- runWithTransport(ctx, cfg, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer clientCancel()
	session, err := client.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

type failingTransport struct{}

func (failingTransport) Connect(context.Context) (mcp.Connection, error) {
	return nil, errors.New("transport failed")
}

// TestServeWithTransportErrors ensures serveWithTransport reports setup failures.
func TestServeWithTransportErrors(t *testing.T) {
	var nilServer *Server
	if err := nilServer.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}

	emptyServer := &Server{}
	if err := emptyServer.serveWithTransport(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for missing mcp server")
	}

	server := newTestServer(t, closedPort(t), Options{})
	if err := server.serveWithTransport(nil, failingTransport{}); err == nil {
		t.Fatal("expected error from failing transport")
	}
}

type closeErrClient struct {
	domain.HostClient
}

func (closeErrClient) Connected() bool { return false }
func (closeErrClient) Close() error    { return errors.New("close failed") }

func TestServeWithTransportReportsCloseError(t *testing.T) {
	server, err := newServer(closeErrClient{}, Options{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	err = server.serveWithTransport(context.Background(), failingTransport{})
	if err == nil || !strings.Contains(err.Error(), "close MuseScore connection") {
		t.Fatalf("expected close error to be reported, got %v", err)
	}
}
