//go:build functional

// Package functional runs the catalog server end to end over real sockets.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-api/internal/config"
	"github.com/vyrodovalexey/catalog-api/internal/server"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost = "TEST_SERVER_HOST"
	EnvTestTimeout    = "TEST_TIMEOUT"
)

// Default test configuration values.
const (
	DefaultTestHost        = "127.0.0.1"
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Seed documents written to every test data directory.
var seedDocuments = map[string]string{
	"books": `[
  {"id": 1, "title": "Мастер и Маргарита", "creator": "Михаил Булгаков", "genres": ["Классика", "Fantasy"],
   "rating": 0.0, "reviews": []},
  {"id": 2, "title": "Dune", "creator": "Frank Herbert", "genres": ["Sci-Fi"], "rating": 8.5,
   "reviews": [{"author": "a", "text": "b", "rating": 9.0, "date": "01.01.2024"},
               {"author": "c", "text": "d", "rating": 8.0, "date": "02.01.2024"}]}
]`,
	"games": `[
  {"id": 10, "title": "Portal", "genres": ["Puzzle"], "rating": 10.0,
   "reviews": [{"author": "x", "text": "y", "rating": 10.0, "date": "03.03.2023"}]}
]`,
	"movies": `[
  {"id": 100, "title": "Solaris", "genres": ["Drama", "Sci-Fi"], "rating": 0.0, "reviews": []}
]`,
}

// TestServer is a running catalog server bound to a free port.
type TestServer struct {
	Server  *server.Server
	Config  *config.Config
	BaseURL string
	WSURL   string
	cancel  context.CancelFunc
	done    chan error
}

// NewTestServer seeds a data directory and starts the server on a free port.
func NewTestServer(t *testing.T, mutate ...func(*config.Config)) *TestServer {
	t.Helper()

	host := DefaultTestHost
	if h := os.Getenv(EnvTestServerHost); h != "" {
		host = h
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	cfg := config.New()
	cfg.ServerPort = port
	cfg.ShutdownTimeout = DefaultShutdownTimeout
	cfg.DataDir = t.TempDir()
	for domain, doc := range seedDocuments {
		if err := os.WriteFile(filepath.Join(cfg.DataDir, domain+".json"), []byte(doc), 0o600); err != nil {
			t.Fatalf("failed to seed %s: %v", domain, err)
		}
	}
	for _, m := range mutate {
		m(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	srv, err := server.New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts := &TestServer{
		Server:  srv,
		Config:  cfg,
		BaseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		WSURL:   "ws://" + net.JoinHostPort(host, strconv.Itoa(port)),
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() { ts.done <- srv.Run(ctx) }()
	t.Cleanup(func() { ts.Stop(t) })

	ts.waitReady(t)
	return ts
}

func (ts *TestServer) waitReady(t *testing.T) {
	t.Helper()

	deadline := time.Now().Add(DefaultRequestTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.BaseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not become ready")
}

// Stop cancels the server and waits for it to exit.
func (ts *TestServer) Stop(t *testing.T) {
	t.Helper()

	ts.cancel()
	select {
	case err := <-ts.done:
		if err != nil {
			t.Errorf("server exited with error: %v", err)
		}
		ts.done <- nil
	case <-time.After(2 * DefaultShutdownTimeout):
		t.Error("server did not stop in time")
	}
}

// Document reads the persisted document of domain.
func (ts *TestServer) Document(t *testing.T, domain string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(ts.Config.DataDir, domain+".json"))
	if err != nil {
		t.Fatalf("failed to read %s document: %v", domain, err)
	}
	return raw
}

// Do sends a request with an optional JSON body and returns status and body.
func (ts *TestServer) Do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, ts.BaseURL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

// DoJSON is Do followed by decoding the body into out.
func (ts *TestServer) DoJSON(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	status, raw := ts.Do(t, method, path, body)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return status
}

// Dial opens the review event stream of domain.
func (ts *TestServer) Dial(t *testing.T, domain string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/api/%s/events", ts.WSURL, domain), nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WaitForEventClients blocks until n event stream clients are registered.
func (ts *TestServer) WaitForEventClients(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(DefaultRequestTimeout)
	for ts.Server.EventClients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("EventClients() = %d, want %d", ts.Server.EventClients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
