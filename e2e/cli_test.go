package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/capitalduel/internal/api"
	"github.com/mcoot/capitalduel/internal/factory"
	"github.com/mcoot/capitalduel/internal/transport/ws"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "duel-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/duel")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Create application
	projectRoot := findProjectRoot(t)
	app, err := factory.New(context.Background(), factory.Config{
		QuestionsPath: filepath.Join(projectRoot, "data/questions.json"),
		Logger:        logger,
	})
	require.NoError(t, err)

	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		Clock:            app.Clock,
		AuthService:      app.AuthService,
		QuestionsService: app.QuestionsService,
		Coordinator:      app.Coordinator,
		WebSocket:        ws.DefaultConfig(),
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type authResponse struct {
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

type userResponse struct {
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
}

type questionsResponse struct {
	Questions []struct {
		Country string `json:"country"`
		Capital string `json:"capital"`
	} `json:"questions"`
}

type searchResponse struct {
	Users []struct {
		Username string `json:"username"`
		Online   bool   `json:"online"`
	} `json:"users"`
}

type statsResponse struct {
	Online      int `json:"online"`
	ActiveRooms int `json:"active_rooms"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_AccountCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("login", "alice")
	require.NoError(t, err, "output: %s", output)

	var authResp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &authResp))
	assert.Equal(t, "alice", authResp.Username)
	assert.NotEmpty(t, authResp.SessionToken)

	// Token is saved in the token file
	output, err = cli.run("me")
	require.NoError(t, err, "output: %s", output)
	var me userResponse
	require.NoError(t, json.Unmarshal([]byte(output), &me))
	assert.Equal(t, "alice", me.Username)
	assert.False(t, me.HasPassword)

	output, err = cli.run("password", "--pass", "secret123")
	require.NoError(t, err, "output: %s", output)

	// Once a password is set, logging in without it fails
	_, err = cli.run("login", "alice")
	assert.Error(t, err)

	output, err = cli.run("login", "alice", "--pass", "secret123")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("logout")
	require.NoError(t, err, "output: %s", output)
	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Equal(t, "Logged out", msg.Message)

	_, err = cli.run("me")
	assert.Error(t, err)
}

func TestCLI_QuestionCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	_, err := cli.run("login", "alice")
	require.NoError(t, err)

	output, err := cli.run("questions", "get")
	require.NoError(t, err, "output: %s", output)
	var qs questionsResponse
	require.NoError(t, json.Unmarshal([]byte(output), &qs))
	assert.Empty(t, qs.Questions)

	output, err = cli.run("questions", "default")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &qs))
	assert.NotEmpty(t, qs.Questions)

	file := filepath.Join(t.TempDir(), "qs.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"country":" Chile ","capital":"Santiago"}]`), 0o600))
	output, err = cli.run("questions", "set", file)
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &qs))
	require.Len(t, qs.Questions, 1)
	assert.Equal(t, "Chile", qs.Questions[0].Country)
}

func TestCLI_SearchStatsAndRooms(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	alice := newCLIRunner(t, ts.addr)
	bob := newCLIRunner(t, ts.addr)
	_, err := alice.run("login", "alice")
	require.NoError(t, err)
	_, err = bob.run("login", "albert")
	require.NoError(t, err)

	output, err := bob.run("users", "search", "al")
	require.NoError(t, err, "output: %s", output)
	var search searchResponse
	require.NoError(t, json.Unmarshal([]byte(output), &search))
	require.Len(t, search.Users, 2)
	assert.Equal(t, "albert", search.Users[0].Username)
	assert.False(t, search.Users[0].Online)

	output, err = alice.run("stats")
	require.NoError(t, err, "output: %s", output)
	var stats statsResponse
	require.NoError(t, json.Unmarshal([]byte(output), &stats))
	assert.Equal(t, 0, stats.ActiveRooms)

	output, err = alice.run("room", "state", "albert-alice")
	assert.Error(t, err)
	assert.Contains(t, output, "NOT_FOUND")
}
