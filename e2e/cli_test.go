package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gocup/internal/api"
	"github.com/mcoot/gocup/internal/config"
	"github.com/mcoot/gocup/internal/factory"
	"github.com/mcoot/gocup/internal/testutil"
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
	binaryPath := filepath.Join(projectRoot, "bin", "gocup-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/gocup")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	// Create temp token file
	tokenFile := filepath.Join(t.TempDir(), "token")

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  tokenFile,
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

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
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

// start launches the CLI without waiting for it to exit
func (r *cliRunner) start(tokenFile string, args ...string) (*exec.Cmd, *bytes.Buffer) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", tokenFile,
		"--output", "json",
	}, args...)

	var output bytes.Buffer
	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	return cmd, &output
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	settings := config.Default()
	settings.Auth.Secret = "e2e-secret"
	settings.Auth.BcryptCost = bcrypt.MinCost
	settings.Server.Host = "127.0.0.1"
	settings.Server.Port = 0
	settings.Server.ShutdownTimeout = 5 * time.Second

	// Create application
	app, err := factory.New(factory.Config{Settings: settings})
	require.NoError(t, err)

	server := api.NewServer(app.Router(), settings.Server, testutil.NopLogger(), app.Close)
	listener, err := server.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx, listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + listener.Addr().String()
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		addr: serverURL,
		shutdown: func() {
			cancel()
			<-done
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
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Elo      int    `json:"elo"`
	} `json:"user"`
	Token string `json:"token"`
}

type queueResponse struct {
	InQueue     int  `json:"inQueue"`
	TimeElapsed *int `json:"timeElapsed"`
}

type gameResponse struct {
	ID    string `json:"id"`
	Black struct {
		Username string `json:"username"`
	} `json:"black"`
	White struct {
		Username string `json:"username"`
	} `json:"white"`
	Status    string     `json:"status"`
	Size      int        `json:"size"`
	Board     [][]string `json:"board"`
	Turn      string     `json:"turn"`
	MoveCount int        `json:"moveCount"`
	Winner    string     `json:"winner"`
}

type moveResponse struct {
	Kind   string `json:"kind"`
	Color  string `json:"color"`
	Number int    `json:"number"`
}

type chatHistoryResponse struct {
	Entries []struct {
		AuthorName string `json:"authorName"`
		Message    string `json:"message"`
		System     bool   `json:"system"`
	} `json:"entries"`
}

type healthResponse struct {
	Status string `json:"status"`
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

func TestCLI_PlayerCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Register
	output, err := cli.run("player", "register", "--user", "alice", "--pass", "secret123")
	require.NoError(t, err, "output: %s", output)

	var authResp authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &authResp))
	assert.Equal(t, "alice", authResp.User.Username)
	assert.Equal(t, 1500, authResp.User.Elo)
	assert.NotEmpty(t, authResp.Token)

	// Get me (token should be saved in token file)
	output, err = cli.run("player", "me")
	require.NoError(t, err, "output: %s", output)

	var player struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &player))
	assert.Equal(t, "alice", player.Username)
	assert.Equal(t, authResp.User.ID, player.ID)

	// Login again
	output, err = cli.run("player", "login", "--user", "alice", "--pass", "secret123")
	require.NoError(t, err, "output: %s", output)
}

func TestCLI_MatchAndPlay(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	bobTokenFile := filepath.Join(t.TempDir(), "bob-token")

	output, err := cli.run("player", "register", "--user", "alice", "--pass", "secret123")
	require.NoError(t, err, "output: %s", output)

	bobCmd, _ := cli.start(bobTokenFile, "player", "register", "--user", "bob", "--pass", "secret123")
	require.NoError(t, bobCmd.Run())

	// Alice waits in the queue
	aliceCmd, aliceOutput := cli.start(cli.tokenFile, "queue", "play", "--size", "9", "--timeout", "10s")
	require.NoError(t, aliceCmd.Start())

	require.Eventually(t, func() bool {
		output, err := cli.run("queue", "status")
		if err != nil {
			return false
		}
		var q queueResponse
		return json.Unmarshal([]byte(output), &q) == nil && q.InQueue == 1
	}, 5*time.Second, 50*time.Millisecond)

	// Bob completes the match
	bobCmd, bobOutput := cli.start(bobTokenFile, "queue", "play", "--size", "9", "--timeout", "10s")
	require.NoError(t, bobCmd.Run(), "output: %s", bobOutput.String())
	require.NoError(t, aliceCmd.Wait(), "output: %s", aliceOutput.String())

	var aliceGame, bobGame gameResponse
	require.NoError(t, json.Unmarshal(aliceOutput.Bytes(), &aliceGame), "output: %s", aliceOutput.String())
	require.NoError(t, json.Unmarshal(bobOutput.Bytes(), &bobGame), "output: %s", bobOutput.String())
	assert.Equal(t, aliceGame.ID, bobGame.ID)
	assert.Equal(t, "waiting", aliceGame.Status)
	assert.Equal(t, 9, aliceGame.Size)

	gameID := aliceGame.ID
	black, white := cli.tokenFile, bobTokenFile
	if aliceGame.Black.Username == "bob" {
		black, white = white, black
	}

	// Black opens the game
	cmd, out := cli.start(black, "game", "move", gameID, "2", "3")
	require.NoError(t, cmd.Run(), "output: %s", out.String())
	var move moveResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &move))
	assert.Equal(t, "place", move.Kind)
	assert.Equal(t, "black", move.Color)
	assert.Equal(t, 1, move.Number)

	// Black cannot play twice
	cmd, out = cli.start(black, "game", "move", gameID, "4", "4")
	assert.Error(t, cmd.Run())
	assert.Contains(t, strings.ToLower(out.String()), "not your turn")

	// Chat
	cmd, out = cli.start(white, "game", "chat", gameID, "nice opening")
	require.NoError(t, cmd.Run(), "output: %s", out.String())

	output, err = cli.run("game", "history", gameID)
	require.NoError(t, err, "output: %s", output)
	var history chatHistoryResponse
	require.NoError(t, json.Unmarshal([]byte(output), &history))
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "nice opening", history.Entries[0].Message)

	// White resigns
	cmd, out = cli.start(white, "game", "resign", gameID)
	require.NoError(t, cmd.Run(), "output: %s", out.String())

	output, err = cli.run("game", "show", gameID)
	require.NoError(t, err, "output: %s", output)
	var game gameResponse
	require.NoError(t, json.Unmarshal([]byte(output), &game))
	assert.Equal(t, "finished", game.Status)
	assert.Equal(t, "black", game.Winner)
	assert.Equal(t, "black", game.Board[3][2])
}

func TestCLI_CancelGame(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	bobTokenFile := filepath.Join(t.TempDir(), "bob-token")

	output, err := cli.run("player", "register", "--user", "alice", "--pass", "secret123")
	require.NoError(t, err, "output: %s", output)
	cmd, _ := cli.start(bobTokenFile, "player", "register", "--user", "bob", "--pass", "secret123")
	require.NoError(t, cmd.Run())

	aliceCmd, aliceOutput := cli.start(cli.tokenFile, "queue", "play", "--size", "13", "--timeout", "10s")
	require.NoError(t, aliceCmd.Start())
	require.Eventually(t, func() bool {
		output, err := cli.run("queue", "status")
		var q queueResponse
		return err == nil && json.Unmarshal([]byte(output), &q) == nil && q.InQueue == 1
	}, 5*time.Second, 50*time.Millisecond)

	cmd, _ = cli.start(bobTokenFile, "queue", "play", "--size", "13", "--timeout", "10s")
	require.NoError(t, cmd.Run())
	require.NoError(t, aliceCmd.Wait())

	var game gameResponse
	require.NoError(t, json.Unmarshal(aliceOutput.Bytes(), &game), "output: %s", aliceOutput.String())

	output, err = cli.run("game", "cancel", game.ID)
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("game", "show", game.ID)
	require.NoError(t, err, "output: %s", output)
	var cancelled gameResponse
	require.NoError(t, json.Unmarshal([]byte(output), &cancelled))
	assert.True(t, strings.HasPrefix(cancelled.Status, "cancelled_by_"))

	output, err = cli.run("game", "history", game.ID)
	require.NoError(t, err, "output: %s", output)
	var history chatHistoryResponse
	require.NoError(t, json.Unmarshal([]byte(output), &history))
	require.Len(t, history.Entries, 1)
	assert.True(t, history.Entries[0].System)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Get player without auth
	output, err := cli.run("player", "me")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")

	// Realtime commands need a token
	output, err = cli.run("game", "pass", "missing")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not logged in")

	// Get non-existent game
	output, err = cli.run("player", "register", "--user", "alice", "--pass", "secret123")
	require.NoError(t, err)
	var auth authResponse
	require.NoError(t, json.Unmarshal([]byte(output), &auth))

	output, err = cli.runWithToken(auth.Token, "game", "show", "INVALID")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")
}
