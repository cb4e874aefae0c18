package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gocup/internal/api"
	"github.com/mcoot/gocup/internal/testutil"
)

func TestServerDrainsBeforeShutdown(t *testing.T) {
	cfg := api.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = 2 * time.Second

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	drained := make(chan struct{})
	server := api.NewServer(mux, cfg, testutil.NopLogger(), func(context.Context) error {
		close(drained)
		return nil
	})

	listener, err := server.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	select {
	case <-drained:
	default:
		t.Fatal("drain was not called")
	}
}

func TestServerConfigAddr(t *testing.T) {
	cfg := api.DefaultServerConfig()
	assert.Equal(t, ":8080", cfg.Addr())

	cfg.Host = "::1"
	assert.Equal(t, "[::1]:8080", cfg.Addr())
}
