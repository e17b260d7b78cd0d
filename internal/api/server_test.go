package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/broadcast-mailer/internal/config"
)

func TestShutdownBeforeListen(t *testing.T) {
	s := NewServer(config.ServerConfig{}, "127.0.0.1:0", NewHandlers(&fakeCommands{}, Options{}), nil)
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	err := s.ListenAndServe()
	assert.True(t, errors.Is(err, http.ErrServerClosed), "got %v", err)
}

func TestShutdownWhileServing(t *testing.T) {
	s := NewServer(config.ServerConfig{}, "127.0.0.1:0", NewHandlers(&fakeCommands{}, Options{}), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Shutdown may run before or after the listener opens; both end the server.
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, http.ErrServerClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
