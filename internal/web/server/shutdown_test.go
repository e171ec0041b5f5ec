package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGracefulShutdown_RunsHooksAfterCancel(t *testing.T) {
	config := DefaultConfig(okHandler())
	config.Address = "127.0.0.1:0"
	srv, err := New(config)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	gs := NewGracefulShutdown(srv, time.Second, zap.New(core))

	var order []string
	gs.RegisterHook(func(ctx context.Context) error {
		order = append(order, "first")
		return errors.New("boom")
	})
	gs.RegisterHook(func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("server listening").Len() == 1
	}, time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 1, logs.FilterMessage("shutdown hook failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("server stopped").Len())
}

func TestGracefulShutdown_ListenError(t *testing.T) {
	config := DefaultConfig(okHandler())
	config.Address = "256.0.0.1:bad"
	srv, err := New(config)
	require.NoError(t, err)

	err = NewGracefulShutdown(srv, 0, nil).Run(context.Background())
	assert.ErrorContains(t, err, "failed to create listener")
}
