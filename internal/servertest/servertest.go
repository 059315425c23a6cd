// Package servertest provides utilities for testing pairgen servers.
package servertest

import (
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/antithesishq/pairgen/internal/client"
	"github.com/antithesishq/pairgen/internal/server"
	"go.akshayshah.org/attest"
)

// New starts a server on an ephemeral port and returns ready-to-use clients
// connected to it. The server and clients are automatically cleaned up when
// the test completes.
func New(tb testing.TB, cfg server.Config, numClients int) []*client.Client {
	tb.Helper()
	attest.True(tb, numClients > 0, attest.Sprintf("num clients must be positive"))

	logger := NewLogger(tb)
	srv, err := server.New(cfg, logger)
	attest.Ok(tb, err, attest.Sprint("new server"))

	ln, err := net.Listen("tcp", "localhost:0") // closed by redcon server
	attest.Ok(tb, err, attest.Sprint("listen on ephemeral port"))

	var wg sync.WaitGroup
	logger.Debug("starting redcon server", "addr", ln.Addr())
	wg.Go(func() {
		attest.Ok(tb, srv.ServeTCP(ln), attest.Sprint("redcon serve"))
	})
	tb.Cleanup(func() {
		attest.Ok(tb, srv.Close(), attest.Sprint("redcon close"))
		wg.Wait()
	})

	clients := make([]*client.Client, numClients)
	for i := range clients {
		c, err := client.New(ln.Addr())
		attest.Ok(tb, err, attest.Sprint("client dial"))
		tb.Cleanup(func() {
			attest.Ok(tb, c.Close(), attest.Sprint("client close"))
		})
		for {
			if err := c.Ping(); err == nil {
				break
			}
			backoff := 100 * time.Millisecond
			logger.Debug("redcon server not ready", "addr", ln.Addr(), "retry_after", backoff)
			time.Sleep(backoff)
		}
		clients[i] = c
	}
	return clients
}

// NewLogger creates a structured logger that writes to the supplied
// testing.TB.
func NewLogger(tb testing.TB) *slog.Logger {
	handler := slog.NewTextHandler(tb.Output(), &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	})
	return slog.New(handler)
}
