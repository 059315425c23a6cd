package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/antithesishq/pairgen/internal/server"
	"github.com/antithesishq/pairgen/internal/vocab"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Hand out identifiers over the Redis protocol",
	Long:  "Hand out identifiers over the Redis protocol. Clients call NEXT to claim identifiers; no identifier is issued twice until a client calls RESET.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rows, cols, err := vocab.LoadPair(cfg.Words)
		if err != nil {
			return err
		}

		count := serveCount(cfg.Count, uint64(rows.Len()), uint64(cols.Len()))
		pcfg := pairConfig(cfg, rows, cols, count)
		srv, err := server.New(server.Config{
			Rows:  rows,
			Cols:  cols,
			Pairs: pcfg,
		}, logger)
		if err != nil {
			return err
		}

		ln, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}

		logger.Info("starting server", "addr", ln.Addr(), "count", pcfg.Count, "mode", pcfg.Mode)
		return runServer(cmd.Context(), logger, srv, ln)
	},
}

// serveCount resolves the number of identifiers to issue between resets.
// Zero means the whole n1*n2 space. The product may wrap, but pair.New
// rejects overflowing spaces before it looks at the count.
func serveCount(count, n1, n2 uint64) uint64 {
	if count != 0 {
		return count
	}
	return n1 * n2
}

// runServer serves on ln until ctx is done or serving fails on its own.
func runServer(ctx context.Context, logger *slog.Logger, srv *server.Server, ln net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ServeTCP(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := srv.Close(); err != nil {
		return fmt.Errorf("close server: %w", err)
	}
	return <-serveErr
}

func init() {
	rootCmd.AddCommand(serveCmd)

	fs := serveCmd.Flags()
	fs.String("addr", ":6379", "address to listen on")
	addEnumerationFlags(fs, 0, "number of identifiers to issue between resets; 0 issues every combination")
}
