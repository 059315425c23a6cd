package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/antithesishq/antithesis-sdk-go/assert"
	"github.com/antithesishq/pairgen/internal/client"
	"github.com/antithesishq/pairgen/internal/proptest"
	"github.com/spf13/cobra"
)

var workloadCmd = &cobra.Command{
	Use:   "workload",
	Short: "Start a continuous testing workload",
	Long:  "Start a continuous testing workload. The workload runs until interrupted, hammering a pairgen server with concurrent NEXT and RESET calls and periodically verifying that no identifier was issued twice between resets.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.Flags())
		if err != nil {
			return err
		}

		serverAddr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}
		addr, err := net.ResolveTCPAddr("tcp", serverAddr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", serverAddr, err)
		}
		logger.Info("resolved server addr", "server_addr", addr)

		// Verify that any flags we'll need later are well-formed.
		checkTimeout, err := cmd.Flags().GetDuration("check-timeout")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ctl, err := dial(ctx, logger, addr) // blocks until the server is ready
		if err != nil {
			return err
		}
		capacity, err := serverCapacity(ctl)
		closeAndLog(logger, ctl)
		if err != nil {
			return err
		}
		logger.Info("setup complete", "server_addr", addr, "capacity", capacity)

		for ctx.Err() == nil {
			if err := loadAndVerify(ctx, logger, addr, capacity, checkTimeout); err != nil && ctx.Err() == nil {
				return err
			}
		}
		return nil
	},
}

// serverCapacity reads how many identifiers the server issues between
// resets.
func serverCapacity(c *client.Client) (uint64, error) {
	info, err := c.Info()
	if err != nil {
		return 0, fmt.Errorf("read server info: %w", err)
	}
	capacity, err := strconv.ParseUint(info["count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse server count %q: %w", info["count"], err)
	}
	return capacity, nil
}

func loadAndVerify(ctx context.Context, logger *slog.Logger, addr net.Addr, capacity uint64, timeout time.Duration) error {
	// The model starts from an empty set of issued identifiers, so every
	// round starts from a fresh enumeration.
	if err := resetServer(ctx, logger, addr); err != nil {
		return err
	}

	// Generate a randomized workload.
	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	workloads := proptest.GenWorkloads(r)

	// Run the workload and collect the results.
	var wg sync.WaitGroup
	start := make(chan struct{})
	var dialErr error
	var mu sync.Mutex
	for _, workload := range workloads {
		wg.Go(func() {
			c, err := dial(ctx, logger, addr)
			if err != nil {
				mu.Lock()
				dialErr = err
				mu.Unlock()
				<-start
				return
			}
			defer closeAndLog(logger, c)
			<-start
			proptest.RunWorkload(logger, c, workload)
		})
	}
	close(start)
	wg.Wait()
	if dialErr != nil {
		return dialErr
	}

	// Check whether the results contain a duplicate or a premature
	// exhaustion.
	progress, err := proptest.CheckWorkloads(timeout, capacity, workloads)
	var perr *proptest.Error
	violated := errors.As(err, &perr) && !perr.TimedOut
	assert.Always(!violated, "Identifiers are issued at most once between resets", map[string]any{"capacity": capacity})
	if err == nil {
		logger.Info("issue-once check passed", "progress", progress)
		return nil
	}
	logger.Error("issue-once check failed", "err", err)
	if violated {
		fname := fmt.Sprintf("issue-once-failure-%d.html", time.Now().Unix())
		if err := os.WriteFile(fname, perr.Visualization.Bytes(), 0o644); err != nil {
			logger.Error("write model visualization failed", "err", err, "file", fname)
		}
	}
	return nil
}

func resetServer(ctx context.Context, logger *slog.Logger, addr net.Addr) error {
	logger.Info("resetting server")
	for {
		c, err := dial(ctx, logger, addr)
		if err != nil {
			return err
		}
		err = c.Reset()
		closeAndLog(logger, c)
		if err == nil {
			return nil
		}
		logger.Debug("reset failed", "retry_after", time.Second, "err", err)
		if !sleep(ctx, time.Second) {
			return ctx.Err()
		}
	}
}

// dial retries until the server answers PING or ctx is done.
func dial(ctx context.Context, logger *slog.Logger, addr net.Addr) (*client.Client, error) {
	for {
		c, err := client.New(addr)
		if err != nil {
			logger.Debug("dial failed", "retry_after", time.Second, "err", err)
			if !sleep(ctx, time.Second) {
				return nil, ctx.Err()
			}
			continue
		}
		if err := c.Ping(); err != nil {
			_ = c.Close()
			logger.Debug("ping failed", "retry_after", time.Second, "err", err)
			if !sleep(ctx, time.Second) {
				return nil, ctx.Err()
			}
			continue
		}
		return c, nil
	}
}

func closeAndLog(logger *slog.Logger, c *client.Client) {
	if err := c.Close(); err != nil {
		logger.Debug("close client failed", "err", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func init() {
	rootCmd.AddCommand(workloadCmd)

	workloadCmd.Flags().String("addr", "pairgen:6379", "pairgen server address")
	workloadCmd.Flags().Duration("check-timeout", time.Hour, "model checking timeout")
}
