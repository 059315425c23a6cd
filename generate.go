package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/antithesishq/pairgen/internal/config"
	"github.com/antithesishq/pairgen/internal/pair"
	"github.com/antithesishq/pairgen/internal/sink"
	"github.com/antithesishq/pairgen/internal/vocab"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write identifiers to a file, S3 or Redis",
	Long:  "Write identifiers to a file, S3 or Redis. Output is one word1_word2 identifier per line; paths ending in .gz or .zst are compressed, and - writes to stdout.",
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
		return generate(cmd.Context(), logger, cfg, rows, cols)
	},
}

// generate validates the enumeration before touching the output, so a bad
// configuration never leaves a truncated file behind. A run that stops early
// aborts the sink instead of committing partial output.
func generate(ctx context.Context, logger *slog.Logger, cfg *config.Config, rows, cols vocab.Vocabulary) error {
	enum, err := pair.New(pairConfig(cfg, rows, cols, cfg.Count))
	if err != nil {
		return err
	}
	logger.Info("enumeration ready",
		"rows", rows.Len(),
		"cols", cols.Len(),
		"total", comma(enum.Total()),
		"count", comma(enum.Count()),
		"mode", enum.Mode(),
		"start", enum.Start(),
		"step", enum.Step(),
	)
	if !enum.Coprime() {
		logger.Warn("step shares a factor with the combination space, identifiers will repeat",
			"step", enum.Step(), "total", enum.Total())
	}

	out, dest, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	begin := time.Now()
	var written uint64
	for p := range enum.All() {
		if err := out.WriteLine(pair.Join(rows, cols, p)); err != nil {
			return errors.Join(fmt.Errorf("write %s: %w", dest, err), out.Abort())
		}
		written++
		if cfg.ProgressEvery > 0 && written%cfg.ProgressEvery == 0 {
			logger.Info("progress",
				"written", comma(written),
				"remaining", comma(enum.Remaining()),
				"elapsed", time.Since(begin).Round(time.Millisecond),
			)
		}
		if written%4096 == 0 && ctx.Err() != nil {
			return errors.Join(context.Cause(ctx), out.Abort())
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	logger.Info("generation complete",
		"written", comma(written),
		"dest", dest,
		"elapsed", time.Since(begin).Round(time.Millisecond),
	)
	return nil
}

// comma renders n with thousands separators. Counts can exceed MaxInt64.
func comma(n uint64) string {
	if n <= math.MaxInt64 {
		return humanize.Comma(int64(n))
	}
	return humanize.BigComma(new(big.Int).SetUint64(n))
}

// openSink picks the output named by cfg. dest describes it for logs.
func openSink(ctx context.Context, cfg *config.Config) (out sink.Sink, dest string, err error) {
	switch {
	case cfg.S3.Bucket != "":
		dest = fmt.Sprintf("s3://%s/%s", cfg.S3.Bucket, cfg.Out)
		out, err = sink.OpenS3(ctx, sink.S3Config{
			Endpoint: cfg.S3.Addr,
			Region:   cfg.S3.Region,
			Bucket:   cfg.S3.Bucket,
			User:     cfg.S3.User,
			Password: cfg.S3.Password,
			Timeout:  cfg.S3.Timeout,
		}, cfg.Out)
	case cfg.Redis.Addr != "":
		dest = fmt.Sprintf("redis://%s/%s", cfg.Redis.Addr, cfg.Redis.Key)
		out, err = sink.OpenRedis(ctx, sink.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Key:       cfg.Redis.Key,
			BatchSize: cfg.Redis.Batch,
			Timeout:   cfg.Redis.Timeout,
		})
	default:
		dest = cfg.Out
		if dest == "-" {
			dest = "stdout"
		}
		out, err = sink.OpenFile(cfg.Out)
	}
	if err != nil {
		return nil, dest, fmt.Errorf("open %s: %w", dest, err)
	}
	return out, dest, nil
}

func init() {
	rootCmd.AddCommand(generateCmd)

	fs := generateCmd.Flags()
	addEnumerationFlags(fs, 1000000, "number of identifiers to write")
	fs.StringP("out", "o", "-", "output path, or object key with --s3-bucket; - writes to stdout")
	fs.Uint64("progress-every", 1000000, "log progress every n identifiers; 0 disables")
	fs.String("s3-addr", "", "object storage endpoint")
	fs.String("s3-region", "us-east-1", "object storage region")
	fs.String("s3-bucket", "", "upload output to this bucket instead of a local file")
	fs.String("s3-user", "", "object storage user")
	fs.String("s3-pass", "", "object storage password")
	fs.Duration("s3-timeout", time.Minute, "object storage timeout")
	fs.String("redis-addr", "", "push output to a Redis list at this address")
	fs.String("redis-key", "pairgen", "Redis list key")
	fs.Int("redis-batch", 1000, "identifiers per RPUSH")
	fs.Duration("redis-timeout", 10*time.Second, "Redis timeout per batch")
}
