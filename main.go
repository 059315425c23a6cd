package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/antithesishq/pairgen/internal/config"
	"github.com/antithesishq/pairgen/internal/pair"
	"github.com/antithesishq/pairgen/internal/vocab"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit codes. Configuration errors that the enumerator detects get their own
// codes so scripts can tell them apart.
const (
	exitOK            = 0
	exitEmptyVocab    = 1
	exitCountTooLarge = 2
	exitFailure       = 3
)

var rootCmd = &cobra.Command{
	Use:           "pairgen",
	Short:         "Generate word1_word2 identifiers from word lists",
	Long:          "Deterministically enumerate combinations of two word lists into word1_word2 identifiers, in row-major or scrambled order, without holding the combination space in memory.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "emit logs in JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "emit debug logs")
	rootCmd.PersistentFlags().String("config", "", "JSON config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pairgen:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pair.ErrEmptyVocabulary):
		return exitEmptyVocab
	case errors.Is(err, pair.ErrCountExceedsCapacity):
		return exitCountTooLarge
	default:
		return exitFailure
	}
}

// newLogger writes to stderr, leaving stdout free for identifiers. Every
// record carries the run's ID.
func newLogger(flags *pflag.FlagSet) (*slog.Logger, error) {
	level := slog.LevelInfo
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return nil, err
	}
	if asJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("run_id", uuid.NewString()), nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags())
}

// pairConfig describes the enumeration cfg asks for over rows and cols.
func pairConfig(cfg *config.Config, rows, cols vocab.Vocabulary, count uint64) pair.Config {
	mode := pair.Sequential
	if cfg.Shuffle {
		mode = pair.Scrambled
	}
	return pair.Config{
		N1:         uint64(rows.Len()),
		N2:         uint64(cols.Len()),
		Count:      count,
		Seed:       cfg.Seed,
		Mode:       mode,
		Step:       cfg.Step,
		LegacyStep: cfg.LegacyStep,
	}
}

func addEnumerationFlags(fs *pflag.FlagSet, defaultCount uint64, countUsage string) {
	fs.StringSlice("words", nil, "one or two word lists, one word per line; one list is used for both positions, none uses the built-in list")
	fs.Uint64("count", defaultCount, countUsage)
	fs.Int64("seed", 123456789, "starting offset for --shuffle")
	fs.Bool("shuffle", false, "emit identifiers in a scrambled, non-repeating order")
	fs.Uint64("step", 0, "stride for --shuffle; 0 selects 15485863")
	fs.Bool("legacy-step", false, "use --step unadjusted even if it repeats identifiers")
}
