package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/zoobzio/mobius"
	"github.com/zoobzio/mobius/internal/counter"
	"github.com/zoobzio/mobius/source/file"
	redissource "github.com/zoobzio/mobius/source/redis"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ModelPath    string
	SettingsPath string
	RedisAddr    string
	RedisKey     string
	Tick         time.Duration
	Retries      int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the counter loop",
		Long: `Run the counter loop until "quit", end of input or an interrupt.

Example:
  mobius-counter run --model ./counter.yaml
  mobius-counter run --model ./counter.json --settings ./limits.yaml --tick 1s
  mobius-counter run --redis-addr localhost:6379 --redis-key counter:settings`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCounter(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ModelPath, "model", "counter.yaml", "file the model is loaded from and saved to (.json or .yaml)")
	cmd.Flags().StringVar(&opts.SettingsPath, "settings", "", "file with step and max, reloaded on change")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", "", "redis server to read settings from (needs keyspace notifications)")
	cmd.Flags().StringVar(&opts.RedisKey, "redis-key", "mobius:counter:settings", "redis key holding JSON settings")
	cmd.Flags().DurationVar(&opts.Tick, "tick", 0, "increment automatically at this interval")
	cmd.Flags().IntVar(&opts.Retries, "retries", 3, "attempts to write the model file")

	return cmd
}

func runCounter(cmd *cobra.Command, opts *RunOptions) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: opts.logLevel(),
	}))

	codec := mobius.CodecFor(opts.ModelPath)
	model, err := loadModel(opts.ModelPath, codec)
	if err != nil {
		return err
	}
	logger.Info("model loaded", "path", opts.ModelPath, "count", model.Count)

	ctx, cancel := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := counter.NewSyncWriter(cmd.OutOrStdout())
	loop := mobius.NewLoop[counter.Model, counter.Event, counter.Effect](
		counter.Update,
		counter.Init,
		counter.Effects(opts.ModelPath, codec, opts.Retries, out),
		model,
	).
		Name("counter").
		Logger(mobius.Loggers[counter.Model, counter.Event, counter.Effect](
			mobius.NewSlogLogger[counter.Model, counter.Event, counter.Effect]("counter", logger),
			mobius.NewSignalLogger[counter.Model, counter.Event, counter.Effect]("counter"),
		)).
		EventSource(mobius.MergeSources(eventSources(ctx, cancel, cmd.InOrStdin(), opts, logger)...))
	defer loop.Close()

	controller := mobius.NewController(loop)
	if err := controller.ConnectView(counter.View(out)); err != nil {
		return err
	}
	if err := controller.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	if err := controller.Stop(); err != nil {
		return err
	}
	final := controller.Model()
	logger.Info("stopped", "count", final.Count, "unsaved", final.Dirty)
	return nil
}

// eventSources builds the loop's inputs: stdin commands, optional settings
// from a file or a redis key, and an optional ticker. "quit" or end of input
// cancels ctx.
func eventSources(ctx context.Context, cancel context.CancelFunc, in io.Reader, opts *RunOptions, logger *slog.Logger) []mobius.EventSource[counter.Event] {
	sources := []mobius.EventSource[counter.Event]{
		mobius.NewChannelSource(readCommands(ctx, cancel, in, logger)),
	}

	if opts.SettingsPath != "" {
		settings := file.New[counter.Settings](opts.SettingsPath).
			Debounce(100 * time.Millisecond).
			OnError(func(err error) { logger.Warn("settings not applied", "error", err) })
		sources = append(sources, mobius.MapSource[counter.Settings, counter.Event](settings, func(s counter.Settings) counter.Event {
			return counter.Configure{Settings: s}
		}))
	}

	if opts.RedisAddr != "" {
		sources = append(sources, mobius.MapSource[counter.Settings, counter.Event](redisSettings(opts, logger), func(s counter.Settings) counter.Event {
			return counter.Configure{Settings: s}
		}))
	}

	if opts.Tick > 0 {
		sources = append(sources, mobius.NewTickerSource(opts.Tick, func(time.Time) counter.Event {
			return counter.Tick{}
		}))
	}

	return sources
}

// redisSettings watches the settings key with a client that lives as long as
// the subscription.
func redisSettings(opts *RunOptions, logger *slog.Logger) mobius.EventSource[counter.Settings] {
	return mobius.EventSourceFunc[counter.Settings](func(sink mobius.Consumer[counter.Settings]) mobius.Disposable {
		client := goredis.NewClient(&goredis.Options{Addr: opts.RedisAddr})
		sub := redissource.New[counter.Settings](client, opts.RedisKey).
			OnError(func(err error) { logger.Warn("redis settings not applied", "error", err) }).
			Subscribe(sink)
		return mobius.DisposableFunc(func() {
			sub.Dispose()
			if err := client.Close(); err != nil {
				logger.Debug("closing redis client", "error", err)
			}
		})
	})
}

// readCommands parses lines from in into events on the returned channel.
func readCommands(ctx context.Context, cancel context.CancelFunc, in io.Reader, logger *slog.Logger) <-chan counter.Event {
	events := make(chan counter.Event)
	go func() {
		defer cancel()
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "q" || line == "quit" {
				return
			}
			event, ok := counter.Parse(line)
			if !ok {
				logger.Warn("unknown command", "command", line)
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}

// loadModel reads the model file. A missing file yields the default model.
func loadModel(path string, codec mobius.Codec) (counter.Model, error) {
	model := counter.Model{Step: 1}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model, nil
	}
	if err != nil {
		return model, fmt.Errorf("reading model: %w", err)
	}
	if err := codec.Unmarshal(data, &model); err != nil {
		return model, fmt.Errorf("decoding model %s: %w", path, err)
	}
	return model, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
