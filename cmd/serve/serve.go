// Package serve implements the serve command: the HTTP API together with
// the task workers that run the queued workflows.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/segmentlab/internal/api"
	"github.com/tphakala/segmentlab/internal/app"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/diskmanager"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/events"
	"github.com/tphakala/segmentlab/internal/joblock"
	"github.com/tphakala/segmentlab/internal/logger"
	"github.com/tphakala/segmentlab/internal/mqtt"
	"github.com/tphakala/segmentlab/internal/observability"
	"github.com/tphakala/segmentlab/internal/pipeline"
	"github.com/tphakala/segmentlab/internal/privacy"
	"github.com/tphakala/segmentlab/internal/taskqueue"
)

const (
	queueStopTimeout   = 30 * time.Second
	busStopTimeout     = 5 * time.Second
	mqttConnectTimeout = 10 * time.Second

	// staged auto-label models are removed by the task; leftovers of
	// crashed tasks are swept after this age
	tempModelMaxAge = 24 * time.Hour
	cleanupInterval = time.Hour
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the task workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", ":8080", "Address the HTTP API listens on")
	cmd.Flags().Int("workers", 2, "Number of task workers")

	for key, flag := range map[string]string{
		"webserver.listen": "listen",
		"queue.workers":    "workers",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(parent context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	a, err := app.Open(settings)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	release, err := a.Locker.TryLockInstance()
	if err != nil {
		if errors.Is(err, joblock.ErrLocked) {
			return fmt.Errorf("another segmentlab instance is serving from %s", settings.Storage.DataDir)
		}
		return err
	}
	defer func() { _ = release() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(events.Config{Logger: logger.Global().Module("events")})
	registerConsumers(ctx, bus, settings, a.Metrics, log)
	bus.Start()

	p, err := a.Pipeline(bus.Observer())
	if err != nil {
		_ = bus.Shutdown(busStopTimeout)
		return err
	}

	queue := taskqueue.New(taskqueue.Options{
		Workers:  settings.Queue.Workers,
		Capacity: settings.Queue.Capacity,
		Hooks:    a.Metrics.TaskHooks(),
		Logger:   logger.Global().Module("taskqueue"),
	})

	dispatcher := pipeline.NewDispatcher(queue, p)
	srv, err := api.New(settings,
		api.WithStore(a.Store),
		api.WithDispatcher(dispatcher),
		api.WithLocker(a.Locker),
		api.WithMetrics(a.Metrics),
		api.WithLogger(logger.Global().Module("api")),
	)
	if err != nil {
		_ = bus.Shutdown(busStopTimeout)
		return err
	}

	queue.Start(ctx)
	if n, err := dispatcher.Recover(ctx); err != nil {
		log.Warn("recovering pending work failed", logger.Int("requeued", n), logger.Error(err))
	} else if n > 0 {
		log.Info("requeued pending work", logger.Int("count", n))
	}
	log.Info("segmentlab started",
		logger.String("listen", settings.WebServer.Listen),
		logger.Int("workers", settings.Queue.Workers),
		logger.String("training_service", privacy.RedactURL(settings.Training.ServiceURL)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		maintain(gctx, settings, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		var errs []error
		if err := srv.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
		if err := queue.Stop(queueStopTimeout); err != nil {
			errs = append(errs, err)
		}
		if err := bus.Shutdown(busStopTimeout); err != nil {
			log.Warn("event bus did not drain", logger.Error(err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// registerConsumers attaches the optional MQTT and notification sinks.
// A sink that cannot be configured is logged and skipped.
func registerConsumers(ctx context.Context, bus *events.Bus, settings *conf.Settings, m *observability.Metrics, log logger.Logger) {
	if settings.MQTT.Enabled {
		client, err := mqtt.NewClient(&settings.MQTT, m.MQTT)
		if err != nil {
			log.Warn("mqtt disabled", logger.Error(err))
		} else {
			connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
			if err := client.Connect(connectCtx); err != nil {
				// paho keeps retrying in the background
				log.Warn("mqtt broker not reachable yet",
					logger.String("broker", privacy.RedactURL(settings.MQTT.Broker)),
					logger.Error(privacy.WrapError(err)))
			}
			cancel()
			if err := bus.RegisterConsumer(events.NewMQTTConsumer(client, settings.MQTT.Topic)); err != nil {
				log.Warn("mqtt consumer not registered", logger.Error(err))
			}
		}
	}

	if settings.Notification.Enabled {
		consumer, err := events.NewNotifyConsumer(settings.Notification.URLs)
		if err != nil {
			log.Warn("notifications disabled", logger.Error(err))
		} else if err := bus.RegisterConsumer(consumer); err != nil {
			log.Warn("notification consumer not registered", logger.Error(err))
		}
	}
}

// maintain rotates the log file on SIGHUP and sweeps stale staged models
// until ctx is cancelled.
func maintain(ctx context.Context, settings *conf.Settings, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	sweep := func() {
		removed, err := diskmanager.AgeBasedCleanup(ctx, settings.Storage.TempModelsDir, tempModelMaxAge)
		if err != nil {
			log.Warn("temp model cleanup failed", logger.Error(err))
			return
		}
		if removed > 0 {
			log.Info("removed stale staged models", logger.Int("count", removed))
		}
	}
	sweep()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
			} else {
				log.Info("log file rotated")
			}
		case <-ticker.C:
			sweep()
		}
	}
}
