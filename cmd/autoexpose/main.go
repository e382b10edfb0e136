// autoexpose keeps a Home Assistant exposed.yaml in step with the entities
// exposed to Google Assistant.
//
// It reads the platform's entity, device and area registries and the
// assistant exposure settings from the .storage directory, applies the
// exposure rules, and writes the result next to configuration.yaml.
// Registry changes arrive over the MQTT event stream or from a watch on
// the storage directory; after they settle for the debounce period the
// file is regenerated and the user is notified.
//
// Usage:
//
//	autoexpose [-config path] [-export] [-token subject] [-version]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/pvries86/hass-ga-autoexpose/migrations"

	"github.com/pvries86/hass-ga-autoexpose/internal/api"
	"github.com/pvries86/hass-ga-autoexpose/internal/export"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/config"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/database"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/influxdb"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/logging"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/metrics"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/mqtt"
	"github.com/pvries86/hass-ga-autoexpose/internal/notify"
	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
	"github.com/pvries86/hass-ga-autoexpose/internal/trigger"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options are the command-line flags.
type options struct {
	configPath   string
	exportOnce   bool
	tokenSubject string
	showVersion  bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the command line. The config path defaults to
// AUTOEXPOSE_CONFIG, then configs/config.yaml.
func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("autoexpose", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", getConfigPath(), "path to the configuration file")
	fs.BoolVar(&opts.exportOnce, "export", false, "run one manual export and exit")
	fs.StringVar(&opts.tokenSubject, "token", "", "print an API token for `subject` and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//   - out: Where -version and -token output is written
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options, out io.Writer) error { //nolint:gocognit,gocyclo // wiring: each component is optional
	if opts.showVersion {
		fmt.Fprintf(out, "autoexpose %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)

	if opts.tokenSubject != "" {
		token, tokenErr := api.GenerateToken(opts.tokenSubject, cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)
		if tokenErr != nil {
			return fmt.Errorf("generating token: %w", tokenErr)
		}
		fmt.Fprintln(out, token)
		return nil
	}

	log.Info("starting autoexpose",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
	)

	metrics.Register()

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	recorders := []export.Recorder{metrics.Recorder{}}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	exporter := export.New(export.Options{
		Source:     newSource(cfg, log),
		OutputFile: cfg.OutputFile(),
		History:    export.NewSQLiteHistory(db.DB),
		Recorders:  recorders,
		Logger:     log.With("component", "export"),
	})

	if opts.exportOnce {
		result, runErr := exporter.Run(ctx, export.OriginManual)
		if runErr != nil {
			return runErr
		}
		fmt.Fprintf(out, "exported %d entities to %s\n", result.Entities, result.OutputFile)
		return nil
	}

	hub := api.NewHub(cfg.WebSocket, log)
	exporter.OnRun(func(r export.Run) {
		hub.Broadcast(api.ChannelExport, r)
	})

	notifiers := notify.Multi{notify.NewBroadcastNotifier(hub)}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT session established")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient))
		exporter.OnRun(func(r export.Run) {
			if pubErr := mqttClient.PublishJSON(mqtt.Topics{}.ExportEvent(), r, false); pubErr != nil {
				log.Debug("publishing export event failed", "run_id", r.ID, "error", pubErr)
			}
		})
	}

	var notifier notify.Notifier
	if cfg.Export.Notification.Enabled {
		notifier = notifiers
	}

	// Background goroutines stop before the deferred closes above run.
	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(runCtx)
	}()

	trig := trigger.New(trigger.Options{
		Exporter:     exporter,
		Debounce:     cfg.Export.Debounce,
		Notifier:     notifier,
		Notification: notify.FromConfig(cfg.Export.Notification),
		Logger:       log.With("component", "trigger"),
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := trig.Run(runCtx); runErr != nil {
			log.Error("trigger stopped", "error", runErr)
		}
	}()

	if mqttClient != nil {
		commands := make(chan struct{}, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveExportCommands(runCtx, commands, trig)
		}()
		if subErr := subscribeCommands(cfg, mqttClient, trig, commands, log); subErr != nil {
			return subErr
		}
	}

	if cfg.Events.WatchStorage {
		watcher := platform.NewWatcher(cfg.StorageDir(), log.With("component", "watcher"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if watchErr := watcher.Run(runCtx, trig.Notify); watchErr != nil {
				log.Error("storage watcher stopped", "error", watchErr)
			}
		}()
	}

	// Start API server (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Exporter: exporter,
			Trigger:  trig,
			History:  export.NewSQLiteHistory(db.DB),
			DB:       db,
			Hub:      hub,
			Version:  version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(runCtx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if cfg.Export.OnStartup {
		// Failures are logged by the trigger; the service keeps running.
		trig.ExportNow(runCtx) //nolint:errcheck // logged by ExportNow
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"output_file", cfg.OutputFile(),
		"debounce", cfg.Export.Debounce.String(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// newSource builds the storage-backed snapshot source from configuration.
func newSource(cfg *config.Config, log *logging.Logger) *platform.StorageSource {
	opts := platform.StorageOptions{
		StorageDir:      cfg.StorageDir(),
		Assistant:       cfg.Platform.Assistant,
		PlatformSection: cfg.Exposure.PlatformSection,
		Fallback:        platform.NewGlobalExposureConfig(cfg.Exposure.ExposeByDefault, cfg.Exposure.ExposedDomains),
		NeverExposed:    cfg.Exposure.NeverExposed,
	}
	if cfg.Exposure.ReadPlatformConfig {
		opts.ConfigurationFile = cfg.ConfigurationFile()
	}
	return platform.NewStorageSource(opts, log.With("component", "platform"))
}

// subscribeCommands wires the platform event stream and the export command
// topic to the trigger. Export commands are queued on commands; a request
// arriving while one is queued is merged with it.
func subscribeCommands(cfg *config.Config, client *mqtt.Client, trig *trigger.Trigger, commands chan<- struct{}, log *logging.Logger) error {
	qos := byte(cfg.MQTT.QoS)

	if cfg.Events.MQTT.Enabled {
		err := client.Subscribe(cfg.Events.MQTT.Topic, qos, func(_ string, payload []byte) error {
			ev, err := platform.ParseEventStream(payload)
			if errors.Is(err, platform.ErrNotRegistryEvent) {
				return nil
			}
			if err != nil {
				return err
			}
			trig.Notify(ev)
			return nil
		})
		if err != nil {
			return fmt.Errorf("subscribing to event stream: %w", err)
		}
		log.Info("subscribed to platform event stream", "topic", cfg.Events.MQTT.Topic)
	}

	err := client.Subscribe(mqtt.Topics{}.ExportCommand(), qos, func(_ string, _ []byte) error {
		select {
		case commands <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to export command: %w", err)
	}
	return nil
}

// serveExportCommands runs a manual export per queued command until ctx ends.
func serveExportCommands(ctx context.Context, commands <-chan struct{}, trig *trigger.Trigger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-commands:
			trig.ExportNow(ctx) //nolint:errcheck // logged by ExportNow
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses AUTOEXPOSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AUTOEXPOSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the enabled infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
