package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zumanm1/netaudit/internal/archive"
	"github.com/zumanm1/netaudit/internal/config"
	"github.com/zumanm1/netaudit/internal/connect"
	"github.com/zumanm1/netaudit/internal/event"
	"github.com/zumanm1/netaudit/internal/inventory"
	"github.com/zumanm1/netaudit/internal/probe"
	"github.com/zumanm1/netaudit/internal/run"
	"github.com/zumanm1/netaudit/internal/version"
	"github.com/zumanm1/netaudit/pkg/models"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	configPath := flag.String("config", "", "path to configuration file")
	inventoryPath := flag.String("inventory", "", "path to device inventory (csv or yaml)")
	devices := flag.String("devices", "", "comma-separated hostname allow-list")
	groups := flag.String("groups", "", "comma-separated group allow-list")
	layers := flag.String("layers", "", "comma-separated layers to collect (default all)")
	workers := flag.Int("workers", 0, "worker pool size (overrides configuration)")
	metricsListen := flag.String("metrics-listen", "", "listen address for Prometheus metrics")
	dryRun := flag.Bool("dry-run", false, "print the job plan and exit without connecting")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return 0
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	cfg, err := config.Parse(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse configuration: %v\n", err)
		return 1
	}
	applyFlagOverrides(cfg, *inventoryPath, *devices, *groups, *layers, *workers, *metricsListen)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("netaudit starting", zap.String("version", version.Short()))
	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	}

	inv, err := inventory.Load(cfg.Inventory, logger.Named("inventory"))
	if err != nil {
		logger.Error("failed to load inventory", zap.Error(err))
		return 1
	}
	selected := inventory.Filter(inv, cfg.Devices, cfg.Groups)
	if len(selected) == 0 {
		logger.Error("no devices selected",
			zap.Int("inventory_size", len(inv)),
			zap.Strings("devices", cfg.Devices),
			zap.Strings("groups", cfg.Groups),
		)
		return 1
	}

	layerList, err := models.ParseLayers(strings.Join(cfg.Layers, ","))
	if err != nil {
		logger.Error("invalid layer selection", zap.Error(err))
		return 1
	}

	if *dryRun {
		printPlan(cfg, selected, layerList)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PingCheck {
		prober := probe.NewProber(2*time.Second, cfg.Workers, logger.Named("probe"))
		results := prober.Run(ctx, selected)
		alive := 0
		for _, r := range results {
			if r.Alive {
				alive++
			}
		}
		logger.Info("icmp pre-check finished", zap.Int("alive", alive), zap.Int("total", len(selected)))
	}

	bus := event.NewBus(logger.Named("event"))
	subscribeProgress(bus, logger.Named("progress"))

	var sink run.Sink
	if cfg.DatabasePath != "" {
		store, err := archive.Open(ctx, cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open archive", zap.String("path", cfg.DatabasePath), zap.Error(err))
			return 1
		}
		defer store.Close()
		sink = store
		logger.Info("archive opened", zap.String("path", cfg.DatabasePath))
	}

	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen, logger)
	}

	manager := connect.NewManager(cfg, logger.Named("connect"))
	defer manager.Close()

	executor := run.NewExecutor(cfg, run.ManagerSource{Manager: manager}, bus, sink, logger.Named("run"))
	report, runErr := executor.Run(ctx, selected, layerList)

	printReport(report, selected, layerList)

	if runErr != nil {
		logger.Error("run abandoned", zap.Error(runErr))
		return 2
	}
	if report.Succeeded == 0 {
		logger.Error("no device produced results")
		return 1
	}
	return 0
}

func applyFlagOverrides(cfg *config.Config, inventoryPath, devices, groups, layers string, workers int, metricsListen string) {
	if inventoryPath != "" {
		cfg.Inventory = inventoryPath
	}
	if devices != "" {
		cfg.Devices = splitList(devices)
	}
	if groups != "" {
		cfg.Groups = splitList(groups)
	}
	if layers != "" {
		cfg.Layers = splitList(layers)
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if metricsListen != "" {
		cfg.MetricsListen = metricsListen
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func layerNames(layers []models.Layer) string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = string(l)
	}
	return strings.Join(names, ",")
}

// subscribeProgress mirrors run progress into the log.
func subscribeProgress(bus *event.Bus, logger *zap.Logger) {
	bus.Subscribe(run.TopicJobFinished, func(_ context.Context, ev event.Event) {
		p, ok := ev.Payload.(run.JobFinishedPayload)
		if !ok {
			return
		}
		fields := []zap.Field{
			zap.String("hostname", p.Hostname),
			zap.String("layer", string(p.Layer)),
			zap.Int("attempts", p.Attempts),
		}
		switch p.Status {
		case models.JobSucceeded:
			logger.Info("job succeeded", fields...)
		case models.JobSkipped:
			logger.Warn("job skipped", append(fields, zap.String("reason", p.Error))...)
		default:
			logger.Warn("job failed", append(fields, zap.String("error", p.Error))...)
		}
	})
	bus.Subscribe(run.TopicDeviceSkipped, func(_ context.Context, ev event.Event) {
		if p, ok := ev.Payload.(run.DeviceSkippedPayload); ok {
			logger.Warn("device skipped", zap.String("hostname", p.Hostname), zap.String("reason", p.Reason))
		}
	})
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}

func printPlan(cfg *config.Config, devices []*models.DeviceRecord, layers []models.Layer) {
	fmt.Printf("jump host: %s\n", cfg.JumpHost.Addr())
	fmt.Printf("workers:   %d\n", cfg.Workers)
	fmt.Printf("jobs:      %d (%d devices x %d layers)\n\n", len(devices)*len(layers), len(devices), len(layers))
	for _, d := range devices {
		fmt.Printf("  %-20s %-16s %s\n", d.Hostname, d.Address, layerNames(layers))
	}
}

func printReport(report *run.Report, devices []*models.DeviceRecord, layers []models.Layer) {
	fmt.Printf("\nrun %s finished in %s\n", report.RunID, report.Duration().Round(time.Millisecond))
	fmt.Printf("succeeded %d, failed %d, skipped %d\n\n", report.Succeeded, report.Failed, report.Skipped)

	for _, d := range devices {
		var cells []string
		for _, l := range layers {
			cells = append(cells, fmt.Sprintf("%s=%s", l, report.StatusOf(d.Hostname, l)))
		}
		fmt.Printf("  %-20s %s\n", d.Hostname, strings.Join(cells, " "))
	}
	if report.CommandErrors > 0 {
		fmt.Printf("\n%d command(s) were rejected by devices\n", report.CommandErrors)
	}
	if report.Fatal != nil {
		fmt.Printf("\nfatal: %v\n", report.Fatal)
	}
}
