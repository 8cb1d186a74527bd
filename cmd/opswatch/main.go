package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opswatchhq/engine/internal/alert"
	"github.com/opswatchhq/engine/internal/config"
	"github.com/opswatchhq/engine/internal/deliver"
	"github.com/opswatchhq/engine/internal/health"
	"github.com/opswatchhq/engine/internal/logging"
	"github.com/opswatchhq/engine/internal/metrics"
	"github.com/opswatchhq/engine/internal/resource"
	"github.com/opswatchhq/engine/internal/runtime"
	"github.com/opswatchhq/engine/internal/scheduler"
	"github.com/opswatchhq/engine/internal/uplink"
	"github.com/opswatchhq/engine/internal/worker"
)

const defaultMetricsAddr = "127.0.0.1:9410"

// defaultUploadPatterns is what the upload command delivers when no explicit
// files or globs are given.
var defaultUploadPatterns = []string{"*.log", "*.txt"}

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "check":
		err = check(ctx, os.Args[2:])
	case "upload":
		err = upload(ctx, os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to engine configuration file")
	metricsAddr := fs.String("metrics-addr", defaultMetricsAddr, "Listen address for /metrics, /healthz and /readyz")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateMonitor(); err != nil {
		return err
	}

	logger := logging.New()
	logger.Printf("engine starting (targets=%d, interval=%s)", len(cfg.Monitor.Targets), cfg.Monitor.Interval())

	metricsStore := metrics.NewStore()

	sink, err := buildSink(cfg.Alerts, logger)
	if err != nil {
		return err
	}
	dispatcher, err := alert.NewDispatcher(sink,
		alert.WithLogger(logger),
		alert.WithRecorder(metricsStore),
	)
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg.Monitor.TargetList(), dispatcher,
		runtime.WithMetricsStore(metricsStore),
		runtime.WithWorkerOptions(worker.WithWorkerCount(cfg.Monitor.WorkerCount())),
		runtime.WithSchedulerOptions(scheduler.WithLogger(logger)),
	)
	if err != nil {
		return err
	}

	healthChecker := health.NewChecker(cfg.Monitor.Interval() * 3)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wait := rt.Start(runCtx)

	grp, groupCtx := errgroup.WithContext(runCtx)

	grp.Go(func() error {
		err := runCycles(groupCtx, rt, cfg.Monitor.Interval(), healthChecker.ObserveCycle)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.Resource.Enabled {
		cpuLimit, memLimit := cfg.Resource.Thresholds()
		monitor, err := resource.NewMonitor(resource.HostSampler{}, dispatcher,
			resource.WithThresholds(cpuLimit, memLimit),
			resource.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		grp.Go(func() error {
			err := runResourceChecks(groupCtx, monitor, cfg.Resource.Interval(), logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	grp.Go(func() error {
		<-groupCtx.Done()
		wait()
		return nil
	})

	grp.Go(func() error {
		return serveMonitoring(groupCtx, *metricsAddr, metricsStore, healthChecker, logger)
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Printf("engine stopped")
	return nil
}

// check runs a single probe cycle and prints the summary. It is meant for
// config validation and ad-hoc health checks, so alerts go to the log only.
func check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to engine configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateMonitor(); err != nil {
		return err
	}

	logger := logging.New()
	dispatcher, err := alert.NewDispatcher(alert.NewLogSink(logger), alert.WithLogger(logger))
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg.Monitor.TargetList(), dispatcher,
		runtime.WithWorkerOptions(worker.WithWorkerCount(cfg.Monitor.WorkerCount())),
		runtime.WithSchedulerOptions(scheduler.WithLogger(logger)),
	)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wait := rt.Start(runCtx)
	summary, err := rt.RunCycle(runCtx)
	stop()
	wait()
	if err != nil {
		return err
	}

	if summary.Healthy < summary.Total {
		return fmt.Errorf("%d of %d targets unhealthy", summary.Total-summary.Healthy, summary.Total)
	}
	return nil
}

func upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to engine configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateUpload(); err != nil {
		return err
	}

	patterns := fs.Args()
	if len(patterns) == 0 {
		patterns = defaultUploadPatterns
	}
	files, err := discoverUploads(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(patterns, " "))
	}

	logger := logging.New()
	metricsStore := metrics.NewStore()

	sink, err := buildSink(cfg.Alerts, logger)
	if err != nil {
		return err
	}
	dispatcher, err := alert.NewDispatcher(sink,
		alert.WithLogger(logger),
		alert.WithRecorder(metricsStore),
	)
	if err != nil {
		return err
	}

	client, err := uplink.NewClient(
		uplink.Config{
			DestinationURL: cfg.Upload.Destination,
			Timeout:        cfg.Upload.Timeout(),
			CertPath:       cfg.Upload.CertPath,
			KeyPath:        cfg.Upload.KeyPath,
			CAPath:         cfg.Upload.CAPath,
		},
		uplink.Dependencies{Logger: logger},
	)
	if err != nil {
		return fmt.Errorf("init destination client: %w", err)
	}

	unitSize, err := cfg.Upload.UnitSizeBytes()
	if err != nil {
		return err
	}
	pipeline, err := deliver.New(client, dispatcher,
		deliver.WithMaxUnitSize(int(unitSize)),
		deliver.WithRetryPolicy(cfg.Upload.RetryPolicy()),
		deliver.WithRate(cfg.Upload.RatePerSec, 0),
		deliver.WithLogger(logger),
		deliver.WithRecorder(metricsStore),
	)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var delivered, failed int
	for _, path := range files {
		report, err := deliverFile(runCtx, pipeline, path)
		if err != nil {
			return fmt.Errorf("deliver %s: %w", path, err)
		}
		if report.Success {
			delivered++
		} else {
			failed++
		}
	}

	logger.Printf("upload finished: %d delivered, %d failed of %d file(s)", delivered, failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to deliver", failed, len(files))
	}
	return nil
}

// runCycles drives probe cycles at the configured interval, starting with an
// immediate cycle. Each outcome is reported to the readiness checker.
func runCycles(ctx context.Context, rt *runtime.Runtime, interval time.Duration, report func(time.Time, error)) error {
	cycleOnce := func() error {
		_, err := rt.RunCycle(ctx)
		if report != nil {
			report(time.Now().UTC(), err)
		}
		return err
	}

	if err := cycleOnce(); err != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = cycleOnce()
		}
	}
}

func runResourceChecks(ctx context.Context, monitor *resource.Monitor, interval time.Duration, logger *log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := monitor.Check(ctx); err != nil {
				logger.Printf("resource check failed: %v", err)
			}
		}
	}
}

// buildSink selects the notification sink: the configured Shoutrrr services,
// or the logger when none are configured.
func buildSink(cfg config.AlertConfig, logger *log.Logger) (alert.Sink, error) {
	if len(cfg.URLs) == 0 {
		return alert.NewLogSink(logger), nil
	}
	return alert.NewShoutrrrSink(cfg.URLs...)
}

// discoverUploads expands glob patterns (plain paths match themselves) into a
// sorted, de-duplicated file list. Directories are skipped.
func discoverUploads(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", match, err)
			}
			if info.IsDir() {
				continue
			}
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return files, nil
}

func deliverFile(ctx context.Context, pipeline *deliver.Pipeline, path string) (deliver.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return deliver.Report{}, err
	}
	defer f.Close()
	return pipeline.Deliver(ctx, filepath.Base(path), f)
}

func printUsage() {
	fmt.Println("OpsWatch Engine CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  opswatch run [--config /etc/opswatch/engine.yaml] [--metrics-addr host:port]")
	fmt.Println("  opswatch check [--config path]")
	fmt.Println("  opswatch upload [--config path] [file|glob ...]")
}

func serveMonitoring(ctx context.Context, addr string, store *metrics.Store, checker *health.Checker, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.NewHTTPHandler(store))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		ready, reasons := checker.Ready(time.Now().UTC())
		if !ready {
			http.Error(w, strings.Join(reasons, "; "), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("metrics listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
