package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/apply"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/heartbeat"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/kube"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/secrets"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/verify"
)

const (
	exitSuccess      = 0
	exitConfigError  = 1
	exitChecksFailed = 2
)

var (
	watchMode   = flag.Bool("watch", false, "re-run verification on the configured cron schedule")
	checkSplunk = flag.Bool("splunk", false, "also confirm events arrived at the Splunk sink")
	nodeBase    = flag.String("node-base", "http://localhost", "scheme://host for reaching NodePort services")
	otelHealth  = flag.String("otel-health-url", "", "forwarded URL of the collector health endpoint (port 13133)")
)

func run(ctx context.Context) error {
	flag.Parse()

	logger := zap.New(zap.UseDevMode(true))

	cfg, err := config.Load()
	if err != nil {
		return deployerrors.WrapInvalidConfig(fmt.Errorf("failed to load configuration: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return deployerrors.WrapInvalidConfig(err)
	}

	c, err := kube.NewClient(cfg.KubeContext)
	if err != nil {
		return fmt.Errorf("failed to build cluster client: %w", err)
	}

	harness := verify.NewHarness(c, cfg.Namespace)
	harness.NodeBase = *nodeBase
	harness.Kubectl = apply.KubectlRunner{Context: cfg.KubeContext, Namespace: cfg.Namespace}
	opts := splunkOptions(cfg, logger)

	if !*watchMode {
		return harness.Run(ctx, logger, opts)
	}
	return watch(ctx, logger, cfg, harness, opts)
}

// splunkOptions resolves the sink check inputs. The HEC and management
// URLs either come from the environment directly or are derived from the
// network value; when neither is available the dependent checks are
// skipped or fail with a clear message.
func splunkOptions(cfg *config.Config, logger logr.Logger) verify.Options {
	opts := verify.Options{
		OTelHealthURL:  *otelHealth,
		CheckSplunk:    *checkSplunk,
		SplunkPassword: cfg.Secrets.SplunkPassword,
		SplunkHECURL:   cfg.Secrets.SplunkHECURL,
	}
	if cfg.Secrets.SplunkNetwork != "" {
		hecURL, mgmtURL, err := secrets.DeriveSplunkURLs(cfg.Secrets.SplunkNetwork)
		if err != nil {
			logger.Info("Warning: cannot derive Splunk URLs", "reason", err.Error())
		} else {
			opts.SplunkMgmtURL = mgmtURL
			if opts.SplunkHECURL == "" {
				opts.SplunkHECURL = hecURL
			}
		}
	}
	return opts
}

// watch re-runs verification on the configured cron schedule until the
// context is cancelled. Each passing run delivers the collector heartbeat;
// a failing run logs and waits for the next tick rather than exiting, so a
// transient outage does not kill the watcher.
func watch(ctx context.Context, logger logr.Logger, cfg *config.Config, harness *verify.Harness, opts verify.Options) error {
	if err := heartbeat.ValidateSchedule(cfg.WatchSchedule); err != nil {
		return deployerrors.WrapInvalidConfig(fmt.Errorf("invalid watch schedule: %w", err))
	}
	schedule, err := heartbeat.ParseSchedule(cfg.WatchSchedule)
	if err != nil {
		return err
	}

	pinger := heartbeat.NewPinger()
	logger.Info("Watching", "schedule", cfg.WatchSchedule)

	for {
		next := schedule.Next(time.Now())
		logger.V(1).Info("Next verification run scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			logger.Info("Watch stopped")
			return nil
		case <-time.After(time.Until(next)):
		}

		if err := harness.Run(ctx, logger, opts); err != nil {
			logger.Info("Verification run failed", "error", err.Error())
			continue
		}

		pinger.PingAll(ctx, logger, map[string]string{
			"otel": cfg.Secrets.HealthchecksOtelURL,
		})
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "verify error: %v\n", err)
		if deployerrors.IsInvalidConfig(err) {
			os.Exit(exitConfigError)
		}
		os.Exit(exitChecksFailed)
	}

	os.Exit(exitSuccess)
}
