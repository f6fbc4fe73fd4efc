package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/deploy"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/kube"
)

const (
	exitSuccess        = 0
	exitConfigError    = 1
	exitApplyError     = 2
	exitRolloutTimeout = 3
	exitRunError       = 4
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

	logger.Info("Deploying monitoring stack",
		"context", cfg.KubeContext, "namespace", cfg.Namespace, "overlay", cfg.OverlayDir)

	c, err := kube.NewClient(cfg.KubeContext)
	if err != nil {
		return fmt.Errorf("failed to build cluster client: %w", err)
	}

	report := deploy.New(cfg, c).Run(ctx, logger)
	if !report.Succeeded() {
		return report.Err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "deploy error: %v\n", err)
		switch {
		case deployerrors.IsApplyFailed(err):
			os.Exit(exitApplyError)
		case deployerrors.IsRolloutTimeout(err):
			os.Exit(exitRolloutTimeout)
		case deployerrors.IsInvalidConfig(err):
			os.Exit(exitConfigError)
		default:
			os.Exit(exitRunError)
		}
	}

	os.Exit(exitSuccess)
}
