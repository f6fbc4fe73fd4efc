// Package deploy sequences one full deployment run: render the overlay,
// provision secrets, verify images, apply manifests, restart workloads and
// gate on rollout. Stages run strictly in order and each later stage may
// assume every earlier stage completed.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/apply"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/archive"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/heartbeat"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/overlay"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/preflight"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/rollout"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/secrets"
)

// Stage names as they appear in the run report and metrics.
const (
	StageOverlay   = "overlay"
	StageSecrets   = "secrets"
	StagePreflight = "preflight"
	StageApply     = "apply"
	StageRestart   = "restart"
	StageGate      = "gate"
	StageArchive   = "archive"
	StageHeartbeat = "heartbeat"
)

// StageStatus is the terminal state of one stage.
type StageStatus string

const (
	// StageSucceeded means the stage ran and completed.
	StageSucceeded StageStatus = "succeeded"
	// StageSkipped means the stage did not apply to this run, or an
	// earlier fatal failure prevented it from running.
	StageSkipped StageStatus = "skipped"
	// StageFailed means the stage ran and failed.
	StageFailed StageStatus = "failed"
)

// StageResult is one stage's outcome in the run report.
type StageResult struct {
	Stage    string
	Status   StageStatus
	Duration time.Duration
	Detail   string
	Err      error
}

// Report aggregates every stage outcome of one run. Err holds the fatal
// error that ended the run, nil when the run succeeded.
type Report struct {
	Results []StageResult
	Err     error
}

// Succeeded reports whether the run completed without a fatal failure.
func (r *Report) Succeeded() bool {
	return r.Err == nil
}

// Orchestrator runs the deployment pipeline. The stage functions are fields
// so tests can substitute any stage without a cluster.
type Orchestrator struct {
	Config  *config.Config
	Metrics *Metrics

	renderOverlay  func(logger logr.Logger) error
	provision      func(ctx context.Context, logger logr.Logger) ([]secrets.Outcome, error)
	checkImages    func(ctx context.Context, logger logr.Logger) error
	applyOverlay   func(ctx context.Context, logger logr.Logger) error
	restart        func(ctx context.Context, logger logr.Logger) error
	gate           func(ctx context.Context, logger logr.Logger) ([]rollout.Result, error)
	archiveOverlay func(ctx context.Context, logger logr.Logger) (string, error)
	sendHeartbeats func(ctx context.Context, logger logr.Logger)

	now func() time.Time
}

// New wires an Orchestrator against a real cluster client.
func New(cfg *config.Config, c client.Client) *Orchestrator {
	generator := overlay.Generator{
		TemplateDir: cfg.TemplateDir,
		OutputDir:   cfg.OverlayDir,
		HomeDir:     cfg.HomeDir,
	}
	provisioner := &secrets.Provisioner{Client: c, Namespace: cfg.Namespace}
	checker := preflight.NewChecker()
	engine := apply.NewEngine(
		apply.KubectlRunner{Context: cfg.KubeContext, Namespace: cfg.Namespace}, c, cfg.Namespace)
	gate := rollout.NewGate(c, cfg.Namespace)
	pinger := heartbeat.NewPinger()

	o := &Orchestrator{
		Config:  cfg,
		Metrics: NewMetrics(),
		now:     time.Now,

		renderOverlay: generator.Render,
		provision: func(ctx context.Context, logger logr.Logger) ([]secrets.Outcome, error) {
			return provisioner.Provision(ctx, logger, cfg.Secrets)
		},
		checkImages: func(ctx context.Context, logger logr.Logger) error {
			images, err := preflight.CollectImages(cfg.OverlayDir)
			if err != nil {
				return err
			}
			return checker.CheckImages(ctx, logger, images)
		},
		applyOverlay: func(ctx context.Context, logger logr.Logger) error {
			return engine.Apply(ctx, logger, cfg.OverlayDir)
		},
		restart: func(ctx context.Context, logger logr.Logger) error {
			return engine.RestartStatefulSets(ctx, logger, constants.StatefulSets())
		},
		gate: func(ctx context.Context, logger logr.Logger) ([]rollout.Result, error) {
			return gate.Wait(ctx, logger, rollout.DefaultWorkloads())
		},
		sendHeartbeats: func(ctx context.Context, logger logr.Logger) {
			pinger.PingAll(ctx, logger, map[string]string{
				"cribl-stream": cfg.Secrets.HealthchecksStreamURL,
				"splunk":       cfg.Secrets.HealthchecksSplunkURL,
				"cribl-edge":   cfg.Secrets.HealthchecksEdgeURL,
				"otel":         cfg.Secrets.HealthchecksOtelURL,
			})
		},
	}

	if cfg.ArchiveBucket != "" {
		o.archiveOverlay = func(ctx context.Context, logger logr.Logger) (string, error) {
			uploader, err := archive.NewUploader(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, nil)
			if err != nil {
				return "", err
			}
			return uploader.UploadOverlay(ctx, logger, cfg.OverlayDir)
		}
	}

	return o
}

// Run executes the pipeline and returns the full report. The report always
// covers every stage: stages cut short by an earlier fatal failure are
// recorded as skipped.
func (o *Orchestrator) Run(ctx context.Context, logger logr.Logger) *Report {
	start := o.now()
	report := &Report{}

	report.Err = o.runFatalStages(ctx, logger, report)

	// Archival is an audit measure, never a reason to fail a deploy that
	// converged.
	o.runArchive(ctx, logger, report)

	if report.Succeeded() {
		o.runStage(logger, report, StageHeartbeat, func() (string, error) {
			o.sendHeartbeats(ctx, logger)
			return "", nil
		})
	} else {
		o.skipStage(logger, report, StageHeartbeat, "run failed")
	}

	o.Metrics.RecordRun(float64(o.now().Unix()), report.Succeeded())
	o.writeMetrics(logger)

	logger.Info("Run complete", "succeeded", report.Succeeded(), "duration", o.now().Sub(start).String())
	return report
}

// runFatalStages runs the ordered stages whose failure ends the run. It
// returns the first failure after marking every remaining fatal stage
// skipped.
func (o *Orchestrator) runFatalStages(ctx context.Context, logger logr.Logger, report *Report) error {
	stages := []struct {
		name string
		run  func() (string, error)
	}{
		{StageOverlay, func() (string, error) {
			return "", o.renderOverlay(logger)
		}},
		{StageSecrets, func() (string, error) {
			outcomes, err := o.provision(ctx, logger)
			return summarizeOutcomes(outcomes), err
		}},
		{StagePreflight, func() (string, error) {
			return "", o.checkImages(ctx, logger)
		}},
		{StageApply, func() (string, error) {
			return "", o.applyOverlay(ctx, logger)
		}},
		{StageRestart, func() (string, error) {
			return "", o.restart(ctx, logger)
		}},
		{StageGate, func() (string, error) {
			results, err := o.gate(ctx, logger)
			return summarizeRollout(results), err
		}},
	}

	for i, stage := range stages {
		if err := o.runStage(logger, report, stage.name, stage.run); err != nil {
			for _, rest := range stages[i+1:] {
				o.skipStage(logger, report, rest.name, fmt.Sprintf("%s failed", stage.name))
			}
			return err
		}
	}
	return nil
}

// runArchive records the optional archive stage. An unconfigured bucket or
// a failed upload both leave the run outcome untouched.
func (o *Orchestrator) runArchive(ctx context.Context, logger logr.Logger, report *Report) {
	if o.archiveOverlay == nil {
		o.skipStage(logger, report, StageArchive, "no archive bucket configured")
		return
	}
	if !report.Succeeded() {
		o.skipStage(logger, report, StageArchive, "run failed")
		return
	}

	_ = o.runStage(logger, report, StageArchive, func() (string, error) {
		key, err := o.archiveOverlay(ctx, logger)
		if err != nil {
			logger.Info("Warning: overlay archival failed", "error", err.Error())
			return "", err
		}
		return key, nil
	})
}

func (o *Orchestrator) runStage(logger logr.Logger, report *Report, name string, run func() (string, error)) error {
	logger.Info("Stage starting", "stage", name)
	start := o.now()

	detail, err := run()
	duration := o.now().Sub(start)
	o.Metrics.RecordStage(name, duration.Seconds(), err == nil)

	result := StageResult{Stage: name, Duration: duration, Detail: detail}
	if err != nil {
		result.Status = StageFailed
		result.Err = err
		logger.Info("Stage failed", "stage", name, "duration", duration.String(),
			"fatal", deployerrors.IsFatal(err), "error", err.Error())
	} else {
		result.Status = StageSucceeded
		logger.Info("Stage complete", "stage", name, "duration", duration.String())
	}

	report.Results = append(report.Results, result)
	return err
}

func (o *Orchestrator) skipStage(logger logr.Logger, report *Report, name, reason string) {
	logger.Info("Stage skipped", "stage", name, "reason", reason)
	o.Metrics.RecordStage(name, 0, true)
	report.Results = append(report.Results, StageResult{Stage: name, Status: StageSkipped, Detail: reason})
}

func (o *Orchestrator) writeMetrics(logger logr.Logger) {
	if o.Config.MetricsFile == "" {
		return
	}
	if err := o.Metrics.WriteTextfile(o.Config.MetricsFile); err != nil {
		logger.Info("Warning: failed to write metrics file", "file", o.Config.MetricsFile, "error", err.Error())
		return
	}
	logger.V(1).Info("Wrote run metrics", "file", o.Config.MetricsFile)
}

func summarizeOutcomes(outcomes []secrets.Outcome) string {
	counts := map[secrets.Action]int{}
	for _, outcome := range outcomes {
		counts[outcome.Action]++
	}
	return fmt.Sprintf("created=%d configured=%d unchanged=%d skipped=%d",
		counts[secrets.ActionCreated], counts[secrets.ActionConfigured],
		counts[secrets.ActionUnchanged], counts[secrets.ActionSkipped])
}

func summarizeRollout(results []rollout.Result) string {
	rolledOut := 0
	for _, r := range results {
		if r.Status == rollout.StatusRolledOut {
			rolledOut++
		}
	}
	return fmt.Sprintf("%d/%d workloads ready", rolledOut, len(results))
}
