package verify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// Options selects what one verification run covers. Cluster-state and
// endpoint checks always run; the sink-side event check is opt-in because
// it needs the Splunk management credentials.
type Options struct {
	// OTelHealthURL, when set, is probed for a 200. The collector's health
	// port is not exposed on a NodePort, so reaching it needs a
	// port-forward and the URL must be supplied explicitly.
	OTelHealthURL string
	// CheckSplunk enables the sink-side event query.
	CheckSplunk bool
	// SplunkMgmtURL is the management endpoint of the Splunk sink.
	SplunkMgmtURL string
	// SplunkPassword is the admin password for the sink.
	SplunkPassword string
	// SplunkHECURL, when set, must appear as a configured output
	// destination inside the Stream pod.
	SplunkHECURL string
	// SplunkQuery is the search run against the sink. Defaults to a
	// query for the run's own synthetic traffic.
	SplunkQuery string
	// MinEvents is the minimum event count that proves delivery.
	MinEvents int
	// SplunkTimeout bounds the event poll.
	SplunkTimeout time.Duration
}

// Run executes a full verification pass: workload readiness, service
// topology, node-local health endpoints, synthetic OTLP ingestion,
// pipeline-flow log checks, and optionally sink-side event presence. All
// checks run to completion before failures are aggregated.
func (h *Harness) Run(ctx context.Context, logger logr.Logger, opts Options) error {
	runID := newRunID()
	logger.V(1).Info("Starting verification run", "runID", runID)

	results := h.CheckWorkloads(ctx, constants.StatefulSets())
	results = append(results, h.CheckServices(ctx)...)
	results = append(results, h.checkHealthEndpoints(ctx)...)

	if opts.OTelHealthURL != "" {
		results = append(results, h.CheckEndpoint(ctx, "otel-collector health", opts.OTelHealthURL))
	}

	// Synthetic traffic goes in before the flow and sink checks so they
	// have this run's traces to observe.
	results = append(results, h.CheckIngestion(ctx, runID))

	if h.Kubectl != nil {
		results = append(results, h.checkCollectorErrors(ctx))
		results = append(results, h.checkStreamFlow(ctx))
		if opts.SplunkHECURL != "" {
			results = append(results, h.checkOutputsConfigured(ctx, opts.SplunkHECURL))
		}
	}

	if opts.CheckSplunk {
		results = append(results, h.checkSplunkDelivery(ctx, logger, opts, runID))
	}

	return Summarize(logger, results)
}

// newRunID produces the test.id value attached to this run's synthetic
// traffic.
func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("verify-%d", time.Now().UnixNano())
	}
	return "verify-" + hex.EncodeToString(buf)
}

// checkHealthEndpoints probes the HTTP surfaces reachable through the
// fixed NodePorts.
func (h *Harness) checkHealthEndpoints(ctx context.Context) []CheckResult {
	return []CheckResult{
		h.CheckEndpoint(ctx, "cribl-stream health",
			fmt.Sprintf("%s:%d/api/v1/health", h.NodeBase, constants.PortStreamUINodePort)),
		h.CheckEndpoint(ctx, "cribl-edge health",
			fmt.Sprintf("%s:%d/api/v1/health", h.NodeBase, constants.PortEdgeUINodePort)),
	}
}

func (h *Harness) checkSplunkDelivery(ctx context.Context, logger logr.Logger, opts Options, runID string) CheckResult {
	result := CheckResult{Name: "splunk event delivery"}

	if opts.SplunkMgmtURL == "" || opts.SplunkPassword == "" {
		result.Err = fmt.Errorf("splunk check requested but management URL or password is not configured")
		return result
	}

	// Default to searching for this run's own traffic so stale events
	// from an earlier run cannot satisfy the check.
	query := opts.SplunkQuery
	if query == "" {
		query = fmt.Sprintf("index=main %s", runID)
	}
	minEvents := opts.MinEvents
	if minEvents <= 0 {
		minEvents = 1
	}
	timeout := opts.SplunkTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	splunk := NewSplunkClient(opts.SplunkMgmtURL, opts.SplunkPassword, false)
	count, err := splunk.PollForEvents(ctx, logger, query, minEvents, timeout)
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("Events confirmed in Splunk", "query", query, "count", count)
	return result
}
