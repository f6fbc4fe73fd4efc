package verify

import (
	"context"
	"fmt"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// streamOutputsPath is where Cribl Stream keeps its rendered output
// destinations in standalone mode.
const streamOutputsPath = "/opt/cribl/local/cribl/outputs.yml"

// checkCollectorErrors reads recent collector logs and fails when
// error-level operational lines are present. A healthy collector that is
// forwarding cleanly logs no error-level entries.
func (h *Harness) checkCollectorErrors(ctx context.Context) CheckResult {
	result := CheckResult{Name: "otel-collector logs free of errors"}

	out, err := h.Kubectl.Run(ctx, "logs", "statefulset/"+constants.WorkloadOtelCollector, "--tail=200")
	if err != nil {
		result.Err = err
		return result
	}

	if lines := ParseOtelErrorLines(out); len(lines) > 0 {
		result.Err = fmt.Errorf("found %d error lines in collector logs, first: %s", len(lines), lines[0])
	}
	return result
}

// checkStreamFlow reads Cribl Stream logs and fails unless at least one
// _raw stats line shows bytes physically delivered to an output.
func (h *Harness) checkStreamFlow(ctx context.Context) CheckResult {
	result := CheckResult{Name: "cribl-stream delivering bytes to outputs"}

	out, err := h.Kubectl.Run(ctx, "logs", "statefulset/"+constants.WorkloadCriblStream, "--tail=2000")
	if err != nil {
		result.Err = err
		return result
	}

	if len(FindFlowingStats(out)) == 0 {
		result.Err = fmt.Errorf("no _raw stats lines with outEvents > 0 and outBytes > 0 in recent logs")
	}
	return result
}

// checkOutputsConfigured reads the rendered Stream outputs file from the
// pod and fails unless the HEC URL appears as a url: value, so a sink
// misrouting is caught even when events are flowing somewhere.
func (h *Harness) checkOutputsConfigured(ctx context.Context, hecURL string) CheckResult {
	result := CheckResult{Name: "splunk hec url present in stream outputs"}

	out, err := h.Kubectl.Run(ctx, "exec", "statefulset/"+constants.WorkloadCriblStream, "--",
		"cat", streamOutputsPath)
	if err != nil {
		result.Err = err
		return result
	}

	if !URLPresentInOutputsYAML(hecURL, out) {
		result.Err = fmt.Errorf("%s is not configured as a url: value in %s", hecURL, streamOutputsPath)
	}
	return result
}
