package rollout

import (
	"time"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// DefaultWorkloads is the ordered readiness list for the monitoring stack.
//
// Timeouts are the worst-case startup probe window plus any one-time setup
// action's retry budget. Cribl Stream gets the largest ceiling: its
// post-start setup script retries 30 times at 10s intervals on top of the
// startup probe window, conservatively summed for safety margin. The OTEL
// collector and MCP server are stateless receivers and start fast.
func DefaultWorkloads() []Workload {
	return []Workload{
		{Name: constants.WorkloadOtelCollector, Kind: KindStatefulSet, Timeout: 2 * time.Minute},
		{Name: constants.WorkloadCriblEdgeManaged, Kind: KindStatefulSet, Timeout: 3 * time.Minute},
		{Name: constants.WorkloadCriblEdgeStandalone, Kind: KindStatefulSet, Timeout: 3 * time.Minute},
		{Name: constants.WorkloadCriblStream, Kind: KindStatefulSet, Timeout: 6 * time.Minute},
		{Name: constants.WorkloadCriblMCPServer, Kind: KindStatefulSet, Timeout: 2 * time.Minute},
	}
}

// Names returns the workload names in gate order.
func Names(workloads []Workload) []string {
	names := make([]string, len(workloads))
	for i, w := range workloads {
		names[i] = w.Name
	}
	return names
}
