package verify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/apply"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// maxRestarts is the restart count above which a pod is considered to be
// crash looping rather than recovering from a one-off failure.
const maxRestarts = 5

// CheckResult is one named assertion outcome.
type CheckResult struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (r CheckResult) OK() bool {
	return r.Err == nil
}

// Harness runs the verification checks against one cluster and its
// node-local HTTP surface.
type Harness struct {
	Client    client.Client
	Namespace string
	// NodeBase is the scheme://host used to reach NodePort services,
	// typically http://localhost on a single-node cluster.
	NodeBase   string
	HTTPClient *http.Client
	// Kubectl reads pod logs and in-pod config files. When nil, the
	// pipeline-flow checks that need it are not run.
	Kubectl apply.Runner
}

// NewHarness builds a Harness against localhost NodePorts.
func NewHarness(c client.Client, namespace string) *Harness {
	return &Harness{
		Client:     c,
		Namespace:  namespace,
		NodeBase:   "http://localhost",
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckWorkloads asserts that every StatefulSet has at least one ready
// replica and that none of its pods is crash looping.
func (h *Harness) CheckWorkloads(ctx context.Context, names []string) []CheckResult {
	results := make([]CheckResult, 0, len(names)*2)

	for _, name := range names {
		readyCheck := CheckResult{Name: fmt.Sprintf("statefulset/%s ready", name)}
		sts := &appsv1.StatefulSet{}
		if err := h.Client.Get(ctx, types.NamespacedName{Namespace: h.Namespace, Name: name}, sts); err != nil {
			readyCheck.Err = err
			results = append(results, readyCheck)
			continue
		}
		if sts.Status.ReadyReplicas < 1 {
			readyCheck.Err = fmt.Errorf("expected readyReplicas >= 1, got %d", sts.Status.ReadyReplicas)
		}
		results = append(results, readyCheck)

		restartCheck := CheckResult{Name: fmt.Sprintf("statefulset/%s not restarting", name)}
		restartCheck.Err = h.checkPodRestarts(ctx, name)
		results = append(results, restartCheck)
	}
	return results
}

func (h *Harness) checkPodRestarts(ctx context.Context, app string) error {
	pods := &corev1.PodList{}
	if err := h.Client.List(ctx, pods, client.InNamespace(h.Namespace), client.MatchingLabels{"app": app}); err != nil {
		return err
	}
	if len(pods.Items) == 0 {
		return fmt.Errorf("no pods found for app=%s", app)
	}
	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.RestartCount > maxRestarts {
				return fmt.Errorf("pod %s container %s has %d restarts (possible crash loop)",
					pod.Name, cs.Name, cs.RestartCount)
			}
		}
	}
	return nil
}

// CheckServices asserts the stack's service topology: the headless service
// backing the collector StatefulSet and the fixed NodePorts the outside
// world depends on.
func (h *Harness) CheckServices(ctx context.Context) []CheckResult {
	results := []CheckResult{
		h.checkHeadless(ctx, constants.WorkloadOtelCollector),
		h.checkNodePort(ctx, "otel-collector-external", "otlp-grpc", constants.PortOTLPGRPCNodePort),
		h.checkNodePort(ctx, "otel-collector-external", "otlp-http", constants.PortOTLPHTTPNodePort),
		h.checkAnyNodePort(ctx, "cribl-stream-standalone-ui", constants.PortStreamUINodePort),
		h.checkAnyNodePort(ctx, "cribl-edge-standalone-ui", constants.PortEdgeUINodePort),
		h.checkAnyNodePort(ctx, "cribl-mcp-server-nodeport", constants.PortMCPNodePort),
	}
	return results
}

func (h *Harness) getService(ctx context.Context, name string) (*corev1.Service, error) {
	svc := &corev1.Service{}
	err := h.Client.Get(ctx, types.NamespacedName{Namespace: h.Namespace, Name: name}, svc)
	return svc, err
}

func (h *Harness) checkHeadless(ctx context.Context, name string) CheckResult {
	result := CheckResult{Name: fmt.Sprintf("service/%s headless", name)}
	svc, err := h.getService(ctx, name)
	if err != nil {
		result.Err = err
		return result
	}
	if svc.Spec.ClusterIP != corev1.ClusterIPNone {
		result.Err = fmt.Errorf("expected headless service, got clusterIP %q", svc.Spec.ClusterIP)
	}
	return result
}

func (h *Harness) checkNodePort(ctx context.Context, name, portName string, want int32) CheckResult {
	result := CheckResult{Name: fmt.Sprintf("service/%s port %s on :%d", name, portName, want)}
	svc, err := h.getService(ctx, name)
	if err != nil {
		result.Err = err
		return result
	}
	for _, p := range svc.Spec.Ports {
		if p.Name == portName {
			if p.NodePort != want {
				result.Err = fmt.Errorf("expected nodePort %d for port %s, got %d", want, portName, p.NodePort)
			}
			return result
		}
	}
	result.Err = fmt.Errorf("service has no port named %s", portName)
	return result
}

func (h *Harness) checkAnyNodePort(ctx context.Context, name string, want int32) CheckResult {
	result := CheckResult{Name: fmt.Sprintf("service/%s on :%d", name, want)}
	svc, err := h.getService(ctx, name)
	if err != nil {
		result.Err = err
		return result
	}
	for _, p := range svc.Spec.Ports {
		if p.NodePort == want {
			return result
		}
	}
	result.Err = fmt.Errorf("no port with nodePort %d", want)
	return result
}

// CheckEndpoint asserts that an HTTP health endpoint answers 200.
func (h *Harness) CheckEndpoint(ctx context.Context, name, url string) CheckResult {
	result := CheckResult{Name: name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Err = err
		return result
	}
	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return result
}

// Summarize logs every result and aggregates failures into one error
// naming each failed check.
func Summarize(logger logr.Logger, results []CheckResult) error {
	var failed []string
	for _, r := range results {
		if r.OK() {
			logger.Info("Check passed", "check", r.Name)
			continue
		}
		logger.Info("Check failed", "check", r.Name, "error", r.Err.Error())
		failed = append(failed, r.Name)
	}
	if len(failed) > 0 {
		return fmt.Errorf("verification failed: %s", strings.Join(failed, "; "))
	}
	return nil
}
