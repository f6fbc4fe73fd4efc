// Package apply reconciles the rendered overlay against the cluster and
// forces a rolling restart of the stack's stateful workloads afterwards.
// Manifest submission delegates to kubectl's declarative apply (kustomize
// rendering included); this package owns submission exclusively.
package apply

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
)

// Runner executes kubectl invocations. The indirection exists so the engine
// can be tested without a kubectl binary or a cluster.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// KubectlRunner runs the real kubectl binary pinned to one context and
// namespace, so no invocation can drift onto a different cluster.
type KubectlRunner struct {
	Context   string
	Namespace string
}

// Run invokes kubectl with the pinned context/namespace plus args and
// returns the combined output.
func (r KubectlRunner) Run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"--context", r.Context, "-n", r.Namespace}, args...)
	cmd := exec.CommandContext(ctx, "kubectl", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("kubectl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Engine applies the overlay and restarts workloads.
type Engine struct {
	Runner    Runner
	Client    client.Client
	Namespace string

	// now is overridable in tests for a deterministic restart annotation.
	now func() time.Time
}

// NewEngine constructs an Engine using the wall clock.
func NewEngine(runner Runner, c client.Client, namespace string) *Engine {
	return &Engine{Runner: runner, Client: c, Namespace: namespace, now: time.Now}
}

// Apply reconciles cluster state to the overlay via kubectl's
// create-or-patch semantics. Any failure here is fatal to the run: the
// orchestrator must not proceed to the readiness gate.
func (e *Engine) Apply(ctx context.Context, logger logr.Logger, overlayDir string) error {
	logger.Info("Applying manifests", "overlay", overlayDir)

	out, err := e.Runner.Run(ctx, "apply", "-k", overlayDir)
	if err != nil {
		return deployerrors.WrapApplyFailed(err)
	}

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			logger.V(1).Info(line)
		}
	}
	return nil
}

// RestartStatefulSets patches the restart annotation on every named
// StatefulSet. The cluster does not restart pods when referenced secrets or
// configmaps change, so this is a consistency measure after secret
// rotation, not an optimization. A workload missing after a successful
// apply means the manifests are wrong, which is fatal.
func (e *Engine) RestartStatefulSets(ctx context.Context, logger logr.Logger, names []string) error {
	restartedAt := e.now().UTC().Format(time.RFC3339)

	for _, name := range names {
		sts := &appsv1.StatefulSet{}
		if err := e.Client.Get(ctx, types.NamespacedName{Namespace: e.Namespace, Name: name}, sts); err != nil {
			return deployerrors.WrapApplyFailed(
				fmt.Errorf("statefulset %s/%s not found after apply: %w", e.Namespace, name, err))
		}

		patched := sts.DeepCopy()
		if patched.Spec.Template.Annotations == nil {
			patched.Spec.Template.Annotations = map[string]string{}
		}
		patched.Spec.Template.Annotations[constants.RestartedAtAnnotation] = restartedAt

		if err := e.Client.Patch(ctx, patched, client.MergeFrom(sts)); err != nil {
			return deployerrors.WrapApplyFailed(
				fmt.Errorf("failed to restart statefulset %s/%s: %w", e.Namespace, name, err))
		}
		logger.Info("Triggered rolling restart", "statefulset", name, "restartedAt", restartedAt)
	}
	return nil
}
