// Package rollout blocks on workload convergence after an apply. The gate
// only reads cluster status; it never mutates anything.
package rollout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"

	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
)

// Kind is the workload kind a readiness entry refers to.
type Kind string

const (
	// KindDeployment gates on Deployment rollout status.
	KindDeployment Kind = "Deployment"
	// KindStatefulSet gates on StatefulSet rollout status.
	KindStatefulSet Kind = "StatefulSet"
)

// Workload is one readiness entry: every workload the apply engine submits
// has exactly one. Timeouts are fixed per workload from known worst-case
// startup cost (probe windows plus any one-time setup hook's retry budget),
// never computed dynamically.
type Workload struct {
	Name    string
	Kind    Kind
	Timeout time.Duration
}

// Status is the terminal state of one workload's gate.
type Status string

const (
	// StatusRolledOut means the cluster reported the rollout complete.
	StatusRolledOut Status = "RolledOut"
	// StatusTimedOut means the workload did not converge within its budget.
	StatusTimedOut Status = "TimedOut"
)

// Result is the per-workload gate outcome.
type Result struct {
	Workload Workload
	Status   Status
	Err      error
}

// Gate waits for workloads to converge.
type Gate struct {
	Client       client.Client
	Namespace    string
	PollInterval time.Duration
}

// NewGate constructs a Gate with the default 2s poll interval.
func NewGate(c client.Client, namespace string) *Gate {
	return &Gate{Client: c, Namespace: namespace, PollInterval: 2 * time.Second}
}

// Wait gates every workload in order, blocking on each until it rolls out
// or its timeout elapses. A timeout is fatal to the run's success, but the
// gate still checks every remaining workload before returning so one
// invocation yields the full diagnostic picture. The returned error names
// each workload that failed.
func (g *Gate) Wait(ctx context.Context, logger logr.Logger, workloads []Workload) ([]Result, error) {
	results := make([]Result, 0, len(workloads))
	var failed []string

	for _, w := range workloads {
		logger.Info("Waiting for rollout", "kind", string(w.Kind), "workload", w.Name, "timeout", w.Timeout.String())

		err := g.waitOne(ctx, w)
		if err != nil {
			logger.Info("Rollout did not converge", "workload", w.Name, "error", err.Error())
			results = append(results, Result{Workload: w, Status: StatusTimedOut, Err: err})
			failed = append(failed, w.Name)
			continue
		}

		logger.Info("Rollout complete", "workload", w.Name)
		results = append(results, Result{Workload: w, Status: StatusRolledOut})
	}

	if len(failed) > 0 {
		return results, deployerrors.WrapRolloutTimeout(
			fmt.Errorf("workloads did not reach ready state: %s", strings.Join(failed, ", ")))
	}
	return results, nil
}

func (g *Gate) waitOne(ctx context.Context, w Workload) error {
	interval := g.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return wait.PollUntilContextTimeout(ctx, interval, w.Timeout, true,
		func(ctx context.Context) (bool, error) {
			switch w.Kind {
			case KindStatefulSet:
				return g.statefulSetRolledOut(ctx, w.Name)
			case KindDeployment:
				return g.deploymentRolledOut(ctx, w.Name)
			default:
				return false, fmt.Errorf("unknown workload kind %q", w.Kind)
			}
		})
}

// statefulSetRolledOut mirrors kubectl rollout status for StatefulSets:
// the controller has observed the current generation, every replica is
// updated to the current revision, and every replica is ready.
func (g *Gate) statefulSetRolledOut(ctx context.Context, name string) (bool, error) {
	sts := &appsv1.StatefulSet{}
	if err := g.Client.Get(ctx, types.NamespacedName{Namespace: g.Namespace, Name: name}, sts); err != nil {
		// Transient API errors keep polling until the deadline.
		return false, nil //nolint:nilerr
	}

	if sts.Status.ObservedGeneration < sts.Generation {
		return false, nil
	}

	replicas := int32(1)
	if sts.Spec.Replicas != nil {
		replicas = *sts.Spec.Replicas
	}

	if sts.Status.UpdatedReplicas < replicas {
		return false, nil
	}
	if sts.Status.ReadyReplicas < replicas {
		return false, nil
	}
	if sts.Status.UpdateRevision != "" && sts.Status.CurrentRevision != sts.Status.UpdateRevision {
		return false, nil
	}
	return true, nil
}

// deploymentRolledOut mirrors kubectl rollout status for Deployments.
func (g *Gate) deploymentRolledOut(ctx context.Context, name string) (bool, error) {
	dep := &appsv1.Deployment{}
	if err := g.Client.Get(ctx, types.NamespacedName{Namespace: g.Namespace, Name: name}, dep); err != nil {
		return false, nil //nolint:nilerr
	}

	if dep.Status.ObservedGeneration < dep.Generation {
		return false, nil
	}

	replicas := int32(1)
	if dep.Spec.Replicas != nil {
		replicas = *dep.Spec.Replicas
	}

	if dep.Status.UpdatedReplicas < replicas {
		return false, nil
	}
	if dep.Status.AvailableReplicas < replicas {
		return false, nil
	}
	return true, nil
}
