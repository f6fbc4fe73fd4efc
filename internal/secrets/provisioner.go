package secrets

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
)

// Action describes what Provision did for one spec.
type Action string

const (
	// ActionCreated means the Secret did not exist and was created.
	ActionCreated Action = "created"
	// ActionConfigured means the Secret existed with different data and
	// was updated.
	ActionConfigured Action = "configured"
	// ActionUnchanged means the Secret already matched the desired state.
	ActionUnchanged Action = "unchanged"
	// ActionSkipped means every input for the spec was absent.
	ActionSkipped Action = "skipped"
)

// Outcome is the per-spec result of a provisioning run.
type Outcome struct {
	Secret string
	Action Action
}

// Provisioner reconciles the fixed Secret set against the cluster. It is
// the only component that writes Secrets.
type Provisioner struct {
	Client    client.Client
	Namespace string
}

// Provision materializes every spec with at least one present input as a
// cluster Secret holding exactly those inputs, and skips the rest with a
// notice. Individual secrets are independent; a missing input never aborts
// the run. Only cluster API errors are returned.
func (p *Provisioner) Provision(ctx context.Context, logger logr.Logger, inputs config.SecretInputs) ([]Outcome, error) {
	specs := BuildSpecs(inputs, logger)
	outcomes := make([]Outcome, 0, len(specs))

	for _, spec := range specs {
		if spec.Empty() {
			logger.Info("Skipping secret: no inputs set", "secret", spec.Name)
			outcomes = append(outcomes, Outcome{Secret: spec.Name, Action: ActionSkipped})
			continue
		}

		action, err := p.apply(ctx, spec)
		if err != nil {
			return outcomes, fmt.Errorf("failed to provision secret %s/%s: %w", p.Namespace, spec.Name, err)
		}

		logger.Info("Provisioned secret", "secret", spec.Name, "action", action, "keys", len(spec.Data))
		outcomes = append(outcomes, Outcome{Secret: spec.Name, Action: action})
	}

	return outcomes, nil
}

// apply reconciles one Secret to hold exactly spec.Data. Re-apply
// semantics: existing data is replaced wholly, never merged, so removing an
// input from the environment also removes its key on the next run.
func (p *Provisioner) apply(ctx context.Context, spec Spec) (Action, error) {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: p.Namespace,
		},
	}

	result, err := controllerutil.CreateOrUpdate(ctx, p.Client, secret, func() error {
		secret.Type = corev1.SecretTypeOpaque
		secret.Data = nil
		secret.StringData = nil
		data := make(map[string][]byte, len(spec.Data))
		for k, v := range spec.Data {
			data[k] = []byte(v)
		}
		secret.Data = data
		return nil
	})
	if err != nil {
		return "", err
	}

	switch result {
	case controllerutil.OperationResultCreated:
		return ActionCreated, nil
	case controllerutil.OperationResultUpdated:
		return ActionConfigured, nil
	default:
		return ActionUnchanged, nil
	}
}
