package apply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
)

var testScheme = func() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}()

type fakeRunner struct {
	calls [][]string
	out   string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return f.out, f.err
}

func newStatefulSet(name string) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "monitoring"},
		Spec: appsv1.StatefulSetSpec{
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": name}},
			},
		},
	}
}

func TestApply_InvokesKustomizeApply(t *testing.T) {
	runner := &fakeRunner{out: "statefulset.apps/otel-collector configured\n"}
	e := NewEngine(runner, nil, "monitoring")

	err := e.Apply(context.Background(), logr.Discard(), "deploy/overlays/local")
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"apply", "-k", "deploy/overlays/local"}, runner.calls[0])
}

func TestApply_FailureIsFatal(t *testing.T) {
	runner := &fakeRunner{err: errors.New("error validating data")}
	e := NewEngine(runner, nil, "monitoring")

	err := e.Apply(context.Background(), logr.Discard(), "deploy/overlays/local")
	require.Error(t, err)
	assert.True(t, deployerrors.IsApplyFailed(err))
	assert.True(t, deployerrors.IsFatal(err))
}

func TestRestartStatefulSets_PatchesAnnotation(t *testing.T) {
	c := fake.NewClientBuilder().
		WithScheme(testScheme).
		WithObjects(newStatefulSet("otel-collector"), newStatefulSet("cribl-stream-standalone")).
		Build()

	e := NewEngine(&fakeRunner{}, c, "monitoring")
	e.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }

	err := e.RestartStatefulSets(context.Background(), logr.Discard(),
		[]string{"otel-collector", "cribl-stream-standalone"})
	require.NoError(t, err)

	for _, name := range []string{"otel-collector", "cribl-stream-standalone"} {
		sts := &appsv1.StatefulSet{}
		require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "monitoring", Name: name}, sts))
		assert.Equal(t, "2026-08-25T12:00:00Z", sts.Spec.Template.Annotations[constants.RestartedAtAnnotation])
	}
}

func TestRestartStatefulSets_MissingWorkloadIsFatal(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(testScheme).Build()
	e := NewEngine(&fakeRunner{}, c, "monitoring")

	err := e.RestartStatefulSets(context.Background(), logr.Discard(), []string{"otel-collector"})
	require.Error(t, err)
	assert.True(t, deployerrors.IsApplyFailed(err))
	assert.Contains(t, err.Error(), "otel-collector")
}
