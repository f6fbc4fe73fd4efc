//go:build integration
// +build integration

package integration

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/apply"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/rollout"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/secrets"
)

const namespace = "monitoring"

// readyStatefulSet builds a StatefulSet whose status reports a completed
// rollout even after one more spec mutation (such as the restart
// annotation patch).
func readyStatefulSet(name string) *appsv1.StatefulSet {
	replicas := int32(1)
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Generation: 1},
		Spec:       appsv1.StatefulSetSpec{Replicas: &replicas},
		Status: appsv1.StatefulSetStatus{
			ObservedGeneration: 2,
			UpdatedReplicas:    1,
			ReadyReplicas:      1,
			CurrentRevision:    "rev-1",
			UpdateRevision:     "rev-1",
		},
	}
}

var _ = Describe("Secret provisioning", func() {
	var (
		ctx         context.Context
		k8sClient   client.Client
		provisioner *secrets.Provisioner
	)

	BeforeEach(func() {
		ctx = context.Background()
		k8sClient = newFakeCluster()
		provisioner = &secrets.Provisioner{Client: k8sClient, Namespace: namespace}
	})

	It("creates only the secrets whose inputs are present", func() {
		inputs := config.SecretInputs{
			CriblCloudMasterURL: "https://leader.cribl.cloud",
			SplunkHECToken:      "token-1",
		}

		outcomes, err := provisioner.Provision(ctx, logr.Discard(), inputs)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcomes).To(HaveLen(7))

		created := 0
		for _, outcome := range outcomes {
			if outcome.Action == secrets.ActionCreated {
				created++
			}
		}
		Expect(created).To(Equal(2))

		secret := &corev1.Secret{}
		Expect(k8sClient.Get(ctx,
			types.NamespacedName{Namespace: namespace, Name: constants.SecretCriblCloud}, secret)).To(Succeed())
		Expect(secret.Data).To(HaveKeyWithValue(constants.KeyMasterURL, []byte("https://leader.cribl.cloud")))

		Expect(k8sClient.Get(ctx,
			types.NamespacedName{Namespace: namespace, Name: constants.SecretCriblStreamAdmin}, secret)).
			NotTo(Succeed())
	})

	It("is idempotent across repeated runs", func() {
		inputs := config.SecretInputs{CriblStreamPassword: "admin-pw"}

		_, err := provisioner.Provision(ctx, logr.Discard(), inputs)
		Expect(err).NotTo(HaveOccurred())

		outcomes, err := provisioner.Provision(ctx, logr.Discard(), inputs)
		Expect(err).NotTo(HaveOccurred())
		for _, outcome := range outcomes {
			Expect(outcome.Action).To(BeElementOf(secrets.ActionUnchanged, secrets.ActionSkipped))
		}
	})

	It("replaces secret data instead of merging", func() {
		_, err := provisioner.Provision(ctx, logr.Discard(), config.SecretInputs{
			SplunkHECToken: "token-1",
			SplunkHECURL:   "https://splunk.lan:8088/services/collector",
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = provisioner.Provision(ctx, logr.Discard(), config.SecretInputs{
			SplunkHECToken: "token-2",
		})
		Expect(err).NotTo(HaveOccurred())

		secret := &corev1.Secret{}
		Expect(k8sClient.Get(ctx,
			types.NamespacedName{Namespace: namespace, Name: constants.SecretSplunkHEC}, secret)).To(Succeed())
		Expect(secret.Data).To(HaveKeyWithValue(constants.KeyToken, []byte("token-2")))
		Expect(secret.Data).NotTo(HaveKey(constants.KeyURL))
	})
})

var _ = Describe("Apply engine", func() {
	var (
		ctx       context.Context
		k8sClient client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("stamps the restart annotation on every statefulset", func() {
		var seeded []client.Object
		for _, name := range constants.StatefulSets() {
			seeded = append(seeded, readyStatefulSet(name))
		}
		k8sClient = newFakeCluster(seeded...)
		engine := apply.NewEngine(nil, k8sClient, namespace)

		Expect(engine.RestartStatefulSets(ctx, logr.Discard(), constants.StatefulSets())).To(Succeed())

		for _, name := range constants.StatefulSets() {
			sts := &appsv1.StatefulSet{}
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, sts)).To(Succeed())
			Expect(sts.Spec.Template.Annotations).To(HaveKey(constants.RestartedAtAnnotation))
		}
	})

	It("fails fatally when a workload is missing after apply", func() {
		k8sClient = newFakeCluster(readyStatefulSet(constants.WorkloadOtelCollector))
		engine := apply.NewEngine(nil, k8sClient, namespace)

		err := engine.RestartStatefulSets(ctx, logr.Discard(), constants.StatefulSets())
		Expect(err).To(HaveOccurred())
		Expect(deployerrors.IsApplyFailed(err)).To(BeTrue())
	})
})

var _ = Describe("Readiness gate", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	shortWorkloads := func(names ...string) []rollout.Workload {
		workloads := make([]rollout.Workload, 0, len(names))
		for _, name := range names {
			workloads = append(workloads, rollout.Workload{
				Name: name, Kind: rollout.KindStatefulSet, Timeout: 200 * time.Millisecond,
			})
		}
		return workloads
	}

	It("converges when every workload is ready", func() {
		k8sClient := newFakeCluster(
			readyStatefulSet(constants.WorkloadOtelCollector),
			readyStatefulSet(constants.WorkloadCriblStream),
		)
		gate := &rollout.Gate{Client: k8sClient, Namespace: namespace, PollInterval: 10 * time.Millisecond}

		results, err := gate.Wait(ctx, logr.Discard(),
			shortWorkloads(constants.WorkloadOtelCollector, constants.WorkloadCriblStream))
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		for _, result := range results {
			Expect(result.Status).To(Equal(rollout.StatusRolledOut))
		}
	})

	It("gates every workload even after one times out", func() {
		unready := readyStatefulSet(constants.WorkloadCriblEdgeManaged)
		unready.Status.ReadyReplicas = 0
		k8sClient := newFakeCluster(
			readyStatefulSet(constants.WorkloadOtelCollector),
			unready,
			readyStatefulSet(constants.WorkloadCriblStream),
		)
		gate := &rollout.Gate{Client: k8sClient, Namespace: namespace, PollInterval: 10 * time.Millisecond}

		results, err := gate.Wait(ctx, logr.Discard(), shortWorkloads(
			constants.WorkloadOtelCollector,
			constants.WorkloadCriblEdgeManaged,
			constants.WorkloadCriblStream,
		))
		Expect(err).To(HaveOccurred())
		Expect(deployerrors.IsRolloutTimeout(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring(constants.WorkloadCriblEdgeManaged))

		Expect(results).To(HaveLen(3))
		Expect(results[0].Status).To(Equal(rollout.StatusRolledOut))
		Expect(results[1].Status).To(Equal(rollout.StatusTimedOut))
		Expect(results[2].Status).To(Equal(rollout.StatusRolledOut))
	})
})
