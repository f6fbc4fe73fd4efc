// Package kube builds the Kubernetes client used by every stage that talks
// to the cluster. The client always targets the configured kubeconfig
// context so a run can never drift onto a different cluster mid-way.
package kube

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// NewScheme returns a runtime.Scheme with the client-go types registered.
// The stack consists of core and apps resources only; no CRDs are involved.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to register client-go scheme: %w", err)
	}
	return scheme, nil
}

// RestConfig resolves a REST config from the default kubeconfig loading
// rules with the current context overridden to kubeContext.
func RestConfig(kubeContext string) (*rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig for context %q: %w", kubeContext, err)
	}
	return cfg, nil
}

// NewClient returns a controller-runtime client bound to the given context.
func NewClient(kubeContext string) (client.Client, error) {
	cfg, err := RestConfig(kubeContext)
	if err != nil {
		return nil, err
	}

	scheme, err := NewScheme()
	if err != nil {
		return nil, err
	}

	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client for context %q: %w", kubeContext, err)
	}
	return c, nil
}
