// Package config loads the orchestrator configuration from the process
// environment exactly once at startup. Stages receive the resulting struct
// by value and never re-read the environment mid-run, so their behavior is
// a pure function of the loaded configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// SecretInputs holds the raw credential and routing values resolved by the
// upstream secret source (Doppler, sops, CI variables). Empty fields mean
// the corresponding configuration is intentionally absent.
type SecretInputs struct {
	CriblDistMasterURL  string
	CriblCloudMasterURL string
	CriblStreamPassword string
	CriblEdgePassword   string

	SplunkHECToken string
	SplunkHECURL   string
	SplunkNetwork  string
	SplunkPassword string

	ClaudeAPIKey string
	GeminiAPIKey string

	HealthchecksStreamURL string
	HealthchecksSplunkURL string
	HealthchecksEdgeURL   string
	HealthchecksOtelURL   string

	CriblBaseURL      string
	CriblClientID     string
	CriblClientSecret string
	DefaultPassword   string
}

// MasterURL returns the effective Cribl cloud routing URL. The distributed
// leader URL wins over the cloud URL when both are set.
func (s SecretInputs) MasterURL() string {
	if s.CriblDistMasterURL != "" {
		return s.CriblDistMasterURL
	}
	return s.CriblCloudMasterURL
}

// Config is the full orchestrator configuration for one run.
type Config struct {
	// KubeContext is the kubeconfig context every cluster operation targets.
	KubeContext string
	// Namespace is the namespace holding the whole monitoring stack.
	Namespace string

	// HomeDir is substituted for the __HOME__ placeholder when rendering
	// the local overlay.
	HomeDir string
	// TemplateDir holds the portable overlay template.
	TemplateDir string
	// OverlayDir is where the rendered overlay is written. Deleted and
	// recreated on every run.
	OverlayDir string

	Secrets SecretInputs

	// ArchiveBucket enables uploading the rendered overlay bundle to S3
	// when non-empty.
	ArchiveBucket string
	// ArchivePrefix is the object key prefix for overlay bundles.
	ArchivePrefix string

	// MetricsFile enables writing run metrics in Prometheus textfile format
	// when non-empty.
	MetricsFile string

	// WatchSchedule is the cron expression used by verify --watch.
	WatchSchedule string
}

// Load populates a Config from the environment. Values the environment does
// not set fall back to defaults; the home directory is resolved from the OS.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	cfg := &Config{
		KubeContext:   envOr(constants.EnvKubeContext, constants.DefaultKubeContext),
		Namespace:     envOr(constants.EnvKubeNamespace, constants.DefaultNamespace),
		HomeDir:       home,
		TemplateDir:   filepath.Join("deploy", "overlays", "template"),
		OverlayDir:    filepath.Join("deploy", "overlays", "local"),
		ArchiveBucket: strings.TrimSpace(os.Getenv(constants.EnvArchiveBucket)),
		ArchivePrefix: envOr(constants.EnvArchivePrefix, "overlays"),
		MetricsFile:   strings.TrimSpace(os.Getenv(constants.EnvMetricsFile)),
		WatchSchedule: envOr(constants.EnvWatchSchedule, constants.DefaultWatchSchedule),
		Secrets: SecretInputs{
			CriblDistMasterURL:  strings.TrimSpace(os.Getenv(constants.EnvCriblDistMasterURL)),
			CriblCloudMasterURL: strings.TrimSpace(os.Getenv(constants.EnvCriblCloudMasterURL)),
			CriblStreamPassword: os.Getenv(constants.EnvCriblStreamPassword),
			CriblEdgePassword:   os.Getenv(constants.EnvCriblEdgePassword),

			SplunkHECToken: strings.TrimSpace(os.Getenv(constants.EnvSplunkHECToken)),
			SplunkHECURL:   strings.TrimSpace(os.Getenv(constants.EnvSplunkHECURL)),
			SplunkNetwork:  strings.TrimSpace(os.Getenv(constants.EnvSplunkNetwork)),
			SplunkPassword: os.Getenv(constants.EnvSplunkPassword),

			ClaudeAPIKey: strings.TrimSpace(os.Getenv(constants.EnvClaudeAPIKey)),
			GeminiAPIKey: strings.TrimSpace(os.Getenv(constants.EnvGeminiAPIKey)),

			HealthchecksStreamURL: strings.TrimSpace(os.Getenv(constants.EnvHealthchecksStreamURL)),
			HealthchecksSplunkURL: strings.TrimSpace(os.Getenv(constants.EnvHealthchecksSplunkURL)),
			HealthchecksEdgeURL:   strings.TrimSpace(os.Getenv(constants.EnvHealthchecksEdgeURL)),
			HealthchecksOtelURL:   strings.TrimSpace(os.Getenv(constants.EnvHealthchecksOtelURL)),

			CriblBaseURL:      strings.TrimSpace(os.Getenv(constants.EnvCriblBaseURL)),
			CriblClientID:     strings.TrimSpace(os.Getenv(constants.EnvCriblClientID)),
			CriblClientSecret: os.Getenv(constants.EnvCriblClientSecret),
			DefaultPassword:   os.Getenv(constants.EnvDefaultPassword),
		},
	}

	return cfg, nil
}

// Validate checks the parts of the configuration that every run requires.
// Secret inputs are deliberately not validated here: absent inputs are an
// accepted operating state handled per-secret by the provisioner.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.KubeContext) == "" {
		return fmt.Errorf("kube context is required")
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return fmt.Errorf("namespace is required")
	}
	if strings.TrimSpace(c.HomeDir) == "" {
		return fmt.Errorf("home directory is required")
	}
	if strings.TrimSpace(c.TemplateDir) == "" {
		return fmt.Errorf("overlay template directory is required")
	}
	if strings.TrimSpace(c.OverlayDir) == "" {
		return fmt.Errorf("overlay output directory is required")
	}
	if c.OverlayDir == c.TemplateDir {
		return fmt.Errorf("overlay output directory must differ from the template directory")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
