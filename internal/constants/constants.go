// Package constants centralizes names shared across the deploy orchestrator:
// environment variable names, Secret names and data keys, workload names,
// and the service ports of the monitoring stack.
package constants

// Environment variables consumed by the orchestrator.
const (
	EnvKubeContext   = "KUBE_CONTEXT"
	EnvKubeNamespace = "KUBE_NAMESPACE"

	EnvCriblDistMasterURL  = "CRIBL_DIST_MASTER_URL"
	EnvCriblCloudMasterURL = "CRIBL_CLOUD_MASTER_URL"
	EnvCriblStreamPassword = "CRIBL_STREAM_PASSWORD"
	EnvCriblEdgePassword   = "CRIBL_EDGE_PASSWORD"

	EnvSplunkHECToken = "SPLUNK_HEC_TOKEN"
	EnvSplunkHECURL   = "SPLUNK_HEC_URL"
	EnvSplunkNetwork  = "SPLUNK_NETWORK"
	EnvSplunkPassword = "SPLUNK_PASSWORD"

	EnvClaudeAPIKey = "CLAUDE_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"

	EnvHealthchecksStreamURL = "HEALTHCHECKS_STREAM_URL"
	EnvHealthchecksSplunkURL = "HEALTHCHECKS_SPLUNK_URL"
	EnvHealthchecksEdgeURL   = "HEALTHCHECKS_EDGE_URL"
	EnvHealthchecksOtelURL   = "HEALTHCHECKS_OTEL_URL"

	EnvCriblBaseURL      = "CRIBL_BASE_URL"
	EnvCriblClientID     = "CRIBL_CLIENT_ID"
	EnvCriblClientSecret = "CRIBL_CLIENT_SECRET"
	EnvDefaultPassword   = "DEFAULT_PASSWORD"

	EnvArchiveBucket = "DEPLOY_ARCHIVE_BUCKET"
	EnvArchivePrefix = "DEPLOY_ARCHIVE_PREFIX"
	EnvMetricsFile   = "DEPLOY_METRICS_FILE"
	EnvWatchSchedule = "VERIFY_WATCH_SCHEDULE"
)

// Defaults.
const (
	DefaultKubeContext   = "orbstack"
	DefaultNamespace     = "monitoring"
	DefaultWatchSchedule = "*/5 * * * *"
)

// PlaceholderHome is the token substituted with the real home directory when
// rendering the local overlay.
const PlaceholderHome = "__HOME__"

// Secret object names in the monitoring namespace.
const (
	SecretCriblCloud       = "cribl-cloud"
	SecretCriblStreamAdmin = "cribl-stream-admin"
	SecretCriblEdgeAdmin   = "cribl-edge-admin"
	SecretSplunkHEC        = "splunk-hec"
	SecretAIAPIKeys        = "ai-api-keys"
	SecretHealthchecks     = "healthchecks-urls"
	SecretCriblMgmtAPI     = "cribl-mgmt-api"
)

// Secret data keys.
const (
	KeyMasterURL     = "master-url"
	KeyPassword      = "password"
	KeyToken         = "token"
	KeyURL           = "url"
	KeyMgmtURL       = "mgmt-url"
	KeyAdminPassword = "admin-password"
	KeyClaudeAPIKey  = "claude-api-key"
	KeyGeminiAPIKey  = "gemini-api-key"
	KeyStreamURL     = "stream-url"
	KeySplunkURL     = "splunk-url"
	KeyEdgeURL       = "edge-url"
	KeyOtelURL       = "otel-url"
	KeyBaseURL       = "base-url"
	KeyClientID      = "client-id"
	KeyClientSecret  = "client-secret"
	KeyAPIKey        = "api-key"
)

// StatefulSet workload names, in gate order.
const (
	WorkloadOtelCollector       = "otel-collector"
	WorkloadCriblEdgeManaged    = "cribl-edge-managed"
	WorkloadCriblEdgeStandalone = "cribl-edge-standalone"
	WorkloadCriblStream         = "cribl-stream-standalone"
	WorkloadCriblMCPServer      = "cribl-mcp-server"
)

// StatefulSets returns every stack workload name in gate order.
func StatefulSets() []string {
	return []string{
		WorkloadOtelCollector,
		WorkloadCriblEdgeManaged,
		WorkloadCriblEdgeStandalone,
		WorkloadCriblStream,
		WorkloadCriblMCPServer,
	}
}

// Splunk ports used when deriving sink URLs from a raw address.
const (
	SplunkHECPort  = 8088
	SplunkMgmtPort = 8089
)

// Service ports of the stack, used by the verification harness.
const (
	PortOTLPGRPCNodePort  = 30317
	PortOTLPHTTPNodePort  = 30318
	PortOtelHealth        = 13133
	PortCriblStreamAPI    = 9000
	PortCriblEdgeAPI      = 9420
	PortStreamUINodePort  = 30900
	PortEdgeUINodePort    = 30910
	PortMCPNodePort       = 30030
)

// RestartedAtAnnotation is the pod template annotation patched to force a
// rolling restart after secret or config changes, matching the annotation
// kubectl rollout restart uses.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"
