package secrets

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
)

func TestDeriveSplunkURLs(t *testing.T) {
	hecURL, mgmtURL, err := DeriveSplunkURLs(`["203.0.113.5"]`)
	require.NoError(t, err)
	assert.Equal(t, "https://203.0.113.5:8088/services/collector", hecURL)
	assert.Equal(t, "https://203.0.113.5:8089", mgmtURL)
}

func TestDeriveSplunkURLs_FirstElementWins(t *testing.T) {
	hecURL, _, err := DeriveSplunkURLs(`["192.168.0.200", "192.168.0.201"]`)
	require.NoError(t, err)
	assert.Equal(t, "https://192.168.0.200:8088/services/collector", hecURL)
}

func TestDeriveSplunkURLs_Malformed(t *testing.T) {
	for _, input := range []string{"not-json", "{}", "[]", `[""]`, "[42]"} {
		_, _, err := DeriveSplunkURLs(input)
		require.Error(t, err, "input %q", input)
		assert.True(t, deployerrors.IsMalformedInput(err), "input %q should be malformed, got: %v", input, err)
	}
}

func TestBuildSpecs_FixedEnumeration(t *testing.T) {
	specs := BuildSpecs(config.SecretInputs{}, logr.Discard())
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		constants.SecretCriblCloud,
		constants.SecretCriblStreamAdmin,
		constants.SecretCriblEdgeAdmin,
		constants.SecretSplunkHEC,
		constants.SecretAIAPIKeys,
		constants.SecretHealthchecks,
		constants.SecretCriblMgmtAPI,
	}, names)
}

func TestBuildSpecs_OmitsEmptyKeys(t *testing.T) {
	specs := BuildSpecs(config.SecretInputs{
		ClaudeAPIKey: "sk-ant-test",
		// GeminiAPIKey absent: the key must not appear at all.
	}, logr.Discard())

	for _, s := range specs {
		if s.Name != constants.SecretAIAPIKeys {
			continue
		}
		assert.Equal(t, map[string]string{constants.KeyClaudeAPIKey: "sk-ant-test"}, s.Data)
		return
	}
	t.Fatal("ai-api-keys spec not found")
}

func TestBuildSpecs_MgmtAPIKeys(t *testing.T) {
	specs := BuildSpecs(config.SecretInputs{
		CriblBaseURL:      "https://app.cribl.cloud/api/v1",
		CriblClientID:     "client-id",
		CriblClientSecret: "client-secret",
		DefaultPassword:   "api-key",
	}, logr.Discard())

	for _, s := range specs {
		if s.Name != constants.SecretCriblMgmtAPI {
			continue
		}
		assert.Equal(t, map[string]string{
			constants.KeyBaseURL:      "https://app.cribl.cloud/api/v1",
			constants.KeyClientID:     "client-id",
			constants.KeyClientSecret: "client-secret",
			constants.KeyAPIKey:       "api-key",
		}, s.Data)
		return
	}
	t.Fatal("cribl-mgmt-api spec not found")
}
