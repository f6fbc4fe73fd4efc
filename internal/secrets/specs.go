// Package secrets materializes cluster Secrets from the resolved
// environment inputs. Provisioning is declarative and idempotent: each
// Secret is reconciled to hold exactly the inputs that are present, and a
// spec whose inputs are all absent is skipped with a notice, never created
// partially and never treated as an error.
package secrets

import (
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/config"
	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
	deployerrors "github.com/JacobPEvans/kubernetes-monitoring/internal/errors"
)

// Spec is one named bundle of values materialized as a cluster Secret.
// Data holds only the inputs that were actually present; an empty Data map
// means the spec is skipped.
type Spec struct {
	Name string
	Data map[string]string
}

// Empty reports whether the spec has no present inputs.
func (s Spec) Empty() bool {
	return len(s.Data) == 0
}

// DeriveSplunkURLs derives the HEC and management URLs from the raw
// SPLUNK_NETWORK value, a JSON array of addresses. The first element is
// formatted with the fixed Splunk ports. Malformed input degrades
// gracefully: the caller logs a warning and skips the derivation.
func DeriveSplunkURLs(network string) (hecURL, mgmtURL string, err error) {
	var addrs []string
	if err := json.Unmarshal([]byte(network), &addrs); err != nil {
		return "", "", deployerrors.WrapMalformedInput(
			fmt.Errorf("SPLUNK_NETWORK is not a JSON array of addresses: %w", err))
	}
	if len(addrs) == 0 || addrs[0] == "" {
		return "", "", deployerrors.WrapMalformedInput(
			fmt.Errorf("SPLUNK_NETWORK contains no addresses"))
	}

	host := addrs[0]
	hecURL = fmt.Sprintf("https://%s:%d/services/collector", host, constants.SplunkHECPort)
	mgmtURL = fmt.Sprintf("https://%s:%d", host, constants.SplunkMgmtPort)
	return hecURL, mgmtURL, nil
}

// BuildSpecs assembles the fixed, enumerated spec list from the inputs.
// Every value that is present lands under its documented key; keys with
// empty values are omitted entirely so a Secret never carries empty data.
func BuildSpecs(in config.SecretInputs, logger logr.Logger) []Spec {
	splunk := map[string]string{}
	putIfSet(splunk, constants.KeyToken, in.SplunkHECToken)
	putIfSet(splunk, constants.KeyURL, in.SplunkHECURL)
	putIfSet(splunk, constants.KeyAdminPassword, in.SplunkPassword)

	if in.SplunkNetwork != "" {
		hecURL, mgmtURL, err := DeriveSplunkURLs(in.SplunkNetwork)
		if err != nil {
			logger.Info("Warning: skipping Splunk URL derivation", "reason", err.Error())
		} else {
			// An explicit SPLUNK_HEC_URL wins over the derived one.
			if _, ok := splunk[constants.KeyURL]; !ok {
				splunk[constants.KeyURL] = hecURL
			}
			splunk[constants.KeyMgmtURL] = mgmtURL
		}
	}

	return []Spec{
		{
			Name: constants.SecretCriblCloud,
			Data: nonEmpty(map[string]string{
				constants.KeyMasterURL: in.MasterURL(),
			}),
		},
		{
			Name: constants.SecretCriblStreamAdmin,
			Data: nonEmpty(map[string]string{
				constants.KeyPassword: in.CriblStreamPassword,
			}),
		},
		{
			Name: constants.SecretCriblEdgeAdmin,
			Data: nonEmpty(map[string]string{
				constants.KeyPassword: in.CriblEdgePassword,
			}),
		},
		{
			Name: constants.SecretSplunkHEC,
			Data: splunk,
		},
		{
			Name: constants.SecretAIAPIKeys,
			Data: nonEmpty(map[string]string{
				constants.KeyClaudeAPIKey: in.ClaudeAPIKey,
				constants.KeyGeminiAPIKey: in.GeminiAPIKey,
			}),
		},
		{
			Name: constants.SecretHealthchecks,
			Data: nonEmpty(map[string]string{
				constants.KeyStreamURL: in.HealthchecksStreamURL,
				constants.KeySplunkURL: in.HealthchecksSplunkURL,
				constants.KeyEdgeURL:   in.HealthchecksEdgeURL,
				constants.KeyOtelURL:   in.HealthchecksOtelURL,
			}),
		},
		{
			Name: constants.SecretCriblMgmtAPI,
			Data: nonEmpty(map[string]string{
				constants.KeyBaseURL:      in.CriblBaseURL,
				constants.KeyClientID:     in.CriblClientID,
				constants.KeyClientSecret: in.CriblClientSecret,
				constants.KeyAPIKey:       in.DefaultPassword,
			}),
		},
	}
}

func putIfSet(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func nonEmpty(m map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range m {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
