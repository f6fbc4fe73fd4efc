package verify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKubectl serves canned output keyed by the first two args of each
// invocation (e.g. "logs statefulset/otel-collector").
type fakeKubectl struct {
	responses map[string]string
	err       error
	calls     [][]string
}

func (f *fakeKubectl) Run(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return "", f.err
	}
	return f.responses[strings.Join(args[:2], " ")], nil
}

func TestRun_EmptyClusterFailsEveryCheck(t *testing.T) {
	h := newHarness(t)
	h.HTTPClient = &http.Client{Timeout: time.Second}

	err := h.Run(context.Background(), logr.Discard(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statefulset/otel-collector ready")
	assert.Contains(t, err.Error(), "cribl-stream health")
	assert.Contains(t, err.Error(), "otlp-http ingest")
}

func TestRun_SplunkCheckWithoutCredentials(t *testing.T) {
	h := newHarness(t)
	h.HTTPClient = &http.Client{Timeout: time.Second}

	err := h.Run(context.Background(), logr.Discard(), Options{CheckSplunk: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "splunk event delivery")
}

func TestRun_PipelineChecksNeedKubectl(t *testing.T) {
	h := newHarness(t)
	h.HTTPClient = &http.Client{Timeout: time.Second}
	kubectl := &fakeKubectl{responses: map[string]string{}}
	h.Kubectl = kubectl

	err := h.Run(context.Background(), logr.Discard(), Options{})
	require.Error(t, err)
	// The collector log check passed (no error lines in empty logs), the
	// flow check failed (no stats lines at all).
	assert.NotContains(t, err.Error(), "otel-collector logs")
	assert.Contains(t, err.Error(), "cribl-stream delivering bytes")
	require.NotEmpty(t, kubectl.calls)
	assert.Equal(t, []string{"logs", "statefulset/otel-collector", "--tail=200"}, kubectl.calls[0])
}

func TestCheckCollectorErrors(t *testing.T) {
	clean := "2026-08-25T12:00:00Z\tinfo\texporter\tExporting failed. Will retry\t{}\n"
	dirty := clean +
		"2026-08-25T12:00:01Z\terror\texporter\tconnection refused\t{}\n" +
		"2026-08-25T12:00:02Z\terror\tfileconsumer\tFailed to open file\t{}\n"

	h := newHarness(t)
	h.Kubectl = &fakeKubectl{responses: map[string]string{
		"logs statefulset/otel-collector": clean,
	}}
	assert.True(t, h.checkCollectorErrors(context.Background()).OK())

	h.Kubectl = &fakeKubectl{responses: map[string]string{
		"logs statefulset/otel-collector": dirty,
	}}
	result := h.checkCollectorErrors(context.Background())
	require.False(t, result.OK())
	assert.Contains(t, result.Err.Error(), "found 1 error lines")
	assert.Contains(t, result.Err.Error(), "connection refused")
}

func TestCheckStreamFlow(t *testing.T) {
	flowing := `{"message":"_raw stats","outEvents":12,"outBytes":4096}` + "\n"
	routingOnly := `{"message":"_raw stats","outEvents":12,"outBytes":0}` + "\n"

	h := newHarness(t)
	h.Kubectl = &fakeKubectl{responses: map[string]string{
		"logs statefulset/cribl-stream-standalone": flowing,
	}}
	assert.True(t, h.checkStreamFlow(context.Background()).OK())

	h.Kubectl = &fakeKubectl{responses: map[string]string{
		"logs statefulset/cribl-stream-standalone": routingOnly,
	}}
	result := h.checkStreamFlow(context.Background())
	require.False(t, result.OK())
	assert.Contains(t, result.Err.Error(), "outBytes")
}

func TestCheckOutputsConfigured(t *testing.T) {
	hecURL := "https://203.0.113.5:8088/services/collector"
	outputs := "outputs:\n  splunk_hec:\n    url: " + hecURL + "\n"

	h := newHarness(t)
	h.Kubectl = &fakeKubectl{responses: map[string]string{
		"exec statefulset/cribl-stream-standalone": outputs,
	}}
	assert.True(t, h.checkOutputsConfigured(context.Background(), hecURL).OK())

	result := h.checkOutputsConfigured(context.Background(), "https://other.sink:8088/services/collector")
	require.False(t, result.OK())
	assert.Contains(t, result.Err.Error(), "other.sink")
}

func TestCheckOutputsConfigured_ExecFailure(t *testing.T) {
	h := newHarness(t)
	h.Kubectl = &fakeKubectl{err: errors.New("pod not found")}

	result := h.checkOutputsConfigured(context.Background(), "https://sink:8088/services/collector")
	require.False(t, result.OK())
}

func TestCheckSplunkDelivery_PassesWhenEventsPresent(t *testing.T) {
	var gotSearch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotSearch = r.Form.Get("search")
		_, _ = w.Write([]byte(`{"result":{"_raw":"event"}}` + "\n"))
	}))
	defer srv.Close()

	h := newHarness(t)
	result := h.checkSplunkDelivery(context.Background(), logr.Discard(), Options{
		CheckSplunk:    true,
		SplunkMgmtURL:  srv.URL,
		SplunkPassword: "pw",
		SplunkTimeout:  10 * time.Second,
	}, "verify-abc123")
	assert.True(t, result.OK(), "%v", result.Err)
	// The default query targets this run's own traffic.
	assert.Contains(t, gotSearch, "verify-abc123")
}
