package verify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JacobPEvans/kubernetes-monitoring/internal/constants"
)

// Minimal OTLP/JSON trace payload. Only the fields the collector requires
// to accept a span are modeled.
type otlpValue struct {
	StringValue string `json:"stringValue"`
}

type otlpAttribute struct {
	Key   string    `json:"key"`
	Value otlpValue `json:"value"`
}

type otlpSpan struct {
	TraceID           string          `json:"traceId"`
	SpanID            string          `json:"spanId"`
	Name              string          `json:"name"`
	Kind              int             `json:"kind"`
	StartTimeUnixNano string          `json:"startTimeUnixNano"`
	EndTimeUnixNano   string          `json:"endTimeUnixNano"`
	Attributes        []otlpAttribute `json:"attributes"`
}

type otlpScopeSpans struct {
	Spans []otlpSpan `json:"spans"`
}

type otlpResource struct {
	Attributes []otlpAttribute `json:"attributes"`
}

type otlpResourceSpans struct {
	Resource   otlpResource     `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpTraceRequest struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

// buildTracePayload assembles one finished span tagged with testID so the
// sink-side query can find exactly this run's traffic.
func buildTracePayload(testID string, now time.Time) ([]byte, error) {
	traceID := make([]byte, 16)
	spanID := make([]byte, 8)
	if _, err := rand.Read(traceID); err != nil {
		return nil, fmt.Errorf("failed to generate trace id: %w", err)
	}
	if _, err := rand.Read(spanID); err != nil {
		return nil, fmt.Errorf("failed to generate span id: %w", err)
	}

	start := now.Add(-time.Millisecond).UnixNano()
	end := now.UnixNano()

	req := otlpTraceRequest{
		ResourceSpans: []otlpResourceSpans{{
			Resource: otlpResource{
				Attributes: []otlpAttribute{
					{Key: "service.name", Value: otlpValue{StringValue: "monitoring-verify"}},
				},
			},
			ScopeSpans: []otlpScopeSpans{{
				Spans: []otlpSpan{{
					TraceID:           hex.EncodeToString(traceID),
					SpanID:            hex.EncodeToString(spanID),
					Name:              "verify-ingest-span",
					Kind:              1,
					StartTimeUnixNano: strconv.FormatInt(start, 10),
					EndTimeUnixNano:   strconv.FormatInt(end, 10),
					Attributes: []otlpAttribute{
						{Key: "test.id", Value: otlpValue{StringValue: testID}},
					},
				}},
			}},
		}},
	}
	return json.Marshal(req)
}

// CheckIngestion sends one span through the collector's OTLP/HTTP NodePort
// and asserts it was accepted. A passing check means the collector's
// receiving side works and the sink query has known traffic to find.
func (h *Harness) CheckIngestion(ctx context.Context, testID string) CheckResult {
	url := fmt.Sprintf("%s:%d/v1/traces", h.NodeBase, constants.PortOTLPHTTPNodePort)
	return h.checkIngest(ctx, url, testID)
}

func (h *Harness) checkIngest(ctx context.Context, url, testID string) CheckResult {
	result := CheckResult{Name: fmt.Sprintf("otlp-http ingest %s", url)}

	payload, err := buildTracePayload(testID, time.Now())
	if err != nil {
		result.Err = err
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		result.Err = err
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("trace export failed: %w", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		result.Err = fmt.Errorf("collector rejected trace: %s returned %d", url, resp.StatusCode)
	}
	return result
}
