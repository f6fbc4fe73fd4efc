package verify

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
)

// SplunkClient queries the sink's search/export REST API to confirm that
// events physically arrived. The LAN Splunk instance runs a self-signed
// certificate, so TLS verification is skippable.
type SplunkClient struct {
	MgmtURL       string
	AdminPassword string
	HTTPClient    *http.Client
}

// NewSplunkClient builds a client for the management endpoint.
func NewSplunkClient(mgmtURL, adminPassword string, verifyTLS bool) *SplunkClient {
	transport := &http.Transport{}
	if !verifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //#nosec G402 -- self-signed cert on the LAN sink
	}
	return &SplunkClient{
		MgmtURL:       strings.TrimRight(mgmtURL, "/"),
		AdminPassword: adminPassword,
		HTTPClient:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
}

// Search runs one export search and returns the result objects. The export
// API streams newline-delimited JSON; lines without a "result" member are
// preview/control records and are skipped.
func (c *SplunkClient) Search(ctx context.Context, search, earliest string) ([]map[string]any, error) {
	form := url.Values{
		"search":        {"search " + search},
		"earliest_time": {earliest},
		"output_mode":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.MgmtURL+"/services/search/jobs/export", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build Splunk search request: %w", err)
	}
	req.SetBasicAuth("admin", c.AdminPassword)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Splunk search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Splunk search returned %d", resp.StatusCode)
	}

	var results []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record struct {
			Result map[string]any `json:"result"`
		}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if record.Result != nil {
			results = append(results, record.Result)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Splunk export stream: %w", err)
	}
	return results, nil
}

// PollForEvents re-runs the search until at least minCount events are
// visible or the timeout elapses. Transient query failures are tolerated
// and retried; the poll is rate-limited so the sink is not hammered.
func (c *SplunkClient) PollForEvents(ctx context.Context, logger logr.Logger, search string, minCount int, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(2*time.Second), 1)
	lastCount := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return lastCount, fmt.Errorf("found %d of %d expected events for %q before deadline: %w",
				lastCount, minCount, search, err)
		}

		results, err := c.Search(ctx, search, "-15m")
		if err != nil {
			logger.V(1).Info("Splunk query failed, retrying", "error", err.Error())
			continue
		}

		lastCount = len(results)
		if lastCount >= minCount {
			return lastCount, nil
		}
		logger.V(1).Info("Waiting for events in Splunk", "found", lastCount, "want", minCount)
	}
}
