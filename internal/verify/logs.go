// Package verify implements the post-deploy verification harness: cluster
// state assertions, component health probes, log analysis, and sink-side
// event queries. Readiness alone is not trusted as proof of delivery; the
// harness checks every hop of the pipeline.
package verify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseOtelErrorLines returns operational error lines from OTEL collector
// logs. The collector logs TIMESTAMP\tLEVEL\tFILE\tMESSAGE\tJSON; lines
// with an error level are operational failures. Two kinds of noise are
// excluded: info-level retry lines, and fileconsumer "Failed to open file"
// errors, which occur when the collector tracks pod log paths that get
// cleaned up after short-lived CronJob pods complete.
func ParseOtelErrorLines(logText string) []string {
	var result []string
	for _, line := range splitLines(logText) {
		if strings.Contains(line, "\terror\t") && !strings.Contains(line, "Failed to open file") {
			result = append(result, line)
		}
	}
	return result
}

// rawStats is the subset of a Cribl Stream "_raw stats" log line the flow
// check needs.
type rawStats struct {
	Message   string `json:"message"`
	OutEvents int64  `json:"outEvents"`
	OutBytes  int64  `json:"outBytes"`
}

// FindFlowingStats returns log lines where Cribl Stream _raw stats show
// outBytes > 0. outBytes counts bytes physically sent to an external
// output; outEvents alone also counts pipeline-internal routing and is not
// sufficient evidence of delivery.
func FindFlowingStats(logText string) []string {
	var result []string
	for _, line := range splitLines(logText) {
		var stats rawStats
		if err := json.Unmarshal([]byte(line), &stats); err != nil {
			continue
		}
		if stats.Message == "_raw stats" && stats.OutEvents > 0 && stats.OutBytes > 0 {
			result = append(result, line)
		}
	}
	return result
}

// URLPresentInOutputsYAML reports whether url appears as a `url:` value in
// the YAML text, anchored to whole lines so partial matches don't count.
func URLPresentInOutputsYAML(url, yamlText string) bool {
	pattern := fmt.Sprintf(`(?m)^\s*url:\s*%s\s*$`, regexp.QuoteMeta(url))
	return regexp.MustCompile(pattern).MatchString(yamlText)
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}
