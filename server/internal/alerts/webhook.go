package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// payloadFunc renders an alert as the JSON body one kind of webhook expects.
type payloadFunc func(a *Alert) any

// payloads maps webhook types to their body format.
var payloads = map[string]payloadFunc{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  func(a *Alert) any { return map[string]any{"alert": a} },
}

// deliver posts a to every configured webhook whose URL is set. Failures
// are logged per target.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.targets() {
		url := wh.URL()
		if url == "" {
			continue
		}
		render, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := json.Marshal(render(a))
		if err == nil {
			err = e.post(context.Background(), url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "bump", a.BumpID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func slackPayload(a *Alert) any {
	text := fmt.Sprintf("*[%s]* %s", strings.ToUpper(severity(a.Severity)), a.Message)
	if a.State == stateResolved {
		text = fmt.Sprintf("*[RESOLVED]* %s on %s", a.RuleName, a.StreetName)
	}
	return map[string]string{"text": text}
}

func teamsPayload(a *Alert) any {
	colors := map[string]string{"critical": "D93025", "warning": "F9AB00", "info": "1A73E8"}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": colors[severity(a.Severity)],
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("Speed bump %s: %s", a.State, a.StreetName),
		"text":       a.Message,
	}
}

// severity normalises a rule severity to critical, warning or info.
func severity(s string) string {
	switch s {
	case "critical", "warning":
		return s
	default:
		return "info"
	}
}

func (e *Engine) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
