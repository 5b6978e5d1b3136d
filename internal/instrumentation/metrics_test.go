package instrumentation

import (
	"context"
	"testing"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })
	return inst.Metrics()
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode int
		durationMs float64
	}{
		{"authorize redirect", "GET", "/authorize", 302, 4.2},
		{"token exchange", "POST", "/token", 200, 12.5},
		{"invalid grant", "POST", "/token", 400, 3.1},
		{"tool call", "POST", "/mcp", 200, 87.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics.RecordHTTPRequest(ctx, tt.method, tt.endpoint, tt.statusCode, tt.durationMs)
		})
	}
}

func TestMetrics_RecordOAuthFlow(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	// Recording must be safe at every stage of the flow.
	metrics.RecordAuthorizationStarted(ctx, "chatgpt-apps-sdk")
	metrics.RecordCodeExchange(ctx, "chatgpt-apps-sdk")
	metrics.RecordTokenRefresh(ctx, "chatgpt-apps-sdk", true)
	metrics.RecordTokenRevocation(ctx, "chatgpt-apps-sdk")
	metrics.RecordClientRegistration(ctx, "public")
}

func TestMetrics_RecordSecurityEvents(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	metrics.RecordRateLimitExceeded(ctx, "ip")
	metrics.RecordRateLimitExceeded(ctx, "user")
	metrics.RecordPKCEValidationFailed(ctx)
	metrics.RecordCodeReuseDetected(ctx)
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	ctx := context.Background()
	metrics := newTestMetrics(t)

	metrics.RecordToolInvocation(ctx, "search_weapons", true, 12.3)
	metrics.RecordToolInvocation(ctx, "save_loadout", false, 45.6)
	metrics.RecordSchemaViolation(ctx, "counter_loadout")
}
