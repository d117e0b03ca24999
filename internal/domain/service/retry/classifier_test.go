package retry

import (
	"strings"
	"testing"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    session.ErrorCategory
	}{
		{"credit balance", "Your credit balance is too low", session.CategoryBilling},
		{"insufficient credits", "insufficient credits to complete request", session.CategoryBilling},
		{"quota exceeded", "API quota exceeded for this month", session.CategoryBilling},
		{"unauthorized", "Unauthorized: check credentials", session.CategoryAuth},
		{"401 status", "request failed with status 401", session.CategoryAuth},
		{"invalid api key", "Invalid API key provided", session.CategoryAuth},
		{"403 status", "HTTP 403 returned by server", session.CategoryAuth},
		{"429 status", "server responded with 429", session.CategoryRateLimit},
		{"rate limit", "Rate limit reached, retry later", session.CategoryRateLimit},
		{"throttled", "request was throttled", session.CategoryRateLimit},
		{"exit status 1", "claude execution failed: exit status 1", session.CategorySDKCrash},
		{"heap corruption decimal", "process exited with code 3221225786", session.CategorySDKCrash},
		{"heap corruption hex", "status 0xC0000374 (heap corruption)", session.CategorySDKCrash},
		{"timeout", "context deadline exceeded: timeout", session.CategoryTransient},
		{"connection refused", "dial tcp: connection refused", session.CategoryTransient},
		{"503 status", "upstream returned 503", session.CategoryTransient},
		{"unknown", "something odd happened", session.CategoryUnknown},
		{"empty", "", session.CategoryUnknown},
		{"whitespace only", "   ", session.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.message)
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

func TestClassify_OrderingPolicy(t *testing.T) {
	// A message with both rate-limit and transient cues must resolve to
	// RATE_LIMIT: waiting longer is a different remediation than a
	// generic retry.
	got := Classify("request timeout after 429 too many requests")
	if got != session.CategoryRateLimit {
		t.Errorf("expected RATE_LIMIT to win over TRANSIENT, got %s", got)
	}

	// Billing cues outrank everything else.
	got = Classify("401 unauthorized: credit balance exhausted")
	if got != session.CategoryBilling {
		t.Errorf("expected BILLING to win over AUTH, got %s", got)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	variants := []string{
		"CREDIT BALANCE too low",
		"Credit Balance too low",
		"credit balance too low",
	}
	for _, msg := range variants {
		if got := Classify(msg); got != session.CategoryBilling {
			t.Errorf("Classify(%q) = %s, want BILLING", msg, got)
		}
	}
}

func TestClassify_ExitCodeBoundary(t *testing.T) {
	// "exit status 1" must match but "exit status 12" must not.
	if got := Classify("exit status 1"); got != session.CategorySDKCrash {
		t.Errorf("exit status 1 should classify as SDK_CRASH, got %s", got)
	}
	if got := Classify("exit status 12"); got == session.CategorySDKCrash {
		t.Error("exit status 12 should not classify as SDK_CRASH")
	}
}

func TestClassify_BillingKeywordsAnyCase(t *testing.T) {
	keywords := []string{"credit balance", "insufficient credits", "quota exceeded"}
	for _, kw := range keywords {
		for _, msg := range []string{kw, strings.ToUpper(kw), "prefix " + kw + " suffix"} {
			if got := Classify(msg); got != session.CategoryBilling {
				t.Errorf("Classify(%q) = %s, want BILLING", msg, got)
			}
		}
	}
}
