package retry

import (
	"regexp"
	"strings"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
)

// classifierRule maps message cues to an error category. Rules are checked
// in table order and the first match wins; the ordering is policy, not an
// accident. A message containing both "timeout" and "429" must resolve to
// RATE_LIMIT because rate limits have a distinct remediation path (wait
// longer) from generic transient retries.
type classifierRule struct {
	category   session.ErrorCategory
	substrings []string
	patterns   []*regexp.Regexp
}

// crashExitPattern matches process exit codes that indicate an SDK crash.
// Exit code 1 is the generic CLI crash; 3221225786 (0xC0000374) is the
// Windows heap-corruption status.
var crashExitPattern = regexp.MustCompile(`exit (status|code) 1\b`)

var classifierRules = []classifierRule{
	{
		category: session.CategoryBilling,
		substrings: []string{
			"credit balance",
			"insufficient credits",
			"quota exceeded",
			"billing",
			"payment required",
		},
	},
	{
		category: session.CategoryAuth,
		substrings: []string{
			"unauthorized",
			"401",
			"invalid api key",
			"403",
			"forbidden",
			"authentication failed",
		},
	},
	{
		category: session.CategoryRateLimit,
		substrings: []string{
			"429",
			"rate limit",
			"throttled",
			"too many requests",
		},
	},
	{
		category: session.CategorySDKCrash,
		substrings: []string{
			"3221225786",
			"0xc0000374",
			"segmentation fault",
			"panic:",
		},
		patterns: []*regexp.Regexp{crashExitPattern},
	},
	{
		category: session.CategoryTransient,
		substrings: []string{
			"timeout",
			"timed out",
			"connection refused",
			"connection reset",
			"econnreset",
			"network",
			"dns",
			"500",
			"502",
			"503",
			"504",
			"internal server error",
			"service unavailable",
			"temporarily unavailable",
		},
	},
}

// Classify maps a raw error message to an ErrorCategory. Matching is
// case-insensitive substring/pattern search over the ordered rule table.
// Empty input classifies as UNKNOWN. Classify is pure and has no side
// effects.
func Classify(rawMessage string) session.ErrorCategory {
	msg := strings.ToLower(strings.TrimSpace(rawMessage))
	if msg == "" {
		return session.CategoryUnknown
	}

	for _, rule := range classifierRules {
		for _, sub := range rule.substrings {
			if strings.Contains(msg, sub) {
				return rule.category
			}
		}
		for _, pat := range rule.patterns {
			if pat.MatchString(msg) {
				return rule.category
			}
		}
	}
	return session.CategoryUnknown
}
