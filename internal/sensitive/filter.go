package sensitive

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule is a single compiled deny or allow pattern with a stable identifier.
// Deny rule ids are echoed as classification reasons for audit traceability.
type Rule struct {
	ID      string
	Pattern *regexp.Regexp
}

// Result is the outcome of a single classification.
type Result struct {
	Sensitive      bool     `json:"sensitive"`
	Reasons        []string `json:"reasons"`
	RulesetVersion string   `json:"rulesetVersion"`
}

// Builtin deny rules. Ids are stable; renaming one would break audit trails.
var builtinDeny = []Rule{
	{ID: "pem-private-key", Pattern: regexp.MustCompile(`(?i)-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{ID: "secret-assignment", Pattern: regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|password|passwd|token|credential)s?\b\s*[:=]\s*\S+`)},
	{ID: "secret-key-prefix", Pattern: regexp.MustCompile(`(?i)\b(?:sk|rk)_[a-z0-9]{16,}\b`)},
	{ID: "long-hex-run", Pattern: regexp.MustCompile(`(?i)\b[0-9a-f]{32,}\b`)},
	{ID: "long-digit-run", Pattern: regexp.MustCompile(`\d[\d \-]{12,}\d`)},
	{ID: "jwt-token", Pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\b`)},
}

// Filter classifies text against builtin and configured rules. Allow rules
// take precedence over every deny rule, which is the escape hatch for false
// positives (e.g. "timezone: Asia/Shanghai" tripping a keyword rule).
type Filter struct {
	deny    []Rule
	allow   []Rule
	version string
}

// NewFilter compiles the configured deny and allow regex sources
// (case-insensitively) on top of the builtin deny set. A malformed pattern
// is dropped rather than failing the whole ruleset: bad config degrades
// coverage, never availability.
func NewFilter(version string, denyPatterns, allowPatterns []string) *Filter {
	f := &Filter{version: version}
	f.deny = append(f.deny, builtinDeny...)
	for i, src := range denyPatterns {
		if re := compileLenient(src); re != nil {
			f.deny = append(f.deny, Rule{ID: configRuleID("deny", i), Pattern: re})
		}
	}
	for i, src := range allowPatterns {
		if re := compileLenient(src); re != nil {
			f.allow = append(f.allow, Rule{ID: configRuleID("allow", i), Pattern: re})
		}
	}
	return f
}

// Detect classifies text. Empty or whitespace-only text is never sensitive.
func (f *Filter) Detect(text string) Result {
	result := Result{RulesetVersion: f.version}
	if strings.TrimSpace(text) == "" {
		return result
	}

	for _, rule := range f.allow {
		if rule.Pattern.MatchString(text) {
			return result
		}
	}

	for _, rule := range f.deny {
		if rule.Pattern.MatchString(text) {
			result.Reasons = append(result.Reasons, rule.ID)
		}
	}
	result.Sensitive = len(result.Reasons) > 0
	return result
}

// Version returns the ruleset version echoed on every result.
func (f *Filter) Version() string {
	return f.version
}

func compileLenient(src string) *regexp.Regexp {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	re, err := regexp.Compile("(?i)" + src)
	if err != nil {
		return nil
	}
	return re
}

func configRuleID(kind string, idx int) string {
	return "config-" + kind + "-" + strconv.Itoa(idx)
}
