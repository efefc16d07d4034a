package council

import (
	"regexp"
	"strings"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

// fallbackReasoningLen caps rationale taken from unstructured output.
const fallbackReasoningLen = 200

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Field patterns. Every match is case-insensitive; the judge's reasoning may
// span several lines.
var (
	sentimentPattern      = regexp.MustCompile(`(?i)SENTIMENT:\s*(BULLISH|BEARISH|NEUTRAL)`)
	confidencePattern     = regexp.MustCompile(`(?i)CONFIDENCE:\s*([\d.]+)`)
	decisionPattern       = regexp.MustCompile(`(?i)DECISION:\s*(TRADE|SKIP)`)
	sizePattern           = regexp.MustCompile(`(?i)SIZE:\s*\$?([\d.]+)`)
	reasoningPattern      = regexp.MustCompile(`(?i)REASONING:\s*(.+)`)
	judgeReasoningPattern = regexp.MustCompile(`(?is)REASONING:\s*(.+)`)
)

// Rule extracts one field: the first capture group of the last match of
// Pattern, or Default when nothing matches.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
	Default string
}

// Match is the outcome of one rule.
type Match struct {
	Value string
	Found bool
}

// Extraction holds the per-field matches and the merged text they were
// searched in.
type Extraction struct {
	Fields map[string]Match
	Merged string
}

// Get returns the match for field.
func (e Extraction) Get(field string) Match { return e.Fields[field] }

// Extractor applies an ordered set of rules to a two-channel model response.
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an Extractor.
func NewExtractor(rules ...Rule) *Extractor {
	return &Extractor{rules: rules}
}

// Extract searches the answer channel first and falls back to the merged
// text for any field the answer does not contain.
func (e *Extractor) Extract(resp domain.ChatResponse) Extraction {
	clean := strings.TrimSpace(resp.Content)
	merged := MergeChannels(resp.Content, resp.Thinking)

	out := Extraction{Fields: make(map[string]Match, len(e.rules)), Merged: merged}
	for _, r := range e.rules {
		v, ok := "", false
		if clean != "" {
			v, ok = lastMatch(r.Pattern, clean)
		}
		if !ok {
			v, ok = lastMatch(r.Pattern, merged)
		}
		if !ok {
			v = r.Default
		}
		out.Fields[r.Field] = Match{Value: v, Found: ok}
	}
	return out
}

// Reasoning returns the matched rationale, trimmed and capped, or a capped
// excerpt of the merged text with thinking blocks removed.
func (e Extraction) Reasoning(field string) string {
	if m := e.Fields[field]; m.Found {
		return domain.Truncate(strings.TrimSpace(m.Value), domain.MaxReasoningLen)
	}
	return domain.Truncate(StripThink(e.Merged), fallbackReasoningLen)
}

// MergeChannels joins the answer and thinking channels into one searchable
// text. When both are present the thinking is wrapped in <think> tags and
// placed first.
func MergeChannels(content, thinking string) string {
	c, t := strings.TrimSpace(content), strings.TrimSpace(thinking)
	switch {
	case t == "":
		return c
	case c == "":
		return t
	default:
		return "<think>" + t + "</think>\n" + c
	}
}

// StripThink removes every <think>...</think> block and trims the result.
func StripThink(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

func lastMatch(re *regexp.Regexp, s string) (string, bool) {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return "", false
	}
	last := all[len(all)-1]
	if len(last) < 2 {
		return "", false
	}
	return last[1], true
}
