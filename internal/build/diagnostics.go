// Package build implements diagnostics parsing and the Cargo build
// intercept: turning compiler JSON messages into per-file diagnostics and
// code-action suggestions, and wrapping Cargo's child-process invocation so
// the RLS can capture argv/env for the primary crate.
//
// Grounded on the original pipeline (internal/indexing/pipeline.go,
// pipeline_processor.go: a worker that turns one raw unit of work -- there
// a file, here a compiler message -- into a structured result) and its
// watcher (internal/indexing/watcher.go: fsnotify + doublestar glob
// filtering), generalized from "reindex a file" to "rebuild a crate".
package build

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity mirrors rustc's diagnostic levels closely enough to apply the
// "secondary spans become Information" rule.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "information"
	SeverityHint    Severity = "hint"
)

// Diagnostic is one file-anchored problem report.
type Diagnostic struct {
	File      string
	LineStart int
	ColStart  int
	LineEnd   int
	ColEnd    int
	Severity  Severity
	Message   string
	Code      string
	IsPrimary bool
}

// Suggestion is a compiler "help" child lifted into a code action, keyed by
// the span it applies to.
type Suggestion struct {
	File      string
	LineStart int
	ColStart  int
	LineEnd   int
	ColEnd    int
	Label     string
	NewText   string
}

// rustcSpan is the span shape inside a rustc JSON message.
type rustcSpan struct {
	FileName             string  `json:"file_name"`
	LineStart            int     `json:"line_start"`
	LineEnd              int     `json:"line_end"`
	ColumnStart          int     `json:"column_start"`
	ColumnEnd            int     `json:"column_end"`
	IsPrimary            bool    `json:"is_primary"`
	Label                *string `json:"label"`
	SuggestedReplacement *string `json:"suggested_replacement"`
}

// rustcMessage is the top-level `{"$message_type":"diagnostic",...}` shape
// Cargo emits with `--message-format=json`.
type rustcMessage struct {
	Message  string         `json:"message"`
	Code     *rustcCode     `json:"code"`
	Level    string         `json:"level"`
	Spans    []rustcSpan    `json:"spans"`
	Children []rustcMessage `json:"children"`
}

type rustcCode struct {
	Code string `json:"code"`
}

// ParseCargoOutput scans newline-delimited Cargo `--message-format=json`
// output, extracting compiler-message diagnostics (ignoring build-script
// and artifact-notification lines it can't parse as a compiler message).
func ParseCargoOutput(output []byte) ([]Diagnostic, []Suggestion) {
	var diags []Diagnostic
	var suggestions []Suggestion

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var envelope struct {
			Reason  string       `json:"reason"`
			Message rustcMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			continue
		}
		if envelope.Reason != "compiler-message" {
			continue
		}
		d, s := parseMessage(envelope.Message, false)
		diags = append(diags, d...)
		suggestions = append(suggestions, s...)
	}
	return diags, suggestions
}

func parseMessage(msg rustcMessage, secondary bool) ([]Diagnostic, []Suggestion) {
	var diags []Diagnostic
	var suggestions []Suggestion

	level := severityFor(msg.Level, secondary)
	code := ""
	if msg.Code != nil {
		code = msg.Code.Code
	}

	for _, sp := range msg.Spans {
		sevForSpan := level
		if !sp.IsPrimary && !secondary {
			sevForSpan = SeverityInfo
		}
		diags = append(diags, Diagnostic{
			File:      sp.FileName,
			LineStart: sp.LineStart,
			ColStart:  sp.ColumnStart,
			LineEnd:   sp.LineEnd,
			ColEnd:    sp.ColumnEnd,
			Severity:  sevForSpan,
			Message:   msg.Message,
			Code:      code,
			IsPrimary: sp.IsPrimary,
		})
		if sp.SuggestedReplacement != nil {
			suggestions = append(suggestions, Suggestion{
				File:      sp.FileName,
				LineStart: sp.LineStart,
				ColStart:  sp.ColumnStart,
				LineEnd:   sp.LineEnd,
				ColEnd:    sp.ColumnEnd,
				Label:     suggestionLabel(sp),
				NewText:   *sp.SuggestedReplacement,
			})
		}
	}

	for _, child := range msg.Children {
		d, s := parseMessage(child, true)
		diags = append(diags, d...)
		suggestions = append(suggestions, s...)
	}

	return diags, suggestions
}

// suggestionLabel encodes the "Add `x`" vs "Change to `x`" rule, including
// the target line number when the hint lands on a different line than
// its label implies.
func suggestionLabel(sp rustcSpan) string {
	replacement := ""
	if sp.SuggestedReplacement != nil {
		replacement = *sp.SuggestedReplacement
	}
	verb := "Change to"
	if sp.ColumnStart == sp.ColumnEnd && sp.LineStart == sp.LineEnd {
		verb = "Add"
	}
	label := fmt.Sprintf("%s `%s`", verb, replacement)
	if sp.Label != nil && *sp.Label != "" {
		label = fmt.Sprintf("%s (%s)", label, *sp.Label)
	}
	if sp.LineStart != sp.LineEnd {
		label = fmt.Sprintf("%s [line %d]", label, sp.LineStart)
	}
	return label
}

func severityFor(level string, secondary bool) Severity {
	if secondary {
		return SeverityInfo
	}
	switch level {
	case "error", "error: internal compiler error":
		return SeverityError
	case "warning":
		return SeverityWarning
	case "note", "help":
		return SeverityInfo
	default:
		return SeverityHint
	}
}

// ByFile groups diagnostics by file, the shape publishDiagnostics needs: a
// full-replace set per file, with files no longer reported mapped to an
// empty slice so callers publish a clear for them.
func ByFile(diags []Diagnostic, previousFiles []string) map[string][]Diagnostic {
	grouped := make(map[string][]Diagnostic)
	for _, f := range previousFiles {
		grouped[f] = nil
	}
	for _, d := range diags {
		grouped[d.File] = append(grouped[d.File], d)
	}
	return grouped
}
