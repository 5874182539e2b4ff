package handlers

import (
	"github.com/standardbeagle/rls-core/internal/build"
	"github.com/standardbeagle/rls-core/internal/span"
)

// PublishDiagnosticsParams is the `textDocument/publishDiagnostics`
// notification body.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func diagnosticSeverity(sev build.Severity) int {
	switch sev {
	case build.SeverityError:
		return 1
	case build.SeverityWarning:
		return 2
	case build.SeverityInfo:
		return 3
	default:
		return 4
	}
}

func toLSPDiagnostic(d build.Diagnostic) Diagnostic {
	return Diagnostic{
		Range: span.Range{
			Start: span.Position{Line: uint32(d.LineStart - 1), Character: uint32(d.ColStart - 1)},
			End:   span.Position{Line: uint32(d.LineEnd - 1), Character: uint32(d.ColEnd - 1)},
		},
		Severity: diagnosticSeverity(d.Severity),
		Code:     d.Code,
		Message:  d.Message,
	}
}

// BuildDiagnostics turns one build's raw diagnostics into the
// publishDiagnostics notifications the caller should send, tracking which
// files currently carry non-empty diagnostics so a file that clears gets
// an empty-list notification rather than silence.
func (s *Server) BuildDiagnostics(diags []build.Diagnostic) []PublishDiagnosticsParams {
	s.mu.Lock()
	previous := make([]string, 0, len(s.diagFiles))
	for f := range s.diagFiles {
		previous = append(previous, f)
	}
	s.mu.Unlock()

	grouped := build.ByFile(diags, previous)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PublishDiagnosticsParams, 0, len(grouped))
	for file, fileDiags := range grouped {
		lspDiags := make([]Diagnostic, 0, len(fileDiags))
		for _, d := range fileDiags {
			lspDiags = append(lspDiags, toLSPDiagnostic(d))
		}
		if len(fileDiags) == 0 {
			delete(s.diagFiles, file)
		} else {
			s.diagFiles[file] = true
		}
		out = append(out, PublishDiagnosticsParams{URI: span.PathToURI(file), Diagnostics: lspDiags})
	}
	return out
}
