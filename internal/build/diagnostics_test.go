package build

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCargoOutputExtractsPrimaryAndSecondarySpans(t *testing.T) {
	output := `{"reason":"compiler-message","message":{"message":"unused variable: ` + "`x`" + `","code":{"code":"unused_variables"},"level":"warning","spans":[{"file_name":"src/main.rs","line_start":3,"line_end":3,"column_start":9,"column_end":10,"is_primary":true,"label":null,"suggested_replacement":null}],"children":[{"message":"consider prefixing with underscore","code":null,"level":"help","spans":[{"file_name":"src/main.rs","line_start":3,"line_end":3,"column_start":9,"column_end":10,"is_primary":true,"label":null,"suggested_replacement":"_x"}]}]}}
{"reason":"build-script-executed","out_dir":"/tmp/x"}
not json at all
`
	diags, suggestions := ParseCargoOutput([]byte(output))

	require.Len(t, diags, 2, "one diagnostic for the warning span, one for the help child")
	require.Equal(t, SeverityWarning, diags[0].Severity)
	require.Equal(t, "unused_variables", diags[0].Code)
	require.Equal(t, SeverityInfo, diags[1].Severity, "child messages are always Information")

	require.Len(t, suggestions, 1)
	require.Equal(t, "_x", suggestions[0].NewText)
	require.Contains(t, suggestions[0].Label, "Change to")
}

func TestParseCargoOutputMarksNonPrimarySpansInformation(t *testing.T) {
	output := `{"reason":"compiler-message","message":{"message":"mismatched types","code":null,"level":"error","spans":[{"file_name":"src/lib.rs","line_start":1,"line_end":1,"column_start":1,"column_end":2,"is_primary":true,"label":null,"suggested_replacement":null},{"file_name":"src/lib.rs","line_start":5,"line_end":5,"column_start":1,"column_end":2,"is_primary":false,"label":null,"suggested_replacement":null}],"children":[]}}
`
	diags, _ := ParseCargoOutput([]byte(output))
	require.Len(t, diags, 2)
	require.Equal(t, SeverityError, diags[0].Severity)
	require.Equal(t, SeverityInfo, diags[1].Severity)
}

func TestByFileClearsFilesNoLongerReported(t *testing.T) {
	diags := []Diagnostic{{File: "a.rs", Message: "x"}}
	grouped := ByFile(diags, []string{"a.rs", "b.rs"})

	require.Len(t, grouped["a.rs"], 1)
	require.Empty(t, grouped["b.rs"], "b.rs had diagnostics before but none now, so it must publish an empty clear")
}
