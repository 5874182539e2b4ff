package ids

import "github.com/standardbeagle/rls-core/internal/encoding"

// ShortCode renders id as a base-63 string for log lines. Never used on
// the wire: LSP-facing ids stay JSON numbers.
func (id GlobalId) ShortCode() string {
	return encoding.Base63Encode(uint64(id))
}

// ParseShortCode is the inverse of ShortCode.
func ParseShortCode(code string) (GlobalId, error) {
	v, err := encoding.Base63Decode(code)
	if err != nil {
		return 0, err
	}
	return GlobalId(v), nil
}
