package schema

import (
	"encoding/json"
	"strings"
)

// MultilineString is a string that nbformat may store either as one string
// or as a list of line strings.
type MultilineString string

// UnmarshalJSON accepts a string or a list of strings. Lists are joined
// as-is; nbformat lines keep their trailing newline.
func (m *MultilineString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var lines []string
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
		*m = MultilineString(joinLines(lines))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = MultilineString(s)
	return nil
}

// MarshalJSON always writes a single string.
func (m MultilineString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// String returns the joined text.
func (m MultilineString) String() string {
	return string(m)
}

// joinLines joins lines, inserting a newline only where a line does not
// already end with one.
func joinLines(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		b.WriteString(line)
		if i < len(lines)-1 && !strings.HasSuffix(line, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
