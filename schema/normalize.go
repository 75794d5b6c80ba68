package schema

import (
	"fmt"
	"strings"
)

// NormalizeCellType validates a cell type name.
func NormalizeCellType(value string) (CellType, error) {
	switch CellType(strings.TrimSpace(strings.ToLower(value))) {
	case CellTypeCode:
		return CellTypeCode, nil
	case CellTypeMarkdown:
		return CellTypeMarkdown, nil
	case CellTypeRaw:
		return CellTypeRaw, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCellType, value)
	}
}

// ValidateCellID ensures an id matches [a-zA-Z0-9-_]{1,64}.
func ValidateCellID(id CellID) error {
	raw := string(id)
	if raw == "" || len(raw) > 64 {
		return ErrInvalidCellID
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '-' || r == '_' {
			continue
		}
		return ErrInvalidCellID
	}
	return nil
}

// NormalizeTags trims tags, dropping empties and duplicates while keeping
// first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeNewlines converts CRLF line endings to LF. Lone carriage returns
// are kept; renderers treat them as line overwrites.
func NormalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
