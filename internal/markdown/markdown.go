package markdown

import "strings"

// Span represents a styled slice of text.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
}

// BlockKind classifies a line-level markdown block.
type BlockKind int

const (
	// BlockParagraph is ordinary prose.
	BlockParagraph BlockKind = iota
	// BlockHeading is an ATX heading; Level holds the number of '#'.
	BlockHeading
	// BlockListItem is a bullet or numbered list item.
	BlockListItem
	// BlockQuote is a '>' quoted line.
	BlockQuote
	// BlockCode is a line inside a fenced code block.
	BlockCode
	// BlockRule is a thematic break.
	BlockRule
	// BlockBlank is an empty line.
	BlockBlank
)

// Block is one line of a markdown cell classified for terminal display.
type Block struct {
	Kind   BlockKind
	Level  int
	Marker string
	Lang   string
	Spans  []Span
	Text   string
}

// ParseBlocks splits markdown source into display blocks, one per line.
// Fence lines themselves are dropped; code lines keep their text verbatim.
func ParseBlocks(source string) []Block {
	if source == "" {
		return nil
	}
	var blocks []Block
	fence := ""
	lang := ""
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
				lang = ""
				continue
			}
			blocks = append(blocks, Block{Kind: BlockCode, Lang: lang, Text: line})
			continue
		}
		if marker := fenceMarker(trimmed); marker != "" {
			fence = marker
			lang = strings.TrimSpace(strings.TrimLeft(trimmed, marker[:1]))
			continue
		}
		blocks = append(blocks, classify(trimmed))
	}
	return blocks
}

func fenceMarker(line string) string {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker
		}
	}
	return ""
}

func classify(line string) Block {
	if line == "" {
		return Block{Kind: BlockBlank}
	}
	if isRule(line) {
		return Block{Kind: BlockRule}
	}
	if level := headingLevel(line); level > 0 {
		text := strings.TrimSpace(strings.TrimRight(line[level:], "#"))
		return Block{Kind: BlockHeading, Level: level, Text: text, Spans: ParseInline(text)}
	}
	if strings.HasPrefix(line, ">") {
		text := strings.TrimSpace(strings.TrimPrefix(line, ">"))
		return Block{Kind: BlockQuote, Text: text, Spans: ParseInline(text)}
	}
	if marker, text, ok := listItem(line); ok {
		return Block{Kind: BlockListItem, Marker: marker, Text: text, Spans: ParseInline(text)}
	}
	return Block{Kind: BlockParagraph, Text: line, Spans: ParseInline(line)}
}

func headingLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0
	}
	if level < len(line) && line[level] != ' ' {
		return 0
	}
	return level
}

func isRule(line string) bool {
	compact := strings.ReplaceAll(line, " ", "")
	if len(compact) < 3 {
		return false
	}
	ch := compact[0]
	if ch != '-' && ch != '*' && ch != '_' {
		return false
	}
	return strings.Count(compact, string(ch)) == len(compact)
}

func listItem(line string) (string, string, bool) {
	if len(line) >= 2 && strings.ContainsRune("-*+", rune(line[0])) && line[1] == ' ' {
		return "•", strings.TrimSpace(line[2:]), true
	}
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits+1 < len(line) && (line[digits] == '.' || line[digits] == ')') && line[digits+1] == ' ' {
		return line[:digits+1], strings.TrimSpace(line[digits+2:]), true
	}
	return "", "", false
}

// ParseInline parses a subset of inline markdown (bold, italic, code).
// Supported markers: **bold**, *italic*, and `code`.
func ParseInline(input string) []Span {
	if input == "" {
		return nil
	}
	var spans []Span
	var buf strings.Builder
	bold := false
	italic := false
	code := false

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = append(spans, Span{
			Text:   buf.String(),
			Bold:   bold,
			Italic: italic,
			Code:   code,
		})
		buf.Reset()
	}

	for i := 0; i < len(input); {
		ch := input[i]
		if ch == '\\' && i+1 < len(input) && !code {
			buf.WriteByte(input[i+1])
			i += 2
			continue
		}
		if ch == '`' {
			if code {
				flush()
				code = false
				i++
				continue
			}
			if strings.Contains(input[i+1:], "`") {
				flush()
				code = true
				i++
				continue
			}
		}
		if !code && ch == '*' {
			if strings.HasPrefix(input[i:], "**") {
				if bold {
					flush()
					bold = false
					i += 2
					continue
				}
				if strings.Contains(input[i+2:], "**") {
					flush()
					bold = true
					i += 2
					continue
				}
				buf.WriteString("**")
				i += 2
				continue
			}
			if italic {
				flush()
				italic = false
				i++
				continue
			}
			if strings.Contains(input[i+1:], "*") {
				flush()
				italic = true
				i++
				continue
			}
		}
		buf.WriteByte(ch)
		i++
	}
	flush()
	return spans
}
