package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/cellpad/internal/format"
	"pkt.systems/cellpad/internal/markdown"
	"pkt.systems/cellpad/schema"
)

const defaultShowWidth = 100

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	quoteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	rawStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func newShowCmd() *cobra.Command {
	var plain bool
	var noOutputs bool
	cmd := &cobra.Command{
		Use:   "show <notebook.ipynb>",
		Short: "Print a notebook in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			file, err := openNotebookFile(ctx, args[0])
			if err != nil {
				return err
			}
			doc, err := file.document(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			width := defaultShowWidth
			styled := false
			if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				styled = !plain
				if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
					width = w
				}
			}
			p := &showPrinter{out: out, styled: styled, width: width, outputs: !noOutputs}
			return p.document(file.name, doc)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colors and styling")
	cmd.Flags().BoolVar(&noOutputs, "no-outputs", false, "hide code cell outputs")
	return cmd
}

// showPrinter writes a notebook as terminal text.
type showPrinter struct {
	out     io.Writer
	styled  bool
	width   int
	outputs bool
}

func (p *showPrinter) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *showPrinter) line(text string) error {
	_, err := fmt.Fprintln(p.out, text)
	return err
}

func (p *showPrinter) document(name string, doc schema.Document) error {
	header := name
	if spec := doc.Metadata.KernelSpec; spec != nil && spec.DisplayName != "" {
		header += " · " + spec.DisplayName
	}
	header += fmt.Sprintf(" · %d cells", len(doc.Cells))
	if err := p.line(p.render(headerStyle, header)); err != nil {
		return err
	}
	for _, cell := range doc.Cells {
		if err := p.line(p.render(ruleStyle, strings.Repeat("─", min(p.width, 80)))); err != nil {
			return err
		}
		var err error
		switch cell.CellType {
		case schema.CellTypeCode:
			err = p.code(cell)
		case schema.CellTypeMarkdown:
			err = p.markdown(cell.Source.String())
		default:
			err = p.raw(cell)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *showPrinter) code(cell schema.CellDocument) error {
	if err := p.line(p.render(promptStyle, format.InputPrompt(cell.ExecutionCount))); err != nil {
		return err
	}
	for _, src := range strings.Split(strings.TrimRight(cell.Source.String(), "\n"), "\n") {
		if err := p.line(p.render(codeStyle, src)); err != nil {
			return err
		}
	}
	if !p.outputs {
		return nil
	}
	plain := format.NewPlainRenderer()
	for _, out := range cell.Outputs {
		style := outputStyle
		if out.OutputType == schema.OutputError || (out.OutputType == schema.OutputStream && out.Name == schema.StreamStderr) {
			style = errorStyle
		}
		for _, l := range plain.FormatOutput(out) {
			if err := p.line(p.render(style, l)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *showPrinter) markdown(source string) error {
	for _, block := range markdown.ParseBlocks(source) {
		var text string
		switch block.Kind {
		case markdown.BlockHeading:
			text = p.render(headingStyle, strings.Repeat("#", block.Level)+" "+block.Text)
		case markdown.BlockListItem:
			text = "  " + block.Marker + " " + p.spans(block.Spans)
		case markdown.BlockQuote:
			text = p.render(quoteStyle, "│ "+block.Text)
		case markdown.BlockCode:
			text = p.render(codeStyle, block.Text)
		case markdown.BlockRule:
			text = p.render(ruleStyle, strings.Repeat("╌", min(p.width, 40)))
		case markdown.BlockBlank:
			text = ""
		default:
			text = p.spans(block.Spans)
		}
		if err := p.line(text); err != nil {
			return err
		}
	}
	return nil
}

func (p *showPrinter) spans(spans []markdown.Span) string {
	var b strings.Builder
	for _, span := range spans {
		if !p.styled {
			b.WriteString(span.Text)
			continue
		}
		style := lipgloss.NewStyle().Bold(span.Bold).Italic(span.Italic)
		if span.Code {
			style = codeStyle
		}
		b.WriteString(style.Render(span.Text))
	}
	return b.String()
}

func (p *showPrinter) raw(cell schema.CellDocument) error {
	lines := (&format.PlainRenderer{}).FormatCell(cell)
	for _, l := range lines {
		if err := p.line(p.render(rawStyle, l)); err != nil {
			return err
		}
	}
	return nil
}
