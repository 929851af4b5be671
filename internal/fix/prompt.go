package fix

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	removedStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("160"))
	addedStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("34"))
	noteStyle    = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#626262"))
	warnStyle    = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("214"))
)

const (
	optApply    = "Apply"
	optSkip     = "Skip"
	optApplyAll = "Apply all remaining"
	optQuit     = "Quit"
)

// SurveyPrompter previews a proposal on Out and asks on the terminal.
type SurveyPrompter struct {
	Out  io.Writer
	opts []survey.AskOpt
}

func NewSurveyPrompter(out io.Writer, opts ...survey.AskOpt) *SurveyPrompter {
	return &SurveyPrompter{Out: out, opts: opts}
}

func (p *SurveyPrompter) Decide(pr Proposal) (Decision, error) {
	fmt.Fprintln(p.Out, Preview(pr))

	options := []string{optApply, optSkip, optApplyAll, optQuit}
	if !pr.Result.StructurallyValid {
		options = []string{optSkip, optApplyAll, optQuit}
	}
	var answer string
	prompt := &survey.Select{Message: "Apply this fix?", Options: options, Default: options[0]}
	opts := append([]survey.AskOpt{survey.WithValidator(survey.Required)}, p.opts...)
	if err := survey.AskOne(prompt, &answer, opts...); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return DecisionQuit, nil
		}
		return DecisionQuit, err
	}
	switch answer {
	case optApply:
		return DecisionApply, nil
	case optApplyAll:
		return DecisionApplyAll, nil
	case optQuit:
		return DecisionQuit, nil
	}
	return DecisionSkip, nil
}

// Preview renders a proposal as a small styled diff.
func Preview(pr Proposal) string {
	v := pr.Violation
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("[%d/%d] %s  %s:%d (%s)", pr.Index, pr.Total, v.RuleID, v.FilePath, v.LineNumber, v.Severity)))
	b.WriteString("\n")
	for _, l := range strings.Split(pr.Result.OriginalText, "\n") {
		b.WriteString(removedStyle.Render("- "+l) + "\n")
	}
	for _, l := range strings.Split(pr.Result.FixedText, "\n") {
		b.WriteString(addedStyle.Render("+ "+l) + "\n")
	}
	b.WriteString(noteStyle.Render(fmt.Sprintf("confidence %.2f", pr.Result.Confidence)))
	switch pr.Status {
	case StatusInvalid:
		b.WriteString("\n" + warnStyle.Render("structural check failed: this fix cannot be applied"))
	case StatusLowConfidence:
		b.WriteString("\n" + warnStyle.Render("low confidence: review before applying"))
	}
	return b.String()
}
