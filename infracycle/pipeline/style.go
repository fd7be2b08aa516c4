package pipeline

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console styles. Colors degrade automatically on terminals without color
// support and on captured output.
var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	ruleStyle    = lipgloss.NewStyle().Faint(true)
	stageStyle   = lipgloss.NewStyle().Bold(true)
	taskStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

const bannerWidth = 60

func banner(text string) string {
	rule := strings.Repeat("=", bannerWidth)
	pad := (bannerWidth - len(text)) / 2
	if pad < 0 {
		pad = 0
	}
	return fmt.Sprintf("%s\n%s\n%s",
		ruleStyle.Render(rule),
		bannerStyle.Render(strings.Repeat(" ", pad)+text),
		ruleStyle.Render(rule))
}
