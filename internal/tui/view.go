package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"visaintake/internal/intake/models"
)

const labelWidth = 34

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	tabStyle      = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#888888"))
	activeTab     = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#5B8DEF"))
	labelStyle    = lipgloss.NewStyle().Width(labelWidth + 2)
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347"))
	readyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	requiredTag   = missingStyle.Render("*")
	documentGroup = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#AAAAAA"))
)

// View renders the session.
func (m *Model) View() string {
	agg := m.aggregator()
	if agg == nil {
		return errorStyle.Render("session closed") + "\n"
	}

	sections := []string{titleStyle.Render("VISA APPLICATION"), m.renderTabs(agg.IDs())}

	rec, ok := m.record()
	if ok {
		sections = append(sections, boxStyle.Render(m.renderTraveler(rec)))
	}

	sections = append(sections, m.renderSummary(agg.IsAllValid()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) renderTabs(ids []int) string {
	tabs := make([]string, 0, len(ids))
	for _, id := range ids {
		label := fmt.Sprintf("Traveler %d", id)
		if id == models.PrimaryTravelerID {
			label = "Primary"
		}
		if id == m.traveler {
			tabs = append(tabs, activeTab.Render(label))
			continue
		}
		tabs = append(tabs, tabStyle.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderTraveler(rec models.TravelerRecord) string {
	var b strings.Builder
	rows := m.rows()
	general := len(identityRows) + len(rec.Documents.General)

	for i, r := range rows {
		if i == len(identityRows) {
			b.WriteString(documentGroup.Render("general documents") + "\n")
		}
		if i == general && len(rec.Documents.Specific.Slots) > 0 {
			b.WriteString(documentGroup.Render(rec.VisaType.String()+" documents") + "\n")
		}

		pointer := "  "
		if i == m.cursor {
			pointer = cursorStyle.Render("> ")
		}
		b.WriteString(pointer + labelStyle.Render(truncate(r.label, labelWidth)) + m.renderValue(rec, r, i) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderValue(rec models.TravelerRecord, r row, i int) string {
	if m.editing && i == m.cursor {
		return m.input.View()
	}
	switch r.kind {
	case rowVisaType:
		if !rec.VisaType.IsKnown() {
			return missingStyle.Render("choose with ←/→")
		}
		return rec.VisaType.String()
	case rowDocument:
		slot, ok := rec.Documents.Lookup(r.key)
		if !ok {
			return ""
		}
		if slot.Satisfied() {
			return readyStyle.Render("✓ ") + slot.DisplayName()
		}
		if slot.Required() {
			return requiredTag + missingStyle.Render(" missing")
		}
		return "optional"
	}
	return m.fieldValue(r.key)
}

func (m *Model) renderSummary(valid bool) string {
	var lines []string
	switch {
	case m.submitting:
		lines = append(lines, missingStyle.Render("submitting..."))
	case valid:
		lines = append(lines, readyStyle.Render("all travelers complete · ctrl+s to submit"))
	default:
		lines = append(lines, missingStyle.Render("incomplete"))
		if agg := m.aggregator(); agg != nil {
			for _, p := range agg.Problems() {
				fields := make([]string, 0, len(p.Problems))
				for _, fe := range p.Problems {
					fields = append(fields, fe.Field)
				}
				lines = append(lines, fmt.Sprintf("  traveler %d: %s", p.TravelerID, strings.Join(fields, ", ")))
			}
		}
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render(m.err.Error()))
	}
	lines = append(lines, footerStyle.Render(m.status))
	return strings.Join(lines, "\n")
}

func joinPhones(phones []string) string {
	return strings.Join(phones, ",")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
