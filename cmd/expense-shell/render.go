package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/message"

	"expensetracker/internal/core"
	"expensetracker/internal/status"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	cardStyle    = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

type column struct {
	title string
	width int
	right bool
}

var entryColumns = []column{
	{title: "ID", width: 5},
	{title: "DATE", width: 11},
	{title: "NAME", width: 16},
	{title: "TYPE", width: 12},
	{title: "QTY", width: 4, right: true},
	{title: "PRICE", width: 10, right: true},
	{title: "MODE", width: 6},
	{title: "TOTAL", width: 10, right: true},
	{title: "NOTE", width: 24},
}

func cell(c column, text string) string {
	text = truncate(text, c.width-1)
	st := lipgloss.NewStyle().Width(c.width - 1)
	if c.right {
		st = st.Align(lipgloss.Right)
	}
	return st.Render(text) + " "
}

// truncate cuts s to n terminal cells.
func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "…")
}

func row(cells []string) string {
	return strings.TrimRight(strings.Join(cells, ""), " ")
}

func formatMoney(p *message.Printer, m core.Money) string {
	return p.Sprintf("%.2f", m.Float())
}

func renderEntries(p *message.Printer, entries []core.Entry) string {
	if len(entries) == 0 {
		return mutedStyle.Render("no entries") + "\n"
	}
	var b strings.Builder
	header := make([]string, len(entryColumns))
	for i, c := range entryColumns {
		header[i] = headerStyle.Render(cell(c, c.title))
	}
	b.WriteString(row(header) + "\n")
	for _, e := range entries {
		date := e.Date
		if date == "" {
			date = "-"
		}
		values := []string{
			string(e.ID),
			date,
			e.Name,
			e.Type,
			fmt.Sprint(e.Quantity),
			formatMoney(p, e.Price),
			string(e.Mode),
			formatMoney(p, e.LineTotal()),
			e.Note,
		}
		cells := make([]string, len(entryColumns))
		for i, c := range entryColumns {
			cells[i] = cell(c, values[i])
		}
		b.WriteString(row(cells) + "\n")
	}
	return b.String()
}

func renderTotal(p *message.Printer, c core.FilterCriteria, total core.Money, count int) string {
	var filters []string
	if c.SearchTerm != "" {
		filters = append(filters, fmt.Sprintf("search %q", c.SearchTerm))
	}
	if !strings.EqualFold(c.Mode, core.ModeAll) && c.Mode != "" {
		filters = append(filters, "mode "+c.Mode)
	}
	line := fmt.Sprintf("%d entries, total %s", count, formatMoney(p, total))
	if len(filters) > 0 {
		line += mutedStyle.Render(" (" + strings.Join(filters, ", ") + ")")
	}
	return line
}

func renderStats(p *message.Printer, period core.Period, snap core.StatsSnapshot, held bool) string {
	if !held {
		return mutedStyle.Render(fmt.Sprintf("no stats loaded for %s", period))
	}
	body := strings.Join([]string{
		headerStyle.Render("stats " + snap.Period().String()),
		fmt.Sprintf("total spent    %s", formatMoney(p, snap.TotalSpent)),
		fmt.Sprintf("daily average  %s", formatMoney(p, snap.AverageDailySpent)),
		fmt.Sprintf("highest        %s", formatMoney(p, snap.HighestExpense)),
	}, "\n")
	if snap.Period() != period {
		body += "\n" + mutedStyle.Render("selected "+period.String()+", not loaded yet")
	}
	return cardStyle.Render(body)
}

func renderStatus(s status.Status) string {
	switch s.Kind {
	case status.KindSuccess:
		return successStyle.Render("✓ " + s.Message)
	case status.KindFailure:
		return failureStyle.Render("✗ " + s.Message)
	default:
		return infoStyle.Render("• " + s.Message)
	}
}
