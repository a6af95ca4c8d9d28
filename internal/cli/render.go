package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/valutahub/internal/domain"
	"github.com/valutatrade/valutahub/internal/portfolio"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	titleStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true)

	totalStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true)

	tableStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(0, 1)
)

func renderPortfolio(username string, lines []portfolio.Line, total decimal.Decimal, base string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-8s %18s %16s %14s\n",
		"CODE", "BALANCE", "RATE (USD)", fmt.Sprintf("VALUE (%s)", base)))
	if len(lines) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, line := range lines {
		b.WriteString(fmt.Sprintf("%-8s %18s %16s %14s\n",
			line.Code, line.Balance.String(), line.RateUSD.StringFixed(2), line.ValueUSD.StringFixed(2)))
	}

	out := titleStyle.Render(fmt.Sprintf("Portfolio of %s", username)) + "\n" +
		tableStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" +
		totalStyle.Render(fmt.Sprintf("Total: %s %s", total.StringFixed(2), base)) + "\n"
	return out
}

func renderRates(entries []domain.RateEntry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-8s %18s %-12s %s\n", "CODE", "RATE (USD)", "SOURCE", "FETCHED"))
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%-8s %18s %-12s %s\n",
			e.Code, e.RateUSD.String(), e.Source, e.FetchedAt.Format("2006-01-02 15:04:05")))
	}

	return titleStyle.Render("Cached exchange rates") + "\n" +
		tableStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func renderHistory(trades []domain.TradeRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-20s %-5s %-6s %18s %16s %14s\n",
		"TIME", "SIDE", "CODE", "AMOUNT", "RATE (USD)", "COST (USD)"))
	for _, t := range trades {
		b.WriteString(fmt.Sprintf("%-20s %-5s %-6s %18s %16s %14s\n",
			t.Timestamp.Format("2006-01-02 15:04:05"), t.Side, t.Currency,
			t.Amount.String(), t.RateUSD.StringFixed(2), t.CostUSD.StringFixed(2)))
	}

	return titleStyle.Render("Trade history") + "\n" +
		tableStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}
