package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vkoshel/tradegate/internal/journal"
	"github.com/vkoshel/tradegate/internal/risk"
)

// ConsoleReporter renders trade history and risk state as terminal
// tables.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a console reporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// PrintTrades renders the journal trade history, newest first.
func (r *ConsoleReporter) PrintTrades(trades []journal.TradeRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("TRADE HISTORY")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Opened", "Symbol", "Side", "Size", "Entry", "Exit", "PnL", "Status"})
	for _, tr := range trades {
		exit := tr.ExitPrice
		pnl := tr.PnL
		if tr.Status == journal.StatusOpen {
			exit = "-"
			pnl = "-"
		}
		t.AppendRow(table.Row{
			tr.OpenedAt.Format("2006-01-02 15:04"),
			tr.Symbol,
			tr.Side,
			tr.Size,
			tr.EntryPrice,
			exit,
			pnl,
			tr.Status,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 7, Align: text.AlignRight},
	})

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintRiskStatus renders the accountant snapshot.
func (r *ConsoleReporter) PrintRiskStatus(st risk.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("RISK STATUS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📉 Daily Loss", st.DailyLoss.StringFixed(2)},
		{"📉 Weekly Loss", st.WeeklyLoss.StringFixed(2)},
		{"📉 Monthly Loss", st.MonthlyLoss.StringFixed(2)},
		{"💰 Realized Profit", st.Profit.StringFixed(2)},
		{"📊 Open Positions", fmt.Sprintf("%d", len(st.Positions))},
		{"📊 Open Orders", fmt.Sprintf("%d", st.OpenOrders)},
		{"🎯 Open Exposure", st.OpenExposure.StringFixed(2)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 15, Align: text.AlignRight},
	})

	t.Render()
	fmt.Fprintln(r.out)

	if len(st.Positions) == 0 {
		return
	}

	p := table.NewWriter()
	p.SetOutputMirror(r.out)
	p.SetTitle("OPEN POSITIONS")
	p.SetStyle(table.StyleRounded)
	p.AppendHeader(table.Row{"Symbol", "Size", "Entry", "Stop Loss", "Opened"})
	for _, pos := range st.Positions {
		stop := pos.StopLoss.String()
		if pos.StopLoss.IsZero() {
			stop = "-"
		}
		p.AppendRow(table.Row{
			pos.Symbol,
			pos.Size.String(),
			pos.EntryPrice.String(),
			stop,
			pos.OpenedAt.Format("2006-01-02 15:04"),
		})
	}
	p.Render()
	fmt.Fprintln(r.out)
}
