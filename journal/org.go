package journal

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for
// pasting into a journal. It purposely includes narrative placeholders
// (Thesis/Execution/Review) while keeping all structured facts in a
// PROPERTIES drawer for easy search.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Symbol, t.Side, shortID(t.TradeID))
	// Use RFC3339 for copy/paste friendliness.
	entry := t.EntryTime.UTC().Format(time.RFC3339)
	exit := t.ExitTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", t.RunID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":UNITS: %.0f\n", t.Units))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.2f\n", t.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.2f\n", t.ExitPrice))
	b.WriteString(fmt.Sprintf(":ENTRY_TIME: %s\n", entry))
	b.WriteString(fmt.Sprintf(":EXIT_TIME: %s\n", exit))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	b.WriteString(fmt.Sprintf(":COMMISSION: %.2f\n", t.Commission))
	b.WriteString(fmt.Sprintf(":STRATEGY: %s\n", t.Strategy))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

var runOrgFuncs = template.FuncMap{
	"mul100":  func(x float64) float64 { return x * 100.0 },
	"shortID": shortID,
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrgTmpl = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(runOrgTemplate))

// FormatRunOrg renders a run summary with its trade table as an
// Org-mode subtree.
func FormatRunOrg(r RunRecord, trades []TradeRecord) (string, error) {
	buf := new(bytes.Buffer)
	err := runOrgTmpl.Execute(buf, struct {
		Run    RunRecord
		Trades []TradeRecord
	}{r, trades})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExportRunOrg loads a run and its trades and returns the Org block.
func (j *SQLite) ExportRunOrg(runID string) (string, error) {
	run, err := j.GetRun(runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRun(runID)
	if err != nil {
		return "", err
	}
	return FormatRunOrg(run, trades)
}

const runOrgTemplate = `* BACKTEST: {{.Run.Strategy}} {{.Run.Symbols}}
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:STRATEGY:    {{.Run.Strategy}}
:SYMBOLS:     {{.Run.Symbols}}
:START_DATE:  {{.Run.Start.Format "2006-01-02"}}
:END_DATE:    {{.Run.End.Format "2006-01-02"}}
:START_CASH:  {{printf "%.2f" .Run.StartCash}}
:FINAL_EQ:    {{printf "%.2f" .Run.FinalEquity}}
:NET_PL:      {{printf "%.2f" .Run.NetPL}}
:RETURN_PCT:  {{printf "%.2f" .Run.ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .Run.MaxDrawdownPct}}
:TRADES:      {{.Run.Trades}}
:WINS:        {{.Run.Wins}}
:LOSSES:      {{.Run.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Run.WinRate)}}
:PROFIT_FAC:  {{printf "%.2f" .Run.ProfitFactor}}
:SHARPE:      {{printf "%.2f" .Run.Sharpe}}
:CREATED:     [{{(orTime .Run.Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:       *{{printf "%.2f" .Run.NetPL}}*
- Return:        *{{printf "%.2f" .Run.ReturnPct}}%*
- Max Drawdown:  *{{printf "%.2f" .Run.MaxDrawdownPct}}%*
- Win Rate:      *{{printf "%.2f" (mul100 .Run.WinRate)}}%*
- Profit Factor: *{{printf "%.2f" .Run.ProfitFactor}}*
- Sharpe:        *{{printf "%.2f" .Run.Sharpe}}*

** Trades
{{- if .Trades}}
| Trade | Symbol | Side | Units | Entry | Exit | P/L | Reason |
|-------+--------+------+-------+-------+------+-----+--------|
{{- range .Trades}}
| {{shortID .TradeID}} | {{.Symbol}} | {{.Side}} | {{printf "%.0f" .Units}} | {{printf "%.2f" .EntryPrice}} | {{printf "%.2f" .ExitPrice}} | {{printf "%.2f" .RealizedPL}} | {{.Reason}} |
{{- end}}
{{- else}}
(no trades)
{{- end}}
`
