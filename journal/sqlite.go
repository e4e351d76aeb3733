package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, symbol, side, units, entry_price, exit_price, entry_time, exit_time, realized_pl, commission, strategy, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Symbol, t.Side, t.Units, t.EntryPrice,
		t.ExitPrice, t.EntryTime, t.ExitTime, t.RealizedPL, t.Commission,
		t.Strategy, t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, cash, equity, open_positions)
		VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Cash, e.Equity, e.Open,
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, created, strategy, symbols, start_time, end_time, start_cash, final_equity, net_pl, return_pct, trades, wins, losses, win_rate, profit_factor, max_drawdown_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Strategy, r.Symbols, r.Start, r.End,
		r.StartCash, r.FinalEquity, r.NetPL, r.ReturnPct,
		r.Trades, r.Wins, r.Losses, r.WinRate, r.ProfitFactor,
		r.MaxDrawdownPct, r.Sharpe,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
