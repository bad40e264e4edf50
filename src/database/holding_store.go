package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/utils"
)

// HoldingStore persists canonical holdings in the equity_holdings and
// mutual_fund_holdings tables.
type HoldingStore struct {
	db *DB
}

func NewHoldingStore(db *DB) *HoldingStore {
	return &HoldingStore{db: db}
}

// DeleteEquity removes every equity row of the scope and reports how many went.
func (s *HoldingStore) DeleteEquity(ctx context.Context, f models.ScopeFilter) (int64, error) {
	return s.deleteScope(ctx, "equity_holdings", f)
}

// DeleteMutualFunds removes every mutual fund row of the scope.
func (s *HoldingStore) DeleteMutualFunds(ctx context.Context, f models.ScopeFilter) (int64, error) {
	return s.deleteScope(ctx, "mutual_fund_holdings", f)
}

func (s *HoldingStore) deleteScope(ctx context.Context, table string, f models.ScopeFilter) (int64, error) {
	query := s.db.Dialect.Rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE user_id = ? AND broker_platform = ? AND member_id = ?", table))
	res, err := s.db.ExecContext(ctx, query, f.UserID, f.BrokerPlatform, f.MemberID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// InsertEquity stores records in one transaction. An empty slice is a no-op.
func (s *HoldingStore) InsertEquity(ctx context.Context, records []models.EquityRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := s.db.Dialect.Rebind(`INSERT INTO equity_holdings (
		user_id, member_id, broker_platform, symbol, company_name, isin, sector,
		quantity, average_price, current_price, invested_amount, current_value,
		import_date, import_batch, raw
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	return s.inTx(ctx, query, len(records), func(stmt *sql.Stmt, i int) error {
		r := records[i]
		_, err := stmt.ExecContext(ctx,
			r.UserID, r.MemberID, r.BrokerPlatform, r.Symbol, r.CompanyName, r.ISIN, r.Sector,
			r.Quantity.String(), r.AveragePrice.String(), r.CurrentPrice.String(),
			r.InvestedAmount.String(), r.CurrentValue.String(),
			utils.FormatDate(r.ImportDate), r.ImportBatch, nullableRaw(r.Raw),
		)
		if err != nil {
			return fmt.Errorf("failed to insert equity holding %s: %w", r.Symbol, err)
		}
		return nil
	})
}

// InsertMutualFunds stores records in one transaction. An empty slice is a no-op.
func (s *HoldingStore) InsertMutualFunds(ctx context.Context, records []models.MutualFundRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := s.db.Dialect.Rebind(`INSERT INTO mutual_fund_holdings (
		user_id, member_id, broker_platform, scheme_name, scheme_code, folio_number, fund_house,
		units, average_nav, current_nav, invested_amount, current_value,
		import_date, import_batch, raw
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	return s.inTx(ctx, query, len(records), func(stmt *sql.Stmt, i int) error {
		r := records[i]
		_, err := stmt.ExecContext(ctx,
			r.UserID, r.MemberID, r.BrokerPlatform, r.SchemeName, r.SchemeCode, r.FolioNumber, r.FundHouse,
			r.Units.String(), r.AverageNAV.String(), r.CurrentNAV.String(),
			r.InvestedAmount.String(), r.CurrentValue.String(),
			utils.FormatDate(r.ImportDate), r.ImportBatch, nullableRaw(r.Raw),
		)
		if err != nil {
			return fmt.Errorf("failed to insert mutual fund holding %s: %w", r.SchemeName, err)
		}
		return nil
	})
}

// inTx prepares query once and runs exec for each of n rows.
func (s *HoldingStore) inTx(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logger.L.Error("Transaction rollback failed", "error", rbErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListEquity returns the user's equity rows, newest import first. An empty
// memberID returns every member.
func (s *HoldingStore) ListEquity(ctx context.Context, userID, memberID string) ([]models.EquityRecord, error) {
	query, args := listQuery(`SELECT id, user_id, member_id, broker_platform, symbol, company_name,
		COALESCE(isin, ''), COALESCE(sector, ''), quantity, average_price, current_price,
		invested_amount, current_value, import_date, import_batch, COALESCE(raw, '')
		FROM equity_holdings`, "symbol", userID, memberID)

	rows, err := s.db.QueryContext(ctx, s.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity holdings: %w", err)
	}
	defer rows.Close()

	records := []models.EquityRecord{}
	for rows.Next() {
		var r models.EquityRecord
		var d decimalColumns
		var importDate, raw string
		if err := rows.Scan(&r.ID, &r.UserID, &r.MemberID, &r.BrokerPlatform, &r.Symbol, &r.CompanyName,
			&r.ISIN, &r.Sector, &d.a, &d.b, &d.c, &d.invested, &d.current, &importDate, &r.ImportBatch, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan equity holding: %w", err)
		}
		vals, err := d.parse()
		if err != nil {
			return nil, fmt.Errorf("equity holding %d: %w", r.ID, err)
		}
		r.Quantity, r.AveragePrice, r.CurrentPrice, r.InvestedAmount, r.CurrentValue = vals[0], vals[1], vals[2], vals[3], vals[4]
		if r.ImportDate, err = utils.ParseDate(importDate); err != nil {
			return nil, fmt.Errorf("equity holding %d: %w", r.ID, err)
		}
		if raw != "" {
			r.Raw = json.RawMessage(raw)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListMutualFunds returns the user's mutual fund rows, newest import first.
func (s *HoldingStore) ListMutualFunds(ctx context.Context, userID, memberID string) ([]models.MutualFundRecord, error) {
	query, args := listQuery(`SELECT id, user_id, member_id, broker_platform, scheme_name,
		COALESCE(scheme_code, ''), COALESCE(folio_number, ''), COALESCE(fund_house, ''),
		units, average_nav, current_nav, invested_amount, current_value, import_date, import_batch, COALESCE(raw, '')
		FROM mutual_fund_holdings`, "scheme_name", userID, memberID)

	rows, err := s.db.QueryContext(ctx, s.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mutual fund holdings: %w", err)
	}
	defer rows.Close()

	records := []models.MutualFundRecord{}
	for rows.Next() {
		var r models.MutualFundRecord
		var d decimalColumns
		var importDate, raw string
		if err := rows.Scan(&r.ID, &r.UserID, &r.MemberID, &r.BrokerPlatform, &r.SchemeName,
			&r.SchemeCode, &r.FolioNumber, &r.FundHouse,
			&d.a, &d.b, &d.c, &d.invested, &d.current, &importDate, &r.ImportBatch, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan mutual fund holding: %w", err)
		}
		vals, err := d.parse()
		if err != nil {
			return nil, fmt.Errorf("mutual fund holding %d: %w", r.ID, err)
		}
		r.Units, r.AverageNAV, r.CurrentNAV, r.InvestedAmount, r.CurrentValue = vals[0], vals[1], vals[2], vals[3], vals[4]
		if r.ImportDate, err = utils.ParseDate(importDate); err != nil {
			return nil, fmt.Errorf("mutual fund holding %d: %w", r.ID, err)
		}
		if raw != "" {
			r.Raw = json.RawMessage(raw)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestImportDate returns the newest import date stored for the user on a
// platform across both tables. ok is false when nothing was imported yet.
func (s *HoldingStore) LatestImportDate(ctx context.Context, userID, platform string) (time.Time, bool, error) {
	query := s.db.Dialect.Rebind(`SELECT MAX(d) FROM (
		SELECT MAX(import_date) AS d FROM equity_holdings WHERE user_id = ? AND broker_platform = ?
		UNION ALL
		SELECT MAX(import_date) AS d FROM mutual_fund_holdings WHERE user_id = ? AND broker_platform = ?
	) latest`)

	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, query, userID, platform, userID, platform).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest import: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, false, nil
	}
	t, err := utils.ParseDate(latest.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func listQuery(base, nameColumn, userID, memberID string) (string, []any) {
	query := base + " WHERE user_id = ?"
	args := []any{userID}
	if memberID != "" {
		query += " AND member_id = ?"
		args = append(args, memberID)
	}
	return query + " ORDER BY import_date DESC, " + nameColumn + " ASC, id ASC", args
}

// decimalColumns holds the five TEXT amount columns shared by both tables.
type decimalColumns struct {
	a, b, c, invested, current string
}

func (d decimalColumns) parse() ([5]decimal.Decimal, error) {
	var out [5]decimal.Decimal
	for i, s := range []string{d.a, d.b, d.c, d.invested, d.current} {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return out, fmt.Errorf("bad decimal %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
