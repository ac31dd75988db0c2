package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
)

// ClickHouseOptionStore implements the Persister contract over ClickHouse.
type ClickHouseOptionStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseOptionStore creates ClickHouse option storage.
func NewClickHouseOptionStore(db *sql.DB, table string) drepo.Persister {
	return &ClickHouseOptionStore{db: db, table: table}
}

// Persist batch-inserts the validated quote set and reports the derived PCR.
// A failed insert fails the whole unit; per-row partial writes are not
// attempted.
func (s *ClickHouseOptionStore) Persist(ctx context.Context, quotes map[string]models.QuoteFields, meta drepo.PersistMeta) (models.PersistResult, error) {
	res := models.PersistResult{OptionCount: len(quotes), PCR: computePCR(quotes)}
	if len(quotes) == 0 {
		return res, nil
	}

	now := time.Now().UTC()
	strikeCov := coverageValue(meta.Coverage.StrikeCoverage)
	fieldCov := coverageValue(meta.Coverage.FieldCoverage)

	// Chunked multi-row VALUES insert to bound statement size.
	const chunkSize = 2000
	rows := make([]row, 0, len(quotes))
	for sym, q := range quotes {
		rows = append(rows, row{symbol: sym, q: q})
	}

	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*20)
		for _, r := range rows[start:end] {
			q := r.q
			var delta, gamma, theta, vega float64
			if q.Greeks != nil {
				delta, gamma, theta, vega = q.Greeks.Delta, q.Greeks.Gamma, q.Greeks.Theta, q.Greeks.Vega
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				now,
				meta.Index,
				meta.Date,
				meta.Rule,
				r.symbol,
				q.Strike,
				q.Kind,
				q.LastPrice,
				q.AvgPrice,
				q.Volume,
				q.OI,
				q.IV,
				delta, gamma, theta, vega,
				boolToUInt8(meta.SalvageApplied),
				meta.Cycle,
				strikeCov,
				fieldCov,
			)
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (ts, index_name, expiry, rule, symbol, strike, kind, ltp, avg_price, volume, oi, iv, delta, gamma, theta, vega, salvaged, cycle, strike_coverage, field_coverage) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			res.Failed = true
			return res, fmt.Errorf("insert option quotes: %w", err)
		}
	}
	return res, nil
}

func (s *ClickHouseOptionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseOptionStore) Close() error {
	return nil // db lifetime managed by pkg
}

type row struct {
	symbol string
	q      models.QuoteFields
}

// computePCR derives put/call ratio from open interest, falling back to row
// counts when no OI was reported, and 0 when there are no calls.
func computePCR(quotes map[string]models.QuoteFields) float64 {
	var putOI, callOI int64
	var putN, callN int
	for _, q := range quotes {
		switch q.Kind {
		case "PE":
			putOI += q.OI
			putN++
		case "CE":
			callOI += q.OI
			callN++
		}
	}
	if callOI > 0 {
		return float64(putOI) / float64(callOI)
	}
	if callN > 0 {
		return float64(putN) / float64(callN)
	}
	return 0
}

func coverageValue(p *float64) float64 {
	if p == nil {
		return -1
	}
	return *p
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
