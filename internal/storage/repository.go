package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertOpportunitySQL = `INSERT INTO arbitrage_opportunities (
        symbol,
        nobitex_price,
        wallex_price,
        profit_percentage,
        profit_amount,
        buy_exchange,
        sell_exchange,
        detected_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	opportunityColumns = `id,
        symbol,
        nobitex_price,
        wallex_price,
        profit_percentage,
        profit_amount,
        buy_exchange,
        sell_exchange,
        detected_at,
        created_at`

	listRecentOpportunitiesSQL = `SELECT ` + opportunityColumns + `
    FROM arbitrage_opportunities
    ORDER BY detected_at DESC
    LIMIT $1;`

	listOpportunitiesBySymbolSQL = `SELECT ` + opportunityColumns + `
    FROM arbitrage_opportunities
    WHERE symbol = $1
    ORDER BY detected_at DESC
    LIMIT $2;`

	listOpportunitiesBetweenSQL = `SELECT ` + opportunityColumns + `
    FROM arbitrage_opportunities
    WHERE detected_at >= $1
      AND detected_at < $2
    ORDER BY detected_at;`

	countOpportunitiesSQL = `SELECT COUNT(*) FROM arbitrage_opportunities;`

	deleteOpportunitiesBeforeSQL = `DELETE FROM arbitrage_opportunities WHERE created_at < $1;`

	insertPriceSQL = `INSERT INTO price_data (
        symbol,
        exchange,
        price,
        observed_at
    ) VALUES (
        $1,$2,$3,$4
    );`

	listPricesBetweenSQL = `SELECT
        id,
        symbol,
        exchange,
        price,
        observed_at,
        created_at
    FROM price_data
    WHERE symbol = $1
      AND observed_at >= $2
      AND observed_at < $3
    ORDER BY observed_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// OpportunityStore defines operations for opportunity persistence.
type OpportunityStore interface {
	InsertOpportunity(ctx context.Context, rec OpportunityRecord) (OpportunityRecord, error)
	ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error)
	ListOpportunitiesBySymbol(ctx context.Context, symbol string, limit int) ([]OpportunityRecord, error)
	ListOpportunitiesBetween(ctx context.Context, from, to time.Time) ([]OpportunityRecord, error)
	CountOpportunities(ctx context.Context) (int64, error)
	DeleteOpportunitiesBefore(ctx context.Context, olderThan time.Time) error
}

// PriceStore defines operations for raw price persistence.
type PriceStore interface {
	InsertPrice(ctx context.Context, symbol, source string, price decimal.Decimal, observedAt time.Time) error
	ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PriceRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to opportunities and price history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort: the session lock dies with the connection anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertOpportunity persists a detection and returns it with id/created_at set.
func (s *Store) InsertOpportunity(ctx context.Context, rec OpportunityRecord) (OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return OpportunityRecord{}, err
	}

	row := pool.QueryRow(ctx, insertOpportunitySQL,
		rec.Symbol,
		rec.NobitexPrice.String(),
		rec.WallexPrice.String(),
		rec.ProfitPct.String(),
		rec.ProfitAmount.String(),
		rec.BuyExchange,
		rec.SellExchange,
		rec.DetectedAt,
	)

	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return OpportunityRecord{}, fmt.Errorf("insert opportunity: %w", scanErr)
	}
	return rec, nil
}

// ListRecentOpportunities lists the most recent detections first.
func (s *Store) ListRecentOpportunities(ctx context.Context, limit int) ([]OpportunityRecord, error) {
	return s.queryOpportunities(ctx, listRecentOpportunitiesSQL, limit)
}

// ListOpportunitiesBySymbol lists recent detections for a single symbol.
func (s *Store) ListOpportunitiesBySymbol(ctx context.Context, symbol string, limit int) ([]OpportunityRecord, error) {
	return s.queryOpportunities(ctx, listOpportunitiesBySymbolSQL, symbol, limit)
}

// ListOpportunitiesBetween lists detections within a time window, ascending.
func (s *Store) ListOpportunitiesBetween(ctx context.Context, from, to time.Time) ([]OpportunityRecord, error) {
	return s.queryOpportunities(ctx, listOpportunitiesBetweenSQL, from, to)
}

func (s *Store) queryOpportunities(ctx context.Context, sql string, args ...any) ([]OpportunityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sql, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query opportunities: %w", queryErr)
	}
	defer rows.Close()

	records := make([]OpportunityRecord, 0)
	for rows.Next() {
		rec, scanErr := scanOpportunity(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountOpportunities counts stored detections.
func (s *Store) CountOpportunities(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countOpportunitiesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count opportunities: %w", scanErr)
	}
	return count, nil
}

// DeleteOpportunitiesBefore deletes historical detections.
func (s *Store) DeleteOpportunitiesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteOpportunitiesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete opportunities before: %w", execErr)
	}
	return nil
}

// InsertPrice persists one raw price observation.
func (s *Store) InsertPrice(ctx context.Context, symbol, source string, price decimal.Decimal, observedAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertPriceSQL, symbol, source, price.String(), observedAt); execErr != nil {
		return fmt.Errorf("insert price: %w", execErr)
	}
	return nil
}

// ListPricesBetween lists observations for a symbol within a time window.
func (s *Store) ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	defer rows.Close()

	records := make([]PriceRecord, 0)
	for rows.Next() {
		var rec PriceRecord
		var priceStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.Symbol,
			&rec.Source,
			&priceStr,
			&rec.ObservedAt,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		rec.Price, convErr = decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse price: %w", convErr)
		}

		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanOpportunity(rows pgx.Rows) (OpportunityRecord, error) {
	var (
		rec       OpportunityRecord
		nobitex   string
		wallex    string
		profitPct string
		profitAmt string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Symbol,
		&nobitex,
		&wallex,
		&profitPct,
		&profitAmt,
		&rec.BuyExchange,
		&rec.SellExchange,
		&rec.DetectedAt,
		&rec.CreatedAt,
	); err != nil {
		return OpportunityRecord{}, err
	}

	var err error
	if rec.NobitexPrice, err = decimal.NewFromString(nobitex); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse nobitex price: %w", err)
	}
	if rec.WallexPrice, err = decimal.NewFromString(wallex); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse wallex price: %w", err)
	}
	if rec.ProfitPct, err = decimal.NewFromString(profitPct); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse profit pct: %w", err)
	}
	if rec.ProfitAmount, err = decimal.NewFromString(profitAmt); err != nil {
		return OpportunityRecord{}, fmt.Errorf("parse profit amount: %w", err)
	}

	return rec, nil
}
