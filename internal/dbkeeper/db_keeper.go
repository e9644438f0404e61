package dbkeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drstein77/salesdash/internal/models"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// DBKeeper records finished reports in PostgreSQL.
type DBKeeper struct {
	pool *pgxpool.Pool
	log  Log
}

// NewDBKeeper migrates the schema and opens a connection pool. It returns
// nil when the DSN is empty or the database cannot be used.
func NewDBKeeper(ctx context.Context, dsn func() string, migrationsDir func() string, log Log) *DBKeeper {
	addr := dsn()
	if addr == "" {
		log.Info("database dsn is empty, upload history disabled")
		return nil
	}

	if err := migrateUp(addr, migrationsDir()); err != nil {
		log.Error("Unable to migrate database", zap.Error(err))
		return nil
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		log.Error("Unable to parse database DSN", zap.Error(err))
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Error("Unable to connect to database", zap.Error(err))
		return nil
	}

	log.Info("Connected!")

	return &DBKeeper{
		pool: pool,
		log:  log,
	}
}

// SaveReport stores a report summary and its category totals in one transaction.
func (kp *DBKeeper) SaveReport(ctx context.Context, summary models.ReportSummary) (err error) {
	if kp.pool == nil {
		return fmt.Errorf("database connection pool is nil")
	}

	tx, err := kp.pool.Begin(ctx)
	if err != nil {
		kp.log.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
				kp.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
			}
		}
	}()

	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO reports (id, file_name, generated_at, row_count, total_sales, average_sale)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
		summary.ID, summary.FileName, summary.GeneratedAt, summary.RowCount,
		summary.TotalSales.String(), summary.AverageSale.String(),
	)
	for i, c := range summary.Categories {
		batch.Queue(
			`INSERT INTO report_categories (report_id, position, category, total) VALUES ($1, $2, $3, $4::numeric)`,
			summary.ID, i, c.Category, c.Total.String(),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, execErr := br.Exec(); execErr != nil {
			_ = br.Close()
			err = fmt.Errorf("failed to execute batch query: %w", execErr)
			return err
		}
	}
	if closeErr := br.Close(); closeErr != nil {
		err = fmt.Errorf("failed to close batch: %w", closeErr)
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		return err
	}

	kp.log.Info("Report recorded", zap.String("id", summary.ID), zap.Int("categories", len(summary.Categories)))
	return nil
}

// ListReports returns the newest report summaries first.
func (kp *DBKeeper) ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	if kp.pool == nil {
		return nil, fmt.Errorf("database connection pool is nil")
	}

	rows, err := kp.pool.Query(ctx, `
		SELECT id, file_name, generated_at, row_count, total_sales::text, average_sale::text
		FROM reports
		ORDER BY generated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var (
		summaries []models.ReportSummary
		ids       []string
	)
	for rows.Next() {
		var (
			s          models.ReportSummary
			total, avg string
		)
		if err := rows.Scan(&s.ID, &s.FileName, &s.GeneratedAt, &s.RowCount, &total, &avg); err != nil {
			kp.log.Error("Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if s.TotalSales, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parsing total of report %s: %w", s.ID, err)
		}
		if s.AverageSale, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("parsing average of report %s: %w", s.ID, err)
		}
		summaries = append(summaries, s)
		ids = append(ids, s.ID)
	}
	if rows.Err() != nil {
		kp.log.Error("Error occurred during rows iteration", zap.Error(rows.Err()))
		return nil, fmt.Errorf("error during rows iteration: %w", rows.Err())
	}
	if len(summaries) == 0 {
		return summaries, nil
	}

	categories, err := kp.categories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].Categories = categories[summaries[i].ID]
	}
	return summaries, nil
}

func (kp *DBKeeper) categories(ctx context.Context, ids []string) (map[string][]models.CategoryTotal, error) {
	rows, err := kp.pool.Query(ctx, `
		SELECT report_id, category, total::text
		FROM report_categories
		WHERE report_id = ANY($1)
		ORDER BY report_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.CategoryTotal, len(ids))
	for rows.Next() {
		var id, category, total string
		if err := rows.Scan(&id, &category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parsing category total: %w", err)
		}
		out[id] = append(out[id], models.CategoryTotal{Category: category, Total: d})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error during category iteration: %w", rows.Err())
	}
	return out, nil
}

func (kp *DBKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		kp.log.Error("Database ping failed", zap.Error(err))
		return false
	}

	return true
}

func (kp *DBKeeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}
