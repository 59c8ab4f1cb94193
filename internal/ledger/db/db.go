package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"club-pos/internal/database/migrations"
	"club-pos/internal/ledger"
	"club-pos/internal/logger"
	"club-pos/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is the relational ledger: one sales row plus one sale_lines row per
// catalog category for every completed sale.
type DB struct {
	Bun    *bun.DB
	Driver string
}

// Open connects to the ledger database, retrying the first ping the way the
// service waits for its database container to come up.
func Open(ctx context.Context, driver, dsn string, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.Discard()
	}

	var driverName string
	switch driver {
	case DriverSQLite:
		driverName = sqliteshim.ShimName
	case DriverPostgres:
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported ledger database driver %q", driver)
	}

	sqldb, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s ledger (attempt %d/%d)", driver, i+1, maxRetries))
		if err = sqldb.PingContext(ctx); err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", driver, err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				sqldb.Close()
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", driver, maxRetries, err)
	}

	var bunDB *bun.DB
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		sqldb.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	log.Info("DATABASE", fmt.Sprintf("✅ %s ledger connection successful", driver))
	return &DB{Bun: bunDB, Driver: driver}, nil
}

// Migrate creates the ledger schema. PostgreSQL uses the versioned
// migrations; SQLite creates the tables straight from the models.
func (d *DB) Migrate(ctx context.Context, log *logger.Logger) error {
	if d.Driver == DriverPostgres {
		return migrations.NewRunner(d.Bun, log).MigrateUp()
	}

	if _, err := d.Bun.NewCreateTable().Model((*Sale)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create sales table: %w", err)
	}
	if _, err := d.Bun.NewCreateTable().Model((*SaleLine)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create sale_lines table: %w", err)
	}
	if _, err := d.Bun.NewCreateIndex().Model((*Sale)(nil)).Index("idx_sales_sale_date").IfNotExists().Column("sale_date").Exec(ctx); err != nil {
		return fmt.Errorf("create sales index: %w", err)
	}
	return nil
}

func (d *DB) Name() string { return "database" }

// Append → insert the sale and its lines in one transaction
func (d *DB) Append(ctx context.Context, record models.SaleRecord) error {
	sale := Sale{
		ID:            record.ID,
		SoldAt:        record.SoldAt,
		SaleDate:      record.SoldAt.Format(ledger.DateLayout),
		SaleTime:      record.SoldAt.Format(ledger.TimeLayout),
		EventID:       string(record.EventID),
		EventName:     record.EventName,
		TicketCount:   record.TicketCount(),
		Total:         record.Total,
		PaymentMethod: record.PaymentMethod,
	}
	lines := make([]SaleLine, 0, len(record.Lines))
	for i, l := range record.Lines {
		lines = append(lines, SaleLine{
			SaleID:       record.ID,
			Position:     i,
			CategoryID:   string(l.CategoryID),
			CategoryName: l.CategoryName,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
		})
	}

	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&sale).Exec(ctx); err != nil {
			return fmt.Errorf("insert sale %s: %w", record.ID, err)
		}
		if len(lines) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
			return fmt.Errorf("insert lines of sale %s: %w", record.ID, err)
		}
		return nil
	})
}

// GetSale → fetch one sale with its lines in catalog order
func (d *DB) GetSale(ctx context.Context, id string) (*Sale, error) {
	var sale Sale
	err := d.Bun.NewSelect().
		Model(&sale).
		Relation("Lines", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (d *DB) Close() error {
	return d.Bun.Close()
}
