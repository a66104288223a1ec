package cde

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

// Row is one photo's state as reported by the legacy CDE inventory system.
// HolderRef is CDE's free-form claim-holder column; it is treated as an
// opaque identifier and only ever compared for equality.
type Row struct {
	PhotoNumber string
	RawStatus   string
	Status      enums.LegacyStatus
	HolderRef   *string
}

// Client reads the legacy MySQL inventory system. All reconciliation reads go
// through it; the single write-back (RecordSale) is an explicitly audited
// administrative action, not part of the read path.
type Client struct {
	db      *sql.DB
	table   string
	timeout time.Duration
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens a connection pool against the CDE MySQL instance.
func New(ctx context.Context, cfg config.CDEConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("cde dsn is required")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening cde connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	client := &Client{db: db, table: cfg.Table, timeout: cfg.QueryTimeout}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cde health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "cde connection established")
	}
	return client, nil
}

// Ping verifies the legacy system is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return errors.New("cde client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

// FetchStatuses returns the CDE rows for the requested photo numbers. Photos
// unknown to CDE are simply absent from the result.
func (c *Client) FetchStatuses(ctx context.Context, photoNumbers []string) (map[string]Row, error) {
	rows := make(map[string]Row, len(photoNumbers))
	if len(photoNumbers) == 0 {
		return rows, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(photoNumbers)), ",")
	query := fmt.Sprintf(
		"SELECT numero, estado, cliente FROM %s WHERE numero IN (%s)",
		c.table, placeholders,
	)
	args := make([]any, len(photoNumbers))
	for i, number := range photoNumbers {
		args[i] = number
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	result, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cde statuses: %w", err)
	}
	defer result.Close()

	for result.Next() {
		row, err := scanRow(result)
		if err != nil {
			return nil, err
		}
		rows[row.PhotoNumber] = row
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate cde statuses: %w", err)
	}
	return rows, nil
}

// FetchAll streams every CDE row. The reconciliation engine uses it to pick
// up photos CDE knows about but the catalog does not.
func (c *Client) FetchAll(ctx context.Context) ([]Row, error) {
	query := fmt.Sprintf("SELECT numero, estado, cliente FROM %s", c.table)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	result, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cde rows: %w", err)
	}
	defer result.Close()

	var rows []Row
	for result.Next() {
		row, err := scanRow(result)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate cde rows: %w", err)
	}
	return rows, nil
}

// RecordSale marks the photo sold in CDE with the buyer reference. Best
// effort from the core's perspective; callers retry on failure.
func (c *Client) RecordSale(ctx context.Context, photoNumber, buyerRef string) error {
	if photoNumber == "" {
		return errors.New("photo number is required")
	}
	query := fmt.Sprintf("UPDATE %s SET estado = 'VENDIDO', cliente = ? WHERE numero = ?", c.table)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, query, buyerRef, photoNumber); err != nil {
		return fmt.Errorf("record sale for %s: %w", photoNumber, err)
	}
	return nil
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func scanRow(result *sql.Rows) (Row, error) {
	var (
		number sql.NullString
		estado sql.NullString
		holder sql.NullString
	)
	if err := result.Scan(&number, &estado, &holder); err != nil {
		return Row{}, fmt.Errorf("scan cde row: %w", err)
	}
	row := Row{
		PhotoNumber: strings.TrimSpace(number.String),
		RawStatus:   strings.TrimSpace(estado.String),
	}
	row.Status = enums.NormalizeCDECode(row.RawStatus)
	if holder.Valid {
		ref := strings.TrimSpace(holder.String)
		if ref != "" {
			row.HolderRef = &ref
		}
	}
	return row, nil
}
