package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/repurpose-hub/checkout-service/internal/config"
	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

// OpenPostgres opens and pings the database described by cfg.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// PostgresCheckoutRepository implements CheckoutRepository using PostgreSQL.
type PostgresCheckoutRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

// NewPostgresCheckoutRepository creates a new PostgreSQL checkout repository.
func NewPostgresCheckoutRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresCheckoutRepository {
	return &PostgresCheckoutRepository{
		db:     db,
		logger: logger,
	}
}

const checkoutColumns = `
	id, user_id, items, total_price, status, payment_method, idempotency_key,
	razorpay_order_id, razorpay_payment_id, created_at, updated_at`

// Create inserts a new checkout record. ID and timestamps must be set.
func (r *PostgresCheckoutRepository) Create(ctx context.Context, record *models.CheckoutRecord) error {
	r.logger.Debug("Creating checkout record", logging.Fields{"user_id": record.UserID})

	itemsJSON, err := json.Marshal(record.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	query := `
		INSERT INTO checkouts (` + checkoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		string(itemsJSON),
		record.TotalPrice,
		record.Status,
		record.PaymentMethod,
		nullString(record.IdempotencyKey),
		nullString(record.RazorpayOrderID),
		nullString(record.RazorpayPaymentID),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create checkout record", logging.Fields{
			"user_id": record.UserID,
			"error":   err.Error(),
		})
		return fmt.Errorf("insert checkout: %w", err)
	}

	r.logger.Info("Checkout record created", logging.Fields{
		"checkout_id": record.ID,
		"user_id":     record.UserID,
		"total":       record.TotalPrice,
	})
	return nil
}

// GetByID retrieves a checkout record by id.
func (r *PostgresCheckoutRepository) GetByID(ctx context.Context, id string) (*models.CheckoutRecord, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`

	record, err := scanCheckout(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch checkout record", logging.Fields{
			"checkout_id": id,
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("select checkout: %w", err)
	}
	return record, nil
}

// MarkCompleted transitions a pending record to completed.
func (r *PostgresCheckoutRepository) MarkCompleted(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (bool, error) {
	query := `
		UPDATE checkouts
		SET status = $2, razorpay_order_id = $3, razorpay_payment_id = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		models.CheckoutStatusCompleted,
		gatewayOrderID,
		gatewayPaymentID,
		time.Now().UTC(),
		models.CheckoutStatusPendingPayment,
	)
	if isUniqueViolation(err) {
		r.logger.Warn("Gateway order already settles another checkout", logging.Fields{
			"checkout_id":       id,
			"razorpay_order_id": gatewayOrderID,
		})
		return false, fmt.Errorf("update checkout: %w", errors.ErrConflict)
	}
	if err != nil {
		r.logger.Error("Failed to complete checkout record", logging.Fields{
			"checkout_id": id,
			"error":       err.Error(),
		})
		return false, fmt.Errorf("update checkout: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update checkout: %w", err)
	}

	r.logger.Info("Checkout status updated", logging.Fields{
		"checkout_id": id,
		"applied":     rows == 1,
	})
	return rows == 1, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ListByUser returns a user's checkout records, newest first.
func (r *PostgresCheckoutRepository) ListByUser(ctx context.Context, userID string) ([]*models.CheckoutRecord, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}
	defer rows.Close()

	records := make([]*models.CheckoutRecord, 0)
	for rows.Next() {
		record, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}

	logging.Infof("Listed %d checkouts for user %s", len(records), userID)
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckout(row rowScanner) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	var itemsJSON []byte
	var key, orderID, paymentID sql.NullString

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&itemsJSON,
		&record.TotalPrice,
		&record.Status,
		&record.PaymentMethod,
		&key,
		&orderID,
		&paymentID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &record.Items); err != nil {
		return nil, err
	}
	record.IdempotencyKey = key.String
	record.RazorpayOrderID = orderID.String
	record.RazorpayPaymentID = paymentID.String

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
