package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/repurpose-hub/checkout-service/internal/errors"
	"github.com/repurpose-hub/checkout-service/internal/logging"
	"github.com/repurpose-hub/checkout-service/internal/models"
)

// PostgresGatewayOrderRepository implements GatewayOrderRepository.
type PostgresGatewayOrderRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

func NewPostgresGatewayOrderRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresGatewayOrderRepository {
	return &PostgresGatewayOrderRepository{
		db:     db,
		logger: logger,
	}
}

const gatewayOrderColumns = `
	razorpay_order_id, user_id, checkout_id, amount, amount_in_paise, currency,
	status, receipt, razorpay_payment_id, payment_verified_at, created_at, updated_at`

func (r *PostgresGatewayOrderRepository) Create(ctx context.Context, order *models.GatewayOrder) error {
	query := `
		INSERT INTO gateway_orders (` + gatewayOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.RazorpayOrderID,
		order.UserID,
		nullString(order.CheckoutID),
		order.Amount,
		order.AmountInPaise,
		order.Currency,
		order.Status,
		order.Receipt,
		nullString(order.RazorpayPaymentID),
		order.PaymentVerifiedAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to store gateway order", logging.Fields{
			"razorpay_order_id": order.RazorpayOrderID,
			"error":             err.Error(),
		})
		return fmt.Errorf("insert gateway order: %w", err)
	}

	r.logger.Info("Gateway order stored", logging.Fields{
		"razorpay_order_id": order.RazorpayOrderID,
		"user_id":           order.UserID,
		"amount_in_paise":   order.AmountInPaise,
	})
	return nil
}

func (r *PostgresGatewayOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*models.GatewayOrder, error) {
	query := `SELECT ` + gatewayOrderColumns + ` FROM gateway_orders WHERE razorpay_order_id = $1`
	return r.queryOne(ctx, query, orderID)
}

// MarkPaid records a verified payment. Only created orders transition.
func (r *PostgresGatewayOrderRepository) MarkPaid(ctx context.Context, orderID, paymentID string, verifiedAt time.Time) (bool, error) {
	query := `
		UPDATE gateway_orders
		SET status = $2, razorpay_payment_id = $3, payment_verified_at = $4, updated_at = $4
		WHERE razorpay_order_id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		orderID,
		models.GatewayOrderStatusPaid,
		paymentID,
		verifiedAt,
		models.GatewayOrderStatusCreated,
	)
	if err != nil {
		r.logger.Error("Failed to mark gateway order paid", logging.Fields{
			"razorpay_order_id": orderID,
			"error":             err.Error(),
		})
		return false, fmt.Errorf("update gateway order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update gateway order: %w", err)
	}
	return rows == 1, nil
}

func (r *PostgresGatewayOrderRepository) FindPaid(ctx context.Context, orderID, paymentID string) (*models.GatewayOrder, error) {
	query := `
		SELECT ` + gatewayOrderColumns + `
		FROM gateway_orders
		WHERE razorpay_order_id = $1 AND razorpay_payment_id = $2 AND status = $3
	`
	return r.queryOne(ctx, query, orderID, paymentID, models.GatewayOrderStatusPaid)
}

func (r *PostgresGatewayOrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.GatewayOrder, error) {
	query := `SELECT ` + gatewayOrderColumns + ` FROM gateway_orders WHERE razorpay_payment_id = $1`
	return r.queryOne(ctx, query, paymentID)
}

func (r *PostgresGatewayOrderRepository) ListByUser(ctx context.Context, userID string) ([]*models.GatewayOrder, error) {
	query := `SELECT ` + gatewayOrderColumns + ` FROM gateway_orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list gateway orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.GatewayOrder, 0)
	for rows.Next() {
		order, err := scanGatewayOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gateway order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gateway orders: %w", err)
	}
	return orders, nil
}

func (r *PostgresGatewayOrderRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.GatewayOrder, error) {
	order, err := scanGatewayOrder(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select gateway order: %w", err)
	}
	return order, nil
}

func scanGatewayOrder(row rowScanner) (*models.GatewayOrder, error) {
	var order models.GatewayOrder
	var checkoutID, paymentID sql.NullString
	var verifiedAt sql.NullTime

	err := row.Scan(
		&order.RazorpayOrderID,
		&order.UserID,
		&checkoutID,
		&order.Amount,
		&order.AmountInPaise,
		&order.Currency,
		&order.Status,
		&order.Receipt,
		&paymentID,
		&verifiedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.CheckoutID = checkoutID.String
	order.RazorpayPaymentID = paymentID.String
	if verifiedAt.Valid {
		order.PaymentVerifiedAt = &verifiedAt.Time
	}
	return &order, nil
}
