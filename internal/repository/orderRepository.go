package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/logger"
)

const uniqueViolation = "23505"

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

func (p *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders
			(id, client_id, type, delivery_address, total_amount, status, created_at)
		VALUES
			($1, $2, $3, $4, $5::numeric, $6, $7)
	`,
		o.ID,
		o.ClientID,
		string(o.Type),
		o.DeliveryAddress,
		o.TotalAmount.String(),
		string(o.Status),
		o.CreatedAt,
	)
	if err != nil {
		logger.Warn("insert order failed", "order_id", o.ID, "err", err)
		return err
	}

	// items are many-to-one; one batch round trip
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items
				(order_id, position, menu_item_id, name, quantity, unit_price, note)
			VALUES
				($1, $2, $3, $4, $5, $6::numeric, $7)
		`,
			o.ID,
			i,
			it.MenuItemID,
			it.Name,
			it.Quantity,
			it.UnitPrice.String(),
			it.Note,
		)
	}
	br := tx.SendBatch(ctx, batch)
	if err = br.Close(); err != nil {
		logger.Warn("insert order items failed", "order_id", o.ID, "err", err)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order %s: %w", o.ID, err)
	}
	tx = nil
	return nil
}

func (p *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, client_id, type, delivery_address, total_amount::text, status, created_at
		FROM orders WHERE id = $1
	`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := p.loadItems(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (p *OrderRepository) PutOrder(ctx context.Context, o *domain.Order, expected domain.Status) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		string(o.Status), o.ID, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return p.missOrConflict(ctx, p.pool, o.ID)
}

func (p *OrderRepository) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}

	// newest N first inside, oldest first outside
	rows, err := p.pool.Query(ctx, `
		SELECT id, client_id, type, delivery_address, total, status, created_at FROM (
			SELECT id, client_id, type, delivery_address, total_amount::text AS total, status, created_at
			FROM orders
			WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
			  AND ($2::text = '' OR client_id = $2::text)
			ORDER BY created_at DESC, id DESC
			LIMIT CASE WHEN $3::int < 0 THEN NULL ELSE $3::int END
		) recent
		ORDER BY created_at ASC, id ASC
	`, statuses, f.ClientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []domain.Order
		ids []uuid.UUID
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := p.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (p *OrderRepository) CreatePayment(ctx context.Context, pay *domain.Payment) error {
	return insertPayment(ctx, p.pool, pay)
}

func (p *OrderRepository) VoidPayment(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `UPDATE payments SET success = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *OrderRepository) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	var (
		pay    domain.Payment
		method string
		amount string
		change *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, order_id, method, amount::text, success, change::text, paid_at
		FROM payments WHERE order_id = $1 AND success
	`, orderID).Scan(&pay.ID, &pay.OrderID, &method, &amount, &pay.Success, &change, &pay.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	pay.Method = domain.PaymentMethod(method)
	if pay.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("payment %s amount: %w", pay.ID, err)
	}
	if change != nil {
		c, err := decimal.NewFromString(*change)
		if err != nil {
			return nil, fmt.Errorf("payment %s change: %w", pay.ID, err)
		}
		pay.Change = &c
	}
	return &pay, nil
}

// SettleOrder moves the order to confirmed and records the payment in one tx.
func (p *OrderRepository) SettleOrder(ctx context.Context, pay *domain.Payment) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		string(domain.StatusConfirmed), pay.OrderID, string(domain.StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return p.missOrConflict(ctx, tx, pay.OrderID)
	}

	if err = insertPayment(ctx, tx, pay); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement %s: %w", pay.OrderID, err)
	}
	tx = nil
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertPayment(ctx context.Context, q querier, pay *domain.Payment) error {
	var change *string
	if pay.Change != nil {
		s := pay.Change.String()
		change = &s
	}
	_, err := q.Exec(ctx, `
		INSERT INTO payments (id, order_id, method, amount, success, change, paid_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric, $7)
	`,
		pay.ID,
		pay.OrderID,
		string(pay.Method),
		pay.Amount.String(),
		pay.Success,
		change,
		pay.PaidAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrPaymentExists
	}
	return err
}

func (p *OrderRepository) missOrConflict(ctx context.Context, q querier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (p *OrderRepository) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := p.pool.Query(ctx, `
		SELECT order_id, menu_item_id, name, quantity, unit_price::text, note
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.OrderItem, len(ids))
	for rows.Next() {
		var (
			orderID uuid.UUID
			it      domain.OrderItem
			price   string
		)
		if err := rows.Scan(&orderID, &it.MenuItemID, &it.Name, &it.Quantity, &price, &it.Note); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("order %s item price: %w", orderID, err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		typ    string
		status string
		total  string
	)
	if err := row.Scan(&o.ID, &o.ClientID, &typ, &o.DeliveryAddress, &total, &status, &o.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if o.Type, err = domain.ParseOrderType(typ); err != nil {
		return nil, err
	}
	if o.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}
