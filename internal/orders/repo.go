package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `id, COALESCE(external_id, ''), customer_name, phone, shipping_address,
	payment_method, total::text, status, COALESCE(proof_ref, ''), created_at, updated_at`

// Create inserts the order and its lines in one transaction. A non-empty
// ExternalID that already exists returns the stored order (existed=true).
func (r *Repo) Create(ctx context.Context, o Order) (Order, bool, error) {
	if o.ExternalID != "" {
		existing, err := r.getBy(ctx, r.DB, `external_id=$1`, o.ExternalID)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Order{}, false, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var extID any
	if o.ExternalID != "" {
		extID = o.ExternalID
	}
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(external_id, customer_name, phone, shipping_address, payment_method, total, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		RETURNING id`,
		extID, o.Name, o.Phone, o.Address, string(o.PaymentMethod), o.Total.String(), string(o.Status),
	).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && o.ExternalID != "" {
		// lost an idempotency race against the same external id
		_ = tx.Rollback(ctx)
		existing, err := r.getBy(ctx, r.DB, `external_id=$1`, o.ExternalID)
		if err != nil {
			return Order{}, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return Order{}, false, err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, color, size, qty, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric)`,
			id, it.ProductID, it.Name, it.Color, it.Size, it.Quantity, it.UnitPrice.String(),
		); err != nil {
			return Order{}, false, err
		}
	}

	created, err := r.getBy(ctx, tx, `id=$1`, id)
	if err != nil {
		return Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return created, false, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (Order, error) {
	return r.getBy(ctx, r.DB, `id=$1`, id)
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		cond := fmt.Sprintf(`customer_name ILIKE $%d`, len(args))
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			args = append(args, id)
			cond += fmt.Sprintf(` OR id = $%d`, len(args))
		}
		q += ` AND (` + cond + `)`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = r.items(ctx, r.DB, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, from, to Status) (Order, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return Order{}, err
		}
		return Order{}, ErrStatusConflict
	}
	return r.Get(ctx, id)
}

func (r *Repo) SetProof(ctx context.Context, id int64, ref string) (Order, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET proof_ref=$2, updated_at=now() WHERE id=$1`, id, ref)
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return Order{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) getBy(ctx context.Context, q querier, where string, arg any) (Order, error) {
	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg)
	if err != nil {
		return Order{}, err
	}
	o, err := pgx.CollectOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if o.Items, err = r.items(ctx, q, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) items(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, product_name, color, size, qty, unit_price::text
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var (
			l     Line
			price string
		)
		if err := row.Scan(&l.ProductID, &l.Name, &l.Color, &l.Size, &l.Quantity, &price); err != nil {
			return Line{}, err
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			return Line{}, err
		}
		l.UnitPrice = d
		return l, nil
	})
}

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var (
		o          Order
		method, st string
		total      string
	)
	if err := row.Scan(&o.ID, &o.ExternalID, &o.Name, &o.Phone, &o.Address,
		&method, &total, &st, &o.ProofRef, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return Order{}, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	o.Total = d
	o.PaymentMethod = PaymentMethod(method)
	o.Status = Status(st)
	return o, nil
}
