package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const (
	reservationReserved = "RESERVED"
	reservationReleased = "RELEASED"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

// Reserved reports whether every line of the order already holds a
// reservation.
func (r *Repo) Reserved(ctx context.Context, orderID int64, lines int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id = $1 AND status = $2`, orderID, reservationReserved).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0 && n == lines, nil
}

// ReserveAll locks each (product, color, size) row, decrements it and records
// the reservation, reviving a released one. A single shortage rolls the whole
// order back.
func (r *Repo) ReserveAll(ctx context.Context, orderID int64, items []orders.Line) (bool, []orders.StockShortage, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var short []orders.StockShortage
	for _, it := range items {
		avail, variant, err := lockStock(ctx, tx, it)
		if err != nil {
			return false, nil, err
		}
		if avail < it.Quantity {
			short = append(short, orders.StockShortage{
				ProductID: it.ProductID, Color: it.Color, Size: it.Size,
				Required: it.Quantity, Available: avail,
			})
			continue
		}
		// a line still held from an earlier pass is not taken again
		ct, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, product_id, color, size, qty, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id, product_id, color, size) DO UPDATE
			SET qty = EXCLUDED.qty, status = EXCLUDED.status, created_at = now()
			WHERE reservations.status <> EXCLUDED.status`,
			orderID, it.ProductID, it.Color, it.Size, it.Quantity, reservationReserved)
		if err != nil {
			return false, nil, err
		}
		if ct.RowsAffected() == 0 {
			continue
		}
		if variant {
			if _, err := tx.Exec(ctx, `
				UPDATE product_stock SET qty = qty - $4
				WHERE product_id=$1 AND color=$2 AND size=$3`,
				it.ProductID, it.Color, it.Size, it.Quantity); err != nil {
				return false, nil, err
			}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now() WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return false, nil, err
		}
	}

	if len(short) > 0 {
		return false, short, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// lockStock returns the available quantity for the line. Products without
// per-variant rows fall back to the flat stock column under the default size.
func lockStock(ctx context.Context, tx pgx.Tx, it orders.Line) (qty int, variant bool, err error) {
	err = tx.QueryRow(ctx, `
		SELECT qty FROM product_stock
		WHERE product_id=$1 AND color=$2 AND size=$3 FOR UPDATE`,
		it.ProductID, it.Color, it.Size).Scan(&qty)
	if err == nil {
		return qty, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	if it.Color != "" || it.Size != catalog.DefaultSize {
		return 0, false, nil
	}
	var rows int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM product_stock WHERE product_id=$1`, it.ProductID).Scan(&rows); err != nil {
		return 0, false, err
	}
	if rows > 0 {
		return 0, false, nil
	}
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return qty, false, err
}

// ReleaseAll returns every reserved unit of the order to stock and reports
// how many lines were released.
func (r *Repo) ReleaseAll(ctx context.Context, orderID int64) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, color, size, qty FROM reservations
		WHERE order_id=$1 AND status=$2 FOR UPDATE`, orderID, reservationReserved)
	if err != nil {
		return 0, err
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orders.Line, error) {
		var l orders.Line
		err := row.Scan(&l.ProductID, &l.Color, &l.Size, &l.Quantity)
		return l, err
	})
	if err != nil {
		return 0, err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `
			UPDATE product_stock SET qty = qty + $4
			WHERE product_id=$1 AND color=$2 AND size=$3`,
			x.ProductID, x.Color, x.Size, x.Quantity); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			x.ProductID, x.Quantity); err != nil {
			return 0, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status=$3
		WHERE order_id=$1 AND status=$2`, orderID, reservationReserved, reservationReleased); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(recs), nil
}
