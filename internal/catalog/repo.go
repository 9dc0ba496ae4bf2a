package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Filter struct {
	CategoryID      int64
	Query           string // case-insensitive substring of the name
	IncludeInactive bool
}

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, name, price::text, category_id, stock, images, active, created_at, updated_at`

// ListProducts returns normalized products ordered by name.
func (r *Repo) ListProducts(ctx context.Context, f Filter) ([]Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if !f.IncludeInactive {
		q += ` AND active`
	}
	if f.CategoryID != 0 {
		args = append(args, f.CategoryID)
		q += fmt.Sprintf(` AND category_id = $%d`, len(args))
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		args = append(args, "%"+s+"%")
		q += fmt.Sprintf(` AND name ILIKE $%d`, len(args))
	}
	q += ` ORDER BY name, id`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, err
	}
	if err := r.loadVariants(ctx, out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = Normalize(out[i])
	}
	return out, nil
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	if err != nil {
		return Product{}, err
	}
	p, err := pgx.CollectOneRow(rows, scanProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	ps := []Product{p}
	if err := r.loadVariants(ctx, ps); err != nil {
		return Product{}, err
	}
	return Normalize(ps[0]), nil
}

// ReplaceVariants swaps the whole color/size matrix of a product and keeps the
// aggregate stock column in sync.
func (r *Repo) ReplaceVariants(ctx context.Context, productID int64, variants []Variant) (Product, error) {
	if err := CheckVariants(variants); err != nil {
		return Product{}, err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := replaceVariantsTx(ctx, tx, productID, variants); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, productID)
}

func replaceVariantsTx(ctx context.Context, tx pgx.Tx, productID int64, variants []Variant) error {
	p := Normalize(Product{ID: productID, Variants: variants})
	ct, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, p.TotalStock())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_stock WHERE product_id=$1`, productID); err != nil {
		return err
	}
	for _, row := range stockRows(p) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_stock(product_id, color, size, qty, position)
			VALUES ($1,$2,$3,$4,$5)`,
			row.ProductID, row.Color, row.Size, row.Qty, row.Position,
		); err != nil {
			return err
		}
	}
	return nil
}

// CreateProduct stores a new product. Without variants it is sold under its
// flat stock.
func (r *Repo) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := in.Check(); err != nil {
		return Product{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO products(name, price, category_id, stock, images, active)
		VALUES ($1, $2::numeric, $3, $4, $5, $6)
		RETURNING id`,
		strings.TrimSpace(in.Name), in.Price.String(), in.CategoryID, max(in.Stock, 0), in.images(), active,
	).Scan(&id)
	if err != nil {
		return Product{}, err
	}
	if len(in.Variants) > 0 {
		if err := replaceVariantsTx(ctx, tx, id, in.Variants); err != nil {
			return Product{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

// UpdateProduct edits a product. A nil Active keeps the current flag; nil
// Variants keeps the current matrix, and then Stock only applies to a product
// sold without variants.
func (r *Repo) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if err := in.Check(); err != nil {
		return Product{}, err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE products
		SET name=$2, price=$3::numeric, category_id=$4, images=$5,
		    active=COALESCE($6, active), updated_at=now()
		WHERE id=$1`,
		id, strings.TrimSpace(in.Name), in.Price.String(), in.CategoryID, in.images(), in.Active)
	if err != nil {
		return Product{}, err
	}
	if ct.RowsAffected() == 0 {
		return Product{}, ErrProductNotFound
	}
	if in.Variants != nil {
		err = replaceVariantsTx(ctx, tx, id, in.Variants)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE products SET stock=$2
			WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM product_stock WHERE product_id=$1)`,
			id, max(in.Stock, 0))
	}
	if err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

// ToggleActive flips whether the product is listed in the storefront.
func (r *Repo) ToggleActive(ctx context.Context, id int64) (Product, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET active = NOT active, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return Product{}, err
	}
	if ct.RowsAffected() == 0 {
		return Product{}, ErrProductNotFound
	}
	return r.GetProduct(ctx, id)
}

// DeleteProduct removes the product and its stock rows. Orders keep their
// copied name and price.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.CategoryID, &p.Stock, &p.Images, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %d price: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}

// loadVariants fills Variants from product_stock; products with no rows keep
// their flat stock and become a single implicit variant in Normalize.
func (r *Repo) loadVariants(ctx context.Context, ps []Product) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, color, size, qty FROM product_stock
		WHERE product_id = ANY($1)
		ORDER BY product_id, position`, ids)
	if err != nil {
		return err
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (stockRow, error) {
		var x stockRow
		err := row.Scan(&x.ProductID, &x.Color, &x.Size, &x.Qty)
		return x, err
	})
	if err != nil {
		return err
	}
	attachVariants(ps, recs)
	return nil
}

type stockRow struct {
	ProductID   int64
	Color, Size string
	Qty         int
	Position    int
}

// stockRows flattens a normalized product into product_stock rows; position
// keeps the declared color and size order.
func stockRows(p Product) []stockRow {
	var out []stockRow
	for _, v := range p.Variants {
		for _, e := range v.StockBySize {
			out = append(out, stockRow{ProductID: p.ID, Color: v.Color, Size: e.Size, Qty: e.Qty, Position: len(out)})
		}
	}
	return out
}

// attachVariants groups rows ordered by product and position back into the
// products' variants. Rows of unknown products are ignored.
func attachVariants(ps []Product, rows []stockRow) {
	byID := make(map[int64]int, len(ps))
	for i, p := range ps {
		byID[p.ID] = i
	}
	for _, x := range rows {
		i, ok := byID[x.ProductID]
		if !ok {
			continue
		}
		p := &ps[i]
		n := len(p.Variants)
		if n == 0 || p.Variants[n-1].Color != x.Color {
			p.Variants = append(p.Variants, Variant{Color: x.Color})
			n++
		}
		p.Variants[n-1].StockBySize = append(p.Variants[n-1].StockBySize, SizeStock{Size: x.Size, Qty: x.Qty})
	}
}
