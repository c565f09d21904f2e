package costrates

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"CostwiseERP/internal/rates"
)

// rowQuerier is the single-row read surface shared by pgxpool.Pool and
// the test stubs for the lock guard.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func selectColumns(def SheetDef) string {
	cols := []string{
		"rate_id", "periode", "COALESCE(product_id,'')",
		"group_id", "group_name", "COALESCE(rate_as_group_id,'')",
	}
	for _, f := range def.Spec.Fields {
		if f.Numeric {
			cols = append(cols, fmt.Sprintf("COALESCE(%s,0)::text", f.Key))
		} else {
			cols = append(cols, fmt.Sprintf("COALESCE(%s,'')", f.Key))
		}
	}
	return strings.Join(cols, ", ")
}

func fetchRateRecords(ctx context.Context, pool *pgxpool.Pool, def SheetDef, periode string) ([]rates.RateRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE periode = $1`, selectColumns(def), def.Table)
	rows, err := pool.Query(ctx, q, periode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rates.RateRecord{}
	for rows.Next() {
		rec := rates.RateRecord{
			Rates:     make(map[string]decimal.Decimal, len(def.Spec.Fields)),
			TextRates: make(map[string]string),
		}
		vals := make([]string, len(def.Spec.Fields))
		dest := []interface{}{&rec.ID, &rec.Periode, &rec.ProductID, &rec.GroupID, &rec.GroupName, &rec.RateAsGroupID}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, f := range def.Spec.Fields {
			if f.Numeric {
				d, derr := decimal.NewFromString(vals[i])
				if derr != nil {
					d = decimal.Zero
				}
				rec.Rates[f.Key] = d
			} else {
				rec.TextRates[f.Key] = vals[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// fetchDefaultRates returns only the default-rate records of one
// periode, used for the import completeness check.
func fetchDefaultRates(ctx context.Context, pool *pgxpool.Pool, def SheetDef, periode string) ([]rates.RateRecord, error) {
	q := fmt.Sprintf(`SELECT rate_id, periode, group_id, group_name FROM %s WHERE periode = $1 AND product_id IS NULL`, def.Table)
	rows, err := pool.Query(ctx, q, periode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rates.RateRecord{}
	for rows.Next() {
		var rec rates.RateRecord
		if err := rows.Scan(&rec.ID, &rec.Periode, &rec.GroupID, &rec.GroupName); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func fetchProducts(ctx context.Context, pool *pgxpool.Pool) ([]rates.ProductRecord, error) {
	q := `SELECT product_id, product_name, group_id, group_name, COALESCE(category_code,'')
	      FROM masterproduct WHERE COALESCE(is_deleted,false) = false`
	rows, err := pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rates.ProductRecord{}
	for rows.Next() {
		var p rates.ProductRecord
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.GroupID, &p.GroupName, &p.CategoryCode); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// fetchLockedSet returns the product ids currently excluded from rate
// mutation (externally owned; consulted, never written, here).
func fetchLockedSet(ctx context.Context, pool *pgxpool.Pool) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, `SELECT product_id FROM lockedproducts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		locked[id] = struct{}{}
	}
	return locked, rows.Err()
}

func isProductLocked(ctx context.Context, q rowQuerier, productID string) (bool, error) {
	if strings.TrimSpace(productID) == "" {
		return false, nil
	}
	var locked bool
	err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM lockedproducts WHERE product_id = $1)`, productID).Scan(&locked)
	return locked, err
}
