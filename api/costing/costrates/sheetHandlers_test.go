package costrates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRow struct {
	err  error
	fill func(dest []interface{})
}

func (r stubRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if r.fill != nil {
		r.fill(dest)
	}
	return nil
}

// stubQuerier answers the guard's record lookup and lock lookup
// separately, keyed on the statement text.
type stubQuerier struct {
	recordRow stubRow
	lockRow   stubRow
}

func (q stubQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if strings.Contains(sql, "lockedproducts") {
		return q.lockRow
	}
	return q.recordRow
}

func productIDRow(id string) stubRow {
	return stubRow{fill: func(dest []interface{}) {
		*(dest[0].(**string)) = &id
	}}
}

func lockedRow(locked bool) stubRow {
	return stubRow{fill: func(dest []interface{}) {
		*(dest[0].(*bool)) = locked
	}}
}

func TestGuardSurfacesRecordLookupFailure(t *testing.T) {
	lookupErr := errors.New("connection refused")
	q := stubQuerier{recordRow: stubRow{err: lookupErr}}

	err := guardRecordNotLocked(context.Background(), q, AllocationSheet, "RT-1")
	require.Error(t, err, "a failed lookup must not pass the guard")
	assert.ErrorIs(t, err, lookupErr)
	assert.False(t, errors.Is(err, errRecordLocked))
}

func TestGuardSurfacesLockLookupFailure(t *testing.T) {
	lookupErr := errors.New("connection reset")
	q := stubQuerier{recordRow: productIDRow("G5"), lockRow: stubRow{err: lookupErr}}

	err := guardRecordNotLocked(context.Background(), q, AllocationSheet, "RT-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, lookupErr)
}

func TestGuardMissingRowPassesThrough(t *testing.T) {
	q := stubQuerier{recordRow: stubRow{err: pgx.ErrNoRows}}

	err := guardRecordNotLocked(context.Background(), q, AllocationSheet, "RT-gone")
	assert.NoError(t, err, "missing rows are handled by the mutation's own not-found path")
}

func TestGuardRejectsLockedProduct(t *testing.T) {
	q := stubQuerier{recordRow: productIDRow("G5"), lockRow: lockedRow(true)}

	err := guardRecordNotLocked(context.Background(), q, AllocationSheet, "RT-1")
	assert.ErrorIs(t, err, errRecordLocked)
}

func TestGuardAllowsUnlockedAndDefaultRows(t *testing.T) {
	unlocked := stubQuerier{recordRow: productIDRow("G5"), lockRow: lockedRow(false)}
	assert.NoError(t, guardRecordNotLocked(context.Background(), unlocked, AllocationSheet, "RT-1"))

	defaultRow := stubQuerier{recordRow: stubRow{fill: func(dest []interface{}) {
		*(dest[0].(**string)) = nil
	}}}
	assert.NoError(t, guardRecordNotLocked(context.Background(), defaultRow, AllocationSheet, "RT-def"))
}
