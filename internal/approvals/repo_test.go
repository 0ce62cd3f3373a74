package approvals

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// Two deciders racing on the same request must both end in the Conflict
// path: the zero-rows version guard covers the snapshot-visible case, and
// the serialization/deadlock codes cover a write blocked on an uncommitted
// competitor.
func TestConcurrencyFailureDetection(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	require.True(t, isConcurrencyFailure(serialization))
	require.True(t, isConcurrencyFailure(fmt.Errorf("approvals: update request: %w", serialization)))

	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	require.True(t, isConcurrencyFailure(deadlock))

	require.False(t, isConcurrencyFailure(&pgconn.PgError{Code: "23503"}))
	require.False(t, isConcurrencyFailure(errors.New("connection reset")))
	require.False(t, isConcurrencyFailure(nil))
}
