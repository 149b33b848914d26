package postgresengine

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/loanengine/loans"
)

// The advisory lock must run as its own statement before the conditional
// insert. A lock acquired by a CTE inside the insert would come too late:
// the statement snapshots availability before the lock is granted, so a
// commit made while waiting would stay invisible and both writers could
// pass the availability check.
func Test_BuildReserveQueries_LockIsSeparateFromInsert(t *testing.T) {
	store := &LoanStore{loansTableName: defaultLoansTableName}
	resourceID := uuid.New()

	lockQuery, err := store.buildLockQuery(resourceID)
	require.NoError(t, err)

	assert.Contains(t, lockQuery, "pg_advisory_xact_lock")
	assert.Contains(t, lockQuery, resourceID.String())

	loan, err := loans.BuildLoan(uuid.New(), resourceID, 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 14, "")
	require.NoError(t, err)

	insertQuery, err := store.buildInsertQuery(loan, 3)
	require.NoError(t, err)

	assert.NotContains(t, insertQuery, "pg_advisory_xact_lock")
	assert.Contains(t, insertQuery, cteReserved)
	assert.True(t, strings.HasPrefix(insertQuery, "WITH"))
}
