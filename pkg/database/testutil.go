package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool for tests. The returned pool satisfies
// DBTX and can be passed to any repository constructor.
// Call ExpectationsWereMet() at the end of each test.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
