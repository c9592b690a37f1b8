// Package directory implements the department-membership lookup over the
// users table. In production this sits in front of the identity provider;
// the table is synchronized from it out of band.
package directory

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/port"
)

// SQLiteDirectory implements port.Directory
type SQLiteDirectory struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a directory lookup backed by the users table
func New(db *sql.DB, logger *zap.Logger) port.Directory {
	return &SQLiteDirectory{db: db, logger: logger}
}

// IsMemberOfDepartment reports whether the user belongs to the department
func (d *SQLiteDirectory) IsMemberOfDepartment(ctx context.Context, userID, departmentID string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM users WHERE id = ? AND department_id = ?",
		userID, departmentID,
	).Scan(&count)
	if err != nil {
		d.logger.Error("Failed to check department membership",
			zap.String("user_id", userID),
			zap.String("department_id", departmentID),
			zap.Error(err))
		return false, fmt.Errorf("failed to check department membership: %w", err)
	}
	return count > 0, nil
}

// HasClientCapability reports whether the identity carries the client flag
func (d *SQLiteDirectory) HasClientCapability(ctx context.Context, id string) (bool, error) {
	var isClient bool
	err := d.db.QueryRowContext(ctx,
		"SELECT is_client FROM users WHERE id = ?", id,
	).Scan(&isClient)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		d.logger.Error("Failed to check client capability",
			zap.String("id", id),
			zap.Error(err))
		return false, fmt.Errorf("failed to check client capability: %w", err)
	}
	return isClient, nil
}
