package codes

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// sqlStater is implemented by pgconn.PgError, which the GORM Postgres driver
// returns for constraint violations.
type sqlStater interface {
	SQLState() string
}

// isUniqueViolation reports whether err is a unique-constraint violation,
// across the drivers we run against: pgx (production), lib/pq (legacy DSNs)
// and sqlite (tests).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var stater sqlStater
	if errors.As(err, &stater) {
		return stater.SQLState() == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
