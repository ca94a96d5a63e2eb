package pgdb

import (
	"strconv"

	"github.com/lib/pq"
)

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func itoa(n int) string { return strconv.Itoa(n) }
