package db

import (
	"strings"

	"github.com/teranos/inkr/errors"
)

// ErrDatabaseClosed is returned when the journal is used after Close
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is
// closed, either as ErrDatabaseClosed or as a raw driver error
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	// The sql driver returns its own error types that we cannot wrap at the source
	return strings.Contains(err.Error(), "database is closed")
}
