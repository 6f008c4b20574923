// Package directory implements the principal directory collaborators that
// resolve user/group names to stable GUIDs.
package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/permtree/permtree/internal/acl"
	"github.com/permtree/permtree/internal/db"
)

// SQLite resolves principals from a local database with a `principals`
// table (kind TEXT, name TEXT, guid TEXT).
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite wraps an existing database handle.
func NewSQLite(database *sqlx.DB) *SQLite {
	return &SQLite{db: database}
}

// OpenSQLite opens the directory database at path.
func OpenSQLite(path string) (*SQLite, error) {
	database, err := db.NewSqliteDB(db.WithPath(path))
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	return NewSQLite(database), nil
}

func (s *SQLite) Resolve(ctx context.Context, kind acl.PrincipalKind, name string) (acl.PrincipalID, error) {
	var guids []string
	err := s.db.SelectContext(ctx, &guids,
		`SELECT guid FROM principals WHERE kind = ? AND name = ?`, kind.String(), name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("directory query %s %q: %w", kind, name, err)
	}

	if len(guids) != 1 {
		return uuid.Nil, fmt.Errorf("%w: %s %q matched %d records",
			acl.ErrUnresolvedPrincipal, kind, name, len(guids))
	}

	id, err := uuid.Parse(guids[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q has malformed guid %q",
			acl.ErrUnresolvedPrincipal, kind, name, guids[0])
	}
	return id, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ acl.Directory = (*SQLite)(nil)
