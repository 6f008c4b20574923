package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permtree/permtree/internal/acl"
	"github.com/permtree/permtree/internal/db"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`CREATE TABLE principals (kind TEXT, name TEXT, guid TEXT)`)
	require.NoError(t, err)

	return NewSQLite(database)
}

func insertPrincipal(t *testing.T, s *SQLite, kind, name, guid string) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO principals (kind, name, guid) VALUES (?, ?, ?)`, kind, name, guid)
	require.NoError(t, err)
}

func TestSQLiteResolve(t *testing.T) {
	s := newTestSQLite(t)
	want := uuid.New()
	insertPrincipal(t, s, "user", "alice", want.String())

	got, err := s.Resolve(context.Background(), acl.PrincipalUser, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSQLiteResolveKindMismatch(t *testing.T) {
	s := newTestSQLite(t)
	insertPrincipal(t, s, "user", "alice", uuid.NewString())

	_, err := s.Resolve(context.Background(), acl.PrincipalGroup, "alice")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)
}

func TestSQLiteResolveNoMatch(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.Resolve(context.Background(), acl.PrincipalUser, "ghost")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)
}

func TestSQLiteResolveMultipleMatches(t *testing.T) {
	s := newTestSQLite(t)
	insertPrincipal(t, s, "group", "eng", uuid.NewString())
	insertPrincipal(t, s, "group", "eng", uuid.NewString())

	_, err := s.Resolve(context.Background(), acl.PrincipalGroup, "eng")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)
}

func TestSQLiteResolveMalformedGUID(t *testing.T) {
	s := newTestSQLite(t)
	insertPrincipal(t, s, "user", "bob", "not-a-guid")

	_, err := s.Resolve(context.Background(), acl.PrincipalUser, "bob")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)
}

func TestHTTPResolve(t *testing.T) {
	want := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, principalsEndpoint, r.URL.Path)

		switch r.URL.Query().Get("name") {
		case "alice":
			fmt.Fprintf(w, `{"guid": %q}`, want)
		case "dupe":
			w.WriteHeader(http.StatusConflict)
		case "broken":
			fmt.Fprint(w, `{"guid": "nope"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := NewHTTP(srv.URL)
	ctx := context.Background()

	got, err := dir.Resolve(ctx, acl.PrincipalUser, "alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = dir.Resolve(ctx, acl.PrincipalUser, "ghost")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)

	_, err = dir.Resolve(ctx, acl.PrincipalUser, "dupe")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)

	_, err = dir.Resolve(ctx, acl.PrincipalUser, "broken")
	assert.ErrorIs(t, err, acl.ErrUnresolvedPrincipal)
}

// countingDirectory counts Resolve calls per ref.
type countingDirectory struct {
	mu    sync.Mutex
	id    acl.PrincipalID
	calls int
}

func (d *countingDirectory) Resolve(context.Context, acl.PrincipalKind, string) (acl.PrincipalID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.id, nil
}

func TestCachedResolveMemoizes(t *testing.T) {
	next := &countingDirectory{id: uuid.New()}
	cached, err := NewCached(next, 0)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		got, err := cached.Resolve(ctx, acl.PrincipalUser, "alice")
		require.NoError(t, err)
		assert.Equal(t, next.id, got)
	}

	assert.Equal(t, 1, next.calls)

	// a different ref misses the cache
	_, err = cached.Resolve(ctx, acl.PrincipalGroup, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}
