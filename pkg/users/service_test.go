package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
)

type fakeDirectory struct {
	mu    sync.Mutex
	users map[int64]identity.Identity
	calls map[string]int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[int64]identity.Identity{
			8: {ID: 8, Username: "bob", Roles: []string{"ROLE_USER"}},
			1: {ID: 1, Username: "root", Roles: []string{"ROLE_ADMIN"}},
			7: {ID: 7, Username: "alice", Roles: []string{"ROLE_USER"}},
		},
		calls: make(map[string]int),
	}
}

func (d *fakeDirectory) count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

func (d *fakeDirectory) ListUsers(ctx context.Context) ([]identity.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["list"]++
	var out []identity.Identity
	for _, u := range d.users {
		out = append(out, *u.Clone())
	}
	return out, nil
}

func (d *fakeDirectory) GetUser(ctx context.Context, id int64) (*identity.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["get"]++
	u, ok := d.users[id]
	if !ok {
		return nil, &identity.Error{Kind: identity.KindRejected, StatusCode: http.StatusNotFound, Message: "User not found"}
	}
	return u.Clone(), nil
}

func (d *fakeDirectory) UpdateUser(ctx context.Context, id int64, update identity.UserUpdate) (*identity.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["update"]++
	u := d.users[id]
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Roles != nil {
		u.Roles = update.Roles
	}
	d.users[id] = u
	return u.Clone(), nil
}

func (d *fakeDirectory) DeleteUser(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["delete"]++
	delete(d.users, id)
	return nil
}

func TestListSortedAndCached(t *testing.T) {
	dir := newFakeDirectory()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	svc := NewService(dir, DefaultConfig(), WithMetrics(metrics))
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{1, 7, 8}, []int64{list[0].ID, list[1].ID, list[2].ID})

	list[0].Username = "mutated"
	again, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", again[0].Username)

	assert.Equal(t, 1, dir.count("list"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UserCacheEventsTotal.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UserCacheEventsTotal.WithLabelValues("hit")))
}

func TestGetCached(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, DefaultConfig())
	ctx := context.Background()

	u, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	u, err = svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, 1, dir.count("get"))
}

func TestGetNotFound(t *testing.T) {
	svc := NewService(newFakeDirectory(), DefaultConfig())

	_, err := svc.Get(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, identity.StatusCode(err))
	assert.Equal(t, "User not found", identity.Display(err))
}

func TestUpdateInvalidates(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, DefaultConfig())
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	_, err = svc.Get(ctx, 7)
	require.NoError(t, err)

	email := "alice@example.com"
	updated, err := svc.Update(ctx, 7, identity.UserUpdate{Email: &email, Roles: []string{"ROLE_ADMIN"}})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)

	u, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, email, u.Email)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, 2, dir.count("get"))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, email, list[1].Email)
	assert.Equal(t, 2, dir.count("list"))
}

func TestUpdateRejectsEmpty(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, DefaultConfig())

	_, err := svc.Update(context.Background(), 7, identity.UserUpdate{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)
	assert.Equal(t, 0, dir.count("update"))
}

func TestDeleteInvalidates(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, DefaultConfig())
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 8))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, dir.count("list"))
}

func TestCacheDisabled(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.List(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, dir.count("list"))
}

func TestCacheExpires(t *testing.T) {
	dir := newFakeDirectory()
	svc := NewService(dir, Config{CacheSize: 8, CacheTTL: 20 * time.Millisecond})
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := svc.List(ctx)
		return err == nil && dir.count("list") == 2
	}, time.Second, 10*time.Millisecond)
}

func TestServiceOverIdentityClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/users":
			json.NewEncoder(w).Encode([]identity.Identity{{ID: 2, Username: "carol", Roles: []string{"user"}}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/users/2":
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"message": "Access denied"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := NewService(identity.NewClient(server.URL), DefaultConfig())
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "carol", list[0].Username)

	err = svc.Delete(ctx, 2)
	require.Error(t, err)
	assert.Equal(t, identity.UserMessageForbidden, identity.Display(err))
	assert.Equal(t, http.StatusForbidden, identity.StatusCode(err))
}
