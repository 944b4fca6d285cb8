package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable Postgres; set TEST_DATABASE_URL to run them.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return dsn
}

func TestEmergencyKeywordsRoundTrip(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	conn, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, Migrate(ctx, conn))
	require.NoError(t, Migrate(ctx, conn), "migrations are idempotent")

	repo := NewRepository(conn)
	kw := "test-" + uuid.NewString()[:8]
	require.NoError(t, repo.AddEmergencyKeyword(ctx, "  "+kw+"  "))
	require.NoError(t, repo.AddEmergencyKeyword(ctx, kw), "duplicate insert is an upsert")
	assert.Error(t, repo.AddEmergencyKeyword(ctx, "   "))

	got, err := repo.ListEmergencyKeywords(ctx)
	require.NoError(t, err)
	assert.Contains(t, got, kw)

	_, err = conn.ExecContext(ctx, `DELETE FROM emergency_keywords WHERE keyword = $1`, kw)
	require.NoError(t, err)
}

func TestNotifyReachesListener(t *testing.T) {
	dsn := testDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close()

	channel := "guidance_test"
	ch, err := Listen(ctx, dsn, channel)
	require.NoError(t, err)

	id := uuid.NewString()
	require.NoError(t, NewNotifier(conn, channel).Notify(ctx, id))

	select {
	case got := <-ch:
		assert.Equal(t, id, got)
	case <-ctx.Done():
		t.Fatal("notification not received")
	}
}
