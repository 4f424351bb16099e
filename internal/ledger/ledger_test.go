package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront/storeapi/internal/models"
)

func initTestLedger(t *testing.T) *Ledger {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.TokenRecord{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return New(db)
}

func entry(jti, tokenType, identity string, expiresAt time.Time) Entry {
	return Entry{JTI: jti, TokenType: tokenType, Identity: identity, ExpiresAt: expiresAt}
}

func TestRecordAndFindByJTI(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(15 * time.Minute)

	require.NoError(t, l.Record(ctx, entry("jti-1", models.TokenTypeAccess, "alice", exp)))

	rec, err := l.FindByJTI(ctx, "jti-1")
	require.NoError(t, err)
	require.Equal(t, "jti-1", rec.JTI)
	require.Equal(t, models.TokenTypeAccess, rec.TokenType)
	require.Equal(t, "alice", rec.UserIdentity)
	require.Equal(t, exp.Unix(), rec.ExpiresAt)
	require.False(t, rec.Revoked)
}

func TestFindByJTINotFound(t *testing.T) {
	l := initTestLedger(t)

	_, err := l.FindByJTI(context.Background(), "never-recorded")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRecordDuplicateJTI(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, l.Record(ctx, entry("jti-dup", models.TokenTypeAccess, "alice", exp)))

	err := l.Record(ctx, entry("jti-dup", models.TokenTypeRefresh, "bob", exp))
	require.ErrorIs(t, err, ErrDuplicateToken)
}

func TestRecordPairRollsBackOnCollision(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, l.Record(ctx, entry("jti-taken", models.TokenTypeRefresh, "alice", exp)))

	err := l.RecordPair(ctx,
		entry("jti-access", models.TokenTypeAccess, "alice", exp),
		entry("jti-taken", models.TokenTypeRefresh, "alice", exp),
	)
	require.ErrorIs(t, err, ErrDuplicateToken)

	// The access insert must not survive the failed pair.
	_, err = l.FindByJTI(ctx, "jti-access")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMarkRevoked(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, l.Record(ctx, entry("jti-2", models.TokenTypeAccess, "alice", exp)))
	require.NoError(t, l.MarkRevoked(ctx, "jti-2", "alice"))

	rec, err := l.FindByJTI(ctx, "jti-2")
	require.NoError(t, err)
	require.True(t, rec.Revoked)

	// Repeating the call keeps the same end state.
	require.NoError(t, l.MarkRevoked(ctx, "jti-2", "alice"))
	rec, err = l.FindByJTI(ctx, "jti-2")
	require.NoError(t, err)
	require.True(t, rec.Revoked)
}

func TestMarkRevokedWrongIdentity(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, l.Record(ctx, entry("jti-3", models.TokenTypeAccess, "alice", exp)))

	err := l.MarkRevoked(ctx, "jti-3", "mallory")
	require.ErrorIs(t, err, ErrTokenNotFound)

	rec, err := l.FindByJTI(ctx, "jti-3")
	require.NoError(t, err)
	require.False(t, rec.Revoked)
}

func TestFindByIdentity(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, l.Record(ctx, entry("jti-a", models.TokenTypeAccess, "alice", exp)))
	require.NoError(t, l.Record(ctx, entry("jti-r", models.TokenTypeRefresh, "alice", exp)))
	require.NoError(t, l.Record(ctx, entry("jti-b", models.TokenTypeAccess, "bob", exp)))
	require.NoError(t, l.MarkRevoked(ctx, "jti-a", "alice"))

	recs, err := l.FindByIdentity(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	revoked := 0
	for _, rec := range recs {
		require.Equal(t, "alice", rec.UserIdentity)
		if rec.Revoked {
			revoked++
		}
	}
	require.Equal(t, 1, revoked)
}

func TestPruneExpired(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Record(ctx, entry("jti-old", models.TokenTypeAccess, "alice", now.Add(-time.Minute))))
	require.NoError(t, l.Record(ctx, entry("jti-old-revoked", models.TokenTypeRefresh, "alice", now.Add(-time.Hour))))
	require.NoError(t, l.MarkRevoked(ctx, "jti-old-revoked", "alice"))
	require.NoError(t, l.Record(ctx, entry("jti-live", models.TokenTypeAccess, "alice", now.Add(time.Hour))))

	deleted, err := l.PruneExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	_, err = l.FindByJTI(ctx, "jti-old")
	require.ErrorIs(t, err, ErrTokenNotFound)
	_, err = l.FindByJTI(ctx, "jti-old-revoked")
	require.ErrorIs(t, err, ErrTokenNotFound)

	rec, err := l.FindByJTI(ctx, "jti-live")
	require.NoError(t, err)
	require.Equal(t, "jti-live", rec.JTI)
}

func TestUnrevoke(t *testing.T) {
	l := initTestLedger(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, l.Record(ctx, entry("jti-4", models.TokenTypeAccess, "alice", exp)))
	require.NoError(t, l.MarkRevoked(ctx, "jti-4", "alice"))

	rec, err := l.FindByJTI(ctx, "jti-4")
	require.NoError(t, err)

	require.NoError(t, l.Unrevoke(ctx, rec.ID, "alice"))
	rec, err = l.FindByJTI(ctx, "jti-4")
	require.NoError(t, err)
	require.False(t, rec.Revoked)

	require.ErrorIs(t, l.Unrevoke(ctx, rec.ID, "mallory"), ErrTokenNotFound)
}
