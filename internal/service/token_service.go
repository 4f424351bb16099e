package service

import (
	"context"
	"errors"
	"time"

	"github.com/storefront/storeapi/internal/ledger"
	"github.com/storefront/storeapi/internal/metrics"
	"github.com/storefront/storeapi/internal/models"
	"github.com/storefront/storeapi/internal/tokens"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenService mints signed tokens, registers them in the ledger and answers
// revocation queries. Claims are snapshotted from the user record at mint
// time; the ledger row is the only thing that can invalidate a token before
// its expiry.
type TokenService struct {
	Ledger        *ledger.Ledger
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Clock         func() time.Time
	Metrics       *metrics.Metrics
}

func NewTokenService(l *ledger.Ledger, accessSecret, refreshSecret []byte, m *metrics.Metrics) *TokenService {
	return &TokenService{
		Ledger:        l,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
		Clock:         time.Now,
		Metrics:       m,
	}
}

type IssueResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	IsAdmin          bool
}

// Issue mints an access token with the given freshness plus a refresh token,
// and records both ledger rows in one transaction. Either both tokens are
// usable or neither is; a signing failure is fatal to the request and is not
// retried.
func (t *TokenService) Issue(ctx context.Context, user *models.User, fresh bool) (*IssueResult, error) {
	now := t.Clock()

	access, accessClaims, err := tokens.SignAccess(user, fresh, t.AccessTTL, t.AccessSecret, now)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := tokens.SignRefresh(user, t.RefreshTTL, t.RefreshSecret, now)
	if err != nil {
		return nil, err
	}

	err = t.Ledger.RecordPair(ctx,
		ledger.Entry{
			JTI:       accessClaims.ID,
			TokenType: models.TokenTypeAccess,
			Identity:  user.Username,
			ExpiresAt: accessClaims.ExpiresAt.Time,
		},
		ledger.Entry{
			JTI:       refreshClaims.ID,
			TokenType: models.TokenTypeRefresh,
			Identity:  user.Username,
			ExpiresAt: refreshClaims.ExpiresAt.Time,
		},
	)
	if err != nil {
		return nil, err
	}

	t.Metrics.IncIssued(models.TokenTypeAccess)
	t.Metrics.IncIssued(models.TokenTypeRefresh)

	return &IssueResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
		IsAdmin:          user.IsAdmin,
	}, nil
}

// Refresh mints a new access token for a user whose refresh token has already
// been verified. No password is checked here, so the token is never fresh.
func (t *TokenService) Refresh(ctx context.Context, user *models.User) (string, time.Time, error) {
	now := t.Clock()

	access, claims, err := tokens.SignAccess(user, false, t.AccessTTL, t.AccessSecret, now)
	if err != nil {
		return "", time.Time{}, err
	}

	err = t.Ledger.Record(ctx, ledger.Entry{
		JTI:       claims.ID,
		TokenType: models.TokenTypeAccess,
		Identity:  user.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	})
	if err != nil {
		return "", time.Time{}, err
	}

	t.Metrics.IncIssued(models.TokenTypeAccess)
	return access, claims.ExpiresAt.Time, nil
}

// IsRevoked answers whether the jti is currently revoked. A jti with no
// ledger row reads as revoked: every token this service mints gets a row, so
// an unknown one was either pruned or never ours.
func (t *TokenService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	rec, err := t.Ledger.FindByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, ledger.ErrTokenNotFound) {
			return true, nil
		}
		return false, err
	}
	return rec.Revoked, nil
}

// Revoke marks the (jti, identity) pair revoked. Revoked is terminal for
// every flow in the API; only the unreachable ledger Unrevoke can undo it.
func (t *TokenService) Revoke(ctx context.Context, jti, identity string) error {
	if err := t.Ledger.MarkRevoked(ctx, jti, identity); err != nil {
		return err
	}
	t.Metrics.IncRevoked()
	return nil
}

func (t *TokenService) ListTokens(ctx context.Context, identity string) ([]models.TokenRecord, error) {
	return t.Ledger.FindByIdentity(ctx, identity)
}

// Prune deletes every expired ledger row and returns the count. Invoked by an
// explicit administrative request, never a timer.
func (t *TokenService) Prune(ctx context.Context) (int64, error) {
	n, err := t.Ledger.PruneExpired(ctx, t.Clock())
	if err != nil {
		return 0, err
	}
	t.Metrics.AddPruned(n)
	return n, nil
}
