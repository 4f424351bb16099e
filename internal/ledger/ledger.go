package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/storefront/storeapi/internal/models"
)

var (
	// ErrTokenNotFound is returned when no ledger row matches the lookup.
	// For MarkRevoked the lookup is on the (jti, identity) pair, so one
	// identity can never revoke another's token by guessing its jti.
	ErrTokenNotFound = errors.New("token not found")
	// ErrDuplicateToken means a jti collided on insert. JTIs are generated
	// per mint, so this is an invariant violation; it is never retried.
	ErrDuplicateToken = errors.New("duplicate token identifier")
)

// Entry describes a token to be recorded.
type Entry struct {
	JTI       string
	TokenType string
	Identity  string
	ExpiresAt time.Time
}

// Ledger persists one row per issued token. Uniqueness of jti is enforced by
// the database index, not application locking.
type Ledger struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Ledger { return &Ledger{DB: db} }

// Record inserts a new token row with Revoked=false.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	return record(l.DB.WithContext(ctx), e)
}

// RecordPair inserts the login access+refresh pair in one transaction, so a
// failure on the second insert never leaves a half-issued pair behind.
func (l *Ledger) RecordPair(ctx context.Context, access, refresh Entry) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := record(tx, access); err != nil {
			return err
		}
		return record(tx, refresh)
	})
}

func record(tx *gorm.DB, e Entry) error {
	rec := models.TokenRecord{
		JTI:          e.JTI,
		TokenType:    e.TokenType,
		UserIdentity: e.Identity,
		ExpiresAt:    e.ExpiresAt.Unix(),
		Revoked:      false,
	}
	if err := tx.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateToken, e.JTI)
		}
		return fmt.Errorf("record token: %w", err)
	}
	return nil
}

func (l *Ledger) FindByJTI(ctx context.Context, jti string) (*models.TokenRecord, error) {
	var rec models.TokenRecord
	if err := l.DB.WithContext(ctx).Where("jti = ?", jti).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	return &rec, nil
}

// FindByIdentity returns every token row for the identity, revoked or not,
// access and refresh alike.
func (l *Ledger) FindByIdentity(ctx context.Context, identity string) ([]models.TokenRecord, error) {
	var recs []models.TokenRecord
	if err := l.DB.WithContext(ctx).Where("user_identity = ?", identity).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return recs, nil
}

// MarkRevoked flips the Revoked flag on the row matching the (jti, identity)
// pair. Repeating the call leaves the same end state.
func (l *Ledger) MarkRevoked(ctx context.Context, jti, identity string) error {
	result := l.DB.WithContext(ctx).Model(&models.TokenRecord{}).
		Where("jti = ? AND user_identity = ?", jti, identity).
		Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("revoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, jti)
	}
	return nil
}

// Unrevoke clears the Revoked flag by record id. Administrative capability
// only; no route reaches it.
func (l *Ledger) Unrevoke(ctx context.Context, id uint, identity string) error {
	result := l.DB.WithContext(ctx).Model(&models.TokenRecord{}).
		Where("id = ? AND user_identity = ?", id, identity).
		Update("revoked", false)
	if result.Error != nil {
		return fmt.Errorf("unrevoke token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: record %d", ErrTokenNotFound, id)
	}
	return nil
}

// PruneExpired bulk-deletes every row past its expiry, revoked or not, and
// returns the number removed. A row that expires between selection and commit
// is caught on the next pass.
func (l *Ledger) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	result := l.DB.WithContext(ctx).
		Where("expires_at < ?", now.Unix()).
		Delete(&models.TokenRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
