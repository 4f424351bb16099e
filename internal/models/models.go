package models

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"name"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	IsAdmin      bool   `gorm:"default:false"            json:"is_admin"`
}

type Store struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"unique;not null"          json:"name"`
}

type Item struct {
	ID      uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string  `gorm:"unique;not null"          json:"name"`
	Price   float64 `gorm:"not null"                 json:"price"`
	StoreID uint    `gorm:"index;not null"           json:"store_id"`
}

// TokenRecord is one row of the token ledger. Every issued token gets a row
// at mint time; only the Revoked flag ever changes afterwards, and rows leave
// the table only through pruning once expired.
type TokenRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"token_id"`
	JTI          string `gorm:"uniqueIndex;not null"     json:"jti"`
	TokenType    string `gorm:"not null"                 json:"token_type"`
	UserIdentity string `gorm:"index;not null"           json:"user_identity"`
	ExpiresAt    int64  `gorm:"not null"                 json:"expires_at"`
	Revoked      bool   `gorm:"default:false"            json:"revoked"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Store{}, &Item{}, &TokenRecord{}}
}
