package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Store is the control-plane record for one logical store. Prefix is the
// immutable namespace every per-store collection name is derived from;
// ShardID never changes after creation.
type Store struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	StoreID   string       `gorm:"type:text;not null;uniqueIndex" json:"store_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Prefix    string       `gorm:"type:text;not null;uniqueIndex" json:"prefix"`
	ShardID   int          `gorm:"not null" json:"shard_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Store) TableName() string { return "stores" }

var prefixPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidPrefix reports whether a string is usable as a collection prefix.
func ValidPrefix(prefix string) bool {
	return prefix != "" && prefixPattern.MatchString(prefix)
}

// SlugifyPrefix derives a prefix candidate from a store name: lowercased,
// with every run of non-prefix characters collapsed to one underscore.
func SlugifyPrefix(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range lowered {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
