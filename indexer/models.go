package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one indexed ledger event. Accounts are stored in their
// bech32 form and amounts as decimal strings.
type EventRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height    uint64    `gorm:"not null;index:idx_event_position,priority:1"`
	Sequence  uint64    `gorm:"not null;index:idx_event_position,priority:2"`
	Type      string    `gorm:"not null;index"`
	Delegator string    `gorm:"index"`
	Delegate  string    `gorm:"index"`
	From      string    `gorm:"column:from_account"`
	To        string    `gorm:"column:to_account"`
	Previous  string
	Current   string
	Amount    string
	CreatedAt time.Time
}

// TableName pins the table name across drivers.
func (EventRecord) TableName() string { return "ledger_events" }

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
