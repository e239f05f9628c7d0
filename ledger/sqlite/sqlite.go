package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/govm-net/vmhost/ledger"
)

const (
	defaultDBPath = "./ledger.db"
)

// DBEntry represents one ledger entry in the database
type DBEntry struct {
	Key       []byte `gorm:"column:entry_key;primaryKey"`
	Value     []byte `gorm:"column:entry_value;type:blob;not null"`
	LiveUntil uint32 `gorm:"column:live_until;not null;index"`
}

// TableName specifies the table name for DBEntry
func (DBEntry) TableName() string {
	return "ledger_entries"
}

// Ledger implements ledger.Snapshot using SQLite with GORM
type Ledger struct {
	db *gorm.DB
}

func init() {
	if err := ledger.Register(ledger.SQLiteBackend, func(params map[string]any) (ledger.Snapshot, error) {
		return Open(params)
	}); err != nil {
		panic(err)
	}
}

// Open opens or creates the database named by params["db_path"]
func Open(params map[string]any) (*Ledger, error) {
	dbPath := defaultDBPath
	if path, ok := params["db_path"].(string); ok && path != "" {
		dbPath = path
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&DBEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Get implements ledger.Snapshot
func (l *Ledger) Get(key []byte) (*ledger.Entry, error) {
	var row DBEntry
	result := l.db.Where("entry_key = ?", key).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get entry: %w", result.Error)
	}
	return &ledger.Entry{Value: row.Value, LiveUntil: row.LiveUntil}, nil
}

// Apply implements ledger.Snapshot
func (l *Ledger) Apply(changes []ledger.Change) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			if c.Entry == nil {
				if err := tx.Where("entry_key = ?", c.Key).Delete(&DBEntry{}).Error; err != nil {
					return fmt.Errorf("failed to delete entry: %w", err)
				}
				continue
			}
			row := DBEntry{Key: c.Key, Value: c.Entry.Value, LiveUntil: c.Entry.LiveUntil}
			if row.Value == nil {
				row.Value = []byte{}
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "entry_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"entry_value", "live_until"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to write entry: %w", err)
			}
		}
		return nil
	})
}

// Close implements ledger.Snapshot
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
