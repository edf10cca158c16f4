package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/guarzo/pkmprice/internal/model"
)

// CardPrice is one row of the cards table. Every lookup adds a row, so the
// table doubles as a price history.
type CardPrice struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement"`
	Name      string  `gorm:"size:250;not null"`
	CardID    string  `gorm:"column:card_id;size:250;not null;index"`
	LastPrice float64 `gorm:"column:last_price;not null"`
	Date      int64   `gorm:"column:date"` // unix seconds
}

func (CardPrice) TableName() string { return "cards" }

// Record converts the row back to a price record.
func (c CardPrice) Record() model.PriceRecord {
	number := ""
	if i := strings.LastIndex(c.CardID, "-"); i >= 0 {
		number = c.CardID[i+1:]
	}
	return model.PriceRecord{
		CardName:   c.Name,
		CardID:     c.CardID,
		Number:     number,
		Price:      c.LastPrice,
		RecordedAt: time.Unix(c.Date, 0).UTC(),
	}
}

func fromRecord(r model.PriceRecord) CardPrice {
	return CardPrice{
		Name:      r.CardName,
		CardID:    r.CardID,
		LastPrice: r.Price,
		Date:      r.RecordedAt.Unix(),
	}
}

// Store persists price records.
type Store struct {
	db *gorm.DB
}

// SQLiteScheme selects the SQLite driver, e.g. "sqlite://prices.db" or
// "sqlite://:memory:". Any other DSN is handed to the MySQL driver.
const SQLiteScheme = "sqlite://"

func dialector(dsn string) (gorm.Dialector, bool) {
	if path, ok := strings.CutPrefix(dsn, SQLiteScheme); ok {
		return sqlite.Open(path), true
	}
	return mysql.Open(dsn), false
}

// Open connects to the database named by dsn and makes sure the cards table
// exists.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	dial, isSQLite := dialector(dsn)
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.New(gormWriter{log: log}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if isSQLite {
		// One connection: SQLite serialises writers, and an in-memory
		// database lives only as long as its connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return New(db)
}

// New wraps an open gorm connection, creating the cards table if absent.
func New(db *gorm.DB) (*Store, error) {
	m := db.Migrator()
	if !m.HasTable(&CardPrice{}) {
		if err := m.CreateTable(&CardPrice{}); err != nil {
			return nil, fmt.Errorf("create cards table: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Insert adds a row for rec. It never updates an existing row.
func (s *Store) Insert(ctx context.Context, rec model.PriceRecord) error {
	row := fromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert price for %s: %w", rec.CardID, err)
	}
	return nil
}

// History returns up to limit rows for cardID, newest first. A limit of 0
// or less returns every row.
func (s *Store) History(ctx context.Context, cardID string, limit int) ([]CardPrice, error) {
	q := s.db.WithContext(ctx).Where("card_id = ?", cardID).Order("date DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []CardPrice
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history for %s: %w", cardID, err)
	}
	return rows, nil
}

// All returns every row, newest first.
func (s *Store) All(ctx context.Context) ([]CardPrice, error) {
	var rows []CardPrice
	if err := s.db.WithContext(ctx).Order("date DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return rows, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter routes gorm's warnings (slow queries, errors) to zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Str("component", "store").Msgf(format, args...)
}
