package store

import (
	"context"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/pkmprice/internal/model"
	"github.com/guarzo/pkmprice/internal/testutil"
)

func TestRecordConversion(t *testing.T) {
	at := time.Date(2025, time.June, 7, 12, 0, 0, 0, time.UTC)
	rec := model.PriceRecord{CardName: "Pikachu ex", CardID: "sv3pt5-173", Number: "173", Price: 12.5, RecordedAt: at}

	row := fromRecord(rec)
	assert.Zero(t, row.ID, "id is assigned by the database")
	assert.Equal(t, "Pikachu ex", row.Name)
	assert.Equal(t, "sv3pt5-173", row.CardID)
	assert.Equal(t, 12.5, row.LastPrice)
	assert.Equal(t, at.Unix(), row.Date)

	assert.Equal(t, rec, row.Record())
}

func TestRecordNumberWithoutDash(t *testing.T) {
	row := CardPrice{Name: "Odd", CardID: "nodash", Date: 0}
	assert.Equal(t, "", row.Record().Number)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "cards", CardPrice{}.TableName())
}

func TestStoreSQLiteMemory(t *testing.T) {
	s, err := Open(SQLiteScheme+":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestStoreReopenKeepsRows(t *testing.T) {
	dsn := testutil.SQLiteDSN(t)
	ctx := context.Background()

	s, err := Open(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, model.PriceRecord{CardName: "Mew ex", CardID: "sv3pt5-151", Price: 9, RecordedAt: time.Now()}))
	require.NoError(t, s.Close())

	// The table already exists the second time.
	again, err := Open(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })

	rows, err := again.All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mew ex", rows[0].Name)
}

func TestDialector(t *testing.T) {
	_, isSQLite := dialector("sqlite://prices.db")
	assert.True(t, isSQLite)
	_, isSQLite = dialector("user:pw@tcp(localhost:3306)/cards?parseTime=true")
	assert.False(t, isSQLite)
}

// TestIntegrationStore needs a disposable MySQL database.
func TestIntegrationStore(t *testing.T) {
	dsn := testutil.MySQLDSN(t)

	s, err := Open(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Exec("DROP TABLE IF EXISTS cards")
		_ = s.Close()
	})

	exerciseStore(t, s)

	// Opening again must not fail on the existing table.
	again, err := Open(dsn, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func exerciseStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	cardID := "test-" + faker.Word()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	assert.True(t, s.db.Migrator().HasTable("cards"))

	// Same card twice: both rows are kept.
	for i, price := range []float64{1.5, 2.25} {
		err := s.Insert(ctx, model.PriceRecord{
			CardName:   "Pikachu ex",
			CardID:     cardID,
			Price:      price,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	require.NoError(t, s.Insert(ctx, model.PriceRecord{CardName: "Other", CardID: "sv1-1", Price: 1, RecordedAt: base}))

	history, err := s.History(ctx, cardID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2.25, history[0].LastPrice, "newest first")
	assert.Equal(t, 1.5, history[1].LastPrice)
	assert.Greater(t, history[0].ID, history[1].ID, "ids increase per insert")
	assert.Equal(t, base.Add(time.Minute).Unix(), history[0].Date)

	limited, err := s.History(ctx, cardID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 2.25, limited[0].LastPrice)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 3)
	assert.Equal(t, history[0].ID, all[0].ID, "newest row first")
}
