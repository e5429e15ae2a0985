// Package dbtest opens throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vegshop/vegshop-backend/pkg/db"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
)

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&models.InventoryItem{},
		&models.BillCounter{},
		&models.Order{},
		&models.OrderLine{},
		&models.OutboxEvent{},
	}
}

// Open returns a client over a private in-memory database. A single pooled
// connection serializes concurrent transactions the way sqlite requires.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:vegshop_%s?mode=memory&cache=shared", uuid.NewString())
	return open(t, dsn, 1)
}

// OpenPool returns a client over a WAL database file with conns pooled
// connections, so transactions overlap and lost races reach the retry path.
func OpenPool(t testing.TB, conns int) *db.Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vegshop.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	return open(t, dsn, conns)
}

func open(t testing.TB, dsn string, conns int) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.Wrap(conn)
}
