package database

import (
	"herdshare-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// Models lists every table owned by the allocation core.
func Models() []interface{} {
	return []interface{}{
		&domain.Asset{},
		&domain.Offering{},
		&domain.ShareTag{},
		&domain.PreGeneratedTag{},
		&domain.Order{},
		&domain.Holding{},
		&domain.OrderEvent{},
	}
}

// AutoMigrate runs migrations for all allocation models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
