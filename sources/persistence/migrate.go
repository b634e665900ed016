package persistence

import (
	"context"
	"time"

	"colabai/sources/persistence/entities"
	"colabai/sources/platform"
	"colabai/sources/tracing"

	"gorm.io/gorm"
)

// Migrate creates or alters the tables of every entity.
func Migrate(ctx context.Context, db *gorm.DB, log *tracing.Logger) error {
	defer tracing.ProfilePoint(log, "Migration completed", "persistence.migrate")()
	ctx, cancel := platform.ContextTimeoutVal(ctx, 2*time.Minute)
	defer cancel()

	if err := db.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		log.E("Failed to migrate database", tracing.InnerError, err)
		return err
	}

	log.I("Database migrated", "tables", len(entities.All()))
	return nil
}
