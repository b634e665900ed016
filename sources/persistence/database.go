package persistence

import (
	"fmt"
	"time"

	"colabai/sources/configuration"
	"colabai/sources/tracing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

func dsn(c configuration.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

func NewPostgresDatabase(config *configuration.Config, log *tracing.Logger) (*gorm.DB, error) {
	gormlogger := logger.New(
		&gormtracer{logger: log},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn(config.Database)), &gorm.Config{Logger: gormlogger})
	if err != nil {
		log.E("Failed to connect to database", tracing.InnerError, err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if len(config.Database.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(config.Database.Replicas))
		for _, replica := range config.Database.Replicas {
			if replica.SSLMode == "" {
				replica.SSLMode = config.Database.SSLMode
			}
			if replica.TimeZone == "" {
				replica.TimeZone = config.Database.TimeZone
			}
			replicas = append(replicas, postgres.Open(dsn(replica)))
		}

		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if err := db.Use(resolver); err != nil {
			log.E("Failed to register database replicas", tracing.InnerError, err)
			return nil, fmt.Errorf("failed to register database replicas: %w", err)
		}

		log.I("Database replicas registered", "replicas", len(replicas))
	}

	sqldb, err := db.DB()
	if err != nil {
		log.E("Failed to get underlying sql.DB", tracing.InnerError, err)
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	pool := config.Database.Pool
	sqldb.SetMaxOpenConns(pool.MaxOpenConns)
	sqldb.SetMaxIdleConns(pool.MaxIdleConns)
	sqldb.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	log.I("Database initialized successfully")
	return db, nil
}
