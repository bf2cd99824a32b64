package db

import (
	"context"
	"fmt"

	"gatepass/internal/config"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens Postgres when POSTGRES_DSN is set. Without a DSN the store
// has no DB and callers fall back to in-memory repositories.
func NewStore(cfg config.Config, log zerolog.Logger) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Info().Msg("POSTGRES_DSN not set; admissions are kept in memory")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.WithContext(ctx).AutoMigrate(&AdmissionModel{})
}

func (s *Store) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
