package db

import (
  "fmt"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
  "github.com/crestdesk/crestdesk-backend/internal/platform/envutil"
  "github.com/crestdesk/crestdesk-backend/internal/types"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  postgresHost := envutil.String("POSTGRES_HOST", "localhost")
  postgresPort := envutil.String("POSTGRES_PORT", "5432")
  postgresUser := envutil.String("POSTGRES_USER", "postgres")
  postgresPassword := envutil.String("POSTGRES_PASSWORD", "")
  postgresName := envutil.String("POSTGRES_NAME", "crestdesk")
  sslMode := envutil.String("POSTGRES_SSLMODE", "disable")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, sslMode)

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Organization{},
    &types.UserProfile{},
    &types.OrganizationMember{},
    &types.Conversation{},
    &types.ActivityContext{},
    &types.DataSourceConnection{},
    &types.IngestionRun{},
    &types.Document{},
    &types.DelegationToken{},
    &types.DelegationAuditLog{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
