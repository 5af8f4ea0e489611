package storage

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ragchat/config"
)

type Postgres struct {
	*gorm.DB
}

func NewPostgresConn(cfg *config.PostgresConfig) (*Postgres, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	db, err := gorm.Open(postgres.Open(GetURL(cfg)), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database connection: %w", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetConnMaxLifetime(cfg.MaxLife)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{db}, nil
}

// CreateTables 使用GORM的AutoMigrate自动创建表
func (db *Postgres) CreateTables() error {
	if err := db.AutoMigrate(&UserModel{}, &SessionModel{}, &MessageModel{}, &DocumentModel{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (db *Postgres) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

func GetURL(cfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Address, cfg.User, cfg.Password, cfg.DBName, cfg.Port)
}

// utcNow keeps stored timestamps in UTC regardless of server locale.
func utcNow() time.Time {
	return time.Now().UTC()
}
