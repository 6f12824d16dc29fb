package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"platial-atlas/internal/config"
)

// PostgreSQLClient PostgreSQL(PostGIS)接続クライアント
type PostgreSQLClient struct {
	DB *sql.DB
}

// NewPostgreSQLClient 新しいPostgreSQLクライアントを作成
func NewPostgreSQLClient(cfg config.DatabaseConfig) (*PostgreSQLClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL環境変数が設定されていません")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL接続の初期化に失敗: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 接続テスト
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("PostgreSQLへの接続に失敗: %w", err)
	}

	return &PostgreSQLClient{
		DB: db,
	}, nil
}

// NewPostgreSQLClientWithRetry 接続できるまで指定回数リトライしてクライアントを作成
func NewPostgreSQLClientWithRetry(cfg config.DatabaseConfig, attempts int, interval time.Duration, logger *zap.Logger) (*PostgreSQLClient, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		client, err := NewPostgreSQLClient(cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if logger != nil {
			logger.Warn("PostgreSQL接続リトライ", zap.Int("attempt", i), zap.Int("max", attempts), zap.Error(err))
		}
		if i < attempts {
			time.Sleep(interval)
		}
	}
	return nil, fmt.Errorf("PostgreSQLへの接続が%d回失敗: %w", attempts, lastErr)
}

// Close データベース接続を閉じる
func (pc *PostgreSQLClient) Close() error {
	if pc.DB != nil {
		return pc.DB.Close()
	}
	return nil
}

// HealthCheck データベース接続のヘルスチェック
func (pc *PostgreSQLClient) HealthCheck(ctx context.Context) error {
	if pc.DB == nil {
		return fmt.Errorf("PostgreSQLクライアントが初期化されていません")
	}
	return pc.DB.PingContext(ctx)
}
