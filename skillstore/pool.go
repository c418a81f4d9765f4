package skillstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PoolConfig tunes the underlying *sql.DB connection pool.
type PoolConfig struct {
	MaxIdleConns        int
	MaxOpenConns        int
	ConnMaxLifetime     time.Duration
	ConnMaxIdleTime     time.Duration
	HealthCheckInterval time.Duration
}

// DefaultPoolConfig returns conservative defaults suited to a single-process,
// mostly-local-file backend.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        5,
		MaxOpenConns:        10,
		ConnMaxLifetime:     30 * time.Minute,
		ConnMaxIdleTime:     5 * time.Minute,
		HealthCheckInterval: time.Minute,
	}
}

// pool wraps a *gorm.DB with pool tuning, periodic health checks and
// retrying transactions, modeled on this codebase's connection pool.
type pool struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *zap.Logger

	stopHealth chan struct{}
}

func newPool(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*pool, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	p := &pool{db: db, sqlDB: sqlDB, logger: logger, stopHealth: make(chan struct{})}
	if cfg.HealthCheckInterval > 0 {
		go p.healthCheckLoop(cfg.HealthCheckInterval)
	}
	return p, nil
}

func (p *pool) healthCheckLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.sqlDB.PingContext(ctx); err != nil {
				p.logger.Warn("skill store health check failed", zap.Error(err))
			}
			cancel()
		case <-p.stopHealth:
			return
		}
	}
}

// Ping verifies the connection is alive.
func (p *pool) Ping(ctx context.Context) error {
	return p.sqlDB.PingContext(ctx)
}

// Close stops the health-check loop and closes the underlying connection.
func (p *pool) Close() error {
	close(p.stopHealth)
	return p.sqlDB.Close()
}

// TransactionFunc is executed inside a GORM transaction.
type TransactionFunc func(tx *gorm.DB) error

// withTransactionRetry runs fn inside a transaction, retrying with bounded
// exponential backoff when the failure looks transient.
func (p *pool) withTransactionRetry(ctx context.Context, maxRetries int, fn TransactionFunc) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = p.db.WithContext(ctx).Transaction(fn)
		if lastErr == nil {
			return nil
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"deadlock",
		"serialization failure",
		"40001",
		"connection reset",
		"connection refused",
		"broken pipe",
		"lock timeout",
		"lock wait timeout",
		"database is locked",
		"bad connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
