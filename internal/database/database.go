package database

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/store"
)

const connectTimeout = 30 * time.Second

// Connections holds the clients of every backing service. Only Store is
// always set; the others are nil when their settings are missing or the
// service could not be reached.
type Connections struct {
	Store   store.Store
	SQL     *gorm.DB
	Redis   *redis.Client
	Elastic *elasticsearch.Client
	MinIO   *minio.Client
}

// Connect opens the store and the optional services. Only a failing SQL
// database is fatal.
func Connect(ctx context.Context, cfg *config.Config) (*Connections, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conns := &Connections{}
	if cfg.DemoMode {
		mem := store.NewMemoryStore()
		if err := store.SeedDemo(ctx, mem); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		conns.Store = mem
		logrus.Info("✅ Demo mode: in-memory store seeded")
	} else {
		db, err := OpenSQL(cfg.DB, cfg.IsProd)
		if err != nil {
			return nil, err
		}
		conns.SQL = db
		conns.Store = store.NewGormStore(db)
		logrus.WithField("driver", cfg.DB.Driver).Info("✅ SQL database connected")
	}

	conns.Redis = connectRedis(ctx, cfg.Redis)
	conns.Elastic = connectElastic(ctx, cfg.Elastic)
	conns.MinIO = connectMinIO(ctx, cfg.MinIO)
	return conns, nil
}

// OpenSQL opens the gorm handle for the configured driver.
func OpenSQL(cfg config.DBConfig, quiet bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.Name)
	default:
		dialector = mysql.Open(cfg.DSN())
	}

	level := gormlogger.Warn
	if quiet {
		level = gormlogger.Error
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		logrus.Warn("⚠️ REDIS_ADDR not set: cache, rate limits and token revocation disabled")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Error("❌ Redis unreachable, continuing without it")
		_ = rdb.Close()
		return nil
	}
	logrus.WithField("addr", cfg.Addr).Info("✅ Redis connected")
	return rdb
}

func connectElastic(ctx context.Context, cfg config.ElasticConfig) *elasticsearch.Client {
	if cfg.URL == "" {
		logrus.Warn("⚠️ ELASTIC_URL not set: text search falls back to the database")
		return nil
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		logrus.WithError(err).Error("❌ Elasticsearch client not created")
		return nil
	}
	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		logrus.WithError(err).Error("❌ Elasticsearch unreachable, continuing without it")
		return nil
	}
	defer res.Body.Close()
	if res.IsError() {
		logrus.WithField("status", res.Status()).Error("❌ Elasticsearch answered with an error")
		return nil
	}
	logrus.Info("✅ Elasticsearch connected")
	return es
}

func connectMinIO(ctx context.Context, cfg config.MinIOConfig) *minio.Client {
	if cfg.Endpoint == "" {
		logrus.Warn("⚠️ MINIO_ENDPOINT not set: product image upload disabled")
		return nil
	}
	client, err := services.NewMinioClient(cfg)
	if err != nil {
		logrus.WithError(err).Error("❌ MinIO client not created")
		return nil
	}
	if err := services.NewImages(client, cfg.Bucket).EnsureBucket(ctx); err != nil {
		logrus.WithError(err).Error("❌ MinIO unreachable, continuing without it")
		return nil
	}
	logrus.WithField("bucket", cfg.Bucket).Info("✅ MinIO connected")
	return client
}

// Close releases every open connection.
func (c *Connections) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logrus.WithError(err).Warn("⚠️ Redis close failed")
		}
	}
	if c.SQL != nil {
		if sqlDB, err := c.SQL.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
