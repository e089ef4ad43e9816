package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBOptions 描述数据库连接参数
type DBOptions struct {
	Driver   string // "mysql" (默认) 或 "sqlite"
	User     string
	Password string
	Host     string
	Port     string
	Name     string // sqlite 时为文件路径或 DSN
}

// InitDB 根据驱动初始化数据库连接
func InitDB(opts DBOptions) (*gorm.DB, error) {
	switch opts.Driver {
	case "sqlite":
		return OpenSQLite(opts.Name)
	case "", "mysql":
		return openMySQL(opts)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
}

func openMySQL(opts DBOptions) (*gorm.DB, error) {
	if opts.User == "" {
		return nil, fmt.Errorf("DB_USER environment variable not set")
	}
	host, port := opts.Host, opts.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3306"
	}
	name := opts.Name
	if name == "" {
		name = "kanban_db"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		opts.User, opts.Password, host, port, name)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	logrus.WithFields(logrus.Fields{"host": host, "db": name}).Info("MySQL connected")
	return db, nil
}

// OpenSQLite 打开 SQLite 数据库 (本地开发与测试)。
// SQLite 同一时刻只允许一个写者，这里限制为单连接，事务天然串行。
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "kanban.db"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %s: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	logrus.WithField("dsn", dsn).Info("SQLite opened")
	return db, nil
}

// InitRedis 初始化 Redis 连接并检查连通性
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}
