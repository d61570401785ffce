// Package database 数据库操作
package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"studysphere/pkg/logger"
)

// DB 对象
var DB *gorm.DB
var SQLDB *sql.DB

// Connect 连接数据库
func Connect(dbConfig gorm.Dialector, _logger gormlogger.Interface) error {
	var err error
	DB, err = Open(dbConfig, _logger)
	if err != nil {
		logger.ErrorString("数据库", "连接", err.Error())
		return err
	}

	// 获取底层的 sqlDB
	SQLDB, err = DB.DB()
	if err != nil {
		logger.ErrorString("数据库", "获取底层SQL", err.Error())
		return err
	}
	return nil
}

// Open 打开一个独立连接，驱动错误统一翻译为 gorm 错误（如 ErrDuplicatedKey）
func Open(dbConfig gorm.Dialector, _logger gormlogger.Interface) (*gorm.DB, error) {
	return gorm.Open(dbConfig, &gorm.Config{
		Logger:         _logger,
		TranslateError: true,
	})
}

// AutoMigrate 自动迁移所有数据表
func AutoMigrate(db *gorm.DB, tables []interface{}) error {
	return db.AutoMigrate(tables...)
}

// Ping 检查数据库连接
func Ping(ctx context.Context) error {
	if SQLDB == nil {
		return sql.ErrConnDone
	}
	return SQLDB.PingContext(ctx)
}
