package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-rooms/internal/domain"
)

// Models 列出所有需要迁移的表
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Room{},
		&domain.Membership{},
		&domain.Round{},
		&domain.Vote{},
		&domain.Stroke{},
		&domain.ChatMessage{},
	}
}

// MigrateDB 自动迁移所有表结构。
// MySQL 下统一使用 utf8mb4，卡牌里的 ½ 和 ☕ 需要它。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	migrator := db
	if db.Dialector.Name() == "mysql" {
		migrator = db.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci")
	}
	if err := migrator.AutoMigrate(Models()...); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
