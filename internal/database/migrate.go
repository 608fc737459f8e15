package database

import (
	"leadflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Models 参与迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.QuizQuestion{},
		&models.Lead{},
		&models.QuizResponse{},
		&models.LeadScore{},
		&models.Workflow{},
		&models.KnowledgeDocument{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		log.Errorf("Database migration failed: %v", err)
		return err
	}

	log.Info("Database migration completed successfully")
	return nil
}
