package db

import (
	"log"

	"github.com/polyglot-chat/polyglot-server/internal/chat"
	"github.com/polyglot-chat/polyglot-server/internal/models"
	"github.com/polyglot-chat/polyglot-server/internal/tutor"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the MySQL connection and migrates the schema.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&tutor.Tutor{},
		&chat.Session{},
		&chat.Job{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
