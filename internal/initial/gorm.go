package initial

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ReqGraph/internal/config"
	"ReqGraph/internal/modules/rag/infrastructure/persistence"
	"ReqGraph/pkg/zlog"
)

var GormDB *gorm.DB

func init() {
	conf := config.GetConfig()
	path := conf.StoreConfig.Path
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			zlog.Fatal(err.Error())
		}
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	var err error
	GormDB, err = gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		zlog.Fatal(err.Error())
	}
	if err = persistence.Migrate(GormDB); err != nil {
		zlog.Fatal(err.Error())
	}
}
