package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/lasttime-backend/internal/data/repos"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

type Repos struct {
	Category       repos.CategoryRepo
	ActivityRecord repos.ActivityRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Category:       repos.NewCategoryRepo(db, log),
		ActivityRecord: repos.NewActivityRecordRepo(db, log),
	}
}
