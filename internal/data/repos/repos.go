package repos

import (
	"github.com/yungbote/lasttime-backend/internal/data/repos/tracker"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type CategoryRepo = tracker.CategoryRepo
type ActivityRecordRepo = tracker.ActivityRecordRepo
type ActivityListFilter = tracker.ActivityListFilter

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return tracker.NewCategoryRepo(db, baseLog)
}
func NewActivityRecordRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRecordRepo {
	return tracker.NewActivityRecordRepo(db, baseLog)
}
