package tracker

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/lasttime-backend/internal/domain"
	"github.com/yungbote/lasttime-backend/internal/platform/dbctx"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

type ActivityListFilter struct {
	UserID     string
	CategoryID *uint
	Offset     int
	Limit      int
}

// ActivityRecordRepo queries are always scoped by owner, except ClearCategory
// which follows the foreign key.
type ActivityRecordRepo interface {
	Upsert(dbc dbctx.Context, rec *types.ActivityRecord) (*types.ActivityRecord, error)
	GetByActivity(dbc dbctx.Context, userID string, activity string) (*types.ActivityRecord, error)
	List(dbc dbctx.Context, filter ActivityListFilter) ([]*types.ActivityRecord, error)
	DeleteByActivity(dbc dbctx.Context, userID string, activity string) (int64, error)
	ClearCategory(dbc dbctx.Context, categoryID uint) (int64, error)
}

type activityRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityRecordRepo(db *gorm.DB, baseLog *logger.Logger) ActivityRecordRepo {
	return &activityRecordRepo{db: db, log: baseLog.With("repo", "ActivityRecordRepo")}
}

// Upsert inserts rec or, when (user_id, activity) already exists, refreshes
// last_date and category_id in place. The stored row is returned.
func (r *activityRecordRepo) Upsert(dbc dbctx.Context, rec *types.ActivityRecord) (*types.ActivityRecord, error) {
	conn := dbc.Conn(r.db)
	if err := conn.
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "activity"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_date", "category_id", "updated_at"}),
		}).
		Create(rec).Error; err != nil {
		return nil, err
	}
	return r.GetByActivity(dbc, rec.UserID, rec.Activity)
}

func (r *activityRecordRepo) GetByActivity(dbc dbctx.Context, userID string, activity string) (*types.ActivityRecord, error) {
	var out []*types.ActivityRecord
	if err := dbc.Conn(r.db).
		Preload("Category").
		Where("user_id = ? AND activity = ?", userID, activity).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *activityRecordRepo) List(dbc dbctx.Context, filter ActivityListFilter) ([]*types.ActivityRecord, error) {
	q := dbc.Conn(r.db).
		Preload("Category").
		Where("user_id = ?", filter.UserID)
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	out := []*types.ActivityRecord{}
	if err := q.
		Order("last_date DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityRecordRepo) DeleteByActivity(dbc dbctx.Context, userID string, activity string) (int64, error) {
	res := dbc.Conn(r.db).
		Where("user_id = ? AND activity = ?", userID, activity).
		Delete(&types.ActivityRecord{})
	return res.RowsAffected, res.Error
}

func (r *activityRecordRepo) ClearCategory(dbc dbctx.Context, categoryID uint) (int64, error) {
	res := dbc.Conn(r.db).
		Model(&types.ActivityRecord{}).
		Where("category_id = ?", categoryID).
		Update("category_id", nil)
	return res.RowsAffected, res.Error
}
