package tracker

import (
	"gorm.io/gorm"

	types "github.com/yungbote/lasttime-backend/internal/domain"
	"github.com/yungbote/lasttime-backend/internal/platform/dbctx"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

// CategoryRepo queries are always scoped by owner.
type CategoryRepo interface {
	Create(dbc dbctx.Context, category *types.Category) (*types.Category, error)
	GetByID(dbc dbctx.Context, userID string, id uint) (*types.Category, error)
	GetByName(dbc dbctx.Context, userID string, name string) (*types.Category, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.Category, error)
	DeleteByID(dbc dbctx.Context, userID string, id uint) (int64, error)
}

type categoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRepo {
	return &categoryRepo{db: db, log: baseLog.With("repo", "CategoryRepo")}
}

func (r *categoryRepo) Create(dbc dbctx.Context, category *types.Category) (*types.Category, error) {
	if err := dbc.Conn(r.db).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepo) GetByID(dbc dbctx.Context, userID string, id uint) (*types.Category, error) {
	var out []*types.Category
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND id = ?", userID, id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *categoryRepo) GetByName(dbc dbctx.Context, userID string, name string) (*types.Category, error) {
	var out []*types.Category
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND name = ?", userID, name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *categoryRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.Category, error) {
	out := []*types.Category{}
	if err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("name ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *categoryRepo) DeleteByID(dbc dbctx.Context, userID string, id uint) (int64, error) {
	res := dbc.Conn(r.db).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&types.Category{})
	return res.RowsAffected, res.Error
}
