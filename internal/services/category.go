package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/lasttime-backend/internal/data/db"
	"github.com/yungbote/lasttime-backend/internal/data/repos"
	types "github.com/yungbote/lasttime-backend/internal/domain"
	"github.com/yungbote/lasttime-backend/internal/normalization"
	"github.com/yungbote/lasttime-backend/internal/platform/apierr"
	"github.com/yungbote/lasttime-backend/internal/platform/dbctx"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

type CategoryService interface {
	Create(ctx context.Context, userID string, name string) (*types.Category, error)
	List(ctx context.Context, userID string) ([]*types.Category, error)
	Delete(ctx context.Context, userID string, categoryID uint) error
}

type categoryService struct {
	db         *db.Service
	log        *logger.Logger
	categories repos.CategoryRepo
	activities repos.ActivityRecordRepo
}

func NewCategoryService(
	store *db.Service,
	baseLog *logger.Logger,
	categories repos.CategoryRepo,
	activities repos.ActivityRecordRepo,
) CategoryService {
	return &categoryService{
		db:         store,
		log:        baseLog.With("service", "CategoryService"),
		categories: categories,
		activities: activities,
	}
}

func errCategoryNotFound() error {
	return apierr.NotFound("category_not_found", "Category not found")
}

func errCategoryExists() error {
	return apierr.Conflict("category_exists", "Category already exists")
}

func (s *categoryService) Create(ctx context.Context, userID string, name string) (*types.Category, error) {
	name = normalization.Label(name)
	if name == "" {
		return nil, apierr.BadRequest("invalid_name", errors.New("name is required"))
	}

	var created *types.Category
	err := s.db.Transaction(ctx, func(dbc dbctx.Context) error {
		existing, err := s.categories.GetByName(dbc, userID, name)
		if err != nil {
			return fmt.Errorf("lookup category: %w", err)
		}
		if existing != nil {
			return errCategoryExists()
		}
		created, err = s.categories.Create(dbc, &types.Category{UserID: userID, Name: name})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return errCategoryExists()
			}
			return fmt.Errorf("create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("Category created", "user_id", userID, "category_id", created.ID)
	return created, nil
}

func (s *categoryService) List(ctx context.Context, userID string) ([]*types.Category, error) {
	out, err := s.categories.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// Delete detaches every activity record from the category and removes it,
// both inside one transaction.
func (s *categoryService) Delete(ctx context.Context, userID string, categoryID uint) error {
	var cleared int64
	err := s.db.Transaction(ctx, func(dbc dbctx.Context) error {
		category, err := s.categories.GetByID(dbc, userID, categoryID)
		if err != nil {
			return fmt.Errorf("lookup category: %w", err)
		}
		if category == nil {
			return errCategoryNotFound()
		}
		cleared, err = s.activities.ClearCategory(dbc, category.ID)
		if err != nil {
			return fmt.Errorf("detach activity records: %w", err)
		}
		n, err := s.categories.DeleteByID(dbc, userID, category.ID)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if n == 0 {
			return errCategoryNotFound()
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("Category deleted", "user_id", userID, "category_id", categoryID, "detached", cleared)
	return nil
}
