package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/lasttime-backend/internal/data/db"
	"github.com/yungbote/lasttime-backend/internal/data/repos"
	types "github.com/yungbote/lasttime-backend/internal/domain"
	"github.com/yungbote/lasttime-backend/internal/normalization"
	"github.com/yungbote/lasttime-backend/internal/platform/apierr"
	"github.com/yungbote/lasttime-backend/internal/platform/dbctx"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

const (
	DefaultActivityLimit = 100
	MaxActivityLimit     = 1000
)

type UpsertActivityInput struct {
	Activity   string
	LastDate   time.Time
	CategoryID *uint
}

type ListActivityInput struct {
	CategoryID *uint
	Skip       int
	Limit      int
}

type ActivityService interface {
	// Upsert creates the record for (user, activity) or refreshes the existing one.
	Upsert(ctx context.Context, userID string, in UpsertActivityInput) (*types.ActivityRecord, error)
	List(ctx context.Context, userID string, in ListActivityInput) ([]*types.ActivityRecord, error)
	Get(ctx context.Context, userID string, activity string) (*types.ActivityRecord, error)
	Delete(ctx context.Context, userID string, activity string) error
}

type activityService struct {
	db         *db.Service
	log        *logger.Logger
	categories repos.CategoryRepo
	activities repos.ActivityRecordRepo
}

func NewActivityService(
	store *db.Service,
	baseLog *logger.Logger,
	categories repos.CategoryRepo,
	activities repos.ActivityRecordRepo,
) ActivityService {
	return &activityService{
		db:         store,
		log:        baseLog.With("service", "ActivityService"),
		categories: categories,
		activities: activities,
	}
}

func errActivityNotFound(activity string) error {
	return apierr.NotFound("activity_not_found", fmt.Sprintf("No record found for activity: %s", activity))
}

func (s *activityService) Upsert(ctx context.Context, userID string, in UpsertActivityInput) (*types.ActivityRecord, error) {
	activity := normalization.Label(in.Activity)
	if activity == "" {
		return nil, apierr.BadRequest("invalid_activity", errors.New("activity is required"))
	}
	if in.LastDate.IsZero() {
		return nil, apierr.BadRequest("invalid_request", errors.New("last_date is required"))
	}

	var out *types.ActivityRecord
	err := s.db.Transaction(ctx, func(dbc dbctx.Context) error {
		if in.CategoryID != nil {
			category, err := s.categories.GetByID(dbc, userID, *in.CategoryID)
			if err != nil {
				return fmt.Errorf("lookup category: %w", err)
			}
			if category == nil {
				return errCategoryNotFound()
			}
		}
		rec, err := s.activities.Upsert(dbc, &types.ActivityRecord{
			UserID:     userID,
			Activity:   activity,
			LastDate:   in.LastDate.UTC(),
			CategoryID: in.CategoryID,
		})
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				// category deleted concurrently
				return errCategoryNotFound()
			}
			return fmt.Errorf("upsert activity record: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *activityService) List(ctx context.Context, userID string, in ListActivityInput) ([]*types.ActivityRecord, error) {
	if in.Skip < 0 {
		return nil, apierr.BadRequest("invalid_pagination", errors.New("skip must be >= 0"))
	}
	if in.Limit < 1 {
		return nil, apierr.BadRequest("invalid_pagination", errors.New("limit must be >= 1"))
	}
	if in.Limit > MaxActivityLimit {
		in.Limit = MaxActivityLimit
	}
	out, err := s.activities.List(dbctx.Context{Ctx: ctx}, repos.ActivityListFilter{
		UserID:     userID,
		CategoryID: in.CategoryID,
		Offset:     in.Skip,
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list activity records: %w", err)
	}
	return out, nil
}

func (s *activityService) Get(ctx context.Context, userID string, activity string) (*types.ActivityRecord, error) {
	rec, err := s.activities.GetByActivity(dbctx.Context{Ctx: ctx}, userID, normalization.Label(activity))
	if err != nil {
		return nil, fmt.Errorf("get activity record: %w", err)
	}
	if rec == nil {
		return nil, errActivityNotFound(activity)
	}
	return rec, nil
}

func (s *activityService) Delete(ctx context.Context, userID string, activity string) error {
	n, err := s.activities.DeleteByActivity(dbctx.Context{Ctx: ctx}, userID, normalization.Label(activity))
	if err != nil {
		return fmt.Errorf("delete activity record: %w", err)
	}
	if n == 0 {
		return errActivityNotFound(activity)
	}
	s.log.Debug("Activity record deleted", "user_id", userID)
	return nil
}
