package testutil

import (
	"context"
	"testing"
	"time"

	types "github.com/yungbote/lasttime-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedCategory(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, name string) *types.Category {
	tb.Helper()
	c := &types.Category{UserID: userID, Name: name}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed category: %v", err)
	}
	return c
}

func SeedActivity(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, activity string, lastDate time.Time, categoryID *uint) *types.ActivityRecord {
	tb.Helper()
	rec := &types.ActivityRecord{
		UserID:     userID,
		Activity:   activity,
		LastDate:   lastDate,
		CategoryID: categoryID,
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed activity: %v", err)
	}
	return rec
}

func PtrUint(v uint) *uint { return &v }
