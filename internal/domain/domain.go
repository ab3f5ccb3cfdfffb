package domain

import (
	"github.com/yungbote/lasttime-backend/internal/domain/auth"
	"github.com/yungbote/lasttime-backend/internal/domain/tracker"
)

const (
	ProviderGoogle = auth.ProviderGoogle
	ProviderApple  = auth.ProviderApple
)

type Identity = auth.Identity

type Category = tracker.Category
type ActivityRecord = tracker.ActivityRecord
