package tracker

import "time"

// ActivityRecord holds the most recent time its owner did Activity.
// CategoryID is a weak reference: deleting the category nulls it out.
type ActivityRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"not null;column:user_id;uniqueIndex:uix_user_activity,priority:1" json:"user_id"`
	Activity   string    `gorm:"not null;column:activity;uniqueIndex:uix_user_activity,priority:2" json:"activity"`
	CategoryID *uint     `gorm:"index;column:category_id" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"category"`
	LastDate   time.Time `gorm:"not null;index;column:last_date" json:"last_date"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ActivityRecord) TableName() string { return "activity_records" }
