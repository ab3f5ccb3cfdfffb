package tracker

import "time"

// Category groups activity records. Names are stored lower-cased and are unique per owner.
type Category struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"not null;column:user_id;uniqueIndex:uix_category_user_name,priority:1" json:"user_id"`
	Name      string    `gorm:"not null;column:name;uniqueIndex:uix_category_user_name,priority:2" json:"name"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Category) TableName() string { return "categories" }
