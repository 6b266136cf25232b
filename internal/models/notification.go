package models

import "time"

// NotificationStoryReply is the notification type emitted for story replies
const NotificationStoryReply = "story_reply"

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Type            string    `json:"type" gorm:"size:30;index"`
	ActorID         string    `json:"actor_id" gorm:"size:128;index"`
	RecipientID     string    `json:"recipient_id" gorm:"size:128;index"`
	TargetID        string    `json:"target_id"`
	TargetType      string    `json:"target_type" gorm:"size:20"`
	PreviewImageURL string    `json:"preview_image_url"`
	Message         string    `json:"message"`
	IsRead          bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}
