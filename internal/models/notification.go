package models

import "time"

// Highlight marks a bold span of a notification's trimmed content.
type Highlight struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Notification is a push notification shown in the notification panel.
type Notification struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	ImageURLs   []string    `json:"imageUrls"`
	NavigateURL *string     `json:"navigateUrl"`
	Unread      bool        `json:"unread"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Highlights  []Highlight `json:"highlights"`
}

// SeenPost records that a feed item was visually observed.
type SeenPost struct {
	FeedID    string `json:"feedId"`
	CreatedAt int64  `json:"createdAt"`
	PostID    string `json:"postId"`
}
