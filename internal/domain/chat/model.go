package chat

import "time"

// Message roles. An ai message always replies to a user message.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Message is one entry of an application's append-only, parent-linked chat
// log. ParentID is set only on ai messages and references a user message of
// the same application. Retries delete ai children and insert a fresh one;
// rows are never mutated in place.
type Message struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	AppID     uint64    `gorm:"index:idx_chat_app_created" json:"appId"`
	UserID    uint64    `gorm:"index" json:"userId"`
	Role      string    `gorm:"size:8" json:"role"`
	Content   string    `gorm:"type:text" json:"content"`
	ParentID  *uint64   `gorm:"index" json:"parentId,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_chat_app_created" json:"createdAt"`
}
