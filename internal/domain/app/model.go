package app

import "time"

// Application is a generated front-end application owned by a user.
// CodeGenType is fixed at creation by prompt classification; DeployKey and
// DeployedAt are set by the deploy pipeline, Cover by the async screenshot
// task after a deploy.
type Application struct {
	ID          uint64     `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:128" json:"name"`
	InitPrompt  string     `gorm:"type:text" json:"initPrompt"`
	UserID      uint64     `gorm:"index" json:"userId"`
	CodeGenType string     `gorm:"size:32" json:"codeGenType"`
	DeployKey   *string    `gorm:"size:16;uniqueIndex" json:"deployKey,omitempty"`
	DeployedAt  *time.Time `json:"deployedAt,omitempty"`
	Cover       string     `gorm:"size:512" json:"cover,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
