// Package deploy publishes generated applications to a stable, shareable URL.
// The pipeline resolves artifacts, runs the build step for project modes,
// swaps the served directory and records the deployment.
package deploy

import "time"

// Record is one successful deployment. Records are append-only; the latest
// row per application reflects what is currently served.
type Record struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	AppID      uint64    `gorm:"index" json:"appId"`
	DeployKey  string    `gorm:"size:16;index" json:"deployKey"`
	Mode       string    `gorm:"size:32" json:"mode"`
	URL        string    `gorm:"size:512" json:"url"`
	DeployedAt time.Time `json:"deployedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}
