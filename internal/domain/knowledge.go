package domain

import (
	"database/sql/driver"
	"time"
)

// KnowledgeBaseStatus is the ingestion state of a knowledge base.
type KnowledgeBaseStatus string

const (
	KBStatusPending    KnowledgeBaseStatus = "pending"
	KBStatusInProgress KnowledgeBaseStatus = "in_progress"
	KBStatusComplete   KnowledgeBaseStatus = "complete"
	KBStatusError      KnowledgeBaseStatus = "error"
)

// rank orders statuses along the allowed transition path so polling never
// regresses an already-advanced base.
func (s KnowledgeBaseStatus) rank() int {
	switch s {
	case KBStatusPending:
		return 0
	case KBStatusInProgress:
		return 1
	case KBStatusComplete, KBStatusError:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition (pending -> in_progress -> {complete, error}).
func (s KnowledgeBaseStatus) CanTransitionTo(next KnowledgeBaseStatus) bool {
	if s == next {
		return true
	}
	// complete and error are both terminal
	if s.rank() >= 2 {
		return false
	}
	return next.rank() > s.rank()
}

// SourceType discriminates knowledge sources.
type SourceType string

const (
	SourceTypeText SourceType = "text"
	SourceTypeURL  SourceType = "url"
)

// KnowledgeSource is a single entry inside a knowledge base. Text sources
// carry their body inline; URL sources are scraped asynchronously by the
// provider.
type KnowledgeSource struct {
	Type  SourceType `json:"type"`
	Title string     `json:"title,omitempty"`
	Body  string     `json:"body,omitempty"`
	URL   string     `json:"url,omitempty"`
}

// KnowledgeSourceList is stored as a jsonb column.
type KnowledgeSourceList []KnowledgeSource

func (l KnowledgeSourceList) Value() (driver.Value, error) { return jsonbValue(l) }

func (l *KnowledgeSourceList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	return jsonbScan(value, l)
}

// KnowledgeBase is the tenant-local record of a provider-hosted knowledge
// base. RemoteKBID identifies the hosted resource.
type KnowledgeBase struct {
	ID         string              `json:"id" gorm:"type:uuid;primary_key"`
	TenantID   string              `json:"tenant_id" gorm:"type:varchar(255);not null;index"`
	RemoteKBID string              `json:"remote_kb_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Name       string              `json:"name" gorm:"type:varchar(255);not null"`
	Status     KnowledgeBaseStatus `json:"status" gorm:"type:varchar(50);default:'pending'"`
	Sources    KnowledgeSourceList `json:"sources" gorm:"type:jsonb"`
	Attached   bool                `json:"attached" gorm:"default:false"`
	CreatedAt  time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for KnowledgeBase
func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}
