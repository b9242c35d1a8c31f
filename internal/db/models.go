package db

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// BatchState is the processing state of a mappings batch
type BatchState string

const (
	StatePending   BatchState = "pending"
	StateSucceeded BatchState = "succeeded"
	StateFailed    BatchState = "failed"
)

// BatchKind selects how a batch supplies entry fields
type BatchKind string

const (
	// KindUniform batches share one type and new_url across all paths
	KindUniform BatchKind = "uniform"
	// KindPerRow batches take type and new_url from each CSV row
	KindPerRow BatchKind = "per_row"
)

// Mapping and entry types
const (
	TypeRedirect   = "redirect"
	TypeArchive    = "archive"
	TypeUnresolved = "unresolved"
)

// HTTP statuses stored on batches and mappings
const (
	StatusMovedPermanently = "301"
	StatusGone             = "410"
)

// User represents an authenticated user
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	Password  string    `gorm:"not null;size:255" json:"-"`
	IsRobot   bool      `gorm:"not null;default:false" json:"is_robot"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Site is a website being transitioned
type Site struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Abbr        string    `gorm:"uniqueIndex;not null;size:100" json:"abbr"`
	QueryParams string    `gorm:"size:255" json:"query_params"` // colon separated significant keys
	Hosts       []Host    `gorm:"constraint:OnDelete:CASCADE" json:"hosts,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SignificantParams returns the query keys that identify a page on this site
func (s *Site) SignificantParams() []string {
	if s == nil || strings.TrimSpace(s.QueryParams) == "" {
		return nil
	}
	var params []string
	for _, p := range strings.Split(s.QueryParams, ":") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

// HasHost reports whether hostname is one of the site's hosts
func (s *Site) HasHost(hostname string) bool {
	if s == nil {
		return false
	}
	for _, h := range s.Hosts {
		if strings.EqualFold(h.Hostname, hostname) {
			return true
		}
	}
	return false
}

// Host is a hostname served by a site
type Host struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SiteID    uint      `gorm:"index;not null" json:"site_id"`
	Hostname  string    `gorm:"uniqueIndex;not null;size:255" json:"hostname"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HostPath is a path observed on a host, keyed by raw and canonical hashes
type HostPath struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	HostID       uint      `gorm:"uniqueIndex:idx_host_path_hash;not null" json:"host_id"`
	Path         string    `gorm:"type:text;not null" json:"path"`
	PathHash     string    `gorm:"uniqueIndex:idx_host_path_hash;size:40;not null" json:"path_hash"`
	C14nPathHash string    `gorm:"index;size:40;not null" json:"c14n_path_hash"`
	MappingID    *uint     `gorm:"index" json:"mapping_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Mapping is the persisted redirect or archive rule for one canonical path of a site
type Mapping struct {
	ID         uint                        `gorm:"primaryKey" json:"id"`
	SiteID     uint                        `gorm:"uniqueIndex:idx_mapping_site_path_hash;not null" json:"site_id"`
	Path       string                      `gorm:"type:text;not null" json:"path"`
	PathHash   string                      `gorm:"uniqueIndex:idx_mapping_site_path_hash;size:40;not null" json:"path_hash"`
	Type       string                      `gorm:"size:20;not null" json:"type"`
	HTTPStatus string                      `gorm:"column:http_status;size:3;not null" json:"http_status"`
	NewURL     string                      `gorm:"type:text" json:"new_url"`
	Unresolved bool                        `gorm:"not null;default:false" json:"unresolved"`
	TagList    datatypes.JSONSlice[string] `gorm:"type:json" json:"tag_list"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// MappingsBatch is a unit of work producing mappings for one site
type MappingsBatch struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	UserID         uint                        `gorm:"index;not null" json:"user_id"`
	SiteID         uint                        `gorm:"index;not null" json:"site_id"`
	Kind           BatchKind                   `gorm:"size:20;not null;default:'uniform'" json:"kind"`
	Type           string                      `gorm:"size:20" json:"type,omitempty"`
	HTTPStatus     string                      `gorm:"column:http_status;size:3" json:"http_status,omitempty"`
	NewURL         string                      `gorm:"type:text" json:"new_url,omitempty"`
	TagList        datatypes.JSONSlice[string] `gorm:"type:json" json:"tag_list"`
	UpdateExisting bool                        `gorm:"not null;default:false" json:"update_existing"`
	State          BatchState                  `gorm:"size:20;not null;default:'pending'" json:"state"`
	Entries        []MappingsBatchEntry        `gorm:"foreignKey:MappingsBatchID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
	User           *User                       `gorm:"foreignKey:UserID" json:"-"`
	Site           *Site                       `gorm:"foreignKey:SiteID" json:"-"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// MappingsBatchEntry is one resolved row of a batch
type MappingsBatchEntry struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	MappingsBatchID uint      `gorm:"index;not null" json:"mappings_batch_id"`
	Path            string    `gorm:"type:text;not null" json:"path"`
	Type            string    `gorm:"size:20;not null" json:"type"`
	NewURL          string    `gorm:"type:text" json:"new_url,omitempty"`
	Processed       bool      `gorm:"not null;default:false" json:"processed"`
	MappingID       *uint     `gorm:"index" json:"mapping_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Version is an audit record of a change made to a mapping
type Version struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ItemType  string         `gorm:"size:50;not null;index:idx_version_item" json:"item_type"`
	ItemID    uint           `gorm:"not null;index:idx_version_item" json:"item_id"`
	Event     string         `gorm:"size:20;not null" json:"event"`
	UserID    *uint          `json:"user_id"`
	Changeset datatypes.JSON `json:"changeset"`
	CreatedAt time.Time      `json:"created_at"`
}
