package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Rank 用于权限比较，未知角色为 0。
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	}
	return 0
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

type ResourceType string

const (
	ResourceCrosshair ResourceType = "Crosshair"
	ResourceSound     ResourceType = "Sound"
	ResourceTheme     ResourceType = "Theme"
	ResourcePlaylist  ResourceType = "Playlist"
)

var ResourceTypes = []ResourceType{ResourceCrosshair, ResourceSound, ResourceTheme, ResourcePlaylist}

func (t ResourceType) Valid() bool {
	for _, v := range ResourceTypes {
		if v == t {
			return true
		}
	}
	return false
}

func ParseResourceType(s string) (ResourceType, bool) {
	t := ResourceType(s)
	return t, t.Valid()
}

type ResourceStatus string

const (
	StatusPending  ResourceStatus = "pending"
	StatusApproved ResourceStatus = "approved"
	StatusRejected ResourceStatus = "rejected"
	StatusDeleted  ResourceStatus = "deleted"
)

// SystemUserID 文件同步入库的资源由系统账户提交。
var SystemUserID = uuid.Nil.String()

type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Image     string    `json:"image"`
	Role      Role      `gorm:"type:text;not null;default:User" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Resource struct {
	ID          string         `gorm:"primaryKey;type:text" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Type        ResourceType   `gorm:"type:text;not null;index" json:"type"`
	FilePath    string         `gorm:"not null;index" json:"filePath"`
	SubmittedBy string         `gorm:"type:text;not null;index" json:"submittedBy"`
	Status      ResourceStatus `gorm:"type:text;not null;default:pending" json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}

// IsMedia 准星与音效由静态文件托管。
func (r *Resource) IsMedia() bool {
	return r.Type == ResourceCrosshair || r.Type == ResourceSound
}

// Like 联合主键 (user_id, resource_id)，同一用户对同一资源最多一条。
type Like struct {
	UserID     string    `gorm:"primaryKey;type:text" json:"userId"`
	ResourceID string    `gorm:"primaryKey;type:text;index" json:"resourceId"`
	CreatedAt  time.Time `json:"createdAt"`

	User     User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Resource Resource `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE" json:"-"`
}

type Session struct {
	ID        string    `gorm:"primaryKey;type:text"`
	TokenHash string    `gorm:"uniqueIndex;not null"`
	UserID    string    `gorm:"type:text;not null;index"`
	Expires   time.Time `gorm:"not null"`
	CreatedAt time.Time
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type AppConfigItem struct {
	ID    uint   `gorm:"primaryKey"`
	Key   string `gorm:"uniqueIndex;not null"`
	Value string
}

func (AppConfigItem) TableName() string { return "app_configs" }

// ResourceWithLikes 聚合后的资源：点赞数与当前访问者是否已点赞。
type ResourceWithLikes struct {
	Resource
	Likes       int64 `json:"likes"`
	LikedByUser bool  `json:"likedByUser"`
}
