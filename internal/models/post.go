package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a shared design inspiration.
type Post struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Title     string `gorm:"not null;size:120" json:"title"`
	ImageURL  string `gorm:"not null" json:"image_url"`
	IsPrivate bool   `gorm:"not null;default:false;index" json:"is_private"`
	AuthorID  uint   `gorm:"not null;index" json:"author_id"`
	Author    User   `gorm:"foreignKey:AuthorID" json:"author"`

	Labels    []PostLabel `gorm:"foreignKey:PostID" json:"-"`
	Tags      []string    `gorm:"-" json:"tags"`
	Softwares []string    `gorm:"-" json:"softwares"`

	// Computed at query time, never persisted
	LikesCount int  `gorm:"->;-:migration" json:"likes_count"`
	SavesCount int  `gorm:"->;-:migration" json:"saves_count"`
	Liked      bool `gorm:"->;-:migration" json:"liked"`
	Saved      bool `gorm:"->;-:migration" json:"saved"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LabelKind distinguishes the two label sets carried by a post.
type LabelKind string

const (
	LabelTag      LabelKind = "tag"
	LabelSoftware LabelKind = "software"
)

// PostLabel is one member of a post's tag or software set.
type PostLabel struct {
	PostID uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Kind   LabelKind `gorm:"primaryKey;size:16" json:"kind"`
	Value  string    `gorm:"primaryKey;size:64" json:"value"`
}

// VisibleTo reports whether viewerID may see the post. Anonymous viewers use 0.
func (p *Post) VisibleTo(viewerID uint) bool {
	return !p.IsPrivate || (viewerID != 0 && p.AuthorID == viewerID)
}

// HydrateLabels splits the loaded label rows into Tags and Softwares.
func (p *Post) HydrateLabels() {
	p.Tags = make([]string, 0)
	p.Softwares = make([]string, 0)
	for _, l := range p.Labels {
		switch l.Kind {
		case LabelTag:
			p.Tags = append(p.Tags, l.Value)
		case LabelSoftware:
			p.Softwares = append(p.Softwares, l.Value)
		}
	}
}

// BuildLabels converts tag and software sets into label rows for postID.
func BuildLabels(postID uint, tags, softwares []string) []PostLabel {
	labels := make([]PostLabel, 0, len(tags)+len(softwares))
	for _, t := range tags {
		labels = append(labels, PostLabel{PostID: postID, Kind: LabelTag, Value: t})
	}
	for _, s := range softwares {
		labels = append(labels, PostLabel{PostID: postID, Kind: LabelSoftware, Value: s})
	}
	return labels
}
