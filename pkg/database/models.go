package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/dbehnke/sir-codec/pkg/sir"
)

// Command is a converted IR command stored under a button tag
type Command struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Tag       string    `gorm:"uniqueIndex;size:64;not null" json:"tag"`
	Format    string    `gorm:"index;size:8;not null" json:"format"` // "sir,2", "sir,3" or "sir,4"
	Command   string    `gorm:"type:text;not null" json:"command"`
	Source    string    `gorm:"type:text" json:"source,omitempty"` // Pre-processed sir,2 the command came from
	CodeType  string    `gorm:"size:20" json:"code_type,omitempty"`
	Repeat    int       `gorm:"default:1" json:"repeat"`
	Channel   int       `gorm:"default:1" json:"channel"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Command
func (Command) TableName() string {
	return "commands"
}

// BeforeSave fills Format from the command text and defaults repeat and channel
func (c *Command) BeforeSave(tx *gorm.DB) error {
	if c.Format == "" {
		if f := sir.FormatOf(c.Command); f != "" {
			c.Format = sir.Prefix + f
		}
	}
	if c.Repeat == 0 {
		c.Repeat = 1
	}
	if c.Channel == 0 {
		c.Channel = 1
	}
	return nil
}

// Capture is a raw learner capture and the outcome of pre-processing it
type Capture struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	Raw            string    `gorm:"type:text;not null" json:"raw"`
	Optimized      string    `gorm:"type:text" json:"optimized,omitempty"`
	TotalFrames    int       `gorm:"default:0" json:"total_frames"`
	EqualFrames    int       `gorm:"default:0" json:"equal_frames"`
	Pairs          int       `gorm:"default:0" json:"pairs"`
	DurationMicros int       `gorm:"default:0" json:"duration_us"`
	Normalized     bool      `json:"normalized"`
	Error          string    `gorm:"size:255" json:"error,omitempty"`
	ReceivedAt     time.Time `gorm:"index;not null" json:"received_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for Capture
func (Capture) TableName() string {
	return "captures"
}

// BeforeCreate hook to ensure ReceivedAt is set
func (c *Capture) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = time.Now()
	}
	return nil
}
