package database

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommandRepository handles command library operations
type CommandRepository struct {
	db *gorm.DB
}

// NewCommandRepository creates a new command repository
func NewCommandRepository(db *gorm.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// Create adds a new command. A command with the same tag is an error.
func (r *CommandRepository) Create(cmd *Command) error {
	return r.db.Create(cmd).Error
}

// Upsert creates the command or replaces the one stored under the same tag
func (r *CommandRepository) Upsert(cmd *Command) error {
	return r.db.Clauses(upsertByTag()).Create(cmd).Error
}

// UpsertBatch upserts commands in a transaction
func (r *CommandRepository) UpsertBatch(cmds []Command, batchSize int) error {
	if len(cmds) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(cmds)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(cmds); i += batchSize {
			end := min(i+batchSize, len(cmds))
			batch := cmds[i:end]
			if err := tx.Clauses(upsertByTag()).Create(&batch).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertByTag() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "tag"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"format", "command", "source", "code_type", "repeat", "channel", "updated_at",
		}),
	}
}

// GetByTag retrieves the command stored under tag
func (r *CommandRepository) GetByTag(tag string) (*Command, error) {
	var cmd Command
	err := r.db.Where("tag = ?", tag).First(&cmd).Error
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

// List retrieves up to limit commands ordered by tag
func (r *CommandRepository) List(limit int) ([]Command, error) {
	var cmds []Command
	err := r.db.Order("tag ASC").Limit(limit).Find(&cmds).Error
	return cmds, err
}

// ListPaginated retrieves commands ordered by tag with pagination
func (r *CommandRepository) ListPaginated(page, perPage int) ([]Command, int64, error) {
	var cmds []Command
	var total int64

	// Count total records
	if err := r.db.Model(&Command{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	offset := (page - 1) * perPage
	err := r.db.Order("tag ASC").
		Offset(offset).
		Limit(perPage).
		Find(&cmds).Error

	return cmds, total, err
}

// ListByFormat retrieves commands of one format ("sir,3", ...)
func (r *CommandRepository) ListByFormat(format string, limit int) ([]Command, error) {
	var cmds []Command
	err := r.db.Where("format = ?", format).
		Order("tag ASC").
		Limit(limit).
		Find(&cmds).Error
	return cmds, err
}

// DeleteByTag deletes the command stored under tag and reports how many
// rows were removed
func (r *CommandRepository) DeleteByTag(tag string) (int64, error) {
	result := r.db.Where("tag = ?", tag).Delete(&Command{})
	return result.RowsAffected, result.Error
}

// Count returns the number of stored commands
func (r *CommandRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Command{}).Count(&count).Error
	return count, err
}

// MaxTagSequence returns the largest N among tags spelled prefix followed by
// decimal digits, or 0 when there are none
func (r *CommandRepository) MaxTagSequence(prefix string) (int64, error) {
	var tags []string
	pattern := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(prefix) + "%"
	err := r.db.Model(&Command{}).Where(`tag LIKE ? ESCAPE '\'`, pattern).Pluck("tag", &tags).Error
	if err != nil {
		return 0, err
	}

	var highest int64
	for _, tag := range tags {
		// LIKE ignores ASCII case in sqlite
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		suffix := tag[len(prefix):]
		if suffix == "" || strings.Trim(suffix, "0123456789") != "" {
			continue
		}
		n, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest, nil
}

// Exists reports whether a command is stored under tag
func (r *CommandRepository) Exists(tag string) (bool, error) {
	var count int64
	err := r.db.Model(&Command{}).Where("tag = ?", tag).Count(&count).Error
	return count > 0, err
}

// CaptureRepository handles capture log operations
type CaptureRepository struct {
	db *gorm.DB
}

// NewCaptureRepository creates a new capture repository
func NewCaptureRepository(db *gorm.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Create adds a new capture record
func (r *CaptureRepository) Create(c *Capture) error {
	return r.db.Create(c).Error
}

// GetRecent retrieves the most recent N captures
func (r *CaptureRepository) GetRecent(limit int) ([]Capture, error) {
	var captures []Capture
	err := r.db.Order("received_at DESC").Limit(limit).Find(&captures).Error
	return captures, err
}

// GetRecentPaginated retrieves captures with pagination
func (r *CaptureRepository) GetRecentPaginated(page, perPage int) ([]Capture, int64, error) {
	var captures []Capture
	var total int64

	if err := r.db.Model(&Capture{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := r.db.Order("received_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&captures).Error

	return captures, total, err
}

// DeleteOlderThan deletes captures received before the specified time
func (r *CaptureRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("received_at < ?", before).Delete(&Capture{})
	return result.RowsAffected, result.Error
}
