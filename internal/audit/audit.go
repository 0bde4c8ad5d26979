// Package audit maintains the append-only administrative audit trail. An
// entry is written durably before the deletion job it describes is enqueued;
// the worker never writes a second entry for the same cascade.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"enrolld/internal/models"
)

const defaultQueryLimit = 100

// Recorder appends entries to and reads from the audit log.
type Recorder struct {
	db *gorm.DB
}

// New returns a Recorder backed by db.
func New(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record describes one administrative action to append.
type Record struct {
	ActorID    uuid.UUID
	Action     models.AuditAction
	TargetType string
	TargetID   uuid.UUID
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
}

// Append writes the entry. It must succeed before the corresponding deletion
// job is enqueued so the trail survives a cascade that later fails.
func (r *Recorder) Append(ctx context.Context, rec Record) (models.AuditLog, error) {
	var metadata datatypes.JSON
	if rec.Metadata != nil {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return models.AuditLog{}, fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = datatypes.JSON(raw)
	}

	entry := models.AuditLog{
		ActorID:    rec.ActorID,
		Action:     rec.Action,
		TargetType: rec.TargetType,
		TargetID:   rec.TargetID,
		Metadata:   metadata,
	}
	if rec.IPAddress != "" {
		entry.IPAddress = &rec.IPAddress
	}
	if rec.UserAgent != "" {
		entry.UserAgent = &rec.UserAgent
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return models.AuditLog{}, err
	}
	return entry, nil
}

// Filter narrows audit queries.
type Filter struct {
	ActorID *uuid.UUID
	Action  *models.AuditAction
	Limit   int
}

// Recent returns matching entries, newest first, capped at 100 by default.
func (r *Recorder) Recent(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}

	q := r.db.WithContext(ctx).
		Preload("Actor", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC").
		Limit(limit)
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.Action != nil {
		q = q.Where("action = ?", *f.Action)
	}

	var entries []models.AuditLog
	err := q.Find(&entries).Error
	return entries, err
}
