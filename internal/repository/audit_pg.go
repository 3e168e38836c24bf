package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoPolymarket/hypergate/internal/model"
)

type auditRecord struct {
	ID            string         `gorm:"primaryKey"`
	AccountID     string         `gorm:"index:idx_audit_logs_account,priority:1"`
	Method        string
	Path          string
	IP            string
	UserAgent     string
	RequestBody   string
	RequestHeader string
	StatusCode    int
	ResponseBody  string
	LatencyMs     int64
	Context       map[string]any `gorm:"serializer:json;type:jsonb"`
	CreatedAt     time.Time      `gorm:"index:idx_audit_logs_account,priority:2,sort:desc"`
}

func (auditRecord) TableName() string { return "audit_logs" }

func toAuditRecord(e *model.AuditLog) *auditRecord {
	return &auditRecord{
		ID:            e.ID,
		AccountID:     e.AccountID,
		Method:        e.Method,
		Path:          e.Path,
		IP:            e.IP,
		UserAgent:     e.UserAgent,
		RequestBody:   e.RequestBody,
		RequestHeader: e.RequestHeader,
		StatusCode:    e.StatusCode,
		ResponseBody:  e.ResponseBody,
		LatencyMs:     e.LatencyMs,
		Context:       e.Context,
		CreatedAt:     e.CreatedAt,
	}
}

func (r *auditRecord) toModel() *model.AuditLog {
	ctx := r.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return &model.AuditLog{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Method:        r.Method,
		Path:          r.Path,
		IP:            r.IP,
		UserAgent:     r.UserAgent,
		RequestBody:   r.RequestBody,
		RequestHeader: r.RequestHeader,
		StatusCode:    r.StatusCode,
		ResponseBody:  r.ResponseBody,
		LatencyMs:     r.LatencyMs,
		Context:       ctx,
		CreatedAt:     r.CreatedAt,
	}
}

type PostgresAuditRepo struct {
	db *gorm.DB
}

func NewPostgresAuditRepo(db *gorm.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(toAuditRecord(entry)).Error
}

func (r *PostgresAuditRepo) List(ctx context.Context, accountID string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	var rows []auditRecord
	if err := r.listQuery(r.db.WithContext(ctx), accountID, limit, from, to).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.AuditLog, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r *PostgresAuditRepo) listQuery(db *gorm.DB, accountID string, limit int, from, to *time.Time) *gorm.DB {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := db.Model(&auditRecord{})
	if accountID != "" {
		q = q.Where("account_id = ?", accountID)
	}
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}
	return q.Order("created_at DESC").Limit(limit)
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&auditRecord{}).Error
}
