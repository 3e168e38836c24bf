package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type usageRecord struct {
	AccountID string  `gorm:"primaryKey"`
	Date      string  `gorm:"primaryKey;type:date"`
	Orders    int     `gorm:"not null;default:0"`
	Volume    float64 `gorm:"not null;default:0"`
}

func (usageRecord) TableName() string { return "risk_daily_usage" }

// PostgresRiskRepo keeps per-account daily order counts and notional.
type PostgresRiskRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresRiskRepo(db *gorm.DB) *PostgresRiskRepo {
	return &PostgresRiskRepo{db: db, now: time.Now}
}

func (r *PostgresRiskRepo) today() string {
	return r.now().UTC().Format("2006-01-02")
}

func (r *PostgresRiskRepo) GetDailyUsage(ctx context.Context, accountID string) (int, float64, error) {
	var rec usageRecord
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND date = ?", accountID, r.today()).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return rec.Orders, rec.Volume, nil
}

// AddDailyUsage increments today's row, creating it on first use.
func (r *PostgresRiskRepo) AddDailyUsage(ctx context.Context, accountID string, orders int, amount float64) error {
	return r.upsert(r.db.WithContext(ctx), accountID, orders, amount).Error
}

func (r *PostgresRiskRepo) upsert(db *gorm.DB, accountID string, orders int, amount float64) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"orders": gorm.Expr("risk_daily_usage.orders + ?", orders),
			"volume": gorm.Expr("risk_daily_usage.volume + ?", amount),
		}),
	}).Create(&usageRecord{
		AccountID: accountID,
		Date:      r.today(),
		Orders:    orders,
		Volume:    amount,
	})
}

func (r *PostgresRiskRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := r.now().UTC().Add(-olderThan).Format("2006-01-02")
	return r.db.WithContext(ctx).Where("date < ?", cutoff).Delete(&usageRecord{}).Error
}
