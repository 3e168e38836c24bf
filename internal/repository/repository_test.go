package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/GoPolymarket/hypergate/internal/manager"
	"github.com/GoPolymarket/hypergate/internal/model"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db
}

func TestIdemRecordRoundTrip(t *testing.T) {
	in := manager.IdempotencyRecord{
		Status:    201,
		Body:      []byte(`{"status":"ok"}`),
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	out, err := decodeIdemRecord(encodeIdemRecord(in))
	require.NoError(t, err)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, in.Body, out.Body)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.False(t, out.Processing)

	_, err = decodeIdemRecord("{")
	require.Error(t, err)
}

func TestFilterAudit(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var items []string
	for i, acct := range []string{"a", "b", "a", "a"} {
		raw, err := json.Marshal(model.AuditLog{ID: string(rune('0' + i)), AccountID: acct, CreatedAt: base.Add(-time.Duration(i) * time.Hour)})
		require.NoError(t, err)
		items = append(items, string(raw))
	}
	items = append(items, "garbage")

	got := filterAudit(items, "a", 10, nil, nil)
	require.Len(t, got, 3)
	assert.Equal(t, "0", got[0].ID)

	from := base.Add(-90 * time.Minute)
	got = filterAudit(items, "", 10, &from, nil)
	assert.Len(t, got, 2)

	got = filterAudit(items, "a", 1, nil, nil)
	assert.Len(t, got, 1)
}

func TestRiskUpsertSQL(t *testing.T) {
	repo := NewPostgresRiskRepo(dryRunDB(t))
	repo.now = func() time.Time { return time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC) }

	sql := repo.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return repo.upsert(tx, "acct", 1, 250.5)
	})
	require.NotEmpty(t, sql)
	assert.Contains(t, sql, `INSERT INTO "risk_daily_usage"`)
	assert.Contains(t, sql, `ON CONFLICT ("account_id","date") DO UPDATE SET`)
	assert.Contains(t, sql, "risk_daily_usage.orders + 1")
	assert.Contains(t, sql, "'2026-10-19'")
	assert.Contains(t, sql, "'acct'")
}

func TestAuditListSQL(t *testing.T) {
	repo := NewPostgresAuditRepo(dryRunDB(t))
	from := time.Now().Add(-time.Hour)

	var rows []auditRecord
	stmt := repo.listQuery(repo.db, "acct", 0, &from, nil).Find(&rows).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, `FROM "audit_logs"`)
	assert.Contains(t, sql, "account_id =")
	assert.Contains(t, sql, "created_at >=")
	assert.Contains(t, sql, "ORDER BY created_at DESC")
	assert.Contains(t, stmt.Vars, 100)
}

func TestAuditRecordConversion(t *testing.T) {
	e := &model.AuditLog{ID: "x", AccountID: "a", StatusCode: 200, Context: map[string]any{"coin": "BTC"}}
	back := toAuditRecord(e).toModel()
	assert.Equal(t, e, back)

	empty := (&auditRecord{ID: "y"}).toModel()
	assert.NotNil(t, empty.Context)
}

func TestNonceKeyIgnoresAddressCase(t *testing.T) {
	assert.Equal(t, nonceKey("0xAbC"), nonceKey("0xabc"))
	assert.Equal(t, "nonce:0xabc", NewRedisNonceFloor(nil, "0xABC").key)
}
