package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
)

// AuditService persists audit entries off the request path. Entries go to a
// ring buffer immediately and to the repo and JSONL file asynchronously.
type AuditService struct {
	logChan chan *model.AuditLog
	file    io.WriteCloser
	buffer  *auditBuffer
	repo    AuditRepo
	log     *slog.Logger
	done    chan struct{}
	once    sync.Once
}

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, accountID string, limit int, from, to *time.Time) ([]*model.AuditLog, error)
}

// NewAuditService writes a daily JSONL file under logDir unless logDir is empty.
func NewAuditService(logDir string, repo AuditRepo, log *slog.Logger) (*AuditService, error) {
	svc := &AuditService{
		logChan: make(chan *model.AuditLog, 1000),
		buffer:  newAuditBuffer(1000),
		repo:    repo,
		log:     logger.Component(log, "audit"),
		done:    make(chan struct{}),
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
		f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		svc.file = f
	}

	go svc.processLogs()
	return svc, nil
}

func (s *AuditService) Log(entry *model.AuditLog) {
	if entry == nil {
		return
	}
	s.buffer.Add(entry)
	select {
	case s.logChan <- entry:
	default:
		s.log.Warn("audit queue full, dropping entry", "id", entry.ID, "path", entry.Path)
	}
}

// List prefers the repo and falls back to the in-memory ring.
func (s *AuditService) List(ctx context.Context, accountID string, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, accountID, limit, from, to)
		if err == nil {
			return records, nil
		}
		s.log.Warn("audit repo list failed, using memory buffer", "error", err)
	}
	return s.buffer.List(accountID, limit, from, to), nil
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	var encoder *json.Encoder
	if s.file != nil {
		encoder = json.NewEncoder(s.file)
	}
	for entry := range s.logChan {
		if s.repo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.repo.Insert(ctx, entry); err != nil {
				s.log.Error("audit insert failed", "error", err, "id", entry.ID)
			}
			cancel()
		}
		if encoder != nil {
			if err := encoder.Encode(entry); err != nil {
				s.log.Error("audit file write failed", "error", err)
			}
		}
	}
}

// Close drains queued entries and closes the file.
func (s *AuditService) Close() {
	s.once.Do(func() {
		close(s.logChan)
		<-s.done
		if s.file != nil {
			s.file.Close()
		}
	})
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List returns newest first.
func (b *auditBuffer) List(accountID string, limit int, from, to *time.Time) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if accountID != "" && entry.AccountID != accountID {
			continue
		}
		if from != nil && entry.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && entry.CreatedAt.After(*to) {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
