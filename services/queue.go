package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultSummaryQueue ist die Redis-Liste, aus der die Zusammenfassungs-Jobs lesen.
const DefaultSummaryQueue = "summaries:pending"

// SummaryTask fordert Hintergrund-Zusammenfassungen für einen Snapshot an.
type SummaryTask struct {
	ID         uuid.UUID `json:"id"`
	SnapshotID string    `json:"snapshot_id"`
	Limit      int       `json:"limit"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewSummaryTask erstellt eine Aufgabe mit frischer ID.
func NewSummaryTask(snapshotID string, limit int) SummaryTask {
	return SummaryTask{
		ID:         uuid.New(),
		SnapshotID: snapshotID,
		Limit:      limit,
		EnqueuedAt: time.Now().UTC(),
	}
}

// SummaryQueue übergibt Aufgaben an die Zusammenfassungs-Jobs. Auf eine Bestätigung wird nicht gewartet.
type SummaryQueue interface {
	Enqueue(ctx context.Context, task SummaryTask) error
}

var (
	_ SummaryQueue = (*RedisSummaryQueue)(nil)
	_ SummaryQueue = (*NopSummaryQueue)(nil)
)

// RedisSummaryQueue legt Aufgaben als JSON per LPUSH in eine Redis-Liste.
type RedisSummaryQueue struct {
	Client  *redis.Client
	Key     string
	Timeout time.Duration
}

// NewRedisSummaryQueue verbindet sich mit Redis. Die Verbindung wird erst beim ersten Enqueue aufgebaut.
func NewRedisSummaryQueue(addr, password string, db int, key string) *RedisSummaryQueue {
	if key == "" {
		key = DefaultSummaryQueue
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	return &RedisSummaryQueue{Client: client, Key: key, Timeout: 3 * time.Second}
}

func (q *RedisSummaryQueue) Enqueue(ctx context.Context, task SummaryTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}
	if err := q.Client.LPush(ctx, q.Key, data).Err(); err != nil {
		return fmt.Errorf("summary queue %s: %w", q.Key, err)
	}
	return nil
}

// Close schließt die Redis-Verbindung.
func (q *RedisSummaryQueue) Close() error {
	return q.Client.Close()
}

// NopSummaryQueue wird verwendet, wenn kein Redis konfiguriert ist.
type NopSummaryQueue struct {
	Logger *zap.Logger
}

func (q *NopSummaryQueue) Enqueue(_ context.Context, task SummaryTask) error {
	if q.Logger != nil {
		q.Logger.Info("Keine Summary-Queue konfiguriert, Aufgabe verworfen",
			zap.String("task_id", task.ID.String()),
			zap.String("snapshot_id", task.SnapshotID))
	}
	return nil
}
