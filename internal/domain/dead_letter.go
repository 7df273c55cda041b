package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDeadLetterEntry is returned when creating a DLQ entry with
// invalid fields.
var ErrInvalidDeadLetterEntry = errors.New("invalid dead letter entry")

// ErrorCode categorizes dead-lettered failures for filtering and alerting.
type ErrorCode string

const (
	ErrorCodeZeroShotTimeout     ErrorCode = "ZEROSHOT_TIMEOUT"
	ErrorCodeZeroShotUnavailable ErrorCode = "ZEROSHOT_UNAVAILABLE"
	ErrorCodeDatabaseError       ErrorCode = "DATABASE_ERROR"
	ErrorCodeQueueError          ErrorCode = "QUEUE_ERROR"
	ErrorCodeMalformedReport     ErrorCode = "MALFORMED_REPORT"
	ErrorCodeStagePanic          ErrorCode = "STAGE_PANIC"
	ErrorCodeUnknown             ErrorCode = "UNKNOWN"
)

const (
	defaultMaxRetries     = 5
	baseRetryDelaySeconds = 60
	maxRetryDelaySeconds  = 3600 // Cap at 1 hour
)

// DeadLetterEntry represents a report that failed classification and is
// parked for bounded retry or manual replay.
type DeadLetterEntry struct {
	ID            int64     `db:"id"`
	ReportID      int64     `db:"report_id"`
	QueueName     string    `db:"queue_name"`
	ErrorMessage  string    `db:"error_message"`
	ErrorCode     ErrorCode `db:"error_code"`
	RetryCount    int       `db:"retry_count"`
	MaxRetries    int       `db:"max_retries"`
	NextRetryAt   time.Time `db:"next_retry_at"`
	CreatedAt     time.Time `db:"created_at"`
	LastAttemptAt time.Time `db:"last_attempt_at"`
}

// NewDeadLetterEntry creates a new DLQ entry with exponential backoff.
// Returns an error if reportID or queueName is empty.
func NewDeadLetterEntry(reportID int64, queueName, errorMsg string, errorCode ErrorCode) (*DeadLetterEntry, error) {
	if reportID <= 0 {
		return nil, fmt.Errorf("%w: report_id is required", ErrInvalidDeadLetterEntry)
	}
	if queueName == "" {
		return nil, fmt.Errorf("%w: queue_name is required", ErrInvalidDeadLetterEntry)
	}

	now := time.Now()
	return &DeadLetterEntry{
		ReportID:      reportID,
		QueueName:     queueName,
		ErrorMessage:  errorMsg,
		ErrorCode:     errorCode,
		RetryCount:    0,
		MaxRetries:    defaultMaxRetries,
		NextRetryAt:   now.Add(time.Duration(baseRetryDelaySeconds) * time.Second),
		CreatedAt:     now,
		LastAttemptAt: now,
	}, nil
}

// MustNewDeadLetterEntry is like NewDeadLetterEntry but panics on validation
// error. Use only when the inputs are known valid (e.g., in tests).
func MustNewDeadLetterEntry(reportID int64, queueName, errorMsg string, errorCode ErrorCode) *DeadLetterEntry {
	entry, err := NewDeadLetterEntry(reportID, queueName, errorMsg, errorCode)
	if err != nil {
		panic(err)
	}
	return entry
}

// NextRetryDelay calculates exponential backoff with cap.
// Delays: 1min, 2min, 4min, 8min, 16min (capped at 1hr).
func (d *DeadLetterEntry) NextRetryDelay() time.Duration {
	multiplier := 1 << d.RetryCount // 2^retryCount
	delaySeconds := min(baseRetryDelaySeconds*multiplier, maxRetryDelaySeconds)
	return time.Duration(delaySeconds) * time.Second
}

// ShouldRetry returns true if retries remain.
func (d *DeadLetterEntry) ShouldRetry() bool {
	return d.RetryCount < d.MaxRetries
}

// IsExhausted returns true if all retries have been used.
func (d *DeadLetterEntry) IsExhausted() bool {
	return d.RetryCount >= d.MaxRetries
}

// IncrementRetry updates retry state for the next attempt.
func (d *DeadLetterEntry) IncrementRetry(newError string) {
	d.RetryCount++
	d.LastAttemptAt = time.Now()
	d.ErrorMessage = newError
	d.NextRetryAt = time.Now().Add(d.NextRetryDelay())
}

// String returns a debug representation.
func (d *DeadLetterEntry) String() string {
	return fmt.Sprintf("DLQ[%d] report=%d queue=%s retries=%d/%d next=%s error=%s",
		d.ID, d.ReportID, d.QueueName, d.RetryCount, d.MaxRetries,
		d.NextRetryAt.Format(time.RFC3339), d.ErrorCode)
}

// DLQStats holds dead-letter queue statistics.
type DLQStats struct {
	Pending     int64      `json:"pending"`
	Exhausted   int64      `json:"exhausted"`
	Ready       int64      `json:"ready"`
	AvgRetries  float64    `json:"avg_retries"`
	OldestEntry *time.Time `json:"oldest_entry,omitempty"`
}

// DLQErrorCount holds counts grouped by error code.
type DLQErrorCount struct {
	ErrorCode ErrorCode `db:"error_code" json:"error_code"`
	Count     int64     `db:"count"      json:"count"`
}

// ClassifyError maps an error to an ErrorCode for DLQ bookkeeping.
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "panic"):
		return ErrorCodeStagePanic
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return ErrorCodeZeroShotTimeout
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "unavailable"):
		return ErrorCodeZeroShotUnavailable
	case strings.Contains(errStr, "sql") || strings.Contains(errStr, "database") || strings.Contains(errStr, "pq:"):
		return ErrorCodeDatabaseError
	case strings.Contains(errStr, "redis") || strings.Contains(errStr, "stream"):
		return ErrorCodeQueueError
	case strings.Contains(errStr, "malformed") || strings.Contains(errStr, "empty report"):
		return ErrorCodeMalformedReport
	default:
		return ErrorCodeUnknown
	}
}
