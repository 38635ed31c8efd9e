package scheduler

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a RecordStore kept in process memory. Records are lost on
// exit, so it only suits tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]JobRecord
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore returns an empty store. WithClock sets the insert clock.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	return &MemoryStore{
		records: make(map[int64]JobRecord),
		now:     o.now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, in NewRecord) (JobRecord, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return JobRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec := JobRecord{
		ID:            s.nextID,
		Recipient:     in.Recipient,
		Subject:       in.Subject,
		Body:          in.Body,
		ScheduledTime: unixTime(in.ScheduledTime.Unix()),
		CreatedAt:     unixTime(now.Unix()),
		Status:        StatusScheduled,
	}
	s.records[rec.ID] = rec
	return cloneRecord(rec), nil
}

func (s *MemoryStore) SetQueueHandle(_ context.Context, id int64, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.QueueHandle = &handle
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id int64, sentAt time.Time, receipt Receipt) error {
	return s.transition(id, func(rec *JobRecord) {
		t := unixTime(sentAt.Unix())
		rec.Status = StatusSent
		rec.SentAt = &t
		if receipt != (Receipt{}) {
			rec.Receipt = &receipt
		}
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, id int64, message string) error {
	return s.transition(id, func(rec *JobRecord) {
		rec.Status = StatusFailed
		rec.ErrorMessage = &message
	})
}

func (s *MemoryStore) transition(id int64, apply func(*JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusScheduled {
		return ErrInvalidTransition
	}
	apply(&rec)
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return JobRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) List(_ context.Context, status Status) ([]JobRecord, error) {
	s.mu.RLock()
	out := make([]JobRecord, 0, len(s.records))
	for _, rec := range s.records {
		if status == "" || rec.Status == status {
			out = append(out, cloneRecord(rec))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b JobRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, rec := range s.records {
		st.add(rec.Status, 1)
	}
	return st, nil
}

// cloneRecord copies pointer fields so callers cannot mutate stored state.
func cloneRecord(rec JobRecord) JobRecord {
	if rec.SentAt != nil {
		t := *rec.SentAt
		rec.SentAt = &t
	}
	if rec.QueueHandle != nil {
		h := *rec.QueueHandle
		rec.QueueHandle = &h
	}
	if rec.ErrorMessage != nil {
		m := *rec.ErrorMessage
		rec.ErrorMessage = &m
	}
	if rec.Receipt != nil {
		r := *rec.Receipt
		rec.Receipt = &r
	}
	return rec
}
