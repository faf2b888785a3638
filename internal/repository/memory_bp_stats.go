package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bptrack/internal/domain"

	"github.com/google/uuid"
)

// MemoryBPStatsRepo in-process storage used when the database is disabled or down.
type MemoryBPStatsRepo struct {
	mu    sync.RWMutex
	stats map[string]*domain.BPStat // bpstat_id -> stat
	seq   map[string]int64          // bpstat_id -> insertion order, breaks created_at ties
	next  int64
	now   func() time.Time
}

func NewMemoryBPStatsRepo() *MemoryBPStatsRepo {
	return &MemoryBPStatsRepo{
		stats: map[string]*domain.BPStat{},
		seq:   map[string]int64{},
		now:   time.Now,
	}
}

var _ BPStatsRepository = (*MemoryBPStatsRepo)(nil)

func (r *MemoryBPStatsRepo) Create(_ context.Context, stat *domain.BPStat) error {
	if stat == nil || stat.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if stat.Source == "" {
		stat.Source = domain.SourceManual
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stat.ID = uuid.NewString()
	if stat.CreatedAt.IsZero() {
		stat.CreatedAt = r.now().UTC()
	}
	stat.UpdatedAt = stat.CreatedAt

	cp := *stat
	r.stats[cp.ID] = &cp
	r.next++
	r.seq[cp.ID] = r.next
	return nil
}

func (r *MemoryBPStatsRepo) Get(_ context.Context, id string) (*domain.BPStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// matching returns the user's readings that pass filter, newest first.
func (r *MemoryBPStatsRepo) matching(userID string, filter domain.BPStatFilter) []*domain.BPStat {
	out := make([]*domain.BPStat, 0)
	for _, s := range r.stats {
		if s.UserID != userID {
			continue
		}
		if len(filter.Categories) > 0 {
			found := false
			for _, c := range filter.Categories {
				if s.Category == c {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if !filter.From.IsZero() && s.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.CreatedAt.Before(filter.To) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out
}

func (r *MemoryBPStatsRepo) List(_ context.Context, userID string, filter domain.BPStatFilter, page, size int) ([]*domain.BPStat, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("user_id is required")
	}
	_, size, offset := normalizePage(page, size)

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.matching(userID, filter)
	total := len(all)
	if offset >= total {
		return []*domain.BPStat{}, total, nil
	}
	end := offset + size
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *MemoryBPStatsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stats[id]; !ok {
		return ErrNotFound
	}
	delete(r.stats, id)
	delete(r.seq, id)
	return nil
}

func (r *MemoryBPStatsRepo) Summary(_ context.Context, userID string) (*domain.BPStatSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.matching(userID, domain.BPStatFilter{})
	acc := newSummaryAccumulator()
	for _, s := range all {
		acc.add(s.Category, 1, int64(s.Systolic), int64(s.Diastolic), int64(s.HeartRate))
	}
	summary := acc.summary()
	if len(all) > 0 {
		summary.Latest = all[0]
	}
	return summary, nil
}
