package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bptrack/internal/alert"
	"bptrack/internal/bpcategory"
	"bptrack/internal/domain"
	"bptrack/internal/repository"

	"go.uber.org/zap"
)

// BPStatService blood-pressure reading use cases
type BPStatService interface {
	// CreateBPStat validates the reading, classifies it and stores it for the user.
	CreateBPStat(ctx context.Context, req CreateBPStatRequest) (*domain.BPStat, error)

	// ListBPStats one page of the user's readings, newest first.
	ListBPStats(ctx context.Context, req ListBPStatsRequest) (*ListBPStatsResponse, error)

	// GetBPStat returns ErrForbidden when the reading belongs to someone else.
	GetBPStat(ctx context.Context, userID, id string) (*domain.BPStat, error)

	// DeleteBPStat returns ErrNotFound or ErrForbidden without deleting anything.
	DeleteBPStat(ctx context.Context, userID, id string) error

	SummaryBPStats(ctx context.Context, userID string) (*domain.BPStatSummary, error)

	// ExportBPStats renders all of the user's readings as an .xlsx workbook.
	ExportBPStats(ctx context.Context, userID string) ([]byte, error)

	// ImportBPStats stores every valid row and reports the rejected ones by index.
	ImportBPStats(ctx context.Context, userID string, rows []ImportRow) (*ImportResult, error)
}

// ============================================
// Request/Response DTOs
// ============================================

// CreateBPStatRequest pointers distinguish "missing" from zero in the JSON body.
type CreateBPStatRequest struct {
	UserID    string
	Systolic  *int
	Diastolic *int
	HeartRate *int
	Source    string // manual (default) | ble
	DeviceID  string
}

type ListBPStatsRequest struct {
	UserID     string
	Page       int // default 1
	Limit      int // default 10, max 100
	Categories []bpcategory.Category
	From       time.Time
	To         time.Time
}

type ListBPStatsResponse struct {
	Items       []*domain.BPStat `json:"bpStats"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"limit"`
	Total       int              `json:"totalBPStats"`
	TotalPages  int              `json:"totalPages"`
}

type ImportRow struct {
	Systolic   *int       `json:"systolic"`
	Diastolic  *int       `json:"diastolic"`
	HeartRate  *int       `json:"heartRate"`
	MeasuredAt *time.Time `json:"measuredAt,omitempty"`
}

type ImportFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int             `json:"imported"`
	Failed   []ImportFailure `json:"failed"`
}

const (
	// maxImportRows bounds a single import request.
	maxImportRows = 1000

	// maxDeviceIDLen matches bp_stats.device_id VARCHAR(64)
	maxDeviceIDLen = 64
)

// bpStatService 实现
type bpStatService struct {
	repo           repository.BPStatsRepository
	alerts         alert.Publisher
	alertThreshold bpcategory.Category
	logger         *zap.Logger
}

// NewBPStatService alerts is called for readings at or above alertThreshold; pass
// alert.NopPublisher{} to disable alerting.
func NewBPStatService(repo repository.BPStatsRepository, alerts alert.Publisher, alertThreshold bpcategory.Category, logger *zap.Logger) BPStatService {
	if alerts == nil {
		alerts = alert.NopPublisher{}
	}
	if !alertThreshold.Valid() {
		alertThreshold = bpcategory.HypertensiveCrisis
	}
	return &bpStatService{
		repo:           repo,
		alerts:         alerts,
		alertThreshold: alertThreshold,
		logger:         logger,
	}
}

// validateReading the classifier accepts any ints, so presence and sign are checked here.
func validateReading(systolic, diastolic, heartRate *int) error {
	if systolic == nil || diastolic == nil || heartRate == nil ||
		*systolic == 0 || *diastolic == 0 || *heartRate == 0 {
		return invalid("Please provide all fields")
	}
	if *systolic < 0 || *diastolic < 0 || *heartRate < 0 {
		return invalid("systolic, diastolic and heartRate must be positive")
	}
	return nil
}

func (s *bpStatService) CreateBPStat(ctx context.Context, req CreateBPStatRequest) (*domain.BPStat, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validateReading(req.Systolic, req.Diastolic, req.HeartRate); err != nil {
		return nil, err
	}

	source := req.Source
	switch source {
	case "":
		source = domain.SourceManual
	case domain.SourceManual, domain.SourceBLE:
	default:
		return nil, invalid(fmt.Sprintf("unknown source %q", req.Source))
	}
	if len(req.DeviceID) > maxDeviceIDLen {
		return nil, invalid(fmt.Sprintf("deviceId must be at most %d characters", maxDeviceIDLen))
	}

	stat := &domain.BPStat{
		UserID:    req.UserID,
		Systolic:  *req.Systolic,
		Diastolic: *req.Diastolic,
		HeartRate: *req.HeartRate,
		Category:  bpcategory.Classify(*req.Systolic, *req.Diastolic),
		Source:    source,
		DeviceID:  req.DeviceID,
	}
	if err := s.repo.Create(ctx, stat); err != nil {
		s.logger.Error("failed to create bp_stat",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create bp_stat: %w", err)
	}

	s.logger.Info("bp_stat created",
		zap.String("bpstat_id", stat.ID),
		zap.String("user_id", stat.UserID),
		zap.String("category", string(stat.Category)),
		zap.String("source", stat.Source),
	)

	s.maybeAlert(ctx, stat)
	return stat, nil
}

// maybeAlert publishing failures never fail the create.
func (s *bpStatService) maybeAlert(ctx context.Context, stat *domain.BPStat) {
	if !stat.Category.AtLeast(s.alertThreshold) {
		return
	}
	if err := s.alerts.Publish(ctx, stat); err != nil {
		s.logger.Warn("failed to publish bp alert",
			zap.String("bpstat_id", stat.ID),
			zap.String("category", string(stat.Category)),
			zap.Error(err),
		)
	}
}

func (s *bpStatService) ListBPStats(ctx context.Context, req ListBPStatsRequest) (*ListBPStatsResponse, error) {
	if req.UserID == "" {
		return nil, ErrUnauthenticated
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}
	if limit > repository.MaxPageSize {
		limit = repository.MaxPageSize
	}
	if page > repository.MaxPage {
		return nil, invalid(fmt.Sprintf("page must be at most %d", repository.MaxPage))
	}
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return nil, invalid("from must be before to")
	}

	filter := domain.BPStatFilter{Categories: req.Categories, From: req.From, To: req.To}
	items, total, err := s.repo.List(ctx, req.UserID, filter, page, limit)
	if err != nil {
		s.logger.Error("failed to list bp_stats",
			zap.String("user_id", req.UserID),
			zap.Int("page", page),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list bp_stats: %w", err)
	}

	return &ListBPStatsResponse{
		Items:       items,
		CurrentPage: page,
		Limit:       limit,
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// ownedStat loads id and checks that userID owns it.
func (s *bpStatService) ownedStat(ctx context.Context, userID, id string) (*domain.BPStat, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	stat, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bp_stat: %w", err)
	}
	if stat.UserID != userID {
		return nil, ErrForbidden
	}
	return stat, nil
}

func (s *bpStatService) GetBPStat(ctx context.Context, userID, id string) (*domain.BPStat, error) {
	return s.ownedStat(ctx, userID, id)
}

func (s *bpStatService) DeleteBPStat(ctx context.Context, userID, id string) error {
	if _, err := s.ownedStat(ctx, userID, id); err != nil {
		if errors.Is(err, ErrForbidden) {
			s.logger.Warn("bp_stat delete denied",
				zap.String("bpstat_id", id),
				zap.String("user_id", userID),
			)
		}
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete bp_stat: %w", err)
	}
	s.logger.Info("bp_stat deleted", zap.String("bpstat_id", id), zap.String("user_id", userID))
	return nil
}

func (s *bpStatService) SummaryBPStats(ctx context.Context, userID string) (*domain.BPStatSummary, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize bp_stats: %w", err)
	}
	return summary, nil
}

func (s *bpStatService) ImportBPStats(ctx context.Context, userID string, rows []ImportRow) (*ImportResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if len(rows) == 0 {
		return nil, invalid("no readings to import")
	}
	if len(rows) > maxImportRows {
		return nil, invalid(fmt.Sprintf("at most %d readings per import", maxImportRows))
	}

	result := &ImportResult{Failed: []ImportFailure{}}
	for i, row := range rows {
		if err := validateReading(row.Systolic, row.Diastolic, row.HeartRate); err != nil {
			result.Failed = append(result.Failed, ImportFailure{Index: i, Reason: err.Error()})
			continue
		}
		stat := &domain.BPStat{
			UserID:    userID,
			Systolic:  *row.Systolic,
			Diastolic: *row.Diastolic,
			HeartRate: *row.HeartRate,
			Category:  bpcategory.Classify(*row.Systolic, *row.Diastolic),
			Source:    domain.SourceManual,
		}
		if row.MeasuredAt != nil {
			stat.CreatedAt = row.MeasuredAt.UTC()
		}
		if err := s.repo.Create(ctx, stat); err != nil {
			// storage failures abort; rows already stored stay stored
			return result, fmt.Errorf("failed to import row %d: %w", i, err)
		}
		result.Imported++
	}

	s.logger.Info("bp_stats imported",
		zap.String("user_id", userID),
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}
