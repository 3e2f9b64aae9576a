package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/metrics"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// TimelineService maintains the per-parcel sequence of ownership intervals.
// All mutations are serialized per parcel and committed all-or-nothing, so
// the non-overlap invariant holds at every observable moment.
type TimelineService interface {
	// AssignOwner opens a new ownership interval starting at start and
	// closes the parcel's current open interval at the same date: the old
	// owner ends exactly where the new one begins, no gap and no overlap.
	// Returns ErrInvalidInterval when start precedes the open interval's
	// start date.
	AssignOwner(ctx context.Context, parcelID, ownerID uuid.UUID, start time.Time) (models.OwnershipInterval, error)

	// CurrentOwner resolves the owner whose interval covers asOf. A parcel
	// without an owner at that date is a valid state reported as ErrNoOwner.
	CurrentOwner(ctx context.Context, parcelID uuid.UUID, asOf time.Time) (models.Owner, models.OwnershipInterval, error)

	// HistoryFor returns the parcel's intervals ascending by start date.
	// The sequence is backed by a snapshot, so it can be ranged over any
	// number of times.
	HistoryFor(ctx context.Context, parcelID uuid.UUID) (iter.Seq[models.OwnershipInterval], error)

	// CorrectInterval is the administrative repair path. The parcel's whole
	// timeline is re-validated with the corrected interval in place before
	// anything is written; ErrOverlapViolation leaves state untouched.
	CorrectInterval(ctx context.Context, intervalID uuid.UUID, newStart time.Time, newEnd *time.Time) (models.OwnershipInterval, error)
}

type timelineService struct {
	parcels  store.ParcelStore
	owners   store.OwnerStore
	timeline store.TimelineStore
	locks    *store.ParcelLocks
	audit    AuditService
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewTimelineService creates a TimelineService.
func NewTimelineService(
	parcels store.ParcelStore,
	owners store.OwnerStore,
	timeline store.TimelineStore,
	locks *store.ParcelLocks,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
) TimelineService {
	return &timelineService{
		parcels:  parcels,
		owners:   owners,
		timeline: timeline,
		locks:    locks,
		audit:    audit,
		metrics:  m,
		log:      log,
	}
}

func (s *timelineService) AssignOwner(ctx context.Context, parcelID, ownerID uuid.UUID, start time.Time) (models.OwnershipInterval, error) {
	parcel, err := s.parcels.FindByID(ctx, parcelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.OwnershipInterval{}, ErrParcelNotFound
		}
		return models.OwnershipInterval{}, fmt.Errorf("failed to load parcel: %w", err)
	}
	if parcel.Deleted() {
		return models.OwnershipInterval{}, ErrParcelNotFound
	}
	if _, err := s.owners.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.OwnershipInterval{}, ErrOwnerNotFound
		}
		return models.OwnershipInterval{}, fmt.Errorf("failed to load owner: %w", err)
	}

	startDay := models.DateOnly(start)

	unlock := s.locks.Lock(parcelID)
	defer unlock()

	timeline, err := s.timeline.ListByParcel(ctx, parcelID)
	if err != nil {
		return models.OwnershipInterval{}, fmt.Errorf("failed to load timeline: %w", err)
	}

	// Untyped so a first assignment audits with no before snapshot at all.
	var closedPrior interface{}
	next := make([]models.OwnershipInterval, 0, len(timeline)+1)
	for _, interval := range timeline {
		if interval.Open() {
			if startDay.Before(models.DateOnly(interval.StartDate)) {
				s.log.Warn("Rejected ownership transfer before current interval start", map[string]interface{}{
					"parcel_id":     parcelID.String(),
					"start":         startDay.Format(time.DateOnly),
					"current_start": interval.StartDate.Format(time.DateOnly),
				})
				return models.OwnershipInterval{}, fmt.Errorf("%w: start %s precedes current interval start %s",
					ErrInvalidInterval, startDay.Format(time.DateOnly), interval.StartDate.Format(time.DateOnly))
			}
			prior := interval
			end := startDay
			interval.EndDate = &end
			closedPrior = prior
		}
		next = append(next, interval)
	}

	created := models.OwnershipInterval{
		ID:        uuid.New(),
		ParcelID:  parcelID,
		OwnerID:   ownerID,
		StartDate: startDay,
		CreatedAt: time.Now().UTC(),
	}
	next = append(next, created)

	if err := validateTimeline(next); err != nil {
		return models.OwnershipInterval{}, err
	}
	if err := s.timeline.ReplaceTimeline(ctx, parcelID, next); err != nil {
		return models.OwnershipInterval{}, fmt.Errorf("failed to commit timeline: %w", err)
	}

	s.log.Info("Ownership transferred", map[string]interface{}{
		"parcel_id": parcelID.String(),
		"owner_id":  ownerID.String(),
		"start":     startDay.Format(time.DateOnly),
	})
	s.audit.Record(ctx, models.AuditCreate, "ownership_interval", created.ID.String(), closedPrior, created)
	s.metrics.IncrementOwnerTransfers()

	return created, nil
}

func (s *timelineService) CurrentOwner(ctx context.Context, parcelID uuid.UUID, asOf time.Time) (models.Owner, models.OwnershipInterval, error) {
	if _, err := s.parcels.FindByID(ctx, parcelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Owner{}, models.OwnershipInterval{}, ErrParcelNotFound
		}
		return models.Owner{}, models.OwnershipInterval{}, fmt.Errorf("failed to load parcel: %w", err)
	}

	timeline, err := s.timeline.ListByParcel(ctx, parcelID)
	if err != nil {
		return models.Owner{}, models.OwnershipInterval{}, fmt.Errorf("failed to load timeline: %w", err)
	}

	for _, interval := range timeline {
		if interval.Covers(asOf) {
			owner, err := s.owners.FindByID(ctx, interval.OwnerID)
			if err != nil {
				return models.Owner{}, models.OwnershipInterval{}, fmt.Errorf("failed to load owner %s: %w", interval.OwnerID, err)
			}
			return owner, interval, nil
		}
	}
	return models.Owner{}, models.OwnershipInterval{}, ErrNoOwner
}

func (s *timelineService) HistoryFor(ctx context.Context, parcelID uuid.UUID) (iter.Seq[models.OwnershipInterval], error) {
	if _, err := s.parcels.FindByID(ctx, parcelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrParcelNotFound
		}
		return nil, fmt.Errorf("failed to load parcel: %w", err)
	}

	timeline, err := s.timeline.ListByParcel(ctx, parcelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}

	return func(yield func(models.OwnershipInterval) bool) {
		for _, interval := range timeline {
			if !yield(interval) {
				return
			}
		}
	}, nil
}

func (s *timelineService) CorrectInterval(ctx context.Context, intervalID uuid.UUID, newStart time.Time, newEnd *time.Time) (models.OwnershipInterval, error) {
	target, err := s.timeline.FindByID(ctx, intervalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.OwnershipInterval{}, ErrIntervalNotFound
		}
		return models.OwnershipInterval{}, fmt.Errorf("failed to load interval: %w", err)
	}

	startDay := models.DateOnly(newStart)
	var endDay *time.Time
	if newEnd != nil {
		d := models.DateOnly(*newEnd)
		if d.Before(startDay) {
			return models.OwnershipInterval{}, fmt.Errorf("%w: end %s precedes start %s",
				ErrInvalidInterval, d.Format(time.DateOnly), startDay.Format(time.DateOnly))
		}
		endDay = &d
	}

	unlock := s.locks.Lock(target.ParcelID)
	defer unlock()

	// Re-read under the lock; the timeline may have moved since FindByID.
	timeline, err := s.timeline.ListByParcel(ctx, target.ParcelID)
	if err != nil {
		return models.OwnershipInterval{}, fmt.Errorf("failed to load timeline: %w", err)
	}

	var before models.OwnershipInterval
	var corrected models.OwnershipInterval
	found := false
	next := make([]models.OwnershipInterval, 0, len(timeline))
	for _, interval := range timeline {
		if interval.ID == intervalID {
			before = interval
			interval.StartDate = startDay
			interval.EndDate = endDay
			corrected = interval
			found = true
		}
		next = append(next, interval)
	}
	if !found {
		return models.OwnershipInterval{}, ErrIntervalNotFound
	}

	if err := validateTimeline(next); err != nil {
		s.log.Warn("Rejected interval correction", map[string]interface{}{
			"interval_id": intervalID.String(),
			"parcel_id":   target.ParcelID.String(),
			"reason":      err.Error(),
		})
		return models.OwnershipInterval{}, err
	}
	if err := s.timeline.ReplaceTimeline(ctx, target.ParcelID, next); err != nil {
		return models.OwnershipInterval{}, fmt.Errorf("failed to commit timeline: %w", err)
	}

	s.audit.Record(ctx, models.AuditUpdate, "ownership_interval", intervalID.String(), before, corrected)
	return corrected, nil
}

// validateTimeline enforces the interval invariants for one parcel: at most
// one open interval and no pair sharing a day. Checked over the full set, not
// just neighbors, so corrections cannot sneak a violation past a sorted scan.
func validateTimeline(intervals []models.OwnershipInterval) error {
	sorted := make([]models.OwnershipInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	openSeen := false
	for _, interval := range sorted {
		if interval.Open() {
			if openSeen {
				return fmt.Errorf("%w: more than one open interval", ErrOverlapViolation)
			}
			openSeen = true
		}
	}

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i].Overlaps(sorted[j]) {
				return fmt.Errorf("%w: interval starting %s overlaps interval starting %s",
					ErrOverlapViolation,
					sorted[i].StartDate.Format(time.DateOnly),
					sorted[j].StartDate.Format(time.DateOnly))
			}
		}
	}
	return nil
}
