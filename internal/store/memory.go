package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/obelousov/sntledger/internal/models"
)

// In-memory stores back tests and small single-node deployments. They
// intentionally favor clarity over performance; every method works on
// copies so callers never share slices with the store.

// Memory bundles one in-memory instance of every store.
type Memory struct {
	Parcels   *MemoryParcels
	Owners    *MemoryOwners
	Timeline  *MemoryTimeline
	Dues      *MemoryDues
	Audit     *MemoryAudit
	Templates *MemoryTemplates
}

// NewMemory creates a fresh, isolated set of in-memory stores.
func NewMemory() *Memory {
	return &Memory{
		Parcels:   NewMemoryParcels(),
		Owners:    NewMemoryOwners(),
		Timeline:  NewMemoryTimeline(),
		Dues:      NewMemoryDues(),
		Audit:     NewMemoryAudit(),
		Templates: NewMemoryTemplates(),
	}
}

// MemoryParcels is the in-memory ParcelStore.
type MemoryParcels struct {
	mu      sync.RWMutex
	parcels map[uuid.UUID]models.Parcel
}

func NewMemoryParcels() *MemoryParcels {
	return &MemoryParcels{parcels: make(map[uuid.UUID]models.Parcel)}
}

func (s *MemoryParcels) Save(_ context.Context, parcel models.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parcels[parcel.ID] = parcel
	return nil
}

func (s *MemoryParcels) FindByID(_ context.Context, id uuid.UUID) (models.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if parcel, ok := s.parcels[id]; ok {
		return parcel, nil
	}
	return models.Parcel{}, ErrNotFound
}

func (s *MemoryParcels) List(_ context.Context, includeDeleted bool) ([]models.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Parcel, 0, len(s.parcels))
	for _, parcel := range s.parcels {
		if parcel.Deleted() && !includeDeleted {
			continue
		}
		result = append(result, parcel)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PlotNumber < result[j].PlotNumber
	})
	return result, nil
}

func (s *MemoryParcels) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parcels[id]; !ok {
		return ErrNotFound
	}
	delete(s.parcels, id)
	return nil
}

// MemoryOwners is the in-memory OwnerStore.
type MemoryOwners struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]models.Owner
}

func NewMemoryOwners() *MemoryOwners {
	return &MemoryOwners{owners: make(map[uuid.UUID]models.Owner)}
}

func (s *MemoryOwners) Save(_ context.Context, owner models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[owner.ID] = owner
	return nil
}

func (s *MemoryOwners) FindByID(_ context.Context, id uuid.UUID) (models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if owner, ok := s.owners[id]; ok {
		return owner, nil
	}
	return models.Owner{}, ErrNotFound
}

func (s *MemoryOwners) List(_ context.Context, includeDeleted bool) ([]models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Owner, 0, len(s.owners))
	for _, owner := range s.owners {
		if owner.Deleted() && !includeDeleted {
			continue
		}
		result = append(result, owner)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FullName < result[j].FullName
	})
	return result, nil
}

func (s *MemoryOwners) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[id]; !ok {
		return ErrNotFound
	}
	delete(s.owners, id)
	return nil
}

// MemoryTimeline is the in-memory TimelineStore. Intervals are kept sorted
// by start date per parcel.
type MemoryTimeline struct {
	mu        sync.RWMutex
	intervals map[uuid.UUID][]models.OwnershipInterval
}

func NewMemoryTimeline() *MemoryTimeline {
	return &MemoryTimeline{intervals: make(map[uuid.UUID][]models.OwnershipInterval)}
}

func (s *MemoryTimeline) FindByID(_ context.Context, intervalID uuid.UUID) (models.OwnershipInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, timeline := range s.intervals {
		for _, interval := range timeline {
			if interval.ID == intervalID {
				return interval, nil
			}
		}
	}
	return models.OwnershipInterval{}, ErrNotFound
}

func (s *MemoryTimeline) ListByParcel(_ context.Context, parcelID uuid.UUID) ([]models.OwnershipInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	timeline := s.intervals[parcelID]
	result := make([]models.OwnershipInterval, len(timeline))
	copy(result, timeline)
	return result, nil
}

func (s *MemoryTimeline) ReplaceTimeline(_ context.Context, parcelID uuid.UUID, intervals []models.OwnershipInterval) error {
	sorted := make([]models.OwnershipInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(sorted) == 0 {
		delete(s.intervals, parcelID)
		return nil
	}
	s.intervals[parcelID] = sorted
	return nil
}

func (s *MemoryTimeline) CountByParcel(_ context.Context, parcelID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intervals[parcelID]), nil
}

// dueKey identifies a due record by its uniqueness constraint.
type dueKey struct {
	parcelID uuid.UUID
	year     int
}

// MemoryDues is the in-memory DueStore.
type MemoryDues struct {
	mu   sync.RWMutex
	dues map[dueKey]models.DueRecord
}

func NewMemoryDues() *MemoryDues {
	return &MemoryDues{dues: make(map[dueKey]models.DueRecord)}
}

func (s *MemoryDues) Create(_ context.Context, due models.DueRecord) error {
	key := dueKey{parcelID: due.ParcelID, year: due.FiscalYear}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dues[key]; ok {
		return ErrAlreadyExists
	}
	s.dues[key] = due
	return nil
}

func (s *MemoryDues) Find(_ context.Context, parcelID uuid.UUID, fiscalYear int) (models.DueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if due, ok := s.dues[dueKey{parcelID: parcelID, year: fiscalYear}]; ok {
		return due, nil
	}
	return models.DueRecord{}, ErrNotFound
}

// Update replaces the stored record only if the caller read the version that
// is still current, then bumps the version.
func (s *MemoryDues) Update(_ context.Context, due models.DueRecord) error {
	key := dueKey{parcelID: due.ParcelID, year: due.FiscalYear}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.dues[key]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != due.Version {
		return ErrVersionConflict
	}
	due.Version++
	s.dues[key] = due
	return nil
}

func (s *MemoryDues) ListByYear(_ context.Context, fiscalYear int) ([]models.DueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.DueRecord
	for _, due := range s.dues {
		if due.FiscalYear == fiscalYear {
			result = append(result, due)
		}
	}
	sortDues(result)
	return result, nil
}

func (s *MemoryDues) ListByParcel(_ context.Context, parcelID uuid.UUID) ([]models.DueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.DueRecord
	for _, due := range s.dues {
		if due.ParcelID == parcelID {
			result = append(result, due)
		}
	}
	sortDues(result)
	return result, nil
}

func (s *MemoryDues) ListPaidBetween(_ context.Context, from, to time.Time) ([]models.DueRecord, error) {
	fromDay := models.DateOnly(from)
	toDay := models.DateOnly(to)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.DueRecord
	for _, due := range s.dues {
		if due.PaidDate == nil {
			continue
		}
		day := models.DateOnly(*due.PaidDate)
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		result = append(result, due)
	}
	sortDues(result)
	return result, nil
}

// sortDues makes listings deterministic regardless of map iteration order.
func sortDues(dues []models.DueRecord) {
	sort.Slice(dues, func(i, j int) bool {
		if dues[i].FiscalYear != dues[j].FiscalYear {
			return dues[i].FiscalYear < dues[j].FiscalYear
		}
		return dues[i].ParcelID.String() < dues[j].ParcelID.String()
	})
}

// MemoryAudit is the in-memory AuditStore. Entries are held in sequence
// order; the slice only ever grows.
type MemoryAudit struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (s *MemoryAudit) Append(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Seq = uint64(len(s.entries)) + 1
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryAudit) Recent(_ context.Context, limit int) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	result := make([]models.AuditEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.entries[i])
	}
	return result, nil
}

func (s *MemoryAudit) Filter(_ context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if !matchesFilter(entry, filter) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *MemoryAudit) Walk(ctx context.Context, fn func(models.AuditEntry) error) error {
	s.mu.RLock()
	snapshot := make([]models.AuditEntry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.RUnlock()

	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func matchesFilter(entry models.AuditEntry, filter models.AuditFilter) bool {
	if filter.ActorID != "" && entry.ActorID != filter.ActorID {
		return false
	}
	if filter.Action != "" && entry.Action != filter.Action {
		return false
	}
	if filter.EntityType != "" && entry.EntityType != filter.EntityType {
		return false
	}
	if !filter.Since.IsZero() && entry.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && entry.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

// MemoryTemplates is the in-memory TemplateStore.
type MemoryTemplates struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]models.NotificationTemplate
}

func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{templates: make(map[uuid.UUID]models.NotificationTemplate)}
}

func (s *MemoryTemplates) Save(_ context.Context, tmpl models.NotificationTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tmpl.ID] = tmpl
	return nil
}

func (s *MemoryTemplates) FindByID(_ context.Context, id uuid.UUID) (models.NotificationTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tmpl, ok := s.templates[id]; ok {
		return tmpl, nil
	}
	return models.NotificationTemplate{}, ErrNotFound
}

func (s *MemoryTemplates) List(_ context.Context) ([]models.NotificationTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.NotificationTemplate, 0, len(s.templates))
	for _, tmpl := range s.templates {
		result = append(result, tmpl)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *MemoryTemplates) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	return nil
}
