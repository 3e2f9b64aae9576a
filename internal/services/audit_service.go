package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/requestinfo"
	"github.com/obelousov/sntledger/internal/store"
)

// auditWindow is the rolling window Statistics reports on.
const auditWindow = 24 * time.Hour

// AuditService is the append-only compliance trail. Append is the only
// write; every projection is read-only. Statistics serves from an
// incremental counter cache that VerifyStatistics reconciles against a full
// scan of the stored trail.
type AuditService interface {
	// Append validates and persists one entry, assigning its sequence
	// number. Timestamp defaults to now when unset.
	Append(ctx context.Context, entry models.AuditEntry) error

	// Record builds an entry from the request context plus entity snapshots
	// and appends it. Audit failures are logged, never propagated: a ledger
	// mutation must not be rolled back because the trail hiccuped.
	Record(ctx context.Context, action models.AuditAction, entityType, entityID string, before, after interface{})

	RecentEntries(ctx context.Context, limit int) ([]models.AuditEntry, error)
	EntriesForUser(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error)
	Filter(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)

	// Statistics returns cached aggregate counts: total entries, per-action
	// counts and the rolling 24-hour volume.
	Statistics(ctx context.Context) (models.AuditStatistics, error)

	// VerifyStatistics recomputes the statistics by streaming the stored
	// trail once and reports whether the cache agrees. The scan result is
	// authoritative.
	VerifyStatistics(ctx context.Context) (models.AuditStatistics, bool, error)
}

type auditService struct {
	store store.AuditStore
	log   *logger.Logger

	mu       sync.Mutex
	total    uint64
	byAction map[models.AuditAction]uint64
	recent   []time.Time // timestamps inside the rolling window, ascending
}

// NewAuditService creates an AuditService over the given store.
func NewAuditService(auditStore store.AuditStore, log *logger.Logger) AuditService {
	return &auditService{
		store:    auditStore,
		log:      log,
		byAction: make(map[models.AuditAction]uint64),
	}
}

func (s *auditService) Append(ctx context.Context, entry models.AuditEntry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("unknown audit action %q", entry.Action)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ActorID == "" {
		entry.ActorID = requestinfo.AnonymousActor
	}

	if err := s.store.Append(ctx, &entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	s.mu.Lock()
	s.total++
	s.byAction[entry.Action]++
	s.recent = append(s.recent, entry.Timestamp)
	s.pruneLocked(time.Now().UTC())
	s.mu.Unlock()

	return nil
}

func (s *auditService) Record(ctx context.Context, action models.AuditAction, entityType, entityID string, before, after interface{}) {
	entry := models.AuditEntry{
		ActorID:       requestinfo.ActorID(ctx),
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Before:        marshalSnapshot(before),
		After:         marshalSnapshot(after),
		Timestamp:     time.Now().UTC(),
		OriginAddress: requestinfo.Origin(ctx),
	}

	if err := s.Append(ctx, entry); err != nil {
		s.log.Error("Failed to record audit entry", err, map[string]interface{}{
			"action":      string(action),
			"entity_type": entityType,
			"entity_id":   entityID,
		})
	}
}

func (s *auditService) RecentEntries(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent audit entries: %w", err)
	}
	return entries, nil
}

func (s *auditService) EntriesForUser(ctx context.Context, actorID string, limit int) ([]models.AuditEntry, error) {
	entries, err := s.store.Filter(ctx, models.AuditFilter{ActorID: actorID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries for actor %q: %w", actorID, err)
	}
	return entries, nil
}

func (s *auditService) Filter(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	entries, err := s.store.Filter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter audit entries: %w", err)
	}
	return entries, nil
}

func (s *auditService) Statistics(_ context.Context) (models.AuditStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(time.Now().UTC())

	stats := models.AuditStatistics{
		TotalEntries: s.total,
		Last24h:      uint64(len(s.recent)),
		ByAction:     make(map[models.AuditAction]uint64, len(s.byAction)),
	}
	for action, count := range s.byAction {
		stats.ByAction[action] = count
	}
	return stats, nil
}

func (s *auditService) VerifyStatistics(ctx context.Context) (models.AuditStatistics, bool, error) {
	cutoff := time.Now().UTC().Add(-auditWindow)
	scanned := models.AuditStatistics{ByAction: make(map[models.AuditAction]uint64)}
	var window []time.Time

	err := s.store.Walk(ctx, func(entry models.AuditEntry) error {
		scanned.TotalEntries++
		scanned.ByAction[entry.Action]++
		if entry.Timestamp.After(cutoff) {
			scanned.Last24h++
			window = append(window, entry.Timestamp)
		}
		return nil
	})
	if err != nil {
		return models.AuditStatistics{}, false, fmt.Errorf("failed to scan audit trail: %w", err)
	}

	cached, _ := s.Statistics(ctx)
	match := statsEqual(cached, scanned)
	if !match {
		s.log.Warn("Audit statistics cache diverged from full scan", map[string]interface{}{
			"cached_total":  cached.TotalEntries,
			"scanned_total": scanned.TotalEntries,
		})
		// The scan is the truth; resync the cache so the divergence does
		// not persist.
		s.mu.Lock()
		s.total = scanned.TotalEntries
		s.byAction = make(map[models.AuditAction]uint64, len(scanned.ByAction))
		for action, count := range scanned.ByAction {
			s.byAction[action] = count
		}
		s.recent = window
		s.mu.Unlock()
	}

	return scanned, match, nil
}

// pruneLocked drops window timestamps older than 24 hours. Callers hold mu.
func (s *auditService) pruneLocked(now time.Time) {
	cutoff := now.Add(-auditWindow)
	idx := 0
	for idx < len(s.recent) && !s.recent[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		s.recent = append(s.recent[:0], s.recent[idx:]...)
	}
}

func statsEqual(a, b models.AuditStatistics) bool {
	if a.TotalEntries != b.TotalEntries || a.Last24h != b.Last24h {
		return false
	}
	if len(a.ByAction) != len(b.ByAction) {
		return false
	}
	for action, count := range a.ByAction {
		if b.ByAction[action] != count {
			return false
		}
	}
	return true
}

// marshalSnapshot serializes an entity state for the trail. A nil snapshot
// (creation has no before, deletion has no after) stays nil.
func marshalSnapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(fmt.Sprintf("%q", "unserializable: "+err.Error()))
	}
	return data
}
