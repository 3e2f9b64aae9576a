package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// IdentityService owns the lifecycle of parcels and owners. Records are
// soft-deleted; a hard delete is refused while ownership intervals or due
// records still reference the parcel.
type IdentityService interface {
	RegisterParcel(ctx context.Context, plotNumber, address string, areaSotka *float64) (models.Parcel, error)
	UpdateParcel(ctx context.Context, id uuid.UUID, plotNumber, address string, areaSotka *float64) (models.Parcel, error)
	GetParcel(ctx context.Context, id uuid.UUID) (models.Parcel, error)
	ListParcels(ctx context.Context) ([]models.Parcel, error)
	// DeleteParcel soft-deletes by default. Returns ErrParcelReferenced when
	// hard is requested and dependents exist.
	DeleteParcel(ctx context.Context, id uuid.UUID, hard bool) error

	RegisterOwner(ctx context.Context, fullName, phone, email string) (models.Owner, error)
	UpdateOwner(ctx context.Context, id uuid.UUID, fullName, phone, email string) (models.Owner, error)
	GetOwner(ctx context.Context, id uuid.UUID) (models.Owner, error)
	ListOwners(ctx context.Context) ([]models.Owner, error)
	DeleteOwner(ctx context.Context, id uuid.UUID) error
}

type identityService struct {
	parcels  store.ParcelStore
	owners   store.OwnerStore
	timeline store.TimelineStore
	dues     store.DueStore
	audit    AuditService
	log      *logger.Logger
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(
	parcels store.ParcelStore,
	owners store.OwnerStore,
	timeline store.TimelineStore,
	dues store.DueStore,
	audit AuditService,
	log *logger.Logger,
) IdentityService {
	return &identityService{
		parcels:  parcels,
		owners:   owners,
		timeline: timeline,
		dues:     dues,
		audit:    audit,
		log:      log,
	}
}

func (s *identityService) RegisterParcel(ctx context.Context, plotNumber, address string, areaSotka *float64) (models.Parcel, error) {
	plotNumber = strings.TrimSpace(plotNumber)
	if plotNumber == "" {
		return models.Parcel{}, fmt.Errorf("%w: plot number is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	parcel := models.Parcel{
		ID:         uuid.New(),
		PlotNumber: plotNumber,
		Address:    address,
		AreaSotka:  areaSotka,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.parcels.Save(ctx, parcel); err != nil {
		return models.Parcel{}, fmt.Errorf("failed to save parcel: %w", err)
	}

	s.log.Info("Parcel registered", map[string]interface{}{
		"parcel_id":   parcel.ID.String(),
		"plot_number": plotNumber,
	})
	s.audit.Record(ctx, models.AuditCreate, "parcel", parcel.ID.String(), nil, parcel)
	return parcel, nil
}

func (s *identityService) UpdateParcel(ctx context.Context, id uuid.UUID, plotNumber, address string, areaSotka *float64) (models.Parcel, error) {
	parcel, err := s.parcels.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Parcel{}, ErrParcelNotFound
		}
		return models.Parcel{}, fmt.Errorf("failed to load parcel: %w", err)
	}
	if parcel.Deleted() {
		return models.Parcel{}, ErrParcelNotFound
	}

	before := parcel
	if plotNumber = strings.TrimSpace(plotNumber); plotNumber != "" {
		parcel.PlotNumber = plotNumber
	}
	parcel.Address = address
	if areaSotka != nil {
		parcel.AreaSotka = areaSotka
	}
	parcel.UpdatedAt = time.Now().UTC()

	if err := s.parcels.Save(ctx, parcel); err != nil {
		return models.Parcel{}, fmt.Errorf("failed to save parcel: %w", err)
	}
	s.audit.Record(ctx, models.AuditUpdate, "parcel", id.String(), before, parcel)
	return parcel, nil
}

func (s *identityService) GetParcel(ctx context.Context, id uuid.UUID) (models.Parcel, error) {
	parcel, err := s.parcels.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Parcel{}, ErrParcelNotFound
		}
		return models.Parcel{}, fmt.Errorf("failed to load parcel: %w", err)
	}
	if parcel.Deleted() {
		return models.Parcel{}, ErrParcelNotFound
	}
	return parcel, nil
}

func (s *identityService) ListParcels(ctx context.Context) ([]models.Parcel, error) {
	parcels, err := s.parcels.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list parcels: %w", err)
	}
	return parcels, nil
}

func (s *identityService) DeleteParcel(ctx context.Context, id uuid.UUID, hard bool) error {
	parcel, err := s.parcels.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrParcelNotFound
		}
		return fmt.Errorf("failed to load parcel: %w", err)
	}

	if hard {
		intervals, err := s.timeline.CountByParcel(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count intervals: %w", err)
		}
		dues, err := s.dues.ListByParcel(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list dues: %w", err)
		}
		if intervals > 0 || len(dues) > 0 {
			return fmt.Errorf("%w: %d intervals, %d dues", ErrParcelReferenced, intervals, len(dues))
		}
		if err := s.parcels.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete parcel: %w", err)
		}
		s.audit.Record(ctx, models.AuditDelete, "parcel", id.String(), parcel, nil)
		return nil
	}

	if parcel.Deleted() {
		return nil
	}
	before := parcel
	now := time.Now().UTC()
	parcel.DeletedAt = &now
	parcel.UpdatedAt = now
	if err := s.parcels.Save(ctx, parcel); err != nil {
		return fmt.Errorf("failed to soft-delete parcel: %w", err)
	}
	s.audit.Record(ctx, models.AuditDelete, "parcel", id.String(), before, parcel)
	return nil
}

func (s *identityService) RegisterOwner(ctx context.Context, fullName, phone, email string) (models.Owner, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return models.Owner{}, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	owner := models.Owner{
		ID:        uuid.New(),
		FullName:  fullName,
		Phone:     strings.TrimSpace(phone),
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.owners.Save(ctx, owner); err != nil {
		return models.Owner{}, fmt.Errorf("failed to save owner: %w", err)
	}

	s.log.Info("Owner registered", map[string]interface{}{
		"owner_id":  owner.ID.String(),
		"full_name": fullName,
	})
	s.audit.Record(ctx, models.AuditCreate, "owner", owner.ID.String(), nil, owner)
	return owner, nil
}

func (s *identityService) UpdateOwner(ctx context.Context, id uuid.UUID, fullName, phone, email string) (models.Owner, error) {
	owner, err := s.owners.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Owner{}, ErrOwnerNotFound
		}
		return models.Owner{}, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner.Deleted() {
		return models.Owner{}, ErrOwnerNotFound
	}

	before := owner
	if fullName = strings.TrimSpace(fullName); fullName != "" {
		owner.FullName = fullName
	}
	owner.Phone = strings.TrimSpace(phone)
	owner.Email = strings.TrimSpace(email)
	owner.UpdatedAt = time.Now().UTC()

	if err := s.owners.Save(ctx, owner); err != nil {
		return models.Owner{}, fmt.Errorf("failed to save owner: %w", err)
	}
	s.audit.Record(ctx, models.AuditUpdate, "owner", id.String(), before, owner)
	return owner, nil
}

func (s *identityService) GetOwner(ctx context.Context, id uuid.UUID) (models.Owner, error) {
	owner, err := s.owners.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Owner{}, ErrOwnerNotFound
		}
		return models.Owner{}, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner.Deleted() {
		return models.Owner{}, ErrOwnerNotFound
	}
	return owner, nil
}

func (s *identityService) ListOwners(ctx context.Context) ([]models.Owner, error) {
	owners, err := s.owners.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

func (s *identityService) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	owner, err := s.owners.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to load owner: %w", err)
	}
	if owner.Deleted() {
		return nil
	}

	before := owner
	now := time.Now().UTC()
	owner.DeletedAt = &now
	owner.UpdatedAt = now
	if err := s.owners.Save(ctx, owner); err != nil {
		return fmt.Errorf("failed to soft-delete owner: %w", err)
	}
	s.audit.Record(ctx, models.AuditDelete, "owner", id.String(), before, owner)
	return nil
}
