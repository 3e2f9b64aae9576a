package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/store"
)

// Debtor is one row of the debt report: a parcel that still owes for the
// year, joined with whoever owned it on December 31. Owner is nil and
// NoOwner is set when the parcel had no owner at that date; the row is kept
// rather than dropped so nobody disappears from the report.
type Debtor struct {
	Parcel      models.Parcel    `json:"parcel"`
	Due         models.DueRecord `json:"due"`
	Owner       *models.Owner    `json:"owner,omitempty"`
	NoOwner     bool             `json:"no_owner"`
	Outstanding int64            `json:"outstanding"`
}

// PaymentSummary mirrors the dashboard statistics screen: per-status counts
// and amounts plus the overall payment rate for one fiscal year.
type PaymentSummary struct {
	FiscalYear      int   `json:"fiscal_year"`
	TotalParcels    int   `json:"total_parcels"`
	TotalRecords    int   `json:"total_records"`
	Paid            int   `json:"paid"`
	Partial         int   `json:"partial"`
	NotPaid         int   `json:"not_paid"`
	PaymentRate     int   `json:"payment_rate"`
	AmountAssessed  int64 `json:"amount_assessed"`
	AmountCollected int64 `json:"amount_collected"`
}

// DebtReport aggregates the year's debtors.
type DebtReport struct {
	FiscalYear   int      `json:"fiscal_year"`
	TotalDebtors int      `json:"total_debtors"`
	TotalDebt    int64    `json:"total_debt"`
	Debtors      []Debtor `json:"debtors"`
}

// MonthIncome is one month's collected total, keyed "YYYY-MM".
type MonthIncome struct {
	Month  string `json:"month"`
	Count  int    `json:"count"`
	Amount int64  `json:"amount"`
}

// ReportingService derives statistics, debtor lists and calendars from the
// timeline and the dues ledger. Every method is a pure read over the stores:
// no caching, no hidden writes, deterministic output for the same snapshot.
type ReportingService interface {
	// PaymentRate is the percentage of fully paid records for the year,
	// rounded to the nearest integer. Zero when no records exist.
	PaymentRate(ctx context.Context, fiscalYear int) (int, error)

	PaymentSummary(ctx context.Context, fiscalYear int) (PaymentSummary, error)

	// Debtors lists the year's parcels whose due is not fully paid, joined
	// with the owner as of December 31 of that year.
	Debtors(ctx context.Context, fiscalYear int) ([]Debtor, error)

	DebtReport(ctx context.Context, fiscalYear int) (DebtReport, error)

	// MonthlyIncome sums paid amounts per month of paid_date over the
	// period, months ascending, skipping records still in not_paid status.
	MonthlyIncome(ctx context.Context, from, to time.Time) ([]MonthIncome, error)

	// CalendarFor returns the records whose paid_date falls on the given
	// day. An empty result is a valid answer.
	CalendarFor(ctx context.Context, date time.Time) ([]models.DueRecord, error)
}

type reportingService struct {
	parcels  store.ParcelStore
	owners   store.OwnerStore
	timeline store.TimelineStore
	dues     store.DueStore
}

// NewReportingService creates a ReportingService.
func NewReportingService(
	parcels store.ParcelStore,
	owners store.OwnerStore,
	timeline store.TimelineStore,
	dues store.DueStore,
) ReportingService {
	return &reportingService{
		parcels:  parcels,
		owners:   owners,
		timeline: timeline,
		dues:     dues,
	}
}

func (s *reportingService) PaymentRate(ctx context.Context, fiscalYear int) (int, error) {
	dues, err := s.dues.ListByYear(ctx, fiscalYear)
	if err != nil {
		return 0, fmt.Errorf("failed to list dues: %w", err)
	}
	if len(dues) == 0 {
		return 0, nil
	}

	paid := 0
	for _, due := range dues {
		if due.Settled() {
			paid++
		}
	}
	return int(math.Round(float64(paid) / float64(len(dues)) * 100)), nil
}

func (s *reportingService) PaymentSummary(ctx context.Context, fiscalYear int) (PaymentSummary, error) {
	dues, err := s.dues.ListByYear(ctx, fiscalYear)
	if err != nil {
		return PaymentSummary{}, fmt.Errorf("failed to list dues: %w", err)
	}
	parcels, err := s.parcels.List(ctx, false)
	if err != nil {
		return PaymentSummary{}, fmt.Errorf("failed to list parcels: %w", err)
	}

	summary := PaymentSummary{
		FiscalYear:   fiscalYear,
		TotalParcels: len(parcels),
		TotalRecords: len(dues),
	}
	for _, due := range dues {
		summary.AmountAssessed += due.Amount
		summary.AmountCollected += due.AmountPaid
		switch due.Status {
		case models.DuePaid:
			summary.Paid++
		case models.DuePartial:
			summary.Partial++
		default:
			summary.NotPaid++
		}
	}
	if len(dues) > 0 {
		summary.PaymentRate = int(math.Round(float64(summary.Paid) / float64(len(dues)) * 100))
	}
	return summary, nil
}

func (s *reportingService) Debtors(ctx context.Context, fiscalYear int) ([]Debtor, error) {
	dues, err := s.dues.ListByYear(ctx, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list dues: %w", err)
	}

	// Contact resolution uses the owner on the last day of the fiscal year,
	// not the owner at assessment time.
	yearEnd := time.Date(fiscalYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	debtors := make([]Debtor, 0)
	for _, due := range dues {
		if due.Settled() {
			continue
		}

		parcel, err := s.parcels.FindByID(ctx, due.ParcelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parcel %s: %w", due.ParcelID, err)
		}

		debtor := Debtor{
			Parcel:      parcel,
			Due:         due,
			NoOwner:     true,
			Outstanding: due.Outstanding(),
		}

		intervals, err := s.timeline.ListByParcel(ctx, due.ParcelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load timeline for parcel %s: %w", due.ParcelID, err)
		}
		for _, interval := range intervals {
			if !interval.Covers(yearEnd) {
				continue
			}
			owner, err := s.owners.FindByID(ctx, interval.OwnerID)
			if err != nil {
				return nil, fmt.Errorf("failed to load owner %s: %w", interval.OwnerID, err)
			}
			debtor.Owner = &owner
			debtor.NoOwner = false
			break
		}

		debtors = append(debtors, debtor)
	}

	sort.Slice(debtors, func(i, j int) bool {
		return debtors[i].Parcel.PlotNumber < debtors[j].Parcel.PlotNumber
	})
	return debtors, nil
}

func (s *reportingService) DebtReport(ctx context.Context, fiscalYear int) (DebtReport, error) {
	debtors, err := s.Debtors(ctx, fiscalYear)
	if err != nil {
		return DebtReport{}, err
	}

	report := DebtReport{
		FiscalYear:   fiscalYear,
		TotalDebtors: len(debtors),
		Debtors:      debtors,
	}
	for _, debtor := range debtors {
		report.TotalDebt += debtor.Outstanding
	}
	return report, nil
}

func (s *reportingService) MonthlyIncome(ctx context.Context, from, to time.Time) ([]MonthIncome, error) {
	dues, err := s.dues.ListPaidBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid dues: %w", err)
	}

	byMonth := make(map[string]*MonthIncome)
	for _, due := range dues {
		if due.Status == models.DueNotPaid || due.PaidDate == nil {
			continue
		}
		key := due.PaidDate.Format("2006-01")
		entry, ok := byMonth[key]
		if !ok {
			entry = &MonthIncome{Month: key}
			byMonth[key] = entry
		}
		entry.Count++
		entry.Amount += due.AmountPaid
	}

	months := make([]MonthIncome, 0, len(byMonth))
	for _, entry := range byMonth {
		months = append(months, *entry)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month < months[j].Month
	})
	return months, nil
}

func (s *reportingService) CalendarFor(ctx context.Context, date time.Time) ([]models.DueRecord, error) {
	day := models.DateOnly(date)
	dues, err := s.dues.ListPaidBetween(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list dues for %s: %w", day.Format(time.DateOnly), err)
	}
	return dues, nil
}
