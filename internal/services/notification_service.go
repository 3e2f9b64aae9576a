package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/obelousov/sntledger/internal/logger"
	"github.com/obelousov/sntledger/internal/metrics"
	"github.com/obelousov/sntledger/internal/models"
	"github.com/obelousov/sntledger/internal/notify"
	"github.com/obelousov/sntledger/internal/store"
)

// placeholderPattern matches {{name}} tokens in template bodies.
var placeholderPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// reservedPlaceholders is the vocabulary the dispatcher always supplies.
// A template may use any subset of these; a reserved token with no value in
// the substitution map is a hard error, anything outside the vocabulary is
// left verbatim.
var reservedPlaceholders = map[string]bool{
	"owner_name":  true,
	"plot_number": true,
	"year":        true,
	"amount":      true,
}

// NotificationService resolves debtor recipients, renders templates and
// drives bulk sends. Dispatch is best effort per recipient: one failing
// address never aborts the batch.
type NotificationService interface {
	// UnpaidRecipients resolves the owners to notify about unpaid dues for
	// the year. Owners without any contact channel, and parcels without a
	// current owner, are returned with Excluded set instead of being
	// silently dropped.
	UnpaidRecipients(ctx context.Context, fiscalYear int) ([]models.Recipient, error)

	// RenderTemplate substitutes placeholders into the template body and
	// subject. Reserved placeholders used by the template must have a value
	// in subs; ErrMissingPlaceholder otherwise.
	RenderTemplate(tmpl models.NotificationTemplate, subs map[string]string) (subject, body string, err error)

	// DispatchBulk renders the template for every non-excluded recipient
	// and sends over each recipient's channel. Cancelling the context stops
	// issuing new sends; recipients not yet attempted are reported as not
	// sent. The report always covers every recipient passed in.
	DispatchBulk(ctx context.Context, templateID uuid.UUID, recipients []models.Recipient) (models.DispatchReport, error)

	SaveTemplate(ctx context.Context, tmpl models.NotificationTemplate) (models.NotificationTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (models.NotificationTemplate, error)
	ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

type notificationService struct {
	templates   store.TemplateStore
	reporting   ReportingService
	notifier    notify.Notifier
	audit       AuditService
	metrics     *metrics.Metrics
	log         *logger.Logger
	concurrency int64
}

// NewNotificationService creates a NotificationService. concurrency bounds
// the number of in-flight sends during DispatchBulk; values below 1 are
// clamped to 1.
func NewNotificationService(
	templates store.TemplateStore,
	reporting ReportingService,
	notifier notify.Notifier,
	audit AuditService,
	m *metrics.Metrics,
	log *logger.Logger,
	concurrency int,
) NotificationService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &notificationService{
		templates:   templates,
		reporting:   reporting,
		notifier:    notifier,
		audit:       audit,
		metrics:     m,
		log:         log,
		concurrency: int64(concurrency),
	}
}

func (s *notificationService) UnpaidRecipients(ctx context.Context, fiscalYear int) ([]models.Recipient, error) {
	debtors, err := s.reporting.Debtors(ctx, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("resolving debtors for %d: %w", fiscalYear, err)
	}

	recipients := make([]models.Recipient, 0, len(debtors))
	for _, d := range debtors {
		r := models.Recipient{
			ParcelID:   d.Parcel.ID,
			PlotNumber: d.Parcel.PlotNumber,
			FiscalYear: fiscalYear,
			AmountDue:  d.Outstanding,
		}
		switch {
		case d.NoOwner:
			r.Excluded = true
			r.ExcludeReason = "no_owner"
		case d.Owner.Email != "":
			r.OwnerID = d.Owner.ID
			r.OwnerName = d.Owner.FullName
			r.Channel = models.ChannelEmail
			r.Address = d.Owner.Email
		case d.Owner.Phone != "":
			r.OwnerID = d.Owner.ID
			r.OwnerName = d.Owner.FullName
			r.Channel = models.ChannelTelegram
			r.Address = d.Owner.Phone
		default:
			r.OwnerID = d.Owner.ID
			r.OwnerName = d.Owner.FullName
			r.Excluded = true
			r.ExcludeReason = "no_contact"
		}
		recipients = append(recipients, r)
	}
	return recipients, nil
}

func (s *notificationService) RenderTemplate(tmpl models.NotificationTemplate, subs map[string]string) (string, string, error) {
	subject, err := renderText(tmpl.Subject, subs)
	if err != nil {
		return "", "", err
	}
	body, err := renderText(tmpl.Body, subs)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderText(text string, subs map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if val, ok := subs[name]; ok {
			return val
		}
		if reservedPlaceholders[name] {
			missing = append(missing, name)
		}
		return token
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingPlaceholder, strings.Join(missing, ", "))
	}
	return out, nil
}

func (s *notificationService) DispatchBulk(ctx context.Context, templateID uuid.UUID, recipients []models.Recipient) (models.DispatchReport, error) {
	tmpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DispatchReport{}, ErrTemplateNotFound
		}
		return models.DispatchReport{}, fmt.Errorf("loading template %s: %w", templateID, err)
	}

	report := models.DispatchReport{
		Total:    len(recipients),
		Outcomes: make([]models.DispatchOutcome, len(recipients)),
	}

	sem := semaphore.NewWeighted(s.concurrency)
	var wg sync.WaitGroup
	for i, r := range recipients {
		report.Outcomes[i] = models.DispatchOutcome{Recipient: r}

		if r.Excluded {
			report.Outcomes[i].Reason = r.ExcludeReason
			continue
		}
		if r.Channel != tmpl.Channel {
			report.Outcomes[i].Reason = "channel_mismatch"
			continue
		}

		subject, body, err := s.RenderTemplate(tmpl, substitutionsFor(r))
		if err != nil {
			report.Outcomes[i].Reason = err.Error()
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled; everything not yet issued stays unsent.
			report.Outcomes[i].Reason = "cancelled"
			continue
		}

		wg.Add(1)
		go func(idx int, msg notify.Message) {
			defer wg.Done()
			defer sem.Release(1)
			if err := s.notifier.Send(ctx, msg); err != nil {
				report.Outcomes[idx].Reason = err.Error()
				s.metrics.IncrementNotificationsFailed()
				s.log.Warn("Notification send failed", map[string]interface{}{
					"channel": string(msg.Channel),
					"address": msg.Address,
					"error":   err.Error(),
				})
				return
			}
			report.Outcomes[idx].Sent = true
			s.metrics.IncrementNotificationsSent()
		}(i, notify.Message{
			Channel: r.Channel,
			Address: r.Address,
			Subject: subject,
			Body:    body,
		})
	}
	wg.Wait()

	for _, o := range report.Outcomes {
		if o.Sent {
			report.Sent++
		}
	}

	s.audit.Record(ctx, models.AuditSendNotification, "notification_batch", templateID.String(), nil, map[string]interface{}{
		"template_id": templateID.String(),
		"sent":        report.Sent,
		"total":       report.Total,
	})
	s.log.Info("Bulk notification dispatched", map[string]interface{}{
		"template_id": templateID.String(),
		"sent":        report.Sent,
		"total":       report.Total,
	})
	return report, nil
}

// substitutionsFor builds the full reserved vocabulary for one recipient.
func substitutionsFor(r models.Recipient) map[string]string {
	return map[string]string{
		"owner_name":  r.OwnerName,
		"plot_number": r.PlotNumber,
		"year":        fmt.Sprintf("%d", r.FiscalYear),
		"amount":      formatAmount(r.AmountDue),
	}
}

// formatAmount renders minor units as a decimal string, e.g. 500000 -> "5000.00".
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func (s *notificationService) SaveTemplate(ctx context.Context, tmpl models.NotificationTemplate) (models.NotificationTemplate, error) {
	if strings.TrimSpace(tmpl.Name) == "" || strings.TrimSpace(tmpl.Body) == "" {
		return models.NotificationTemplate{}, fmt.Errorf("%w: template name and body are required", ErrInvalidInput)
	}
	if tmpl.Channel != models.ChannelEmail && tmpl.Channel != models.ChannelTelegram {
		return models.NotificationTemplate{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, tmpl.Channel)
	}

	now := time.Now().UTC()
	var before interface{}
	action := models.AuditCreate
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
		tmpl.CreatedAt = now
	} else {
		existing, err := s.templates.FindByID(ctx, tmpl.ID)
		switch {
		case err == nil:
			before = existing
			action = models.AuditUpdate
			tmpl.CreatedAt = existing.CreatedAt
		case errors.Is(err, store.ErrNotFound):
			tmpl.CreatedAt = now
		default:
			return models.NotificationTemplate{}, fmt.Errorf("loading template %s: %w", tmpl.ID, err)
		}
	}
	tmpl.UpdatedAt = now

	if err := s.templates.Save(ctx, tmpl); err != nil {
		return models.NotificationTemplate{}, fmt.Errorf("saving template %s: %w", tmpl.ID, err)
	}
	s.audit.Record(ctx, action, "notification_template", tmpl.ID.String(), before, tmpl)
	return tmpl, nil
}

func (s *notificationService) GetTemplate(ctx context.Context, id uuid.UUID) (models.NotificationTemplate, error) {
	tmpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NotificationTemplate{}, ErrTemplateNotFound
		}
		return models.NotificationTemplate{}, fmt.Errorf("loading template %s: %w", id, err)
	}
	return tmpl, nil
}

func (s *notificationService) ListTemplates(ctx context.Context) ([]models.NotificationTemplate, error) {
	return s.templates.List(ctx)
}

func (s *notificationService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tmpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("loading template %s: %w", id, err)
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	s.audit.Record(ctx, models.AuditDelete, "notification_template", id.String(), tmpl, nil)
	return nil
}
