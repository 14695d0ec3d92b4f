package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/garimpo-judicial/internal/core/domain"
	"github.com/kirillkom/garimpo-judicial/internal/core/ports"
)

// PendingPageSize caps the pending queue. There is no offset.
const PendingPageSize = 100

type WorkflowOptions struct {
	Scope        domain.Scope
	PendingLimit int
	Logger       *slog.Logger
	Observer     ports.WorkflowObserver
	Publisher    ports.EventPublisher
	Clock        func() time.Time
}

func (o WorkflowOptions) normalize() WorkflowOptions {
	out := o
	if out.Scope == "" {
		out.Scope = domain.ScopeGlobal
	}
	if out.PendingLimit <= 0 {
		out.PendingLimit = PendingPageSize
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Observer == nil {
		out.Observer = noopObserver{}
	}
	if out.Clock == nil {
		out.Clock = func() time.Time { return time.Now().UTC() }
	}
	return out
}

// publish sends events after a committed write. Failures are logged and
// counted; the write itself already succeeded.
func (o WorkflowOptions) publish(ctx context.Context, events ...domain.WorkflowEvent) {
	if o.Publisher == nil {
		return
	}
	for _, event := range events {
		err := o.Publisher.PublishWorkflowEvent(ctx, event)
		o.Observer.RecordEventPublish(event.Kind, err)
		if err != nil {
			o.Logger.Warn("workflow_event_publish_failed",
				"kind", event.Kind,
				"site", event.Site,
				"listing_id", event.ListingID,
				"error", err,
			)
		}
	}
}

func newEvent(kind domain.EventKind, userID, site, listingID string, state domain.State, at time.Time, payload any) domain.WorkflowEvent {
	event := domain.WorkflowEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		Site:       site,
		ListingID:  listingID,
		State:      state,
		OccurredAt: at,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			event.Payload = raw
		}
	}
	return event
}

type noopObserver struct{}

func (noopObserver) RecordBatchDecision(domain.State, int, int) {}
func (noopObserver) RecordTransition(domain.State, bool) {}
func (noopObserver) RecordStatsDegraded() {}
func (noopObserver) RecordEventPublish(domain.EventKind, error) {}
func (noopObserver) RecordAnalysisSaved() {}
