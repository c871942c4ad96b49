// Package worker provides async application processing from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openwelfare/ubk/internal/domain"
	"github.com/openwelfare/ubk/internal/engine"
)

// Worker processes submitted applications asynchronously from the EventBus.
// Case intake systems publish to the submitted topic; the worker evaluates
// each application, persists the result, and publishes the decision.
type Worker struct {
	bus          domain.EventBus
	repo         domain.Repository
	orchestrator *engine.Orchestrator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, orchestrator *engine.Orchestrator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		repo:         repo,
		orchestrator: orchestrator,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start subscribes the worker to the submission topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicApplicationSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicApplicationSubmitted,
	)

	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processApplication(ctx, msg)
}

// processApplication evaluates one submitted application end to end.
func (w *Worker) processApplication(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req domain.ApplicationRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	app := req.ToApplication()
	if app.ID == "" {
		app.ID = msg.ID
	}

	slog.Debug("processing application",
		"application_id", app.ID,
		"region", app.RegionID,
	)

	result, err := w.orchestrator.Process(ctx, app)
	if err != nil {
		slog.Error("application evaluation failed",
			"application_id", app.ID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveApplication(ctx, app); err != nil {
			slog.Error("failed to save application",
				"application_id", app.ID,
				"error", err,
			)
		}
		if err := w.repo.SaveResult(ctx, result); err != nil {
			slog.Error("failed to save result",
				"application_id", app.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, domain.TopicDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"application_id", app.ID,
			"error", err,
		)
	}

	// Field inspections go to a dedicated topic for the inspection service
	if result.Action == domain.ActionFieldInspection {
		if err := w.bus.Publish(ctx, domain.TopicInspection, resultPayload); err != nil {
			slog.Error("failed to publish inspection request",
				"application_id", app.ID,
				"error", err,
			)
		}
	}

	slog.Info("application processed",
		"application_id", app.ID,
		"action", result.Action,
		"risk_score", result.RiskScore,
		"benefit_amount", result.BenefitAmount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}
