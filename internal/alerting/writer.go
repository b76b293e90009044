package alerting

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
)

// NotificationPublisher pushes notifications to the egress topic.
type NotificationPublisher interface {
	PublishBatch(ctx context.Context, notifications []domain.Notification) error
}

// Writer upserts alerts and derives notifications for fresh ones. All writes
// are best-effort: a failed row is logged and skipped, never propagated to
// the read path.
type Writer struct {
	alerts        AlertStore
	notifications NotificationStore
	publisher     NotificationPublisher // nil when egress is disabled
	metrics       *observability.Metrics
	logger        *slog.Logger
}

func NewWriter(alerts AlertStore, notifications NotificationStore, publisher NotificationPublisher, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	return &Writer{
		alerts:        alerts,
		notifications: notifications,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
	}
}

// WriteEventAlerts upserts one alert per relevant discrete event. A
// reclassification of an unchanged event updates the existing row; only a
// genuinely new (user, family, hazard) key yields a notification.
func (w *Writer) WriteEventAlerts(ctx context.Context, sub domain.Subscriber, events []domain.RelevantEvent) {
	var created []domain.Notification
	for _, ev := range events {
		alert := domain.Alert{
			UserID:   sub.UserID,
			Family:   ev.Family,
			HazardID: ev.ID,
			Level:    ev.Level,
			Tier:     ev.Tier,
			Geo:      ev.Geo,
			IsActive: true,
		}
		if n := w.write(ctx, &alert); n != nil {
			created = append(created, *n)
		}
	}
	w.publish(ctx, created)
}

// WriteClusterAlert upserts the single active alert a subscriber holds for a
// cluster-tracked hazard. The cluster id doubles as the hazard id.
func (w *Writer) WriteClusterAlert(ctx context.Context, userID uuid.UUID, family domain.Family, clusterID string, tier domain.Tier, center domain.Geo) {
	alert := domain.Alert{
		UserID:    userID,
		Family:    family,
		HazardID:  clusterID,
		ClusterID: clusterID,
		Tier:      tier,
		Geo:       center,
		IsActive:  true,
	}
	if n := w.write(ctx, &alert); n != nil {
		w.publish(ctx, []domain.Notification{*n})
	}
}

// write upserts the alert and returns the derived notification when the
// upsert inserted a new row.
func (w *Writer) write(ctx context.Context, alert *domain.Alert) *domain.Notification {
	now := clock.Now().UTC()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	inserted, err := w.alerts.Upsert(ctx, alert)
	if err != nil {
		w.logger.Error("alert upsert failed",
			"user_id", alert.UserID, "family", alert.Family, "hazard_id", alert.HazardID, "error", err)
		return nil
	}

	op := "updated"
	if inserted {
		op = "inserted"
	}
	w.metrics.AlertsWritten.WithLabelValues(string(alert.Family), op).Inc()
	if !inserted {
		return nil
	}

	n := domain.Notification{
		ID:        uuid.New(),
		AlertID:   alert.ID,
		UserID:    alert.UserID,
		Family:    alert.Family,
		Status:    domain.NotificationSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.notifications.Insert(ctx, &n); err != nil {
		w.logger.Error("notification insert failed", "alert_id", alert.ID, "error", err)
		return nil
	}
	return &n
}

func (w *Writer) publish(ctx context.Context, notifications []domain.Notification) {
	if w.publisher == nil || len(notifications) == 0 {
		return
	}
	if err := w.publisher.PublishBatch(ctx, notifications); err != nil {
		w.logger.Error("notification publish failed", "count", len(notifications), "error", err)
	}
}
