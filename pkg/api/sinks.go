package api

import (
	"context"
	"log/slog"
)

// AuditEntry is the record handed to an AuditSink after every successful
// transition, whether it was triggered by a human or by the SLA scanner.
type AuditEntry struct {
	TenantID    string
	UserID      string
	Action      string
	EntityType  string
	EntityID    string
	Description string
	Metadata    map[string]any
}

// AuditSink receives audit entries emitted by the engine.
//
// Implementations should be fast and non-blocking; heavy work should be
// done asynchronously so as not to delay workflow transitions. The engine
// treats sink failures as non-fatal.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// NotificationType identifies a notification kind.
type NotificationType string

const (
	NotificationSLAWarning NotificationType = "SLA_WARNING"
	NotificationSLABreach  NotificationType = "SLA_BREACH"
)

// Notification is the payload handed to a Notifier for SLA warnings and
// NOTIFY breach actions. Delivery is best-effort.
type Notification struct {
	UserID   string
	TenantID string
	Type     NotificationType
	Payload  map[string]any
}

// Notifier dispatches notifications.
type Notifier interface {
	Dispatch(ctx context.Context, n Notification) error
}

// NoopAuditSink discards all audit entries.
// It is used as the default when no sink is configured.
type NoopAuditSink struct{}

func (NoopAuditSink) Record(ctx context.Context, entry AuditEntry) error { return nil }

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

func (NoopNotifier) Dispatch(ctx context.Context, n Notification) error { return nil }

// CompositeAuditSink fans out entries to multiple sinks.
type CompositeAuditSink struct {
	sinks []AuditSink
}

// NewCompositeAuditSink creates an AuditSink that forwards entries to each
// non-nil sink in sinks.
func NewCompositeAuditSink(sinks ...AuditSink) AuditSink {
	filtered := make([]AuditSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return NoopAuditSink{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeAuditSink{sinks: filtered}
}

func (c *CompositeAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoggingAuditSink writes audit entries as structured logs using log/slog.
type LoggingAuditSink struct {
	Logger *slog.Logger
}

// NewLoggingAuditSink creates an AuditSink that logs entries using the
// provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingAuditSink(logger *slog.Logger) AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingAuditSink{Logger: logger}
}

func (s *LoggingAuditSink) Record(ctx context.Context, entry AuditEntry) error {
	s.Logger.InfoContext(ctx, "audit",
		slog.String("tenant_id", entry.TenantID),
		slog.String("user_id", entry.UserID),
		slog.String("action", entry.Action),
		slog.String("entity_type", entry.EntityType),
		slog.String("entity_id", entry.EntityID),
	)
	return nil
}

// LoggingNotifier logs notifications instead of delivering them. Useful in
// development and as a fallback when no dispatcher is wired.
type LoggingNotifier struct {
	Logger *slog.Logger
}

// NewLoggingNotifier creates a Notifier that logs via the provided
// slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingNotifier(logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingNotifier{Logger: logger}
}

func (n *LoggingNotifier) Dispatch(ctx context.Context, notif Notification) error {
	n.Logger.InfoContext(ctx, "notification",
		slog.String("user_id", notif.UserID),
		slog.String("tenant_id", notif.TenantID),
		slog.String("type", string(notif.Type)),
		slog.Any("payload", notif.Payload),
	)
	return nil
}
