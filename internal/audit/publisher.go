package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event types emitted by the gateway. Payloads never contain token values or
// credentials, only identifiers an operator can correlate.
const (
	EventGuestTokenIssued = "analytics.guest_token_issued"
	EventForcedRefresh    = "analytics.token_forced_refresh"
	EventAuthFailure      = "analytics.auth_failure"
)

// Event is the envelope published for every auditable gateway action.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	TenantID      string    `json:"tenant_id"`
	DashboardUUID string    `json:"dashboard_uuid,omitempty"`
	TokenClass    string    `json:"token_class,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher records auditable gateway actions. Implementations must never
// block the request path on broker trouble.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NopPublisher discards events (used in tests and when NATS is not configured).
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// NATSPublisher publishes audit events to a NATS JetStream subject.
type NATSPublisher struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
	service       string
	logger        *zap.Logger
}

// NewNATSPublisher creates a publisher with JetStream enabled.
func NewNATSPublisher(nc *nats.Conn, subjectPrefix, service string, logger *zap.Logger) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{
		nc:            nc,
		js:            js,
		subjectPrefix: subjectPrefix,
		service:       service,
		logger:        logger,
	}, nil
}

// Publish serializes and publishes an audit event. Failures are logged and
// dropped; auditing never fails a caller's request.
func (p *NATSPublisher) Publish(_ context.Context, ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("audit.marshal_failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	msg := &nats.Msg{
		Subject: p.subjectPrefix + "." + ev.Type,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{ev.Type},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
			"tenant_id":    []string{ev.TenantID},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Warn("audit.publish_failed",
			zap.String("type", ev.Type),
			zap.String("tenant_id", ev.TenantID),
			zap.Error(err))
		return
	}

	p.logger.Debug("audit.publish_success",
		zap.String("type", ev.Type),
		zap.String("tenant_id", ev.TenantID))
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
