package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sigap-app/sigap-api/internal/observability"
)

// EventPublisher fans domain events out to the configured brokers. Publishing
// is fire-and-forget: broker outages never fail the request that emitted the
// event.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

type eventEnvelope struct {
	Source  string      `json:"source"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

type eventPublisher struct {
	redis       *redis.Client
	redisBase   string
	nats        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
	nodeID      string
}

// NewEventPublisher constructs a nil-safe event publisher. Redis and NATS
// clients may each be nil; events then go to whichever broker is present,
// or nowhere.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	subjectBase := ""
	if channelBase != "" {
		subjectBase = strings.ReplaceAll(channelBase, ":", ".")
	}

	return &eventPublisher{
		redis:       redisClient,
		redisBase:   channelBase,
		nats:        natsConn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event string, payload interface{}) {
	if event == "" {
		return
	}

	envelope := eventEnvelope{
		Source:  p.nodeID,
		Event:   event,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event).Msg("failed to encode event payload")
		return
	}

	published := false

	if p.redis != nil && p.redisBase != "" {
		channel := p.redisBase + ":" + strings.ReplaceAll(event, ".", ":")
		if err := p.redis.Publish(ctx, channel, data).Err(); err != nil {
			p.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event to redis")
		} else {
			published = true
		}
	}

	if p.nats != nil && p.subjectBase != "" {
		subject := p.subjectBase + "." + event
		if err := p.nats.Publish(subject, data); err != nil {
			p.logger.Warn().Err(err).Str("event", event).Msg("failed to publish event to nats")
		} else {
			published = true
		}
	}

	if published {
		observability.EventsPublished().WithLabelValues(event).Inc()
	}
}
