package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/internship-approval-api/internal/dto"
	"github.com/noah-isme/internship-approval-api/internal/models"
	"github.com/noah-isme/internship-approval-api/internal/observability"
)

const (
	transitionBufferSize  = 16
	transitionPublishWait = 2 * time.Second
)

// TransitionEventService fans committed transitions out to Redis, NATS and local subscribers.
type TransitionEventService interface {
	TransitionPublisher
	Subscribe(applicationID uint) (<-chan dto.StatusTransitionResponse, func())
	Start(ctx context.Context)
}

type transitionEventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *transitionBroker
	nodeID       string
	tracer       trace.Tracer
	publishWait  time.Duration
	now          func() time.Time
}

type transitionEvent struct {
	Source     string                       `json:"source"`
	Transition dto.StatusTransitionResponse `json:"transition"`
	SentAt     time.Time                    `json:"sent_at"`
}

type transitionBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.StatusTransitionResponse]struct{}
}

// NewTransitionEventService constructs the publisher. Either client may be nil; with both nil
// events only reach subscribers on this node.
func NewTransitionEventService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) TransitionEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":transitions"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".transitions"
	}

	return &transitionEventService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "transition_events").Logger(),
		broker: &transitionBroker{
			subscribers: make(map[uint]map[chan dto.StatusTransitionResponse]struct{}),
		},
		nodeID:      uuid.NewString(),
		tracer:      otel.Tracer("github.com/noah-isme/internship-approval-api/internal/service/transition_events"),
		publishWait: transitionPublishWait,
		now:         time.Now,
	}
}

func (s *transitionEventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// PublishTransition never fails the caller; the transition has already committed.
func (s *transitionEventService) PublishTransition(ctx context.Context, transition models.StatusTransition) {
	attrs := []attribute.KeyValue{
		attribute.Int("application.id", int(transition.ApplicationID)),
		attribute.String("transition.to", string(transition.ToStatus)),
	}
	spanCtx, span := s.tracer.Start(ctx, "transition_events.publish", trace.WithAttributes(attrs...))
	defer span.End()

	response := dto.NewStatusTransitionResponse(transition)
	s.broker.broadcast(response.ApplicationID, response)
	observability.TransitionEvents().WithLabelValues("local").Inc()

	// Detached so a cancelled request still fans out, bounded so a slow broker cannot stall it.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(spanCtx), s.publishWait)
	defer cancel()

	if err := s.publish(publishCtx, response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish transition event")
		s.logger.Warn().Err(err).Uint("application_id", response.ApplicationID).Msg("failed to publish transition event")
	}
}

func (s *transitionEventService) Subscribe(applicationID uint) (<-chan dto.StatusTransitionResponse, func()) {
	channel := make(chan dto.StatusTransitionResponse, transitionBufferSize)

	s.broker.subscribe(applicationID, channel)
	observability.RealtimeClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(applicationID, channel)
			observability.RealtimeClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *transitionEventService) publish(ctx context.Context, transition dto.StatusTransitionResponse) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(transitionEvent{
		Source:     s.nodeID,
		Transition: transition,
		SentAt:     s.now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
		observability.TransitionEvents().WithLabelValues("redis").Inc()
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
		observability.TransitionEvents().WithLabelValues("nats").Inc()
	}

	return nil
}

func (s *transitionEventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("transition redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *transitionEventService) consumeNATS(ctx context.Context) {
	// Every node needs every event for its own websocket clients, so no queue group.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats transitions subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain transition nats subscription")
		}
	}()
}

func (s *transitionEventService) handleEvent(payload []byte) {
	var event transitionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid transition event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}
	if event.Transition.ApplicationID == 0 {
		return
	}

	observability.TransitionEvents().WithLabelValues("remote").Inc()
	s.broker.broadcast(event.Transition.ApplicationID, event.Transition)
}

func (b *transitionBroker) subscribe(applicationID uint, ch chan dto.StatusTransitionResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[applicationID]; !exists {
		b.subscribers[applicationID] = make(map[chan dto.StatusTransitionResponse]struct{})
	}
	b.subscribers[applicationID][ch] = struct{}{}
}

func (b *transitionBroker) unsubscribe(applicationID uint, ch chan dto.StatusTransitionResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[applicationID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, applicationID)
		}
	}
}

func (b *transitionBroker) broadcast(applicationID uint, transition dto.StatusTransitionResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[applicationID] {
		select {
		case ch <- transition:
		default:
		}
	}
}
