package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/channel"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache/event"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type redisEventListener struct {
	logger      *logrus.Logger
	client      redis.UniversalClient
	subscribers map[reflect.Type]interface{}
	registry    map[string]reflect.Type
}

func NewRedisEventListener(
	logger *logrus.Logger,
	client redis.UniversalClient,
	registry map[string]reflect.Type,
) EventListener {
	return &redisEventListener{
		logger:      logger,
		client:      client,
		subscribers: make(map[reflect.Type]interface{}),
		registry:    registry,
	}
}

func RegisterEventSubscriber[T event.Event](pub EventListener, subscriber EventSubscriber[T]) {
	var evt T
	eventType := reflect.TypeOf(evt)
	pub.Register(eventType, subscriber)
}

func (r *redisEventListener) Register(eventType reflect.Type, subscriber interface{}) {
	r.subscribers[eventType] = subscriber
}

const (
	minReconnectDelay = 250 * time.Millisecond
	maxReconnectDelay = 10 * time.Second
)

// Listen blocks until ctx is cancelled, resubscribing with a doubling delay
// whenever the connection drops.
func (r *redisEventListener) Listen(ctx context.Context, channels ...channel.Channel) {
	channelNames := make([]string, 0, len(channels))
	for _, ch := range channels {
		channelNames = append(channelNames, string(ch))
	}

	delay := minReconnectDelay
	for {
		if r.listenWithReconnect(ctx, channelNames) {
			delay = minReconnectDelay
		}
		if ctx.Err() != nil {
			r.logger.Info("redis pubsub listener shutting down")
			return
		}

		r.logger.WithField("retry_in", delay.String()).Warn("redis pubsub disconnected, reconnecting")
		select {
		case <-ctx.Done():
			r.logger.Info("redis pubsub listener shutting down")
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// listenWithReconnect reports whether the subscription was established.
func (r *redisEventListener) listenWithReconnect(ctx context.Context, channelNames []string) bool {
	pubSub := r.client.Subscribe(ctx, channelNames...)
	defer func() { _ = pubSub.Close() }()

	if _, err := pubSub.Receive(ctx); err != nil {
		r.logger.WithError(err).Debug("redis pubsub subscribe failed")
		return false
	}
	r.logger.WithField("channels", channelNames).Debug("redis pubsub connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = pubSub.Close()
		case <-stop:
		}
	}()

	for msg := range pubSub.Channel() {
		if ctx.Err() != nil {
			return true
		}
		r.handleMessage(ctx, msg.Payload)
	}
	return true
}

func (r *redisEventListener) handleMessage(ctx context.Context, payload string) {
	var envelope RedisMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		r.logger.WithError(err).Error("error decoding redis message")
		return
	}

	concreteType, err := r.getEvent(envelope.Type)
	if err != nil {
		r.logger.WithError(err).Error("error getting event type")
		return
	}

	eventPtr := reflect.New(concreteType)
	if err := json.Unmarshal(envelope.Event, eventPtr.Interface()); err != nil {
		r.logger.WithError(err).Error("error unmarshalling event data into concrete type")
		return
	}
	concreteEvent := eventPtr.Elem().Interface()

	r.notifySubscribers(ctx, concreteEvent)
}

func (r *redisEventListener) notifySubscribers(ctx context.Context, concreteEvent interface{}) {
	for _, sub := range r.subscribers {
		sVal := reflect.ValueOf(sub)
		method := sVal.MethodByName("OnEvent")
		if !method.IsValid() {
			r.logger.Debug("subscriber does not implement OnEvent")
			continue
		}

		expectedType := method.Type().In(1)
		eventValue := reflect.ValueOf(concreteEvent)
		if !eventValue.Type().AssignableTo(expectedType) {
			continue
		}

		results := method.Call([]reflect.Value{reflect.ValueOf(ctx), eventValue})
		if len(results) > 0 && !results[0].IsNil() {
			if err, ok := results[0].Interface().(error); ok {
				r.logger.WithError(err).Errorf("error executing subscriber for event %v", concreteEvent)
			}
		}
	}
}

func (r *redisEventListener) getEvent(eventType string) (reflect.Type, error) {
	concreteType, ok := r.registry[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	return concreteType, nil
}
