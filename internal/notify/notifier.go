// Bing Frame - Audit Trail Pipeline
// Copyright 2026 zhengbinger
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zhengbinger/bing-frame-sub000

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/zhengbinger/bing-frame-sub000/internal/logging"
)

// DefaultTopic carries config-change events.
const DefaultTopic = "audit.config.changed"

// Event kinds.
const (
	KindChanged  = "changed"
	KindComplete = "update_complete"
)

// Event is one published config-change notification.
type Event struct {
	Kind      string      `json:"kind"`
	Source    string      `json:"source"`
	Key       string      `json:"key,omitempty"`
	OldValue  interface{} `json:"oldValue,omitempty"`
	NewValue  interface{} `json:"newValue,omitempty"`
	Version   string      `json:"version,omitempty"`
	Success   bool        `json:"success"`
	Timestamp time.Time   `json:"timestamp"`
}

// PubSub is a watermill publisher and subscriber pair.
type PubSub interface {
	message.Publisher
	message.Subscriber
}

// Notifier publishes dynconfig events. Publish failures are logged, never
// returned.
type Notifier struct {
	pub    message.Publisher
	topic  string
	source string
	logger watermill.LoggerAdapter
}

// NewNotifier publishes to topic on pub. source identifies this instance.
func NewNotifier(pub message.Publisher, topic, source string) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	if source == "" {
		source = uuid.NewString()
	}
	return &Notifier{
		pub:    pub,
		topic:  topic,
		source: source,
		logger: logging.NewWatermillLogger(logging.WithComponent("config-notify")),
	}
}

// Source returns this instance's id.
func (n *Notifier) Source() string {
	return n.source
}

// OnChanged publishes a changed event for one field.
func (n *Notifier) OnChanged(key string, oldValue, newValue interface{}) {
	n.publish(Event{Kind: KindChanged, Key: key, OldValue: oldValue, NewValue: newValue, Success: true})
}

// OnUpdateComplete publishes the outcome of an update.
func (n *Notifier) OnUpdateComplete(version string, success bool) {
	n.publish(Event{Kind: KindComplete, Version: version, Success: success})
}

func (n *Notifier) publish(e Event) {
	e.Source = n.source
	e.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(e)
	if err != nil {
		n.logger.Error("Failed to encode config event", err, watermill.LogFields{"kind": e.Kind})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", e.Kind)
	msg.Metadata.Set("source", e.Source)

	if err := n.pub.Publish(n.topic, msg); err != nil {
		n.logger.Error("Failed to publish config event", err, watermill.LogFields{"topic": n.topic, "kind": e.Kind})
	}
}

// NewGoChannel returns an in-process pubsub.
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		logging.NewWatermillLogger(logging.WithComponent("config-notify")),
	)
}

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// NATSPubSub joins a NATS publisher and subscriber.
type NATSPubSub struct {
	*wmNats.Publisher
	*wmNats.Subscriber
}

// Close closes both halves.
func (p *NATSPubSub) Close() error {
	pubErr := p.Publisher.Close()
	subErr := p.Subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

// NewNATS connects to NATS core, without JetStream. Every instance has to
// see every config event and a late subscriber has nothing to replay, so
// plain subject fan-out is enough and no stream is provisioned.
func NewNATS(cfg NATSConfig) (*NATSPubSub, error) {
	logger := logging.NewWatermillLogger(logging.WithComponent("config-notify"))
	pubCfg, subCfg := natsConfigs(cfg, logger)

	pub, err := wmNats.NewPublisher(pubCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(subCfg, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return &NATSPubSub{Publisher: pub, Subscriber: sub}, nil
}

func natsConfigs(cfg NATSConfig, logger watermill.LoggerAdapter) (wmNats.PublisherConfig, wmNats.SubscriberConfig) {
	opts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
	}
	core := wmNats.JetStreamConfig{Disabled: true}

	pub := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: opts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   core,
	}
	sub := wmNats.SubscriberConfig{
		URL:            cfg.URL,
		CloseTimeout:   5 * time.Second,
		AckWaitTimeout: 5 * time.Second,
		NatsOptions:    opts,
		Unmarshaler:    &wmNats.NATSMarshaler{},
		JetStream:      core,
	}
	return pub, sub
}

// Watcher delivers events published by other instances.
type Watcher struct {
	sub    message.Subscriber
	topic  string
	source string
	handle func(Event)
}

// NewWatcher calls handle for every event on topic whose source differs
// from source.
func NewWatcher(sub message.Subscriber, topic, source string, handle func(Event)) *Watcher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Watcher{sub: sub, topic: topic, source: source, handle: handle}
}

// Serve consumes events until ctx is canceled.
func (w *Watcher) Serve(ctx context.Context) error {
	msgs, err := w.sub.Subscribe(ctx, w.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.topic, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			w.deliver(msg)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Watcher) String() string {
	return "config-watcher"
}

func (w *Watcher) deliver(msg *message.Message) {
	defer msg.Ack()

	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Malformed config event")
		return
	}
	if e.Source == w.source {
		return
	}
	w.handle(e)
}
