package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mcdev12/quickdraw/go/internal/duel/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const (
	headerEventType = "Event-Type"
	headerRoundID   = "Round-ID"
	headerEventID   = "Event-ID"
)

// EventPublisher delivers duel events to a message bus
type EventPublisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// JetStreamConfig describes where round events go and how long they are kept
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration

	// Retention. A session rarely matters after a day.
	MaxAge          time.Duration
	MaxMsgsPerRound int64
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DUEL_EVENTS",
		SubjectPrefix:   "duel.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgsPerRound: -1,
		DuplicateWindow: 2 * time.Minute,
	}
}

// JetStreamPublisher publishes duel events to a JetStream stream, one subject
// per event type.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects to NATS and makes sure the duel stream exists
// with the configured retention.
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(cfg.URL, connectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	stream, err := js.CreateOrUpdateStream(ctx, p.streamConfig())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}

	info := stream.CachedInfo()
	log.Info().
		Str("stream", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Uint64("messages", info.State.Msgs).
		Msg("duel event stream ready")

	return p, nil
}

func connectOptions(cfg JetStreamConfig) []nats.Option {
	return []nats.Option{
		nats.Name("quickdraw-duel"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected, duel events will be dropped until reconnect")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
}

func (p *JetStreamPublisher) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              p.config.StreamName,
		Description:       "Quickdraw duel rounds",
		Subjects:          []string{p.config.SubjectPrefix + ".>"},
		Retention:         jetstream.LimitsPolicy,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		MaxAge:            p.config.MaxAge,
		MaxMsgsPerSubject: p.config.MaxMsgsPerRound,
		Duplicates:        p.config.DuplicateWindow,
	}
}

// Subject returns the subject an event type is published on
func (p *JetStreamPublisher) Subject(eventType events.EventType) string {
	return subjectFor(p.config.SubjectPrefix, eventType)
}

// Publish sends env once; a redelivery with the same event id inside the
// duplicate window is discarded by the server.
func (p *JetStreamPublisher) Publish(ctx context.Context, env events.Envelope) error {
	msg, err := newMsg(p.Subject(env.EventType), env)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(env.EventID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish %s for round %d: %w", env.EventType, env.RoundID, err)
	}

	log.Debug().
		Str("subject", msg.Subject).
		Int64("round_id", env.RoundID).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("duel event published")

	return nil
}

// Connected reports whether the NATS connection is up
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains pending publishes before closing the connection
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

func newMsg(subject string, env events.Envelope) (*nats.Msg, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(headerEventType, string(env.EventType))
	msg.Header.Set(headerRoundID, strconv.FormatInt(env.RoundID, 10))
	msg.Header.Set(headerEventID, env.EventID)
	return msg, nil
}

func subjectFor(prefix string, eventType events.EventType) string {
	return prefix + "." + string(eventType)
}
