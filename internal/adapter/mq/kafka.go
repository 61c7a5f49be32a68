// Package mq publishes settled rounds to Kafka.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casino-engine/internal/core/domain"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RoundEvent is the message body written for every settled round.
type RoundEvent struct {
	RoundID    uuid.UUID       `json:"round_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Game       domain.Game     `json:"game"`
	Currency   domain.Currency `json:"currency"`
	Wager      int64           `json:"wager"`
	Payout     int64           `json:"payout"`
	HouseCut   int64           `json:"house_cut"`
	Multiplier float64         `json:"multiplier"`
	Outcome    string          `json:"outcome"`
	IsWin      bool            `json:"is_win"`
	Signature  string          `json:"signature"`
	SettledAt  time.Time       `json:"settled_at"`
}

// NewRoundEvent projects a round onto its wire form.
func NewRoundEvent(r *domain.GameRound) RoundEvent {
	return RoundEvent{
		RoundID:    r.ID,
		UserID:     r.UserID,
		Game:       r.Game,
		Currency:   r.Currency,
		Wager:      r.Wager,
		Payout:     r.Payout,
		HouseCut:   r.HouseCut,
		Multiplier: r.Multiplier,
		Outcome:    r.Outcome,
		IsWin:      r.IsWin,
		Signature:  r.Signature,
		SettledAt:  r.CreatedAt,
	}
}

// NewProducerConfig returns the producer settings used for round events.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	return cfg
}

// NewSyncProducer dials the brokers.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	p, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return p, nil
}

// RoundPublisher implements ports.EventPublisher. Messages are keyed by user
// so one player's rounds stay ordered within a partition.
type RoundPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

func NewRoundPublisher(producer sarama.SyncProducer, topic string, log zerolog.Logger) *RoundPublisher {
	return &RoundPublisher{producer: producer, topic: topic, log: log}
}

// PublishRound writes one round event and waits for the broker ack.
func (p *RoundPublisher) PublishRound(ctx context.Context, round *domain.GameRound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(NewRoundEvent(round))
	if err != nil {
		return fmt.Errorf("marshal round event: %w", err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(round.UserID.String()),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("publish round %s: %w", round.ID, err)
	}
	p.log.Debug().
		Str("round_id", round.ID.String()).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("round event published")
	return nil
}

func (p *RoundPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher discards events when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRound(context.Context, *domain.GameRound) error { return nil }

func (NopPublisher) Close() error { return nil }
