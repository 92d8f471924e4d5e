package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// messageReader is the part of kafka.Reader the consumer needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// newReader reads partition 0 of topic without a consumer group, starting
// from the messages of the last lookback.
func newReader(ctx context.Context, brokers []string, topic string, lookback time.Duration) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	if err := reader.SetOffsetAt(ctx, time.Now().Add(-lookback)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the current offset")
	}
	return reader
}

// consume forwards decoded turn events to out until ctx is done.
func consume(ctx context.Context, reader messageReader, topic string, out chan<- TurnEvent) {
	logger := log.With().Str("topic", topic).Logger()
	logger.Info().Msg("Consuming turn events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("Kafka read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		event, err := decodeEvent(msg)
		if err != nil {
			logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping undecodable event")
			continue
		}

		logger.Debug().
			Str("eventType", event.EventType).
			Str("turnId", event.TurnID).
			Msg("Received turn event")

		select {
		case out <- event:
		case <-ctx.Done():
			return
		}
	}
}

// decodeEvent parses a message value. The eventType header fills in a missing
// payload field.
func decodeEvent(msg kafka.Message) (TurnEvent, error) {
	var event TurnEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return TurnEvent{}, err
	}
	if event.EventType == "" {
		for _, h := range msg.Headers {
			if h.Key == "eventType" {
				event.EventType = string(h.Value)
			}
		}
	}
	return event, nil
}
