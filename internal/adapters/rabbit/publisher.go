package rabbit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const exchange = "tours.events"

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	return p.ch.PublishWithContext(ctx, exchange, key, false, false, msg)
}

type ReviewWrittenEvent struct {
	TourID string `json:"tour_id"`
}

// ReviewWritten satisfies mongo.RatingEventPublisher.
func (p *Publisher) ReviewWritten(ctx context.Context, tourID primitive.ObjectID) error {
	payload, err := json.Marshal(ReviewWrittenEvent{TourID: tourID.Hex()})
	if err != nil {
		return err
	}
	return p.Publish(ctx, "review.written", amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	})
}
