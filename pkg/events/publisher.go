// Package events delivers outbox rows to external consumers. Domain
// services write EventOutbox rows inside their own transactions; the
// relay here picks up pending rows and fans them out to Kafka and to
// configured webhook URLs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	imrocreq "github.com/imroc/req/v3"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/pkg/config"
	"github.com/commune-hq/commune/pkg/logutils"
)

const maxRetry = 5

type Publisher struct {
	db       *gorm.DB
	writer   *kafka.Writer // nil when kafka is disabled
	client   *imrocreq.Client
	webhooks []string
}

func NewPublisher(db *gorm.DB) *Publisher {
	conf := config.GetConfig().Events
	p := &Publisher{
		db:       db,
		webhooks: conf.Webhooks,
		client:   imrocreq.C().SetTimeout(10 * time.Second),
	}
	if conf.Kafka.Enable {
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(conf.Kafka.Brokers...),
			Topic:        conf.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		}
	}
	return p
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Envelope is the wire shape delivered to Kafka and webhooks.
type Envelope struct {
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	CommunityID uint            `json:"communityId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload"`
}

// Relay drains pending outbox rows, oldest first. Each row is marked
// sent only after every sink accepted it; a row that keeps failing is
// parked as failed after maxRetry attempts.
func (p *Publisher) Relay(ctx context.Context, batchSize int) error {
	var rows []model.EventOutbox
	err := p.db.WithContext(ctx).
		Where("status = ?", model.EventStatusPending).
		Order("id ASC").
		Limit(batchSize).
		Find(&rows).Error
	if err != nil {
		return err
	}

	for i := range rows {
		row := &rows[i]
		if err := p.deliver(ctx, row); err != nil {
			logutils.Log.WithField("event", row.EventID).Warnf("event delivery failed: %v", err)
			updates := map[string]any{"retry": row.Retry + 1}
			if row.Retry+1 >= maxRetry {
				updates["status"] = model.EventStatusFailed
			}
			if uerr := p.db.WithContext(ctx).Model(row).Updates(updates).Error; uerr != nil {
				return uerr
			}
			continue
		}
		if err := p.db.WithContext(ctx).Model(row).
			Update("status", model.EventStatusSent).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) deliver(ctx context.Context, row *model.EventOutbox) error {
	env := Envelope{
		EventID:     row.EventID,
		EventType:   row.EventType,
		CommunityID: row.CommunityID,
		OccurredAt:  row.CreatedAt.UTC(),
		Payload:     json.RawMessage(row.Payload),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if p.writer != nil {
		msg := kafka.Message{
			Key:   []byte(fmt.Sprintf("%d", row.CommunityID)),
			Value: body,
		}
		if err = p.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}

	for _, url := range p.webhooks {
		resp, err := p.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(url)
		if err != nil {
			return fmt.Errorf("webhook %s: %w", url, err)
		}
		if resp.IsErrorState() {
			return fmt.Errorf("webhook %s: status %d", url, resp.StatusCode)
		}
	}
	return nil
}
