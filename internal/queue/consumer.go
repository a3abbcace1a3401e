package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// ActivityConsumer reads entry events from a durable queue and appends one
// line per event to an activity log file.
type ActivityConsumer struct {
	URL     string
	Queue   string
	LogPath string
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with exponential backoff capped at 30s.  A
// message that cannot be handled is rejected without requeueing.
func (ac *ActivityConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(ac.URL)
		if err != nil {
			log.WithError(err).Warnf("activity consumer: dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = ac.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("activity consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (ac *ActivityConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("activity consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(ac.Queue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "queue declare")
	}
	msgs, err := ch.ConsumeWithContext(ctx, ac.Queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}

	for d := range msgs {
		if err := ac.handle(d.Body); err != nil {
			log.WithError(err).Error("activity consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (ac *ActivityConsumer) handle(body []byte) error {
	var ev EntryEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if ev.Type == "" || ev.EntryID == "" {
		return errors.New("event without type or entry id")
	}
	if err := os.MkdirAll(filepath.Dir(ac.LogPath), 0o755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	f, err := os.OpenFile(ac.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open activity log")
	}
	defer f.Close()

	if _, err := f.WriteString(formatEvent(ev)); err != nil {
		return errors.Wrap(err, "write activity log")
	}
	return nil
}

func formatEvent(ev EntryEvent) string {
	line := fmt.Sprintf("[%s] %s | entry_id=%s | owner_id=%s | kind=%s | title=%q",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.EntryID, ev.OwnerID, ev.Kind, ev.Title)
	if len(ev.Fields) > 0 {
		line += " | fields=[" + strings.Join(ev.Fields, ",") + "]"
	}
	return line + "\n"
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
