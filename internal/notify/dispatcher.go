package notify

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"apartmenthunter/internal/models"
)

// Recorder persists notification outcomes.
type Recorder interface {
	RecordNotification(ctx context.Context, rec *models.NotificationRecord) error
}

// Dispatcher fans accepted listings out to every notifier and audits each
// attempt. It is meant to be subscribed to the listing queue.
type Dispatcher struct {
	notifiers []Notifier
	recorder  Recorder
	limit     int
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewDispatcher creates a dispatcher. A limit <= 0 sends every listing.
func NewDispatcher(recorder Recorder, limit int, logger *logrus.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Dispatcher{
		notifiers: notifiers,
		recorder:  recorder,
		limit:     limit,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Handle matches queue.Handler. Delivery failures are recorded, never returned.
func (d *Dispatcher) Handle(listings []*models.Listing) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.Dispatch(ctx, listings)
	return nil
}

// Dispatch sends up to limit listings and returns the number of successful
// deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, listings []*models.Listing) int {
	if d.limit > 0 && len(listings) > d.limit {
		d.logger.WithFields(logrus.Fields{
			"accepted": len(listings),
			"limit":    d.limit,
		}).Info("Notification limit reached, skipping the rest")
		listings = listings[:d.limit]
	}

	sent := 0
	for _, l := range listings {
		for _, n := range d.notifiers {
			err := n.Notify(ctx, l)
			if err == nil {
				sent++
			} else {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"channel":     n.Channel(),
					"fingerprint": l.Fingerprint,
				}).Warn("Notification failed")
			}
			d.record(ctx, l.Fingerprint, n.Channel(), err)
		}
	}
	return sent
}

func (d *Dispatcher) record(ctx context.Context, fingerprint, channel string, sendErr error) {
	if d.recorder == nil {
		return
	}
	rec := &models.NotificationRecord{
		Fingerprint: fingerprint,
		Channel:     channel,
		Success:     sendErr == nil,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		rec.ErrorMessage = &msg
	}
	if err := d.recorder.RecordNotification(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.WithError(err).WithField("fingerprint", fingerprint).Error("Failed to record notification")
	}
}
