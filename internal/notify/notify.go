// Package notify is the service-side face of the notification pipeline.
// Delivery itself happens in the worker; the service only hands a templated
// email request to the broker. A broken broker must never fail an order or a
// reconciliation, so callers log Send errors and move on.
package notify

import (
	"context"

	"github.com/omprakash24d/DriveRight-sub001/internal/events"
	"github.com/omprakash24d/DriveRight-sub001/pkg/mq"
)

// Gateway sends one templated email to one recipient.
type Gateway interface {
	Send(ctx context.Context, template, recipient string, fields map[string]string) error
}

// Publisher implements Gateway by enqueueing the request on the payment
// exchange for the notification worker.
type Publisher struct {
	pub *mq.Publisher
}

func NewPublisher(pub *mq.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) Send(ctx context.Context, template, recipient string, fields map[string]string) error {
	return p.pub.PublishJSON(ctx, events.RKEmailRequested, events.EmailRequested{
		Template:  template,
		Recipient: recipient,
		Fields:    fields,
	})
}
