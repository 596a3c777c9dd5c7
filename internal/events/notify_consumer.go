package events

import (
	"context"
	"fmt"
	"io"
	"log"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/privacy"
)

// Sender is the part of a shoutrrr router used for delivery.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// NotifyConsumer sends a message through shoutrrr when a job reaches a
// terminal state. Progress updates are ignored.
type NotifyConsumer struct {
	sender Sender
}

// NewNotifyConsumer builds a shoutrrr sender for urls.
func NewNotifyConsumer(urls []string) (*NotifyConsumer, error) {
	if len(urls) == 0 {
		return nil, errors.ValidationError("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the error text may carry tokens from the URL
		return nil, errors.Newf("invalid notification URL configuration").
			Component("events").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &NotifyConsumer{sender: sender}, nil
}

// NewNotifyConsumerWithSender wraps an existing sender.
func NewNotifyConsumerWithSender(sender Sender) *NotifyConsumer {
	return &NotifyConsumer{sender: sender}
}

// Name implements Consumer.
func (c *NotifyConsumer) Name() string { return "notification" }

// ProcessEvent implements Consumer.
func (c *NotifyConsumer) ProcessEvent(_ context.Context, event JobEvent) error {
	if !event.Terminal {
		return nil
	}
	title, message := FormatNotification(event)
	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range c.sender.Send(message, &params) {
		if err != nil {
			// shoutrrr errors may quote the service URL
			return errors.New(privacy.WrapError(err)).
				Component("events").
				Category(errors.CategoryIntegration).
				Context("kind", string(event.Kind)).
				Context("job_id", event.ID).
				Build()
		}
	}
	return nil
}

// FormatNotification returns the title and body sent for a terminal event.
func FormatNotification(event JobEvent) (title, message string) {
	what := "Audio job"
	if event.Kind == jobstate.KindTraining {
		what = "Training run"
	}
	if event.Phase == jobstate.PhaseFailed {
		return fmt.Sprintf("%s %d failed", what, event.ID),
			fmt.Sprintf("%s %d failed at %d%%: %s", what, event.ID, event.Progress, event.Error)
	}
	return fmt.Sprintf("%s %d finished", what, event.ID),
		fmt.Sprintf("%s %d finished with status %s", what, event.ID, event.Status)
}
