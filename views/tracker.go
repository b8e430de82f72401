package views

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/model"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
)

// ViewRecorder persists one view. feed.Aggregator implements it.
type ViewRecorder interface {
	RecordViewAt(ctx context.Context, viewerID string, postID string, viewedAt time.Time) error
}

// Publisher is the side of the event bus the tracker writes to.
type Publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

// Subscriber is the side of the event bus the tracker reads from.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

type TrackerConfig struct {
	Name string
	// Deadline of recording a single view.
	RecordTimeout time.Duration
}

// Tracker records views asynchronously: Publish enqueues, RunModule drains
// the queue into the ViewRecorder. Views are best effort, a failed record is
// logged and dropped.
type Tracker struct {
	Config TrackerConfig

	Publisher  Publisher
	Subscriber Subscriber
	Recorder   ViewRecorder
	Statsd     statsd.ClientInterface
}

func NewTracker(config TrackerConfig, pub Publisher, sub Subscriber, recorder ViewRecorder, s statsd.ClientInterface) *Tracker {
	if config.RecordTimeout <= 0 {
		config.RecordTimeout = 5 * time.Second
	}
	if s == nil {
		s = &statsd.NoOpClient{}
	}
	return &Tracker{
		Config:     config,
		Publisher:  pub,
		Subscriber: sub,
		Recorder:   recorder,
		Statsd:     s,
	}
}

// Publish enqueues a view of postID by viewerID. Anonymous views are ignored.
func (t *Tracker) Publish(viewerID string, postID string) error {
	if viewerID == "" || postID == "" {
		return nil
	}
	payload, err := json.Marshal(model.ViewEvent{Uid: viewerID, PostID: postID, DateViewed: time.Now()})
	if err != nil {
		return err
	}
	return errors.Wrap(
		t.Publisher.Publish(TopicPostViewed, message.NewMessage(watermill.NewUUID(), payload)),
		"publish view",
	)
}

func (t *Tracker) record(ctx context.Context, msg *message.Message) {
	// Views are not retried, redelivery would only double count.
	msg.Ack()

	var event model.ViewEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		Log.WithError(err).WithField("message_id", msg.UUID).Warn("undecodable view event dropped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, t.Config.RecordTimeout)
	defer cancel()
	if err := t.Recorder.RecordViewAt(ctx, event.Uid, event.PostID, event.DateViewed); err != nil {
		Log.WithError(err).WithFields(logrus.Fields{"post_id": event.PostID, "uid": event.Uid}).Warn("view not recorded")
		t.Statsd.Incr("view.failure", nil, 1)
		return
	}
	t.Statsd.Incr("view.recorded", nil, 1)
}

func (t *Tracker) RunModule(ctx context.Context) error {
	messages, err := t.Subscriber.Subscribe(ctx, TopicPostViewed)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			t.record(ctx, msg)
		}
	}
}

func (t *Tracker) Name() string {
	return t.Config.Name
}

func (t *Tracker) Shutdown() {}
