package chat

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
)

// Publisher pushes stored messages onto the chat topic so every API instance
// can fan them out to its own live subscribers.
type Publisher struct {
	topic *pubsub.Publisher
}

func NewPublisher(topic *pubsub.Publisher) (*Publisher, error) {
	if topic == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "chat topic publisher required")
	}
	return &Publisher{topic: topic}, nil
}

func (p *Publisher) PublishMessage(ctx context.Context, message *MessageDTO) error {
	data, err := json.Marshal(message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode chat message")
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"thread_id": message.ThreadID.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish chat message")
	}
	return nil
}
