// Package notify mengimplementasikan outbound notification port di atas
// kafka. Emit tidak pernah gagal ke caller: marshal error di-log & drop,
// publish-nya async.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/campus-eats/internal/kafka"
	"github.com/ariefcatur/campus-eats/internal/orders"
)

type KafkaNotifier struct {
	Users   *kafkax.Producer // topic notify.user
	Staff   *kafkax.Producer // topic notify.staff
	Service string
	Log     zerolog.Logger
}

func (n *KafkaNotifier) Emit(ctx context.Context, channel, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.Log.Error().Err(err).Str("event", event).Msg("drop notification: marshal payload")
		return
	}
	env := orders.Envelope{
		EventID:    uuid.NewString(),
		Event:      event,
		Channel:    channel,
		OccurredAt: time.Now().UTC(),
		Producer:   n.Service,
		Payload:    body,
	}

	p := n.Users
	if channel == orders.ChannelStaff {
		p = n.Staff
	}
	p.Publish(orders.PartitionKey(channel), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event", Value: []byte(event)},
	)
}
