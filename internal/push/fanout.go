package push

import (
	"errors"
	"log/slog"

	"github.com/calebwray/tock/internal/model"
)

// SubscriptionStore is the slice of the push store the fanout needs.
type SubscriptionStore interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Fanout delivers one payload to every registered endpoint of a user,
// pruning subscriptions the push service reports as gone.
type Fanout struct {
	service *Service
	subs    SubscriptionStore
	logger  *slog.Logger
}

func NewFanout(service *Service, subs SubscriptionStore, logger *slog.Logger) *Fanout {
	return &Fanout{service: service, subs: subs, logger: logger}
}

// SendToUser pushes the payload to all of the user's devices. Individual
// endpoint failures are logged, not returned; an error means no endpoint
// could even be attempted.
func (f *Fanout) SendToUser(userID int64, payload Payload) error {
	if !f.service.Configured() {
		return nil
	}

	subs, err := f.subs.ListByUser(userID)
	if err != nil {
		return err
	}

	for i := range subs {
		sub := &subs[i]
		if err := f.service.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if derr := f.subs.DeleteByEndpoint(sub.Endpoint); derr != nil {
					f.logger.Error("push: prune expired subscription", "endpoint", sub.Endpoint, "error", derr)
				} else {
					f.logger.Info("push: pruned expired subscription", "user_id", userID, "device", sub.DeviceName)
				}
				continue
			}
			f.logger.Error("push: send notification", "user_id", userID, "device", sub.DeviceName, "error", err)
		}
	}
	return nil
}
