package services

import (
	"context"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
)

// Notifier delivers realtime events. The notification hub implements it;
// services only depend on this interface so they can run without a gateway.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, event string, data interface{})
	NotifyRole(ctx context.Context, role models.Role, event string, data interface{})
}

type noopNotifier struct{}

func (noopNotifier) NotifyUser(context.Context, uuid.UUID, string, interface{}) {}
func (noopNotifier) NotifyRole(context.Context, models.Role, string, interface{}) {}

func notifierOrNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
