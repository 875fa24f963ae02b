package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/khatteland/drikkepress-v2-sub001/internal/model"
	"github.com/khatteland/drikkepress-v2-sub001/internal/queue"
	"github.com/khatteland/drikkepress-v2-sub001/internal/repository"
)

// Dispatcher turns booking state transitions into notification events.
// It checks the user's per-type opt-out flag, composes a message from
// event and actor display data and hands off to the broker.  Notify
// never returns an error: notification is non-essential to booking
// correctness, so every internal failure is swallowed and logged.
type Dispatcher struct {
	users     *repository.UserRepo
	events    *repository.EventRepo
	publisher queue.Publisher
}

// NewDispatcher constructs a Dispatcher.  A nil publisher disables
// delivery entirely (the broker is optional in development).
func NewDispatcher(users *repository.UserRepo, events *repository.EventRepo, publisher queue.Publisher) *Dispatcher {
	return &Dispatcher{users: users, events: events, publisher: publisher}
}

// Notify looks up preferences and display data for the given user and
// event and publishes a notification event.  Opted-out users and users
// without an email address are silent no-ops.  The optional message
// overrides the composed default; actorID names who triggered the
// transition (zero means the user themselves).
func (d *Dispatcher) Notify(ctx context.Context, userID uint64, typ model.NotificationType, eventID, actorID uint64, message string) {
	if d.publisher == nil {
		return
	}
	prefs, err := d.users.NotificationPrefs(ctx, userID)
	if err != nil {
		log.Printf("notify: prefs lookup failed for user %d: %v", userID, err)
		return
	}
	if !prefs.Allows(typ) {
		return
	}
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("notify: user lookup failed for user %d: %v", userID, err)
		return
	}
	if user.Email == nil || *user.Email == "" {
		return // no address on file; deliberately not an error
	}

	title := "your event"
	if ev, err := d.events.GetByID(ctx, eventID); err == nil {
		title = ev.Title
	}
	actor := user.Name
	if actorID != 0 && actorID != userID {
		if a, err := d.users.GetByID(ctx, actorID); err == nil {
			actor = a.Name
		}
	}

	subject, body := compose(typ, title, actor)
	if message != "" {
		body = message
	}
	ev := queue.NotificationEvent{
		UserID:  userID,
		Email:   *user.Email,
		Type:    string(typ),
		EventID: eventID,
		Subject: subject,
		Message: body,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := d.publisher.PublishNotification(ctx, ev); err != nil {
		log.Printf("notify: publish failed for user %d type %s: %v", userID, typ, err)
	}
}

// compose builds the default subject and body for a notification type.
// Final wording and layout belong to the email collaborator; these are
// the hand-off fields it receives.
func compose(typ model.NotificationType, eventTitle, actor string) (string, string) {
	switch typ {
	case model.NotifyBookingConfirmed:
		return fmt.Sprintf("Booking confirmed: %s", eventTitle),
			fmt.Sprintf("Your ticket for %s is confirmed. See you there!", eventTitle)
	case model.NotifyBookingCancelled:
		return fmt.Sprintf("Booking cancelled: %s", eventTitle),
			fmt.Sprintf("Your booking for %s was cancelled by %s.", eventTitle, actor)
	case model.NotifyPaymentFailed:
		return fmt.Sprintf("Payment failed: %s", eventTitle),
			fmt.Sprintf("The payment for %s did not complete, so the booking was released.", eventTitle)
	}
	return "Notification", ""
}
