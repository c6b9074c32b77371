// Package notify implements notification fan-out: a durable notification
// record plus a best-effort realtime push.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/store"
)

// Pusher delivers an event to a user's connected sessions. Implemented
// by the realtime hub.
type Pusher interface {
	EmitToUser(userID, event string, payload any)
}

// EventNotification is the realtime event name for pushed notifications.
const EventNotification = "notification"

// pushJob is a queued realtime push.
type pushJob struct {
	recipientID  string
	notification *models.Notification
}

// Service writes notification records and pushes them to connected
// sessions. The write is the durable source of truth; the push is a
// low-latency shortcut that is allowed to fail silently. Pushes run on a
// dispatcher goroutine so fan-out never blocks the caller's request.
type Service struct {
	store  store.Store
	pusher Pusher
	logger *slog.Logger

	jobs     chan pushJob
	stopOnce sync.Once
	done     chan struct{}
}

// NewService creates the fan-out service and starts its dispatcher.
// pusher may be nil, in which case only records are written.
func NewService(st store.Store, pusher Pusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  st,
		pusher: pusher,
		logger: logger,
		jobs:   make(chan pushJob, 256),
		done:   make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Notify records a notification for the recipient and queues a realtime
// push. The returned error covers only the durable write; push failures
// never surface.
func (s *Service) Notify(ctx context.Context, recipientID string, typ models.NotificationType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding notification payload: %w", err)
	}

	n := &models.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Payload:     data,
	}
	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("writing notification: %w", err)
	}

	s.enqueue(pushJob{recipientID: recipientID, notification: n})
	return nil
}

// NotifyBestEffort is Notify for callers whose primary operation must
// not fail on fan-out problems; write errors are logged and swallowed.
func (s *Service) NotifyBestEffort(ctx context.Context, recipientID string, typ models.NotificationType, payload any) {
	if err := s.Notify(ctx, recipientID, typ, payload); err != nil {
		s.logger.Error("notification fan-out failed",
			"recipient_id", recipientID,
			"type", typ,
			"error", err,
		)
	}
}

// enqueue hands the push to the dispatcher without blocking. A full
// queue drops the push; the durable record already exists.
func (s *Service) enqueue(job pushJob) {
	if s.pusher == nil {
		return
	}
	select {
	case s.jobs <- job:
	case <-s.done:
	default:
		s.logger.Warn("push queue full, dropping realtime push",
			"recipient_id", job.recipientID,
			"notification_id", job.notification.ID,
		)
	}
}

func (s *Service) dispatch() {
	for {
		select {
		case job := <-s.jobs:
			s.pusher.EmitToUser(job.recipientID, EventNotification, job.notification)
		case <-s.done:
			return
		}
	}
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID string, unreadOnly bool) ([]*models.Notification, error) {
	ns, err := s.store.Notifications().ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("listing notifications: %w", err))
	}
	return ns, nil
}

// MarkRead flags one of the recipient's notifications as read. Records
// belonging to other users are invisible here.
func (s *Service) MarkRead(ctx context.Context, notificationID, recipientID string) error {
	err := s.store.Notifications().MarkRead(ctx, notificationID, recipientID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.CodeNotFound, "notification not found")
	}
	if err != nil {
		return apperr.Internal(fmt.Errorf("marking notification read: %w", err))
	}
	return nil
}

// Close stops the dispatcher. Queued pushes are dropped.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}
