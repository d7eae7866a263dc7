package fixtures

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// ErrCollaboratorDown is what the failing doubles return.
var ErrCollaboratorDown = errors.New("collaborator unavailable")

// NotifierSpy records notifications and can be switched to fail.
type NotifierSpy struct {
	mu   sync.Mutex
	sent []circulation.Notification
	fail bool
}

// NewNotifierSpy returns a NotifierSpy. If fail is true every Notify call returns ErrCollaboratorDown.
func NewNotifierSpy(fail bool) *NotifierSpy {
	return &NotifierSpy{fail: fail}
}

func (n *NotifierSpy) Notify(_ context.Context, notification circulation.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail {
		return ErrCollaboratorDown
	}

	n.sent = append(n.sent, notification)

	return nil
}

// Sent returns a copy of the delivered notifications.
func (n *NotifierSpy) Sent() []circulation.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]circulation.Notification(nil), n.sent...)
}

// UserDirectoryFake keeps user-to-card assignments in memory.
type UserDirectoryFake struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*uuid.UUID
	failDetach bool
	failAttach bool
	attachLog  []uuid.UUID
}

// NewUserDirectoryFake returns a directory knowing userIDs, none of them holding a card.
func NewUserDirectoryFake(userIDs ...uuid.UUID) *UserDirectoryFake {
	users := make(map[uuid.UUID]*uuid.UUID, len(userIDs))
	for _, id := range userIDs {
		users[id] = nil
	}

	return &UserDirectoryFake{users: users}
}

// FailDetach makes DetachCard fail.
func (d *UserDirectoryFake) FailDetach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failDetach = true
}

// FailAttach makes AttachCard fail.
func (d *UserDirectoryFake) FailAttach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAttach = true
}

func (d *UserDirectoryFake) UserExists(_ context.Context, userID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[userID]
	return ok, nil
}

func (d *UserDirectoryFake) DetachCard(_ context.Context, userID, _ uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failDetach {
		return ErrCollaboratorDown
	}

	d.users[userID] = nil

	return nil
}

func (d *UserDirectoryFake) AttachCard(_ context.Context, userID, cardID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failAttach {
		return ErrCollaboratorDown
	}

	d.users[userID] = &cardID
	d.attachLog = append(d.attachLog, cardID)

	return nil
}

// CardOf returns the card currently attached to userID, if any.
func (d *UserDirectoryFake) CardOf(userID uuid.UUID) (uuid.UUID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if card := d.users[userID]; card != nil {
		return *card, true
	}

	return uuid.Nil, false
}

// AttachCalls returns how many times AttachCard succeeded.
func (d *UserDirectoryFake) AttachCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attachLog)
}
