// Package memory provides an in-memory Store implementation used by
// unit tests and local development. It is not safe for production use:
// WithTx provides no rollback.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/store"
)

// Sentinel errors shared with the other store implementations.
var (
	ErrNotFound            = store.ErrNotFound
	ErrDuplicateKey        = store.ErrDuplicateKey
	ErrDuplicateDirectRoom = store.ErrDuplicateDirectRoom
	ErrInvalidCredentials  = store.ErrInvalidCredentials
	ErrStaleStatus         = store.ErrStaleStatus
)

// Store is an in-memory store.Store.
type Store struct {
	mu sync.Mutex

	rooms         map[string]*models.Room
	memberships   map[string]*models.Membership // key roomID+"/"+userID
	invitations   map[string]*models.Invitation
	notifications map[string]*models.Notification
	posts         map[string]*models.Post
	profiles      map[string]*models.Profile
	passwords     map[string]string // profile id -> plaintext (test only)
	workflows     map[string]*models.Workflow
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rooms:         make(map[string]*models.Room),
		memberships:   make(map[string]*models.Membership),
		invitations:   make(map[string]*models.Invitation),
		notifications: make(map[string]*models.Notification),
		posts:         make(map[string]*models.Post),
		profiles:      make(map[string]*models.Profile),
		passwords:     make(map[string]string),
		workflows:     make(map[string]*models.Workflow),
	}
}

// Rooms returns the room sub-store.
func (s *Store) Rooms() store.RoomStore { return (*roomStore)(s) }

// Memberships returns the membership sub-store.
func (s *Store) Memberships() store.MembershipStore { return (*membershipStore)(s) }

// Invitations returns the invitation sub-store.
func (s *Store) Invitations() store.InvitationStore { return (*invitationStore)(s) }

// Notifications returns the notification sub-store.
func (s *Store) Notifications() store.NotificationStore { return (*notificationStore)(s) }

// Posts returns the post sub-store.
func (s *Store) Posts() store.PostStore { return (*postStore)(s) }

// Profiles returns the profile sub-store.
func (s *Store) Profiles() store.ProfileStore { return (*profileStore)(s) }

// Workflows returns the workflow sub-store.
func (s *Store) Workflows() store.WorkflowStore { return (*workflowStore)(s) }

// WithTx runs fn against the same store. There is no rollback; tests
// that need transactional failure semantics use the postgres store.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error { return nil }

type roomStore Store

func (s *roomStore) Create(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = room.CreatedAt

	if room.Kind == models.RoomKindDirect && len(room.Participants) == 2 {
		key := models.DirectPairKey(room.Participants[0], room.Participants[1])
		for _, existing := range s.rooms {
			if existing.Kind == models.RoomKindDirect && existing.IsActive && len(existing.Participants) == 2 &&
				models.DirectPairKey(existing.Participants[0], existing.Participants[1]) == key {
				return ErrDuplicateDirectRoom
			}
		}
	}

	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *roomStore) Get(ctx context.Context, id string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return cloneRoom(room), nil
}

func (s *roomStore) FindDirectByPair(ctx context.Context, userA, userB string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.DirectPairKey(userA, userB)
	var oldest *models.Room
	for _, room := range s.rooms {
		if room.Kind != models.RoomKindDirect || !room.IsActive || len(room.Participants) != 2 {
			continue
		}
		if models.DirectPairKey(room.Participants[0], room.Participants[1]) != key {
			continue
		}
		if oldest == nil || room.CreatedAt.Before(oldest.CreatedAt) {
			oldest = room
		}
	}
	if oldest == nil {
		return nil, nil
	}
	return cloneRoom(oldest), nil
}

func (s *roomStore) ListByUser(ctx context.Context, userID string) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rooms []*models.Room
	for _, room := range s.rooms {
		if room.IsActive && room.HasParticipant(userID) {
			rooms = append(rooms, cloneRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt) })
	return rooms, nil
}

func (s *roomStore) SetChannelRef(ctx context.Context, id, channelRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return ErrNotFound
	}
	room.ChannelRef = channelRef
	room.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *roomStore) AddParticipant(ctx context.Context, roomID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if !room.HasParticipant(userID) {
		room.Participants = append(room.Participants, userID)
		room.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *roomStore) LinkPost(ctx context.Context, roomID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	for _, p := range room.PostLinks {
		if p == postID {
			return nil
		}
	}
	room.PostLinks = append(room.PostLinks, postID)
	room.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *roomStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return ErrNotFound
	}
	room.IsActive = false
	room.UpdatedAt = time.Now().UTC()
	return nil
}

type membershipStore Store

func (s *membershipStore) Add(ctx context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	key := m.RoomID + "/" + m.UserID
	if existing, ok := s.memberships[key]; ok {
		existing.Role = m.Role
		return nil
	}
	clone := *m
	s.memberships[key] = &clone
	return nil
}

func (s *membershipStore) Get(ctx context.Context, roomID, userID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[roomID+"/"+userID]
	if !ok {
		return nil, nil
	}
	clone := *m
	return &clone, nil
}

func (s *membershipStore) ListByRoom(ctx context.Context, roomID string) ([]*models.Membership, error) {
	return s.list(func(m *models.Membership) bool { return m.RoomID == roomID }, true)
}

func (s *membershipStore) ListByUser(ctx context.Context, userID string) ([]*models.Membership, error) {
	return s.list(func(m *models.Membership) bool { return m.UserID == userID }, false)
}

func (s *membershipStore) list(match func(*models.Membership) bool, ascending bool) ([]*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Membership
	for _, m := range s.memberships {
		if match(m) {
			clone := *m
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if ascending {
			return result[i].JoinedAt.Before(result[j].JoinedAt)
		}
		return result[i].JoinedAt.After(result[j].JoinedAt)
	})
	return result, nil
}

type invitationStore Store

func (s *invitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationStatusPending
	}
	if inv.Status == models.InvitationStatusPending {
		for _, existing := range s.invitations {
			if existing.RoomID == inv.RoomID && existing.InvitedUserID == inv.InvitedUserID &&
				existing.Status == models.InvitationStatusPending {
				return ErrDuplicateKey
			}
		}
	}
	clone := *inv
	s.invitations[inv.ID] = &clone
	return nil
}

func (s *invitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, nil
	}
	clone := *inv
	return &clone, nil
}

func (s *invitationStore) FindPending(ctx context.Context, roomID, userID string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.RoomID == roomID && inv.InvitedUserID == userID && inv.Status == models.InvitationStatusPending {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *invitationStore) SetStatus(ctx context.Context, id string, from, to models.InvitationStatus, respondedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return ErrNotFound
	}
	if inv.Status != from {
		return ErrStaleStatus
	}
	inv.Status = to
	inv.RespondedAt = respondedAt
	return nil
}

func (s *invitationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[id]; !ok {
		return ErrNotFound
	}
	delete(s.invitations, id)
	return nil
}

func (s *invitationStore) ListByInvitee(ctx context.Context, userID string) ([]*models.Invitation, error) {
	return s.list(func(inv *models.Invitation) bool { return inv.InvitedUserID == userID })
}

func (s *invitationStore) ListByRoom(ctx context.Context, roomID string) ([]*models.Invitation, error) {
	return s.list(func(inv *models.Invitation) bool { return inv.RoomID == roomID })
}

func (s *invitationStore) list(match func(*models.Invitation) bool) ([]*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Invitation
	for _, inv := range s.invitations {
		if match(inv) {
			clone := *inv
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

type notificationStore Store

func (s *notificationStore) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Read = false
	clone := *n
	s.notifications[n.ID] = &clone
	return nil
}

func (s *notificationStore) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		clone := *n
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *notificationStore) MarkRead(ctx context.Context, id, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

type postStore Store

func (s *postStore) Create(ctx context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	clone := *p
	s.posts[p.ID] = &clone
	return nil
}

func (s *postStore) Get(ctx context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (s *postStore) SetDiscussionRoom(ctx context.Context, postID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}
	p.DiscussionRoomID = roomID
	return nil
}

type profileStore Store

func (s *profileStore) Create(ctx context.Context, p *models.Profile, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	for _, existing := range s.profiles {
		if existing.Email == p.Email {
			return ErrDuplicateKey
		}
	}
	clone := *p
	s.profiles[p.ID] = &clone
	s.passwords[p.ID] = password
	return nil
}

func (s *profileStore) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (s *profileStore) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Email == email {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *profileStore) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Email == email && s.passwords[p.ID] == password {
			clone := *p
			return &clone, nil
		}
	}
	return nil, ErrInvalidCredentials
}

func (s *profileStore) Missing(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if _, ok := s.profiles[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type workflowStore Store

func (s *workflowStore) Create(ctx context.Context, w *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

func (s *workflowStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, nil
	}
	return cloneWorkflow(w), nil
}

func (s *workflowStore) ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Workflow
	for _, w := range s.workflows {
		for _, p := range w.Participants {
			if p == userID {
				result = append(result, cloneWorkflow(w))
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

func (s *workflowStore) UpdateTask(ctx context.Context, workflowID string, task models.Task) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	replaced := false
	for i := range w.Tasks {
		if w.Tasks[i].ID == task.ID {
			w.Tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		w.Tasks = append(w.Tasks, task)
	}
	w.UpdatedAt = time.Now().UTC()
	return cloneWorkflow(w), nil
}

func cloneRoom(room *models.Room) *models.Room {
	clone := *room
	clone.Participants = append([]string(nil), room.Participants...)
	clone.Admins = append([]string(nil), room.Admins...)
	clone.PostLinks = append([]string(nil), room.PostLinks...)
	return &clone
}

func cloneWorkflow(w *models.Workflow) *models.Workflow {
	clone := *w
	clone.Participants = append([]string(nil), w.Participants...)
	clone.Tasks = append([]models.Task(nil), w.Tasks...)
	return &clone
}
