package command_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/broadcast-mailer/internal/domain"
	"github.com/ignite/broadcast-mailer/internal/service/command"
)

// memState is the full contents of the in-memory store.
type memState struct {
	contacts   map[int64]domain.Contact
	tags       map[int64]domain.Tag
	tagged     map[domain.Tagged]bool
	emails     map[int64]domain.Email
	broadcasts map[int64]domain.Broadcast
	messages   []domain.Message
	activity   []domain.Activity
	nextID     int64
}

func newMemState() *memState {
	return &memState{
		contacts:   map[int64]domain.Contact{},
		tags:       map[int64]domain.Tag{},
		tagged:     map[domain.Tagged]bool{},
		emails:     map[int64]domain.Email{},
		broadcasts: map[int64]domain.Broadcast{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.tagged {
		c.tagged[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.broadcasts {
		c.broadcasts[k] = v
	}
	c.messages = append(c.messages, s.messages...)
	c.activity = append(c.activity, s.activity...)
	c.nextID = s.nextID
	return c
}

// memStore is an in-memory command.Store. Transactions are serialized: a
// transaction works on a copy of the state and swaps it in on commit.
type memStore struct {
	txMu  sync.Mutex // held for the lifetime of a transaction
	mu    sync.Mutex // guards state
	state *memState

	failFanOut error
	failCommit error
	rollbacks  int
	trace      []string // directory writes, in call order
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) BeginTx(ctx context.Context) (command.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.txMu.Lock()
	return &memTx{store: m, st: m.snapshot()}, nil
}

func (m *memStore) CountAudience(ctx context.Context, selector string) (int, error) {
	return m.snapshot().countAudience(selector), nil
}

func (m *memStore) MatchingContacts(ctx context.Context, selector string, limit int, fn func(domain.Contact) error) error {
	return m.snapshot().matching(selector, limit, fn)
}

func (m *memStore) SearchContacts(ctx context.Context, term string, limit int) ([]domain.Contact, error) {
	st := m.snapshot()
	var out []domain.Contact
	for _, c := range st.sortedContacts() {
		if containsFold(c.Email, term) || containsFold(c.Name, term) {
			out = append(out, c)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) FindContactByKey(ctx context.Context, key string) (*domain.Contact, error) {
	return m.snapshot().byKey(key)
}

// takeTrace returns and clears the recorded directory writes.
func (m *memStore) takeTrace() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.trace
	m.trace = nil
	return out
}

func (m *memStore) record(op string) {
	m.mu.Lock()
	m.trace = append(m.trace, op)
	m.mu.Unlock()
}

// seedContact inserts a contact directly, bypassing commands.
func (m *memStore) seedContact(email string, subscribed bool, tags ...string) domain.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.nextID++
	c := domain.Contact{ID: st.nextID, Email: email, Name: domain.DefaultContactName(email), Subscribed: subscribed, Key: uuid.NewString()}
	st.contacts[c.ID] = c
	for _, name := range tags {
		t, _ := st.getOrCreateTag(name)
		st.tagged[domain.Tagged{ContactID: c.ID, TagID: t.ID}] = true
	}
	return c
}

type memTx struct {
	store *memStore
	st    *memState
	done  bool
}

func (t *memTx) end() {
	if !t.done {
		t.done = true
		t.store.txMu.Unlock()
	}
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	defer t.end()
	if t.store.failCommit != nil {
		return t.store.failCommit
	}
	t.store.mu.Lock()
	t.store.state = t.st
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.store.rollbacks++
	t.end()
	return nil
}

func (t *memTx) CountAudience(ctx context.Context, selector string) (int, error) {
	return t.st.countAudience(selector), nil
}

func (t *memTx) MatchingContacts(ctx context.Context, selector string, limit int, fn func(domain.Contact) error) error {
	return t.st.matching(selector, limit, fn)
}

func (t *memTx) GetOrCreateContact(ctx context.Context, email string) (*domain.Contact, bool, error) {
	email = domain.NormalizeEmail(email)
	t.store.record("contact:" + email)
	if c, err := t.st.byEmail(email); err == nil {
		return c, false, nil
	}
	t.st.nextID++
	c := domain.Contact{ID: t.st.nextID, Email: email, Name: domain.DefaultContactName(email), Key: uuid.NewString()}
	t.st.contacts[c.ID] = c
	return &c, true, nil
}

func (t *memTx) GetOrCreateTag(ctx context.Context, name string) (*domain.Tag, bool, error) {
	tag, created := t.st.getOrCreateTag(name)
	t.store.record("tag:" + tag.Slug)
	return &tag, created, nil
}

func (t *memTx) TagContact(ctx context.Context, contactID, tagID int64) (bool, error) {
	k := domain.Tagged{ContactID: contactID, TagID: tagID}
	t.store.record("link:" + t.st.contacts[contactID].Email + "/" + t.st.tags[tagID].Slug)
	if t.st.tagged[k] {
		return false, nil
	}
	t.st.tagged[k] = true
	return true, nil
}

func (t *memTx) InsertContact(ctx context.Context, c *domain.Contact) (bool, error) {
	if _, err := t.st.byEmail(c.Email); err == nil {
		return false, nil
	}
	t.st.nextID++
	c.ID = t.st.nextID
	t.st.contacts[c.ID] = *c
	return true, nil
}

func (t *memTx) FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	return t.st.byEmail(domain.NormalizeEmail(email))
}

func (t *memTx) FindContactByKey(ctx context.Context, key string) (*domain.Contact, error) {
	return t.st.byKey(key)
}

func (t *memTx) FindContactByID(ctx context.Context, id int64) (*domain.Contact, error) {
	c, ok := t.st.contacts[id]
	if !ok {
		return nil, command.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) SetSubscribed(ctx context.Context, contactID int64, subscribed bool) (bool, error) {
	c, ok := t.st.contacts[contactID]
	if !ok || c.Subscribed == subscribed {
		return false, nil
	}
	c.Subscribed = subscribed
	t.st.contacts[contactID] = c
	return true, nil
}

func (t *memTx) SetContactName(ctx context.Context, contactID int64, name string) (bool, error) {
	c, ok := t.st.contacts[contactID]
	if !ok || c.Name == name {
		return false, nil
	}
	c.Name = name
	t.st.contacts[contactID] = c
	return true, nil
}

func (t *memTx) ContactTags(ctx context.Context, contactID int64) ([]domain.Tag, error) {
	var out []domain.Tag
	for k := range t.st.tagged {
		if k.ContactID == contactID {
			out = append(out, t.st.tags[k.TagID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (t *memTx) ContactActivity(ctx context.Context, contactID int64) ([]domain.Activity, error) {
	var out []domain.Activity
	for i := len(t.st.activity) - 1; i >= 0; i-- {
		if a := t.st.activity[i]; a.ContactID == contactID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) MessagesTo(ctx context.Context, email string) ([]domain.Message, error) {
	var out []domain.Message
	for i := len(t.st.messages) - 1; i >= 0; i-- {
		if m := t.st.messages[i]; m.SendTo == email {
			m.HTML = ""
			out = append(out, m)
		}
	}
	return out, nil
}

func (t *memTx) RecordActivity(ctx context.Context, a *domain.Activity) error {
	t.st.nextID++
	a.ID = t.st.nextID
	t.st.activity = append(t.st.activity, *a)
	return nil
}

func (t *memTx) InsertEmail(ctx context.Context, e *domain.Email) error {
	t.st.nextID++
	e.ID = t.st.nextID
	t.st.emails[e.ID] = *e
	return nil
}

func (t *memTx) InsertBroadcast(ctx context.Context, b *domain.Broadcast) error {
	t.st.nextID++
	b.ID = t.st.nextID
	t.st.broadcasts[b.ID] = *b
	return nil
}

func (t *memTx) FanOut(ctx context.Context, b *domain.Broadcast, e *domain.Email) (int, error) {
	if t.store.failFanOut != nil {
		return 0, t.store.failFanOut
	}
	n := 0
	err := t.st.matching(b.SendToTag, 0, func(c domain.Contact) error {
		t.st.nextID++
		t.st.messages = append(t.st.messages, domain.Message{
			ID:       t.st.nextID,
			Source:   domain.MessageSourceBroadcast,
			Slug:     e.Slug,
			Status:   domain.MessagePending,
			SendTo:   c.Email,
			SendFrom: b.ReplyTo,
			Subject:  e.Subject,
			HTML:     e.HTML,
			SendAt:   e.CreatedAt,
		})
		n++
		return nil
	})
	return n, err
}

func (s *memState) getOrCreateTag(name string) (domain.Tag, bool) {
	nt := domain.NewTag(name)
	for _, t := range s.tags {
		if t.Slug == nt.Slug {
			return t, false
		}
	}
	s.nextID++
	nt.ID = s.nextID
	s.tags[nt.ID] = *nt
	return *nt, true
}

func (s *memState) byEmail(email string) (*domain.Contact, error) {
	for _, c := range s.contacts {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, command.ErrNotFound
}

func (s *memState) byKey(key string) (*domain.Contact, error) {
	for _, c := range s.contacts {
		if c.Key == key {
			return &c, nil
		}
	}
	return nil, command.ErrNotFound
}

func (s *memState) sortedContacts() []domain.Contact {
	out := make([]domain.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memState) matches(c domain.Contact, selector string) bool {
	if !c.Subscribed {
		return false
	}
	if selector == domain.AllSubscribers {
		return true
	}
	for k := range s.tagged {
		if k.ContactID == c.ID && s.tags[k.TagID].Slug == selector {
			return true
		}
	}
	return false
}

func (s *memState) countAudience(selector string) int {
	n := 0
	for _, c := range s.contacts {
		if s.matches(c, selector) {
			n++
		}
	}
	return n
}

func (s *memState) matching(selector string, limit int, fn func(domain.Contact) error) error {
	n := 0
	for _, c := range s.sortedContacts() {
		if !s.matches(c, selector) {
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
		n++
		if limit > 0 && n == limit {
			return nil
		}
	}
	return nil
}

func (s *memState) activityFor(contactID int64, key string) int {
	n := 0
	for _, a := range s.activity {
		if a.ContactID == contactID && a.Key == key {
			n++
		}
	}
	return n
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
