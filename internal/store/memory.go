package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemDB is an in-process Store. Transactions are serialized and keep an undo
// journal of their own writes; rollback replays it in reverse, leaving writes
// made outside the transaction intact.
type MemDB struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	users  map[int64]*User
	tokens map[string]*Token
	seq    int64
}

type memTxKey struct{}

type memTx struct {
	undo []func()
}

func NewMemoryDB() *MemDB {
	return &MemDB{users: map[int64]*User{}, tokens: map[string]*Token{}, seq: 1}
}

func (m *MemDB) Users() UserRepository   { return memUsers{m} }
func (m *MemDB) Tokens() TokenRepository { return memTokens{m} }

func (m *MemDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{}
	defer func() {
		if p := recover(); p != nil {
			m.rollback(tx)
			panic(p)
		}
		if err != nil {
			m.rollback(tx)
		}
	}()
	return fn(context.WithValue(ctx, memTxKey{}, tx))
}

func (m *MemDB) Ping(context.Context) error { return nil }
func (m *MemDB) Close() error               { return nil }

// record adds an undo step to the transaction carried by ctx, if any.
// Callers hold mu.
func (m *MemDB) record(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (m *MemDB) rollback(tx *memTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// putBackTokens re-inserts removed tokens on rollback unless the key was
// reused in the meantime.
func (m *MemDB) putBackTokens(ctx context.Context, removed []*Token) {
	if len(removed) == 0 {
		return
	}
	m.record(ctx, func() {
		for _, t := range removed {
			if _, ok := m.tokens[t.Token]; !ok {
				m.tokens[t.Token] = t
			}
		}
	})
}

func copyUser(u *User) *User {
	c := *u
	if u.ActivationToken != nil {
		t := *u.ActivationToken
		c.ActivationToken = &t
	}
	return &c
}

type memUsers struct{ m *MemDB }

func (r memUsers) Create(ctx context.Context, u *User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	u.ID = r.m.seq
	r.m.seq++
	r.m.users[u.ID] = copyUser(u)
	id := u.ID
	r.m.record(ctx, func() { delete(r.m.users, id) })
	return nil
}

func (r memUsers) FindByID(_ context.Context, id int64) (*User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if u, ok := r.m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, ErrNotFound
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	return r.findBy(func(u *User) bool { return u.Email == email })
}

func (r memUsers) FindByActivationToken(_ context.Context, token string) (*User, error) {
	return r.findBy(func(u *User) bool { return u.ActivationToken != nil && *u.ActivationToken == token })
}

func (r memUsers) findBy(match func(*User) bool) (*User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r memUsers) Activate(ctx context.Context, id int64) error {
	return r.update(ctx, id, func(u *User) {
		u.Inactive = false
		u.ActivationToken = nil
	})
}

func (r memUsers) UpdateUsername(ctx context.Context, id int64, username string) error {
	return r.update(ctx, id, func(u *User) { u.Username = username })
}

func (r memUsers) update(ctx context.Context, id int64, fn func(*User)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	prev := copyUser(u)
	fn(u)
	r.m.record(ctx, func() {
		if _, ok := r.m.users[id]; ok {
			r.m.users[id] = prev
		}
	})
	return nil
}

func (r memUsers) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.m.users, id)
	r.m.record(ctx, func() { r.m.users[id] = u })
	return nil
}

func (r memUsers) ListActive(_ context.Context, excludeID int64, limit, offset int) (*Page, error) {
	r.m.mu.RLock()
	var active []User
	for _, u := range r.m.users {
		if !u.Inactive && u.ID != excludeID {
			active = append(active, *copyUser(u))
		}
	}
	r.m.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	p := &Page{Total: len(active), Users: []User{}}
	if offset < 0 || offset >= len(active) {
		return p, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	p.Users = active[offset:end]
	return p, nil
}

type memTokens struct{ m *MemDB }

func (r memTokens) Create(ctx context.Context, t *Token) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	prev, existed := r.m.tokens[t.Token]
	c := *t
	r.m.tokens[t.Token] = &c
	r.m.record(ctx, func() {
		if existed {
			r.m.tokens[c.Token] = prev
		} else {
			delete(r.m.tokens, c.Token)
		}
	})
	return nil
}

func (r memTokens) FindByToken(_ context.Context, token string) (*Token, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if t, ok := r.m.tokens[token]; ok {
		c := *t
		return &c, nil
	}
	return nil, ErrNotFound
}

func (r memTokens) Touch(ctx context.Context, token string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[token]
	if !ok || !at.After(t.LastUsedAt) {
		return nil
	}
	prev := t.LastUsedAt
	t.LastUsedAt = at
	r.m.record(ctx, func() {
		if t, ok := r.m.tokens[token]; ok && t.LastUsedAt.Equal(at) {
			t.LastUsedAt = prev
		}
	})
	return nil
}

func (r memTokens) DeleteByToken(ctx context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.tokens[token]; ok {
		delete(r.m.tokens, token)
		r.m.putBackTokens(ctx, []*Token{t})
	}
	return nil
}

func (r memTokens) DeleteAllForUser(ctx context.Context, userID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var removed []*Token
	for k, t := range r.m.tokens {
		if t.UserID == userID {
			delete(r.m.tokens, k)
			removed = append(removed, t)
		}
	}
	r.m.putBackTokens(ctx, removed)
	return nil
}

func (r memTokens) DeleteUnusedSince(ctx context.Context, cutoff time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var removed []*Token
	for k, t := range r.m.tokens {
		if !t.LastUsedAt.After(cutoff) {
			delete(r.m.tokens, k)
			removed = append(removed, t)
		}
	}
	r.m.putBackTokens(ctx, removed)
	return int64(len(removed)), nil
}
