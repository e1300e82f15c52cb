package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyConnected is returned by Create when single-login mode is on and
// the user already holds a live session.
var ErrAlreadyConnected = errors.New("user already has a live session")

// Registry is the process-wide source of truth for who is connected. Every
// operation takes the registry lock, so no two mutations on the same token
// can interleave; a token that has been rotated away never resolves again.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl         time.Duration
	singleLogin bool
	log         *slog.Logger

	done chan struct{}
	once sync.Once
}

type Option func(*Registry)

// WithSingleLogin rejects a second login for an already-connected user
// instead of just logging it.
func WithSingleLogin(on bool) Option {
	return func(r *Registry) { r.singleLogin = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry starts the expiry sweeper on an interval equal to ttl. Call
// Close on shutdown to stop the sweeper and drop every live session.
func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.done:
				return
			}
		}
	}()

	return r
}

// Create verifies the user is not already connected, mints a token and
// registers a fresh session with an empty cart.
func (r *Registry) Create(userID uint, username, role string) (Session, error) {
	if userID == 0 || username == "" || role == "" {
		return Session{}, fmt.Errorf("create session: missing identity fields")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ses := range r.sessions {
		if ses.UserID == userID || ses.Username == username {
			r.log.Warn("user already connected", "username", username)
			if r.singleLogin {
				return Session{}, ErrAlreadyConnected
			}
			break
		}
	}

	ses := &Session{
		Token:        r.newToken(),
		UserID:       userID,
		Username:     username,
		Role:         role,
		LastActivity: time.Now(),
		Cart:         []CartLine{},
	}
	r.sessions[ses.Token] = ses
	return ses.snapshot(), nil
}

// Lookup resolves a token and touches the session's activity clock, giving
// sessions a sliding expiry window.
func (r *Registry) Lookup(token string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ses, ok := r.sessions[token]
	if !ok {
		return Session{}, false
	}
	ses.LastActivity = time.Now()
	return ses.snapshot(), true
}

// Rotate replaces the session's token with a fresh one. The old token stops
// resolving the moment this returns; a request still holding it is treated
// as a replay.
func (r *Registry) Rotate(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ses, ok := r.sessions[token]
	if !ok {
		return "", false
	}
	delete(r.sessions, token)
	ses.Token = r.newToken()
	ses.LastActivity = time.Now()
	r.sessions[ses.Token] = ses
	return ses.Token, true
}

// Update merges the provided fields into the session and refreshes its
// activity clock.
func (r *Registry) Update(token string, upd Update) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ses, ok := r.sessions[token]
	if !ok {
		return false
	}
	if upd.Username != nil {
		ses.Username = *upd.Username
	}
	if upd.UserID != nil {
		ses.UserID = *upd.UserID
	}
	if upd.Role != nil {
		ses.Role = *upd.Role
	}
	if upd.Cart != nil {
		ses.Cart = cloneCart(*upd.Cart)
	}
	if upd.PendingAutologin != nil {
		ses.PendingAutologin = *upd.PendingAutologin
	}
	ses.LastActivity = time.Now()
	return true
}

func (r *Registry) Remove(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[token]; !ok {
		return false
	}
	delete(r.sessions, token)
	return true
}

func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*Session)
}

// LiveUsernames reports who is currently connected, for the admin user view.
func (r *Registry) LiveUsernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions))
	for _, ses := range r.sessions {
		names = append(names, ses.Username)
	}
	return names
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle past the expiry window and any session whose
// pending-autologin marker was never consumed. A reload handoff that did not
// complete is treated as abandoned and revoked.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for token, ses := range r.sessions {
		if now.Sub(ses.LastActivity) >= r.ttl || ses.PendingAutologin {
			delete(r.sessions, token)
			r.log.Info("session swept", "username", ses.Username,
				"idle", now.Sub(ses.LastActivity).String(),
				"pending_autologin", ses.PendingAutologin)
		}
	}
}

// Close stops the sweeper and logs everyone out.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.done) })
	r.RemoveAll()
}

// AddToCart applies the cart engine's add action under the registry lock and
// returns the resulting cart.
func (r *Registry) AddToCart(token string, line CartLine) ([]CartLine, error) {
	return r.mutateCart(token, func(cart []CartLine) ([]CartLine, error) {
		return addLine(cart, line)
	})
}

func (r *Registry) RemoveFromCart(token string, productID uint) ([]CartLine, error) {
	return r.mutateCart(token, func(cart []CartLine) ([]CartLine, error) {
		return removeLine(cart, productID)
	})
}

func (r *Registry) ReduceQuantity(token string, productID uint) ([]CartLine, error) {
	return r.mutateCart(token, func(cart []CartLine) ([]CartLine, error) {
		return reduceLine(cart, productID)
	})
}

// EmptyCart is idempotent: emptying an already empty cart is a no-op, not an
// error.
func (r *Registry) EmptyCart(token string) ([]CartLine, error) {
	return r.mutateCart(token, func([]CartLine) ([]CartLine, error) {
		return []CartLine{}, nil
	})
}

// ErrSessionNotFound is returned by cart mutations on an unknown token.
var ErrSessionNotFound = errors.New("session not found")

func (r *Registry) mutateCart(token string, fn func([]CartLine) ([]CartLine, error)) ([]CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ses, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	ses.LastActivity = time.Now()

	next, err := fn(ses.Cart)
	if err != nil {
		return nil, err
	}
	ses.Cart = next
	return cloneCart(next), nil
}

// newToken mints a high-entropy opaque token: a hex SHA-256 over 64 random
// bytes, regenerated on the astronomically unlikely collision so an existing
// session is never silently overwritten. Caller holds the lock.
func (r *Registry) newToken() string {
	for {
		buf := make([]byte, 64)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("session: crypto/rand failed: %v", err))
		}
		sum := sha256.Sum256([]byte(hex.EncodeToString(buf)))
		token := hex.EncodeToString(sum[:])
		if _, exists := r.sessions[token]; !exists {
			return token
		}
	}
}
