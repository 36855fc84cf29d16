package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kalambet/ivy/internal/dialogue"
	"github.com/kalambet/ivy/internal/logging"
	"github.com/kalambet/ivy/internal/profile"
	"github.com/kalambet/ivy/internal/storage"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

const (
	// DefaultHistoryLimit is how many transcript messages History returns.
	DefaultHistoryLimit = 30
	// DefaultCacheTTL bounds how long Get serves a session from memory.
	DefaultCacheTTL = 60 * time.Second
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	CreateSession(profileJSON string) (storage.Session, error)
	GetSession(id string) (storage.Session, error)
	UpdateSession(id, profileJSON, lastAudioHash string) error
	DeleteSession(id string) error
	AppendTurn(t storage.Turn) (storage.Turn, error)
	RecentTurns(sessionID string, limit int) ([]storage.Turn, error)
	IdleSessions(before time.Time, limit int) ([]string, error)
}

// TurnProcessor advances a profile by one utterance.
// Implemented by dialogue.Orchestrator.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, utterance string, p *profile.Profile) (dialogue.TurnResult, error)
}

// Transcriber turns a recorded clip into text. An empty string means nothing
// usable was heard.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) string
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config tunes a Manager. Zero values select the defaults.
type Config struct {
	HistoryLimit int
	CacheTTL     time.Duration
}

// Info describes a stored session.
type Info struct {
	ID         string           `json:"id"`
	Profile    profile.Snapshot `json:"profile"`
	Milestone  int              `json:"milestone"`
	Ready      bool             `json:"ready"`
	IsComplete bool             `json:"is_complete"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Started is returned when a session is opened.
type Started struct {
	ID       string           `json:"id"`
	Greeting string           `json:"greeting"`
	Profile  profile.Snapshot `json:"profile"`
}

// Message is one entry of a session transcript.
type Message struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AudioResult reports what happened to a recorded clip. Turn is nil when the
// clip was a duplicate or nothing could be transcribed.
type AudioResult struct {
	Transcript string               `json:"transcript"`
	Duplicate  bool                 `json:"duplicate"`
	Turn       *dialogue.TurnResult `json:"turn,omitempty"`
}

type cacheEntry struct {
	info Info
	at   time.Time
}

// Manager owns session lifecycle. Turns on the same session are serialised;
// different sessions proceed independently.
type Manager struct {
	store  Store
	turns  TurnProcessor
	audio  Transcriber
	clock  Clock
	ttl    time.Duration
	limit  int
	locks  *keyedMutex

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager. audio may be nil, in which case AudioTurn
// hears nothing.
func NewManager(store Store, turns TurnProcessor, audio Transcriber, cfg Config) *Manager {
	return NewManagerWithClock(store, turns, audio, cfg, realClock{})
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, turns TurnProcessor, audio Transcriber, cfg Config, clock Clock) *Manager {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Manager{
		store: store,
		turns: turns,
		audio: audio,
		clock: clock,
		ttl:   cfg.CacheTTL,
		limit: cfg.HistoryLimit,
		locks: newKeyedMutex(),
		cache: make(map[string]cacheEntry),
	}
}

// Create opens a session with an empty profile and records the greeting.
func (m *Manager) Create(ctx context.Context) (Started, error) {
	var p profile.Profile
	raw, err := json.Marshal(p)
	if err != nil {
		return Started{}, fmt.Errorf("encoding profile: %w", err)
	}

	sess, err := m.store.CreateSession(string(raw))
	if err != nil {
		return Started{}, fmt.Errorf("creating session: %w", err)
	}
	if _, err := m.store.AppendTurn(storage.Turn{
		SessionID: sess.ID,
		Role:      storage.RoleAssistant,
		Content:   dialogue.Greeting,
	}); err != nil {
		return Started{}, fmt.Errorf("recording greeting: %w", err)
	}

	logging.FromContext(ctx).Info("session started", "session_id", sess.ID)
	return Started{ID: sess.ID, Greeting: dialogue.Greeting, Profile: p.Snapshot()}, nil
}

// Get returns the session, served from cache while fresh. A miss is filled
// under the session lock so a turn cannot commit between the read and the
// cache write.
func (m *Manager) Get(ctx context.Context, id string) (Info, error) {
	if info, ok := m.cached(id); ok {
		return info, nil
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	if info, ok := m.cached(id); ok {
		return info, nil
	}
	now := m.clock.Now()
	sess, p, err := m.load(id)
	if err != nil {
		return Info{}, err
	}
	info := newInfo(sess, p)

	m.mu.Lock()
	m.cache[id] = cacheEntry{info: info, at: now}
	m.mu.Unlock()
	return info, nil
}

// Turn processes one typed utterance against the session's profile, persists
// the result and appends both sides to the transcript.
func (m *Manager) Turn(ctx context.Context, id, utterance string) (dialogue.TurnResult, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, p, err := m.load(id)
	if err != nil {
		return dialogue.TurnResult{}, err
	}
	return m.turn(ctx, sess, p, utterance, sess.LastAudioHash)
}

// AudioTurn transcribes a recorded clip and processes it as a turn. A clip
// identical to the previous one is ignored. The fingerprint is remembered
// even when transcription yields nothing, so a resubmitted failed clip stays
// ignored.
func (m *Manager) AudioTurn(ctx context.Context, id string, audio []byte) (AudioResult, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	sess, p, err := m.load(id)
	if err != nil {
		return AudioResult{}, err
	}
	if len(audio) == 0 {
		return AudioResult{}, nil
	}

	sum := sha256.Sum256(audio)
	hash := hex.EncodeToString(sum[:])
	if hash == sess.LastAudioHash {
		logging.FromContext(ctx).Debug("duplicate audio ignored", "session_id", id)
		return AudioResult{Duplicate: true}, nil
	}

	var text string
	if m.audio != nil {
		text = strings.TrimSpace(m.audio.Transcribe(ctx, audio))
	}
	if text == "" {
		if err := m.store.UpdateSession(id, sess.ProfileJSON, hash); err != nil {
			return AudioResult{}, m.mapErr(err)
		}
		m.invalidate(id)
		return AudioResult{}, nil
	}

	res, err := m.turn(ctx, sess, p, text, hash)
	if err != nil {
		return AudioResult{}, err
	}
	return AudioResult{Transcript: text, Turn: &res}, nil
}

// History returns the latest transcript messages in chronological order.
func (m *Manager) History(ctx context.Context, id string) ([]Message, error) {
	if _, err := m.store.GetSession(id); err != nil {
		return nil, m.mapErr(err)
	}
	turns, err := m.store.RecentTurns(id, m.limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	msgs := make([]Message, len(turns))
	for i, t := range turns {
		msgs[i] = Message{Seq: t.Seq, Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt}
	}
	return msgs, nil
}

// Delete ends a session and discards its profile and transcript.
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	m.invalidate(id)
	if err := m.store.DeleteSession(id); err != nil {
		return m.mapErr(err)
	}
	logging.FromContext(ctx).Info("session ended", "session_id", id)
	return nil
}

// Idle returns up to limit sessions not touched since before.
func (m *Manager) Idle(before time.Time, limit int) ([]string, error) {
	return m.store.IdleSessions(before, limit)
}

// Now reports the manager's current time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

func (m *Manager) turn(ctx context.Context, sess storage.Session, p profile.Profile, utterance, audioHash string) (dialogue.TurnResult, error) {
	ctx, span := otel.Tracer("session").Start(ctx, "Turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sess.ID))

	res, err := m.turns.ProcessTurn(ctx, utterance, &p)
	if err != nil {
		return dialogue.TurnResult{}, fmt.Errorf("processing turn: %w", err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return dialogue.TurnResult{}, fmt.Errorf("encoding profile: %w", err)
	}
	if err := m.store.UpdateSession(sess.ID, string(raw), audioHash); err != nil {
		return dialogue.TurnResult{}, m.mapErr(err)
	}
	m.invalidate(sess.ID)

	if text := strings.TrimSpace(utterance); text != "" {
		if _, err := m.store.AppendTurn(storage.Turn{SessionID: sess.ID, Role: storage.RoleStudent, Content: text}); err != nil {
			return dialogue.TurnResult{}, m.mapErr(err)
		}
	}
	if _, err := m.store.AppendTurn(storage.Turn{SessionID: sess.ID, Role: storage.RoleAssistant, Content: res.Reply}); err != nil {
		return dialogue.TurnResult{}, m.mapErr(err)
	}

	return res, nil
}

func (m *Manager) load(id string) (storage.Session, profile.Profile, error) {
	sess, err := m.store.GetSession(id)
	if err != nil {
		return storage.Session{}, profile.Profile{}, m.mapErr(err)
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(sess.ProfileJSON), &p); err != nil {
		return storage.Session{}, profile.Profile{}, fmt.Errorf("decoding profile for session %s: %w", id, err)
	}
	return sess, p, nil
}

func (m *Manager) cached(id string) (Info, bool) {
	m.mu.RLock()
	e, ok := m.cache[id]
	m.mu.RUnlock()
	if !ok || !m.clock.Now().Before(e.at.Add(m.ttl)) {
		return Info{}, false
	}
	return e.info, true
}

func (m *Manager) invalidate(id string) {
	m.mu.Lock()
	delete(m.cache, id)
	m.mu.Unlock()
}

func (m *Manager) mapErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func newInfo(sess storage.Session, p profile.Profile) Info {
	snap := p.Snapshot()
	return Info{
		ID:         sess.ID,
		Profile:    snap,
		Milestone:  snap.Milestone(),
		Ready:      p.Ready(),
		IsComplete: p.Complete(),
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds
// or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
