package prefs

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrInvalidValue = errors.New("invalid preference value")

// Codec converts a preference value to and from the storage's string form.
type Codec[T any] struct {
	Encode func(T) string
	Decode func(string) (T, error)
}

var StringCodec = Codec[string]{
	Encode: func(s string) string { return s },
	Decode: func(s string) (string, error) { return s, nil },
}

var IntCodec = Codec[int]{
	Encode: strconv.Itoa,
	Decode: strconv.Atoi,
}

// Pref is a single persisted, observable preference. The value is loaded from
// Storage once, and every Set writes through before subscribers are notified.
//
// Sets are serialized with their notifications, so listeners observe values
// in the order they were stored. Listeners may call Get but must not call Set
// or Subscribe on the same Pref.
type Pref[T any] struct {
	// held across a whole Set or Subscribe, including listener calls
	writeMu sync.Mutex

	mu    sync.RWMutex
	key   string
	value T

	codec   Codec[T]
	valid   func(T) bool
	storage Storage

	listeners map[uint64]func(T)
	nextID    uint64
}

type PrefOpt[T any] func(*Pref[T])

// WithValidator rejects values on Set, and stored values on load (which then
// fall back to the default).
func WithValidator[T any](valid func(T) bool) PrefOpt[T] {
	return func(p *Pref[T]) {
		p.valid = valid
	}
}

func NewPref[T any](
	ctx context.Context,
	logger *zap.Logger,
	storage Storage,
	key string,
	def T,
	codec Codec[T],
	opts ...PrefOpt[T],
) (*Pref[T], error) {
	p := &Pref[T]{
		key:       key,
		value:     def,
		codec:     codec,
		storage:   storage,
		listeners: make(map[uint64]func(T)),
	}

	for _, opt := range opts {
		opt(p)
	}

	stored, found, err := storage.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read preference %s", key)
	}

	if !found {
		return p, nil
	}

	value, err := codec.Decode(stored)
	if err != nil || !p.isValid(value) {
		logger.Warn("ignoring stored preference", zap.String("key", key), zap.String("stored", stored))
		return p, nil
	}

	p.value = value
	return p, nil
}

func (p *Pref[T]) Key() string {
	return p.key
}

func (p *Pref[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.value
}

// Set persists value and then publishes it. On a storage error the previous
// value is kept and nobody is notified.
func (p *Pref[T]) Set(ctx context.Context, value T) error {
	if !p.isValid(value) {
		return errors.Wrapf(ErrInvalidValue, "%s", p.key)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if err := p.storage.Set(ctx, p.key, p.codec.Encode(value)); err != nil {
		p.mu.Unlock()
		return errors.Wrapf(err, "failed to save preference %s", p.key)
	}

	p.value = value
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(value)
	}

	return nil
}

// Subscribe calls listener with the current value right away and then after
// every successful Set. The returned func removes the listener.
func (p *Pref[T]) Subscribe(listener func(T)) (unsubscribe func()) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	value := p.value
	p.mu.Unlock()

	listener(value)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Pref[T]) isValid(value T) bool {
	return p.valid == nil || p.valid(value)
}

func (p *Pref[T]) snapshotListenersLocked() []func(T) {
	listeners := make([]func(T), 0, len(p.listeners))
	for _, listener := range p.listeners {
		listeners = append(listeners, listener)
	}

	return listeners
}
