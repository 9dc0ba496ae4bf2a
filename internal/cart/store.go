package cart

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

// Storage is the durable key-value slot holding one serialized cart.
// Load returns (nil, nil) when nothing is stored.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Erase(ctx context.Context) error
}

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
	EventUpdated EventKind = "updated"
	EventCleared EventKind = "cleared"
)

// Event is published to subscribers after every mutation has been persisted.
type Event struct {
	Kind      EventKind
	Key       Key
	Lines     []Line
	OpenPanel bool // shopper flow: show the cart after an add
}

type Listener func(Event)

// Store is the shopper's cart. It never reads the catalog: callers validate
// the selection and pass any stock limit to AddChecked.
type Store struct {
	mu        sync.Mutex
	lines     []Line
	storage   Storage
	logf      func(format string, args ...any)
	onPersist func(err error)
	listeners map[int]Listener
	nextID    int
}

type Option func(*Store)

// WithLogf routes diagnostics (corrupt or unwritable storage) to logf.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Store) { s.logf = logf }
}

// WithPersistHook is called with the result of every storage write.
func WithPersistHook(fn func(err error)) Option {
	return func(s *Store) { s.onPersist = fn }
}

// Updater is implemented by storages shared between concurrent writers. Update
// applies fn to the stored value atomically; fn receives nil when nothing is
// stored and may run more than once.
type Updater interface {
	Update(ctx context.Context, fn func(old []byte) ([]byte, error)) error
}

// Open loads the cart from storage. A missing, unreadable or malformed value
// yields an empty cart; the problem is only logged.
func Open(ctx context.Context, storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:   storage,
		logf:      log.Printf,
		listeners: map[int]Listener{},
	}
	for _, o := range opts {
		o(s)
	}

	data, err := storage.Load(ctx)
	if err != nil {
		s.logf("cart: load failed, starting empty: %v", err)
		return s
	}
	s.lines = s.decode(data)
	return s
}

func (s *Store) decode(data []byte) []Line {
	if len(data) == 0 {
		return nil
	}
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		s.logf("cart: stored value is not a cart, starting empty: %v", err)
		return nil
	}
	return sanitize(lines)
}

// sanitize drops lines that could not have been written by Store and merges
// duplicate keys.
func sanitize(in []Line) []Line {
	out := make([]Line, 0, len(in))
	for _, l := range in {
		if l.ProductID == 0 || l.Quantity <= 0 {
			continue
		}
		k := l.Key()
		l.Color, l.Size = k.Color, k.Size
		if i := indexOf(out, k); i >= 0 {
			out[i].Quantity += l.Quantity
			continue
		}
		out = append(out, l)
	}
	return out
}

func indexOf(lines []Line, k Key) int {
	for i, l := range lines {
		if l.Key() == k {
			return i
		}
	}
	return -1
}

// Add merges qty units of the selection into the cart. A non-positive qty is
// ignored.
func (s *Store) Add(ctx context.Context, p catalog.Product, sel catalog.Selection, qty int) {
	_ = s.AddChecked(ctx, p, sel, qty, nil)
}

// AddChecked is Add with a limit: check receives the quantity the line would
// hold after the add, read from the stored cart, and a non-nil result
// leaves the cart unchanged.
func (s *Store) AddChecked(ctx context.Context, p catalog.Product, sel catalog.Selection, qty int, check func(total int) error) error {
	if qty <= 0 {
		return nil
	}
	sel = p.Resolve(sel)
	k := KeyOf(p.ID, sel.Color, sel.Size)

	var checkErr error
	s.mu.Lock()
	ev, changed := s.mutateLocked(ctx, EventAdded, k, func(lines []Line) ([]Line, bool) {
		checkErr = nil
		i := indexOf(lines, k)
		held := 0
		if i >= 0 {
			held = lines[i].Quantity
		}
		if check != nil {
			if checkErr = check(held + qty); checkErr != nil {
				return lines, false
			}
		}
		if i >= 0 {
			lines[i].Quantity += qty
			return lines, true
		}
		return append(lines, Line{
			ProductID: p.ID,
			Color:     k.Color,
			Size:      k.Size,
			Quantity:  qty,
			UnitPrice: p.Price,
			Name:      p.Name,
			Thumbnail: p.Thumbnail(),
		}), true
	})
	s.mu.Unlock()

	if changed {
		ev.OpenPanel = true
		s.publish(ev)
	}
	return checkErr
}

// Remove deletes the line with key k; unknown keys are ignored.
func (s *Store) Remove(ctx context.Context, k Key) {
	k = KeyOf(k.ProductID, k.Color, k.Size)
	s.mu.Lock()
	ev, changed := s.mutateLocked(ctx, EventRemoved, k, func(lines []Line) ([]Line, bool) {
		i := indexOf(lines, k)
		if i < 0 {
			return lines, false
		}
		return append(lines[:i], lines[i+1:]...), true
	})
	s.mu.Unlock()
	if changed {
		s.publish(ev)
	}
}

// UpdateQuantity replaces a line's quantity; qty <= 0 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, k Key, qty int) {
	if qty <= 0 {
		s.Remove(ctx, k)
		return
	}
	k = KeyOf(k.ProductID, k.Color, k.Size)
	s.mu.Lock()
	ev, changed := s.mutateLocked(ctx, EventUpdated, k, func(lines []Line) ([]Line, bool) {
		i := indexOf(lines, k)
		if i < 0 {
			return lines, false
		}
		lines[i].Quantity = qty
		return lines, true
	})
	s.mu.Unlock()
	if changed {
		s.publish(ev)
	}
}

// Deduct subtracts the quantities of submitted from the cart, dropping lines
// that reach zero. Units added after submitted was read stay in the cart.
func (s *Store) Deduct(ctx context.Context, submitted []Line) {
	if len(submitted) == 0 {
		return
	}
	s.mu.Lock()
	ev, changed := s.mutateLocked(ctx, EventUpdated, Key{}, func(lines []Line) ([]Line, bool) {
		hit := false
		for _, sub := range submitted {
			i := indexOf(lines, sub.Key())
			if i < 0 {
				continue
			}
			hit = true
			lines[i].Quantity -= sub.Quantity
			if lines[i].Quantity <= 0 {
				lines = append(lines[:i], lines[i+1:]...)
			}
		}
		return lines, hit
	})
	s.mu.Unlock()
	if changed {
		if len(ev.Lines) == 0 {
			ev.Kind = EventCleared
		}
		s.publish(ev)
	}
}

// Clear empties the cart and erases the stored copy.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.lines = nil
	err := s.storage.Erase(ctx)
	if err != nil {
		s.logf("cart: erase failed: %v", err)
	}
	if s.onPersist != nil {
		s.onPersist(err)
	}
	ev := Event{Kind: EventCleared}
	s.mu.Unlock()
	s.publish(ev)
}

// mutateLocked applies fn to the current lines and writes the whole
// collection back. With an Updater the current lines are the stored ones,
// read and written in one atomic step; otherwise they are the lines held in
// memory. A failed write still applies fn in memory.
func (s *Store) mutateLocked(ctx context.Context, kind EventKind, k Key, fn func([]Line) ([]Line, bool)) (Event, bool) {
	var (
		next    []Line
		changed bool
		err     error
	)
	if u, ok := s.storage.(Updater); ok {
		err = u.Update(ctx, func(old []byte) ([]byte, error) {
			next, changed = fn(s.decode(old))
			if !changed {
				return old, nil
			}
			return json.Marshal(append([]Line{}, next...))
		})
		if err == nil {
			s.lines = next
		}
	}
	if _, ok := s.storage.(Updater); !ok || err != nil {
		next, changed = fn(s.snapshotLocked())
		if !changed {
			return Event{}, false
		}
		s.lines = next
		if err == nil {
			var data []byte
			if data, err = json.Marshal(s.snapshotLocked()); err == nil {
				err = s.storage.Save(ctx, data)
			}
		}
	}
	if !changed {
		return Event{}, false
	}
	if err != nil {
		s.logf("cart: persist failed: %v", err)
	}
	if s.onPersist != nil {
		s.onPersist(err)
	}
	return Event{Kind: kind, Key: k, Lines: s.snapshotLocked()}, true
}

func (s *Store) snapshotLocked() []Line {
	return append([]Line{}, s.lines...)
}

func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Line returns the line with key k.
func (s *Store) Line(k Key) (Line, bool) {
	k = KeyOf(k.ProductID, k.Color, k.Size)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.lines, k); i >= 0 {
		return s.lines[i], true
	}
	return Line{}, false
}

// Total is recomputed from the lines on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

// Subscribe registers fn for change events and returns its cancel func.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
