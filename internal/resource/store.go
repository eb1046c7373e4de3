package resource

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
)

var (
	ErrNoSuchWindow = errors.New("no such window")
	ErrWindowExists = errors.New("window id already in use")
	ErrRootWindow   = errors.New("operation not permitted on the root window")
)

// Store is the single owner of every window. All access goes through its
// mutex, which is the only lock in the resource model, so clients touching
// overlapping windows serialize without a lock ordering problem.
type Store struct {
	mu      sync.RWMutex
	windows map[uint32]*Window
	rootID  uint32
	hasRoot bool
}

// NewStore creates an empty store. CreateRoot must be called before use.
func NewStore() *Store {
	return &Store{
		windows: make(map[uint32]*Window),
	}
}

// CreateRoot creates the root window. Calling it twice is a programming
// error and panics.
func (s *Store) CreateRoot(id, visual uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasRoot {
		panic(fmt.Sprintf("resource: root window already created (%#x)", s.rootID))
	}
	s.windows[id] = NewRootWindow(id, visual)
	s.rootID = id
	s.hasRoot = true
}

// RootID returns the root window's identifier.
func (s *Store) RootID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootID
}

// Create adds w to the store. Its parent must exist.
func (s *Store) Create(w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[w.id]; ok {
		return fmt.Errorf("%w: %#x", ErrWindowExists, w.id)
	}
	if _, ok := s.windows[w.parent]; !ok {
		return fmt.Errorf("%w: parent %#x", ErrNoSuchWindow, w.parent)
	}
	s.windows[w.id] = w
	return nil
}

// Destroy removes the window and all of its descendants. It returns the
// removed identifiers.
func (s *Store) Destroy(id uint32) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrNoSuchWindow, id)
	}
	if w.root {
		return nil, ErrRootWindow
	}

	removed := []uint32{id}
	for i := 0; i < len(removed); i++ {
		for childID, child := range s.windows {
			if child.parent == removed[i] {
				removed = append(removed, childID)
			}
		}
	}
	for _, rid := range removed {
		delete(s.windows, rid)
	}
	return removed, nil
}

// View runs fn with read access to the window.
func (s *Store) View(id uint32, fn func(w *Window) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[id]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrNoSuchWindow, id)
	}
	return fn(w)
}

// Update runs fn with write access to the window. fn must not retain w.
func (s *Store) Update(id uint32, fn func(w *Window) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrNoSuchWindow, id)
	}
	return fn(w)
}

// SetMapped maps or unmaps a window and recomputes the map state of its
// mapped descendants. The root window is always viewable and is left alone.
func (s *Store) SetMapped(id uint32, mapped bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrNoSuchWindow, id)
	}
	if w.root {
		return nil
	}

	if !mapped {
		w.Attributes.MapState = xproto.MapStateUnmapped
	} else {
		w.Attributes.MapState = xproto.MapStateUnviewable
		if p, ok := s.windows[w.parent]; ok && p.Attributes.MapState == xproto.MapStateViewable {
			w.Attributes.MapState = xproto.MapStateViewable
		}
	}
	s.propagateMapState(w)
	return nil
}

// propagateMapState walks the mapped descendants of w. A mapped window is
// viewable iff its parent is viewable.
func (s *Store) propagateMapState(w *Window) {
	parents := []*Window{w}
	for len(parents) > 0 {
		p := parents[0]
		parents = parents[1:]
		for _, child := range s.windows {
			if child.parent != p.id || child.root || child.Attributes.MapState == xproto.MapStateUnmapped {
				continue
			}
			if p.Attributes.MapState == xproto.MapStateViewable {
				child.Attributes.MapState = xproto.MapStateViewable
			} else {
				child.Attributes.MapState = xproto.MapStateUnviewable
			}
			parents = append(parents, child)
		}
	}
}

// Exists reports whether a window with the identifier exists.
func (s *Store) Exists(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.windows[id]
	return ok
}

// ResizeRoot sets the root window's size, keeping it at the origin.
func (s *Store) ResizeRoot(width, height uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if root, ok := s.windows[s.rootID]; ok {
		root.SetRectangle(Rectangle{Width: width, Height: height})
	}
}

// Info is a point-in-time description of a window.
type Info struct {
	ID         uint32    `json:"id" yaml:"id"`
	Parent     uint32    `json:"parent" yaml:"parent"`
	Root       bool      `json:"root" yaml:"root"`
	Depth      uint8     `json:"depth" yaml:"depth"`
	Rect       Rectangle `json:"rect" yaml:"rect"`
	MapState   uint8     `json:"map_state" yaml:"map_state"`
	Properties []string  `json:"properties" yaml:"properties"`
}

// Windows returns a snapshot of every window ordered by identifier.
func (s *Store) Windows() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.windows))
	for _, w := range s.windows {
		infos = append(infos, Info{
			ID:         w.id,
			Parent:     w.parent,
			Root:       w.root,
			Depth:      w.depth,
			Rect:       w.rect,
			MapState:   w.Attributes.MapState,
			Properties: w.PropertyNames(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
