// Package atom implements the server's atom table: the mapping between
// integer identifiers and interned names shared by every client.
package atom

import (
	"sync"

	"github.com/BurntSushi/xgb/xproto"
)

// None is the reserved "no atom" identifier.
const None uint32 = xproto.AtomNone

// predefined lists the core protocol atoms in identifier order, starting at 1.
var predefined = []string{
	"PRIMARY", "SECONDARY", "ARC", "ATOM", "BITMAP", "CARDINAL", "COLORMAP",
	"CURSOR", "CUT_BUFFER0", "CUT_BUFFER1", "CUT_BUFFER2", "CUT_BUFFER3",
	"CUT_BUFFER4", "CUT_BUFFER5", "CUT_BUFFER6", "CUT_BUFFER7", "DRAWABLE",
	"FONT", "INTEGER", "PIXMAP", "POINT", "RECTANGLE", "RESOURCE_MANAGER",
	"RGB_COLOR_MAP", "RGB_BEST_MAP", "RGB_BLUE_MAP", "RGB_DEFAULT_MAP",
	"RGB_GRAY_MAP", "RGB_GREEN_MAP", "RGB_RED_MAP", "STRING", "VISUALID",
	"WINDOW", "WM_COMMAND", "WM_HINTS", "WM_CLIENT_MACHINE", "WM_ICON_NAME",
	"WM_ICON_SIZE", "WM_NAME", "WM_NORMAL_HINTS", "WM_SIZE_HINTS",
	"WM_ZOOM_HINTS", "MIN_SPACE", "NORM_SPACE", "MAX_SPACE", "END_SPACE",
	"SUPERSCRIPT_X", "SUPERSCRIPT_Y", "SUBSCRIPT_X", "SUBSCRIPT_Y",
	"UNDERLINE_POSITION", "UNDERLINE_THICKNESS", "STRIKEOUT_ASCENT",
	"STRIKEOUT_DESCENT", "ITALIC_ANGLE", "X_HEIGHT", "QUAD_WIDTH", "WEIGHT",
	"POINT_SIZE", "RESOLUTION", "COPYRIGHT", "NOTICE", "FONT_NAME",
	"FAMILY_NAME", "FULL_NAME", "CAP_HEIGHT", "WM_CLASS", "WM_TRANSIENT_FOR",
}

// Resolver is the lookup contract used by request handlers.
type Resolver interface {
	Resolve(id uint32) (string, bool)
}

// Table is a concurrency-safe atom table. Atoms are never freed.
type Table struct {
	mu     sync.RWMutex
	names  []string // names[id-1]
	byName map[string]uint32
}

// NewTable returns a table holding the predefined atoms.
func NewTable() *Table {
	t := &Table{
		names:  make([]string, 0, len(predefined)+64),
		byName: make(map[string]uint32, len(predefined)+64),
	}
	for _, name := range predefined {
		t.names = append(t.names, name)
		t.byName[name] = uint32(len(t.names))
	}
	return t
}

// Resolve returns the name interned under id.
func (t *Table) Resolve(id uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id == None || int(id) > len(t.names) {
		return "", false
	}
	return t.names[id-1], true
}

// Lookup returns the identifier of name without interning it.
func (t *Table) Lookup(name string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.byName[name]
	return id, ok
}

// Intern returns the identifier of name, allocating a new one unless
// onlyIfExists is set. The second result is false when name was not
// present and onlyIfExists prevented its creation.
func (t *Table) Intern(name string, onlyIfExists bool) (uint32, bool) {
	if id, ok := t.Lookup(name); ok {
		return id, true
	}
	if onlyIfExists {
		return None, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another client may have interned it between the two locks
	if id, ok := t.byName[name]; ok {
		return id, true
	}
	t.names = append(t.names, name)
	id := uint32(len(t.names))
	t.byName[name] = id
	return id, true
}

// Len returns the number of interned atoms.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
