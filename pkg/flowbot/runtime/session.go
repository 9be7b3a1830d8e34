package runtime

import (
	"sync"

	"github.com/flowbot-dev/flowbot/pkg/flowbot/template"
)

// Session is the per-chat execution state: variable bindings, the cart,
// parsed catalogs and the current suspension. Sessions are fully isolated
// from one another; cross-session data flows only through the record store.
type Session struct {
	ID string

	// mu serializes all turns of this session, so at most one delivery
	// consumes a suspension.
	mu sync.Mutex

	vars     map[string]any
	cart     *cart
	catalogs map[string][]product
	waiting  suspension
}

func newSession(id string) *Session {
	return &Session{
		ID:       id,
		vars:     make(map[string]any),
		cart:     newCart(),
		catalogs: make(map[string][]product),
	}
}

// reset clears all state for a fresh flow run.
func (s *Session) reset() {
	s.vars = make(map[string]any)
	s.cart = newCart()
	s.catalogs = make(map[string][]product)
	s.waiting = nil
}

// varString returns the display form of a variable, "" when unbound.
func (s *Session) varString(name string) string {
	v, ok := s.vars[name]
	if !ok {
		return ""
	}
	return template.FormatValue(v)
}

// Vars returns a copy of the session's bindings. Test helper.
func (s *Session) Vars() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// Waiting reports whether the session is suspended.
func (s *Session) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting != nil
}

// suspension is the typed wait state of a session. Exactly one delivery
// consumes it: the matching handler clears waiting before resuming.
type suspension interface {
	suspendedNode() string
}

// waitInput awaits a free-text reply bound to a variable.
type waitInput struct {
	nodeID   string
	variable string
	next     string
}

func (w *waitInput) suspendedNode() string { return w.nodeID }

// waitForm awaits the reply for one intake form field.
type waitForm struct {
	nodeID  string
	fields  []formField
	index   int
	success string
	next    string
}

func (w *waitForm) suspendedNode() string { return w.nodeID }

// formField is one prompt of an intake form.
type formField struct {
	label    string
	variable string
}

// waitCallback awaits a button tap on the given node.
type waitCallback struct {
	nodeID string
}

func (w *waitCallback) suspendedNode() string { return w.nodeID }

// cart holds product quantities in insertion order.
type cart struct {
	order []string
	items map[string]int
}

func newCart() *cart {
	return &cart{items: make(map[string]int)}
}

func (c *cart) add(productID string, qty int) {
	if _, ok := c.items[productID]; !ok {
		c.order = append(c.order, productID)
	}
	c.items[productID] += qty
}

func (c *cart) remove(productID string) {
	if _, ok := c.items[productID]; !ok {
		return
	}
	delete(c.items, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *cart) clear() {
	c.order = nil
	c.items = make(map[string]int)
}

func (c *cart) count() int {
	total := 0
	for _, qty := range c.items {
		total += qty
	}
	return total
}

func (c *cart) empty() bool {
	return len(c.items) == 0
}
