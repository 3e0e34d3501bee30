package store

import "github.com/brunoga/deep"

// collection keeps entities keyed by id while remembering insertion order,
// which subscribers observe.
type collection[T any] struct {
	items map[string]*T
	order []string
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[string]*T)}
}

func (c *collection[T]) get(id string) (*T, bool) {
	v, ok := c.items[id]
	return v, ok
}

func (c *collection[T]) has(id string) bool {
	_, ok := c.items[id]
	return ok
}

func (c *collection[T]) add(id string, v *T) {
	c.items[id] = v
	c.order = append(c.order, id)
}

// remove reports whether id was present.
func (c *collection[T]) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[T]) len() int {
	return len(c.order)
}

// list returns deep copies in insertion order. The result is never nil.
func (c *collection[T]) list() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, deep.MustCopy(*c.items[id]))
	}
	return out
}
