// Package avl implements a generic height-balanced binary search tree.
//
// A Tree is not safe for concurrent use; callers that share one across
// goroutines must guard it themselves.
package avl

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
)

// ErrInvariantViolation reports a tree whose ordering, heights or balance
// factors are inconsistent.
var ErrInvariantViolation = errors.New("avl invariant violation")

type node[K any, V any] struct {
	key    K
	value  V
	height int
	left   *node[K, V]
	right  *node[K, V]
}

// Tree stores values ordered by key.
type Tree[K any, V any] struct {
	root    *node[K, V]
	size    int
	compare func(a, b K) int
}

// New returns an empty tree over a naturally ordered key type.
func New[K cmp.Ordered, V any]() *Tree[K, V] {
	return NewFunc[K, V](cmp.Compare[K])
}

// NewFunc returns an empty tree ordered by compare, which must return a
// negative number when a < b, zero when a == b and a positive number otherwise.
func NewFunc[K any, V any](compare func(a, b K) int) *Tree[K, V] {
	if compare == nil {
		panic("avl: nil compare func")
	}
	return &Tree[K, V]{compare: compare}
}

// Len returns the number of stored keys.
func (t *Tree[K, V]) Len() int {
	return t.size
}

// Height returns the height of the tree; an empty tree has height 0.
func (t *Tree[K, V]) Height() int {
	return height(t.root)
}

// Insert stores value under key. When key is already present its value is
// overwritten in place and replaced is true; the shape of the tree does not
// change in that case.
func (t *Tree[K, V]) Insert(key K, value V) (replaced bool) {
	t.root = t.insert(t.root, key, value, &replaced)
	if !replaced {
		t.size++
	}
	return replaced
}

func (t *Tree[K, V]) insert(n *node[K, V], key K, value V, replaced *bool) *node[K, V] {
	if n == nil {
		return &node[K, V]{key: key, value: value, height: 1}
	}
	switch c := t.compare(key, n.key); {
	case c < 0:
		n.left = t.insert(n.left, key, value, replaced)
	case c > 0:
		n.right = t.insert(n.right, key, value, replaced)
	default:
		n.value = value
		*replaced = true
		return n
	}
	if *replaced {
		return n
	}

	n.fix()
	balance := n.balance()
	switch {
	case balance > 1 && t.compare(key, n.left.key) < 0:
		return rotateRight(n)
	case balance < -1 && t.compare(key, n.right.key) > 0:
		return rotateLeft(n)
	case balance > 1 && t.compare(key, n.left.key) > 0:
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case balance < -1 && t.compare(key, n.right.key) < 0:
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

// Search returns the value stored under key.
func (t *Tree[K, V]) Search(key K) (V, bool) {
	n := t.root
	for n != nil {
		switch c := t.compare(key, n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Delete removes key and reports whether it was present. Deleting an absent
// key leaves the tree untouched.
func (t *Tree[K, V]) Delete(key K) bool {
	var deleted bool
	t.root = t.delete(t.root, key, &deleted)
	if deleted {
		t.size--
	}
	return deleted
}

func (t *Tree[K, V]) delete(n *node[K, V], key K, deleted *bool) *node[K, V] {
	if n == nil {
		return nil
	}
	switch c := t.compare(key, n.key); {
	case c < 0:
		n.left = t.delete(n.left, key, deleted)
	case c > 0:
		n.right = t.delete(n.right, key, deleted)
	default:
		*deleted = true
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		n.key, n.value = succ.key, succ.value
		var ignored bool
		n.right = t.delete(n.right, succ.key, &ignored)
	}
	if !*deleted {
		return n
	}
	return rebalance(n)
}

// All yields every entry in ascending key order.
func (t *Tree[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		walk(t.root, yield)
	}
}

// Validate checks ordering, stored heights, balance factors and size.
func (t *Tree[K, V]) Validate() error {
	count := 0
	if _, err := t.validate(t.root, nil, nil, &count); err != nil {
		return err
	}
	if count != t.size {
		return fmt.Errorf("%w: size %d but %d nodes reachable", ErrInvariantViolation, t.size, count)
	}
	return nil
}

func (t *Tree[K, V]) validate(n *node[K, V], lo, hi *K, count *int) (int, error) {
	if n == nil {
		return 0, nil
	}
	*count++
	if lo != nil && t.compare(n.key, *lo) <= 0 {
		return 0, fmt.Errorf("%w: key %v out of order", ErrInvariantViolation, n.key)
	}
	if hi != nil && t.compare(n.key, *hi) >= 0 {
		return 0, fmt.Errorf("%w: key %v out of order", ErrInvariantViolation, n.key)
	}
	lh, err := t.validate(n.left, lo, &n.key, count)
	if err != nil {
		return 0, err
	}
	rh, err := t.validate(n.right, &n.key, hi, count)
	if err != nil {
		return 0, err
	}
	h := 1 + max(lh, rh)
	if n.height != h {
		return 0, fmt.Errorf("%w: key %v stores height %d, actual %d", ErrInvariantViolation, n.key, n.height, h)
	}
	if b := lh - rh; b > 1 || b < -1 {
		return 0, fmt.Errorf("%w: key %v has balance %d", ErrInvariantViolation, n.key, b)
	}
	return h, nil
}

func walk[K any, V any](n *node[K, V], yield func(K, V) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, yield) && yield(n.key, n.value) && walk(n.right, yield)
}
