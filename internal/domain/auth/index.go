package auth

import (
	"fmt"
	"sync"

	"github.com/efficiencynow/efficiencynow/pkg/avl"
)

// UserIndex mirrors the durable user table in an AVL tree keyed by email.
// Writers are exclusive; readers proceed concurrently with each other.
type UserIndex struct {
	mu   sync.RWMutex
	tree *avl.Tree[string, User]
}

// NewUserIndex returns an empty index.
func NewUserIndex() *UserIndex {
	return &UserIndex{tree: avl.New[string, User]()}
}

// Put mirrors user, reporting whether an entry for the same email was
// overwritten.
func (i *UserIndex) Put(user User) (replaced bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tree.Insert(user.Email, user)
}

// Get returns the mirrored user for email.
func (i *UserIndex) Get(email string) (User, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Search(email)
}

// Remove drops email from the index.
func (i *UserIndex) Remove(email string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tree.Delete(email)
}

// RemoveWith runs commit while holding the write lock and drops email only
// when commit succeeds, so no reader observes the user after the durable
// delete and before the index delete.
func (i *UserIndex) RemoveWith(email string, commit func() error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := commit(); err != nil {
		return err
	}
	i.tree.Delete(email)
	return nil
}

// Len returns the number of mirrored users.
func (i *UserIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Len()
}

// Height returns the current tree height.
func (i *UserIndex) Height() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Height()
}

// Validate checks the tree invariants and that every entry is filed under
// its own email.
func (i *UserIndex) Validate() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := i.tree.Validate(); err != nil {
		return err
	}
	for email, user := range i.tree.All() {
		if user.Email != email {
			return fmt.Errorf("%w: user %d indexed under %q", avl.ErrInvariantViolation, user.ID, email)
		}
	}
	return nil
}
