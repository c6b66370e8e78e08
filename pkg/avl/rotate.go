package avl

func height[K any, V any](n *node[K, V]) int {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *node[K, V]) fix() {
	n.height = 1 + max(height(n.left), height(n.right))
}

func (n *node[K, V]) balance() int {
	return height(n.left) - height(n.right)
}

// rotateRight lifts y.left into y's position.
func rotateRight[K any, V any](y *node[K, V]) *node[K, V] {
	x := y.left
	y.left = x.right
	x.right = y
	y.fix()
	x.fix()
	return x
}

// rotateLeft lifts x.right into x's position.
func rotateLeft[K any, V any](x *node[K, V]) *node[K, V] {
	y := x.right
	x.right = y.left
	y.left = x
	x.fix()
	y.fix()
	return y
}

// rebalance restores the balance of n after a removal below it, choosing
// single or double rotations from the balance of the taller child.
func rebalance[K any, V any](n *node[K, V]) *node[K, V] {
	n.fix()
	balance := n.balance()
	switch {
	case balance > 1 && n.left.balance() >= 0:
		return rotateRight(n)
	case balance > 1:
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case balance < -1 && n.right.balance() <= 0:
		return rotateLeft(n)
	case balance < -1:
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}
