// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtree

// treeNode is a node of an AVL tree ordered by the cached hash of its entry.
// Each child is owned by exactly one parent. Rotations reassign child
// pointers and return the new subtree root rather than patching parents in
// place.
type treeNode[K comparable, V any] struct {
	entry[K, V]
	left   *treeNode[K, V]
	right  *treeNode[K, V]
	height int
}

// tree is the search bucket representation used once a bucket's chain grows
// past the promotion threshold.
//
// The in-order sequence of hashes is non-decreasing: for every node,
// hash(left subtree) <= node.hash <= hash(right subtree). A new entry whose
// hash equals that of a visited node descends to the right. Rotations
// preserve the in-order sequence but not which side of a node an equal hash
// lives on, so a search that meets an equal hash with a different key has to
// consider both subtrees. With a sound hash function equal hashes within a
// bucket are rare and this costs nothing in the common case.
type tree[K comparable, V any] struct {
	root *treeNode[K, V]
	len  int
}

func (t *tree[K, V]) empty() bool {
	return t.root == nil
}

func (t *tree[K, V]) get(h uint64, key K) *entry[K, V] {
	if n := t.root.find(h, key); n != nil {
		return &n.entry
	}
	return nil
}

// put overwrites the value for key if it is already present, returning the
// previous value and replaced=true. Otherwise a new leaf is added and the
// path back to the root is rebalanced.
func (t *tree[K, V]) put(h uint64, key K, value V) (old V, replaced bool) {
	if n := t.root.find(h, key); n != nil {
		old, n.value = n.value, value
		return old, true
	}
	t.uncheckedPut(entry[K, V]{hash: h, key: key, value: value})
	return old, false
}

// uncheckedPut inserts an entry known not to be in the tree.
func (t *tree[K, V]) uncheckedPut(e entry[K, V]) {
	t.root = t.root.insert(e)
	t.len++
}

func (t *tree[K, V]) remove(h uint64, key K) (e entry[K, V], ok bool) {
	t.root, e, ok = t.root.remove(h, key)
	if ok {
		t.len--
	}
	return e, ok
}

// all visits the entries in hash order.
func (t *tree[K, V]) all(yield func(e *entry[K, V]) bool) bool {
	return t.root.all(yield)
}

// drain empties the tree, handing each entry to yield exactly once. If yield
// returns false the remaining entries are discarded.
func (t *tree[K, V]) drain(yield func(e entry[K, V]) bool) bool {
	root := t.root
	t.root, t.len = nil, 0
	return root.drain(yield)
}

func (n *treeNode[K, V]) find(h uint64, key K) *treeNode[K, V] {
	for n != nil {
		switch {
		case h < n.hash:
			n = n.left
		case h > n.hash:
			n = n.right
		case n.key == key:
			return n
		default:
			if f := n.left.find(h, key); f != nil {
				return f
			}
			n = n.right
		}
	}
	return nil
}

func (n *treeNode[K, V]) insert(e entry[K, V]) *treeNode[K, V] {
	if n == nil {
		return &treeNode[K, V]{entry: e, height: 1}
	}
	if e.hash < n.hash {
		n.left = n.left.insert(e)
	} else {
		n.right = n.right.insert(e)
	}
	return n.rebalance()
}

// remove removes the entry for key from the subtree rooted at n, returning
// the new subtree root. A node with two children takes over the entry of its
// in-order successor, which is then removed from the right subtree.
func (n *treeNode[K, V]) remove(
	h uint64, key K,
) (root *treeNode[K, V], e entry[K, V], ok bool) {
	if n == nil {
		return nil, e, false
	}
	switch {
	case h < n.hash:
		n.left, e, ok = n.left.remove(h, key)
	case h > n.hash:
		n.right, e, ok = n.right.remove(h, key)
	case n.key == key:
		e, ok = n.entry, true
		if n.left == nil || n.right == nil {
			child := n.left
			if child == nil {
				child = n.right
			}
			n.left, n.right = nil, nil
			return child, e, true
		}
		n.right, n.entry = n.right.removeMin()
	default:
		n.left, e, ok = n.left.remove(h, key)
		if !ok {
			n.right, e, ok = n.right.remove(h, key)
		}
	}
	if !ok {
		return n, e, false
	}
	return n.rebalance(), e, true
}

// removeMin detaches the leftmost node of the subtree rooted at n and
// returns the new subtree root along with the detached entry.
func (n *treeNode[K, V]) removeMin() (*treeNode[K, V], entry[K, V]) {
	if n.left == nil {
		right := n.right
		n.right = nil
		return right, n.entry
	}
	var e entry[K, V]
	n.left, e = n.left.removeMin()
	return n.rebalance(), e
}

func (n *treeNode[K, V]) all(yield func(e *entry[K, V]) bool) bool {
	return n == nil || (n.left.all(yield) && yield(&n.entry) && n.right.all(yield))
}

func (n *treeNode[K, V]) drain(yield func(e entry[K, V]) bool) bool {
	if n == nil {
		return true
	}
	left, right := n.left, n.right
	n.left, n.right = nil, nil
	return left.drain(yield) && right.drain(yield) && yield(n.entry)
}

func (n *treeNode[K, V]) getHeight() int {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *treeNode[K, V]) updateHeight() {
	n.height = 1 + max(n.left.getHeight(), n.right.getHeight())
}

// balance returns height(left) - height(right).
func (n *treeNode[K, V]) balance() int {
	return n.left.getHeight() - n.right.getHeight()
}

// rotateRight lifts n.left into n's position:
//
//	    n            l
//	   / \          / \
//	  l   c   =>   a   n
//	 / \              / \
//	a   b            b   c
func (n *treeNode[K, V]) rotateRight() *treeNode[K, V] {
	l := n.left
	n.left, l.right = l.right, n
	n.updateHeight()
	l.updateHeight()
	return l
}

// rotateLeft is the mirror image of rotateRight.
func (n *treeNode[K, V]) rotateLeft() *treeNode[K, V] {
	r := n.right
	n.right, r.left = r.left, n
	n.updateHeight()
	r.updateHeight()
	return r
}

// rebalance recomputes n's height and performs the single or double
// rotation needed to restore |balance| <= 1, assuming both subtrees are
// already balanced and their heights differ by at most 2.
func (n *treeNode[K, V]) rebalance() *treeNode[K, V] {
	n.updateHeight()
	switch b := n.balance(); {
	case b > 1:
		if n.left.balance() < 0 {
			n.left = n.left.rotateLeft()
		}
		return n.rotateRight()
	case b < -1:
		if n.right.balance() > 0 {
			n.right = n.right.rotateRight()
		}
		return n.rotateLeft()
	}
	return n
}
