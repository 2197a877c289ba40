// Package scene is an in-memory scene graph that provides the host
// primitives a spawner needs: instantiate a prototype under a parent,
// toggle active state, reparent, and destroy.
//
// Instantiated nodes are named "<prototype>(Clone)" and start with the
// prototype's active state, the way game engines clone templates.
package scene

import (
	"fmt"
	"sync"

	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

// Node is a scene graph node handle. Nodes are compared by pointer identity.
type Node struct {
	name      string
	active    bool
	destroyed bool
	parent    *Node
	children  []*Node
	prototype *Node
}

// String returns the node name.
func (n *Node) String() string {
	return n.name
}

// Scene owns every node it creates. Safe for concurrent use.
type Scene struct {
	mu    sync.RWMutex
	nodes map[*Node]struct{}
	clone map[*Node]int
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		nodes: make(map[*Node]struct{}),
		clone: make(map[*Node]int),
	}
}

// NewNode creates an active node under parent. A nil parent makes it a
// root node.
func (s *Scene) NewNode(name string, parent *Node) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &Node{name: name, active: true}
	s.nodes[n] = struct{}{}
	s.attach(n, parent)
	return n
}

// NewPrototype creates an inactive root node meant to be cloned.
func (s *Scene) NewPrototype(name string) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &Node{name: name}
	s.nodes[n] = struct{}{}
	return n
}

// Instantiate clones prototype under parent.
func (s *Scene) Instantiate(prototype, parent *Node) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAlive(prototype, "instantiate"); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.checkAlive(parent, "instantiate"); err != nil {
			return nil, err
		}
	}

	s.clone[prototype]++
	n := &Node{
		name:      fmt.Sprintf("%s(Clone)", prototype.name),
		active:    prototype.active,
		prototype: prototype,
	}
	s.nodes[n] = struct{}{}
	s.attach(n, parent)
	return n, nil
}

// Destroy removes node and all of its descendants from the scene.
// Destroying a node that is already gone, for example because an ancestor
// was destroyed first, is a no-op.
func (s *Scene) Destroy(node *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node == nil {
		return poolerrors.New(poolerrors.ErrorTypeValidation, "nil node").
			WithDetail("operation", "destroy")
	}
	if node.destroyed {
		return nil
	}
	s.detach(node)
	s.destroy(node)
	return nil
}

// SetActive sets the node's own active flag.
func (s *Scene) SetActive(node *Node, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAlive(node, "set active"); err != nil {
		return err
	}
	node.active = active
	return nil
}

// SetParent moves node under parent. A nil parent makes it a root node.
func (s *Scene) SetParent(node, parent *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAlive(node, "set parent"); err != nil {
		return err
	}
	if parent != nil {
		if err := s.checkAlive(parent, "set parent"); err != nil {
			return err
		}
		for p := parent; p != nil; p = p.parent {
			if p == node {
				return poolerrors.New(poolerrors.ErrorTypeValidation, "cannot parent a node under itself").
					WithDetail("node", node.name).
					WithDetail("parent", parent.name)
			}
		}
	}

	s.detach(node)
	s.attach(node, parent)
	return nil
}

// Active reports the node's own active flag.
func (s *Scene) Active(node *Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return node.active
}

// ActiveInHierarchy reports whether the node and all of its ancestors are
// active.
func (s *Scene) ActiveInHierarchy(node *Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for n := node; n != nil; n = n.parent {
		if !n.active {
			return false
		}
	}
	return true
}

// Parent returns the node's parent, nil for root nodes.
func (s *Scene) Parent(node *Node) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return node.parent
}

// Children returns a copy of the node's children in attach order.
func (s *Scene) Children(node *Node) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, len(node.children))
	copy(out, node.children)
	return out
}

// Prototype returns the node this one was cloned from, if any.
func (s *Scene) Prototype(node *Node) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return node.prototype
}

// Destroyed reports whether the node has been destroyed.
func (s *Scene) Destroyed(node *Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return node.destroyed
}

// Alive returns the number of nodes that have not been destroyed.
func (s *Scene) Alive() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Clones returns how many times prototype has been instantiated.
func (s *Scene) Clones(prototype *Node) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clone[prototype]
}

func (s *Scene) checkAlive(node *Node, op string) error {
	if node == nil {
		return poolerrors.New(poolerrors.ErrorTypeValidation, "nil node").
			WithDetail("operation", op)
	}
	if node.destroyed {
		return poolerrors.New(poolerrors.ErrorTypeValidation, "node already destroyed").
			WithDetail("operation", op).
			WithDetail("node", node.name)
	}
	return nil
}

func (s *Scene) attach(node, parent *Node) {
	node.parent = parent
	if parent != nil {
		parent.children = append(parent.children, node)
	}
}

func (s *Scene) detach(node *Node) {
	parent := node.parent
	if parent == nil {
		return
	}
	for i, c := range parent.children {
		if c == node {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	node.parent = nil
}

func (s *Scene) destroy(node *Node) {
	for _, c := range node.children {
		c.parent = nil
		s.destroy(c)
	}
	node.children = nil
	node.destroyed = true
	delete(s.nodes, node)
}
