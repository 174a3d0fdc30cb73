// Package blueprint describes entity hierarchies as YAML documents and spawns
// them through hierarchy cursors.
//
//	name: panel
//	tags: [ui]
//	children:
//	  - name: title
//	  - name: bullet
//	    repeat: 3
//
// Every node becomes one entity carrying a Label and, when tags are present, a
// Tags component. A node with repeat set is spawned as a batch of identical
// leaf children.
package blueprint

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/plus3/flatspawn/ecs"
	"github.com/plus3/flatspawn/ecs/hierarchy"
)

const (
	// MaxDocumentSize is the largest document Parse accepts.
	MaxDocumentSize = 1 << 20

	// MaxDepth is the deepest nesting Validate accepts. The top node is depth 0.
	MaxDepth = 64
)

// ErrInvalidNode is wrapped by every validation error.
var ErrInvalidNode = errors.New("invalid blueprint node")

// Label names the entity a node was spawned from.
type Label struct {
	Name string
}

// Tags holds the free-form tags of a node.
type Tags struct {
	Values []string
}

// Register adds the blueprint components to registry.
func Register(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Label](registry)
	ecs.RegisterComponent[Tags](registry)
}

// Node is one entity in a blueprint.
type Node struct {
	Name     string   `yaml:"name"`
	Tags     []string `yaml:"tags,omitempty"`
	Repeat   int      `yaml:"repeat,omitempty"`
	Children []*Node  `yaml:"children,omitempty"`
}

// Parse decodes and validates a blueprint document. Unknown fields are rejected.
func Parse(data []byte) (*Node, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("blueprint document is %d bytes, limit is %d", len(data), MaxDocumentSize)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var node Node
	if err := decoder.Decode(&node); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if err := node.Validate(); err != nil {
		return nil, err
	}
	return &node, nil
}

// Load reads and parses the blueprint at path.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	node, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return node, nil
}

// Validate checks the whole tree and reports every problem it finds.
func (n *Node) Validate() error {
	var err error
	if n.Repeat != 0 {
		err = multierr.Append(err, n.invalid(n.Name, "the top node cannot repeat"))
	}
	return multierr.Append(err, n.validate(n.Name, 0))
}

func (n *Node) validate(path string, depth int) error {
	var err error
	if n.Name == "" {
		err = multierr.Append(err, n.invalid(path, "name is empty"))
	}
	if n.Repeat < 0 {
		err = multierr.Append(err, n.invalid(path, fmt.Sprintf("repeat is negative (%d)", n.Repeat)))
	}
	if n.Repeat > 0 && len(n.Children) > 0 {
		err = multierr.Append(err, n.invalid(path, "a repeated node cannot have children"))
	}
	if depth > MaxDepth {
		return multierr.Append(err, n.invalid(path, fmt.Sprintf("nested deeper than %d", MaxDepth)))
	}

	for i, child := range n.Children {
		if child == nil {
			err = multierr.Append(err, n.invalid(fmt.Sprintf("%s[%d]", path, i), "child is empty"))
			continue
		}
		err = multierr.Append(err, child.validate(fmt.Sprintf("%s/%s", path, child.Name), depth+1))
	}
	return err
}

func (n *Node) invalid(path, reason string) error {
	if path == "" {
		path = "<unnamed>"
	}
	return fmt.Errorf("%w %q: %s", ErrInvalidNode, path, reason)
}

// Count returns the number of entities the node spawns, itself included.
func (n *Node) Count() int {
	total := 1
	for _, child := range n.Children {
		if child.Repeat > 0 {
			total += child.Repeat
			continue
		}
		total += child.Count()
	}
	return total
}

// bundle returns the node's components. Tags get their own copy of the
// values so entities never share the backing array.
func (n *Node) bundle() ecs.Bundle {
	bundle := ecs.Bundle{Label{Name: n.Name}}
	if len(n.Tags) > 0 {
		bundle = append(bundle, Tags{Values: slices.Clone(n.Tags)})
	}
	return bundle
}

// repeated yields Repeat fresh bundles for the node.
func (n *Node) repeated() iter.Seq[ecs.Bundle] {
	return func(yield func(ecs.Bundle) bool) {
		for range n.Repeat {
			if !yield(n.bundle()) {
				return
			}
		}
	}
}

// Spawn queues the tree described by n as a new hierarchy and returns the id
// of its root. The node should have passed Validate.
func Spawn(b *hierarchy.Builder, n *Node) ecs.EntityId {
	root := b.Root(n.bundle()...)
	spawnChildren(root, n.Children)
	return root.Id()
}

// SpawnUnder queues the tree described by n below an existing entity and
// returns the id of the node's entity. A repeated node is spawned as a batch
// and the parent's id is returned.
func SpawnUnder(b *hierarchy.Builder, parent ecs.EntityId, n *Node) ecs.EntityId {
	id := parent
	b.Entity(parent).WithDescendants(func(scope *hierarchy.Root) {
		if child := spawnChildren(scope, []*Node{n}); child != nil {
			id = child.Id()
		}
	})
	return id
}

// spawnChildren walks children in order, reusing one child cursor for the
// run of siblings. Batches are queued in place so the final child order
// matches the document. It returns the cursor, positioned on the last
// non-repeated child, or nil when every child was repeated.
func spawnChildren(parent *hierarchy.Root, children []*Node) *hierarchy.Child {
	var cursor *hierarchy.Child
	for _, node := range children {
		if node.Repeat > 0 {
			parent.WithChildBatch(node.repeated())
			continue
		}

		if cursor == nil {
			cursor = parent.WithChild(node.bundle()...)
		} else {
			cursor.WithSibling(node.bundle()...)
		}

		if len(node.Children) > 0 {
			grandchildren := node.Children
			cursor.WithDescendants(func(scope *hierarchy.Root) {
				spawnChildren(scope, grandchildren)
			})
		}
	}
	return cursor
}
