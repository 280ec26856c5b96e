package envelope

import (
	"fmt"

	"github.com/beevik/etree"
)

// Index is a queryable collection of stored envelopes. Documents are
// gathered under one synthetic root so that path expressions such as
// "./xml[@item_type='device_instance']" select across the collection.
type Index struct {
	root  *etree.Element
	items map[*etree.Element]*Item
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		root:  etree.NewElement("collection"),
		items: make(map[*etree.Element]*Item),
	}
}

// Add parses a stored envelope and adds it to the collection under key.
func (x *Index) Add(key string, data []byte) (*Item, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrMalformed, key, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: document %s is empty", ErrMalformed, key)
	}
	el := doc.Root().Copy()
	it, err := FromElement(el)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", key, err)
	}
	x.root.AddChild(el)
	x.items[el] = it
	return it, nil
}

// Len returns the number of documents in the collection.
func (x *Index) Len() int {
	return len(x.items)
}

// Select evaluates a path expression relative to the collection root and
// returns the items whose documents contain a matching element. Each item
// appears once, in match order.
func (x *Index) Select(path string) ([]*Item, error) {
	p, err := etree.CompilePath(path)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q: %w", path, err)
	}
	var out []*Item
	seen := make(map[*Item]bool)
	for _, el := range x.root.FindElementsPath(p) {
		it := x.documentOf(el)
		if it != nil && !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out, nil
}

// documentOf walks up from el to the document root it belongs to.
func (x *Index) documentOf(el *etree.Element) *Item {
	for ; el != nil; el = el.Parent() {
		if it, ok := x.items[el]; ok {
			return it
		}
	}
	return nil
}

// ByType is the path selecting all documents of one item type.
func ByType(t string) string {
	return fmt.Sprintf("./xml[@item_type='%s']", t)
}

// ByChildUUID selects parents of type t that list uuid under a child
// element reached by childPath, e.g. "device_server/device_instance".
func ByChildUUID(t, childPath, uuid string) string {
	return fmt.Sprintf("./xml[@item_type='%s']/%s[@uuid='%s']", t, childPath, uuid)
}

// ProjectsReferencing selects project documents listing uuid in the given
// collection ("scenes", "macros", "servers" or "subprojects").
func ProjectsReferencing(collection, uuid string) string {
	return fmt.Sprintf("./xml[@item_type='project']/root/project/%s/KRB_Item[uuid='%s']", collection, uuid)
}
