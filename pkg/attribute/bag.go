package attribute

import (
	"fmt"
	"sort"

	"mercator-hq/mixer/pkg/schema"
)

// Bag is the attribute context of one request.
type Bag interface {
	// Get returns the value of the named attribute and whether it is present.
	Get(name string) (schema.Value, bool)
}

// MapBag is a Bag backed by a map.
type MapBag map[string]schema.Value

// Get implements Bag.
func (b MapBag) Get(name string) (schema.Value, bool) {
	v, ok := b[name]
	return v, ok
}

// Names returns the attribute names present in the bag, sorted.
func (b MapBag) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBag converts plain Go values into a MapBag.
func NewBag(values map[string]interface{}) (MapBag, error) {
	bag := make(MapBag, len(values))
	for name, raw := range values {
		v, err := schema.FromInterface(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		bag[name] = v
	}
	return bag, nil
}

// MustBag is NewBag for literals known to be convertible.
func MustBag(values map[string]interface{}) MapBag {
	bag, err := NewBag(values)
	if err != nil {
		panic(err)
	}
	return bag
}

// EmptyBag is a Bag with no attributes.
var EmptyBag Bag = MapBag{}
