package mediasource

import "github.com/nmxmxh/master-ovasabi/internal/mediasource/sd"

// Item is the reference-counted handle shared with the service-discovery
// boundary; see package sd for its definition.
type Item = sd.Item

// NewItem creates an Item with refcount 1. The caller owns that reference.
func NewItem(name, url string) *Item { return sd.NewItem(name, url) }

// NewItemWithMeta is NewItem plus arbitrary metadata, copied into the item.
func NewItemWithMeta(name, url string, meta map[string]string) *Item {
	return sd.NewItemWithMeta(name, url, meta)
}
