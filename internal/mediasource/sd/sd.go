package sd

import "context"

// ItemCallbacks is the interface a Discoverer drives as it finds or loses
// items. parent is nil to mean "attach at the source's root"; a non-nil
// parent is an *Item the Discoverer previously passed to ItemAdded. These
// calls may arrive on any goroutine the Discoverer chooses, concurrently
// with each other and with Close. There is no error channel back to the
// Discoverer: a bogus parent or a double-remove is a Discoverer bug, and
// the implementation absorbs it (logs, does not propagate) rather than
// failing the call.
type ItemCallbacks interface {
	ItemAdded(parent *Item, item *Item)
	ItemRemoved(item *Item)
}

// Discoverer is one live instance of a service-discovery plugin, bound to
// a single media source. SetCallbacks is called exactly once, before any
// items can be reported. Close must block until the Discoverer guarantees
// no further callback will fire, so that the caller can safely tear down
// whatever SetCallbacks was given.
type Discoverer interface {
	SetCallbacks(cb ItemCallbacks)
	Close()
}

// DiscovererMeta describes a service-discovery plugin's registry entry:
// what a Provider lists before ever constructing the plugin.
type DiscovererMeta struct {
	Name        string
	Description string
	Category    string
}

// DiscovererFactory constructs Discoverer instances by name and lists the
// plugins it knows about without constructing any of them, mirroring the
// real SD subsystem's separation between enumerating plugins and probing
// them.
type DiscovererFactory interface {
	List(ctx context.Context) ([]DiscovererMeta, error)
	New(ctx context.Context, name string) (Discoverer, error)
}
