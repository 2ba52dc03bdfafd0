package restaurant

// Product is an opaque item dispensed by a Machine. The coordinator only
// moves products between machines and clients; it never inspects them.
type Product any

// Machine is the external single-serving dispenser for one product name.
// GetProduct may block for an arbitrary time; a non-nil error or a nil
// product means the machine has failed and its product is taken off the
// menu for good. ReturnProduct hands back an item the client never
// collected; errors from it are swallowed by the coordinator.
//
// The coordinator guarantees that calls into one machine never overlap:
// acquisitions are admitted strictly in arrival order and late returns
// are serialized against them.
type Machine interface {
	Start()
	Stop()
	GetProduct() (Product, error)
	ReturnProduct(Product) error
}
