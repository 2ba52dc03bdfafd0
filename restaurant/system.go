// Package restaurant implements a concurrent order-fulfillment
// coordinator. Clients submit orders of named products and receive a
// CoasterPager; a fixed pool of workers fulfills each order by acquiring
// every product from its single-serving machine, then pages the client
// and holds the order for a bounded collection window.
package restaurant

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coaster-restaurant/internal/observability"
)

// System coordinates order fulfillment across a fixed worker pool and
// one machine per product. The menu is fixed at construction; individual
// products drop off it when their machine fails, but are never removed.
type System struct {
	logger  *zap.Logger
	metrics *observability.Metrics

	clientTimeout time.Duration

	// menuMu guards the sticky failure map and the shut flag on all API
	// paths. shut is additionally atomic so the worker drain loop can
	// read it while holding only the order mutex.
	menuMu sync.Mutex
	failed map[string]bool
	shut   atomic.Bool

	slots map[string]*machineSlot

	orderMu     sync.Mutex
	orderCond   *sync.Cond
	orderQueue  []*order
	nextOrderID uint64

	pendingMu sync.Mutex
	pending   map[uint64]struct{}

	workers sync.WaitGroup
	reports []WorkerReport

	// done is closed once the first Shutdown call has fully completed,
	// so concurrent Shutdown calls return the same reports.
	done chan struct{}
}

// machineSlot is the per-product fulfillment state. The waiting FIFO
// admits helpers to the machine strictly in arrival order; machineMu
// additionally serializes GetProduct against late ReturnProduct calls
// from a worker's cleanup path.
type machineSlot struct {
	name    string
	machine Machine

	machineMu sync.Mutex

	queueMu sync.Mutex
	waiting []chan struct{}
}

// order is one queued fulfillment job.
type order struct {
	id       uint64
	products []string
	pager    *CoasterPager
}

// New starts every machine, launches numberOfWorkers workers and returns
// the open system. clientTimeout bounds how long a ready order is held
// for collection. A nil logger disables logging.
func New(logger *zap.Logger, machines map[string]Machine, numberOfWorkers int, clientTimeout time.Duration) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}

	s := &System{
		logger:        logger.With(zap.String("system_id", uuid.NewString())),
		metrics:       observability.NewMetrics(),
		clientTimeout: clientTimeout,
		failed:        make(map[string]bool, len(machines)),
		slots:         make(map[string]*machineSlot, len(machines)),
		pending:       make(map[uint64]struct{}),
		reports:       make([]WorkerReport, numberOfWorkers),
		done:          make(chan struct{}),
	}
	s.orderCond = sync.NewCond(&s.orderMu)

	for name, machine := range machines {
		s.failed[name] = false
		s.slots[name] = &machineSlot{name: name, machine: machine}
		machine.Start()
	}

	for id := 0; id < numberOfWorkers; id++ {
		s.workers.Add(1)
		go s.runWorker(id)
	}

	s.logger.Info("restaurant open",
		zap.Int("workers", numberOfWorkers),
		zap.Int("menu_size", len(machines)),
		zap.Duration("client_timeout", clientTimeout))
	return s
}

// Menu returns the sorted names of all products whose machine has not
// failed. It returns nil once the system is shut.
func (s *System) Menu() []string {
	s.menuMu.Lock()
	defer s.menuMu.Unlock()

	if s.shut.Load() {
		return nil
	}

	menu := make([]string, 0, len(s.slots))
	for name := range s.slots {
		if !s.failed[name] {
			menu = append(menu, name)
		}
	}
	slices.Sort(menu)
	return menu
}

// Order validates the requested products, queues the order and returns
// its pager. Duplicate names are allowed. A product can still fail
// between submission and fulfillment; that surfaces later as
// ErrFulfillmentFailure, not here.
func (s *System) Order(products []string) (*CoasterPager, error) {
	s.menuMu.Lock()
	if s.shut.Load() {
		s.menuMu.Unlock()
		return nil, ErrRestaurantClosed
	}
	if len(products) == 0 {
		s.menuMu.Unlock()
		return nil, fmt.Errorf("%w: empty product list", ErrBadOrder)
	}
	for _, name := range products {
		if _, ok := s.slots[name]; !ok {
			s.menuMu.Unlock()
			return nil, fmt.Errorf("%w: unknown product %q", ErrBadOrder, name)
		}
		if s.failed[name] {
			s.menuMu.Unlock()
			return nil, fmt.Errorf("%w: product %q unavailable", ErrBadOrder, name)
		}
	}
	s.menuMu.Unlock()

	names := append([]string(nil), products...)

	s.orderMu.Lock()
	ord := &order{id: s.nextOrderID, products: names}
	s.nextOrderID++
	ord.pager = newPager(ord.id, len(names))
	s.orderQueue = append(s.orderQueue, ord)
	s.metrics.QueueDepth.Set(float64(len(s.orderQueue)))
	s.orderCond.Signal()
	s.orderMu.Unlock()

	s.metrics.OrdersSubmitted.Inc()
	s.logger.Debug("order accepted",
		zap.Uint64("order_id", ord.id),
		zap.Strings("products", names))
	return ord.pager, nil
}

// CollectOrder redeems a ready pager. The client wins the collect token
// only if the worker's collection timeout has not reclaimed the order
// first; the winner owns the products.
func (s *System) CollectOrder(pager *CoasterPager) ([]Product, error) {
	if pager == nil {
		return nil, ErrBadPager
	}
	if !pager.ready.Load() {
		return nil, fmt.Errorf("%w: order %d", ErrOrderNotReady, pager.id)
	}
	if !pager.claimCollect() {
		return nil, fmt.Errorf("%w: order %d", ErrOrderExpired, pager.id)
	}

	s.removePending(pager.id)

	if pager.failed.Load() {
		return nil, fmt.Errorf("%w: order %d", ErrFulfillmentFailure, pager.id)
	}

	result := make([]Product, len(pager.products))
	copy(result, pager.products)
	for i := range pager.products {
		pager.products[i] = nil
	}

	// Free the worker from its collection-timeout sleep right away.
	select {
	case pager.workerWaiter <- struct{}{}:
	default:
	}

	s.metrics.OrdersCollected.Inc()
	s.logger.Debug("order collected", zap.Uint64("order_id", pager.id))
	return result, nil
}

// PendingOrders returns a sorted snapshot of the order ids that are
// ready and still awaiting collection.
func (s *System) PendingOrders() []uint64 {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	ids := make([]uint64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClientTimeout returns the collection window granted to clients after
// an order becomes ready.
func (s *System) ClientTimeout() time.Duration { return s.clientTimeout }

// Shutdown closes the restaurant and returns the per-worker reports. It
// is idempotent; concurrent calls block until the first one finishes and
// return the same reports. Queued and in-flight orders still complete
// (collected, abandoned or failed); only new orders are refused.
func (s *System) Shutdown() []WorkerReport {
	s.menuMu.Lock()
	if s.shut.Load() {
		s.menuMu.Unlock()
		<-s.done
		return s.cloneReports()
	}
	s.shut.Store(true)
	s.menuMu.Unlock()

	s.logger.Info("restaurant closing")

	s.orderMu.Lock()
	s.orderCond.Broadcast()
	s.orderMu.Unlock()

	s.workers.Wait()

	s.menuMu.Lock()
	for name, slot := range s.slots {
		if !s.failed[name] {
			slot.machine.Stop()
		}
	}
	s.menuMu.Unlock()

	close(s.done)
	s.logger.Info("restaurant closed")
	return s.cloneReports()
}

func (s *System) cloneReports() []WorkerReport {
	reports := make([]WorkerReport, len(s.reports))
	for i, r := range s.reports {
		reports[i] = r.clone()
	}
	return reports
}

func (s *System) insertPending(id uint64) {
	s.pendingMu.Lock()
	s.pending[id] = struct{}{}
	s.pendingMu.Unlock()
	s.metrics.PendingOrders.Inc()
}

func (s *System) removePending(id uint64) {
	s.pendingMu.Lock()
	_, present := s.pending[id]
	delete(s.pending, id)
	s.pendingMu.Unlock()
	if present {
		s.metrics.PendingOrders.Dec()
	}
}
