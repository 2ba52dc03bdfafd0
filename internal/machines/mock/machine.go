// Package mock provides a deterministic in-memory machine for tests and
// demos. Failure injection is explicit (fail from the nth call, nil
// products, failing returns) rather than randomized, so scenarios are
// reproducible.
package mock

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coaster-restaurant/restaurant"
)

// ErrMachineFailure is the failure a misbehaving mock machine reports.
var ErrMachineFailure = errors.New("machine failure")

// Product is what the mock machine dispenses.
type Product struct {
	ID     string
	Name   string
	Serial int32
}

// Machine is a single-product dispenser with configurable latency and
// failure behavior. It also tracks call overlap and produced/returned
// counts so tests can assert the coordinator's serialization contract.
type Machine struct {
	name   string
	logger *zap.Logger

	latency     time.Duration
	failFrom    int32
	nilProduct  bool
	failReturns bool
	release     <-chan struct{}

	started atomic.Bool
	stopped atomic.Bool

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	produced    atomic.Int32
	returned    atomic.Int32
}

// Option configures a mock machine.
type Option func(*Machine)

// WithLatency makes every GetProduct call sleep for d.
func WithLatency(d time.Duration) Option {
	return func(m *Machine) { m.latency = d }
}

// FailFrom makes every GetProduct call from the nth onwards (1-based)
// report ErrMachineFailure.
func FailFrom(n int) Option {
	return func(m *Machine) { m.failFrom = int32(n) }
}

// FailWithNilProduct makes failing calls return a nil product with a nil
// error instead of ErrMachineFailure.
func FailWithNilProduct() Option {
	return func(m *Machine) { m.nilProduct = true }
}

// FailReturns makes ReturnProduct report ErrMachineFailure.
func FailReturns() Option {
	return func(m *Machine) { m.failReturns = true }
}

// BlockUntil makes every GetProduct call block until release is closed.
func BlockUntil(release <-chan struct{}) Option {
	return func(m *Machine) { m.release = release }
}

// New builds a mock machine dispensing the named product. A nil logger
// disables logging.
func New(name string, logger *zap.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Machine{
		name:   name,
		logger: logger.With(zap.String("machine", name)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Start() {
	m.started.Store(true)
	m.logger.Debug("machine started")
}

func (m *Machine) Stop() {
	m.stopped.Store(true)
	m.logger.Debug("machine stopped")
}

func (m *Machine) GetProduct() (restaurant.Product, error) {
	call := m.calls.Add(1)

	in := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		max := m.maxInFlight.Load()
		if in <= max || m.maxInFlight.CompareAndSwap(max, in) {
			break
		}
	}

	if m.release != nil {
		<-m.release
	}
	if m.latency > 0 {
		time.Sleep(m.latency)
	}

	if m.failFrom > 0 && call >= m.failFrom {
		if m.nilProduct {
			m.logger.Debug("dispensing nil product", zap.Int32("call", call))
			return nil, nil
		}
		m.logger.Debug("machine failure injected", zap.Int32("call", call))
		return nil, ErrMachineFailure
	}

	serial := m.produced.Add(1)
	product := &Product{
		ID:     uuid.NewString(),
		Name:   m.name,
		Serial: serial,
	}
	m.logger.Debug("product dispensed", zap.Int32("serial", serial))
	return product, nil
}

func (m *Machine) ReturnProduct(p restaurant.Product) error {
	if m.failReturns {
		return ErrMachineFailure
	}
	m.returned.Add(1)
	if mp, ok := p.(*Product); ok {
		m.logger.Debug("product returned", zap.Int32("serial", mp.Serial))
	}
	return nil
}

// Started reports whether Start has been called.
func (m *Machine) Started() bool { return m.started.Load() }

// Stopped reports whether Stop has been called.
func (m *Machine) Stopped() bool { return m.stopped.Load() }

// Calls returns the number of GetProduct calls.
func (m *Machine) Calls() int { return int(m.calls.Load()) }

// Produced returns the number of products dispensed.
func (m *Machine) Produced() int { return int(m.produced.Load()) }

// Returned returns the number of products handed back.
func (m *Machine) Returned() int { return int(m.returned.Load()) }

// MaxInFlight returns the highest number of GetProduct calls that were
// ever in progress at once. The coordinator keeps this at 1.
func (m *Machine) MaxInFlight() int { return int(m.maxInFlight.Load()) }
