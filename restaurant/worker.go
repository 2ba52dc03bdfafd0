package restaurant

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// runWorker drains the order queue until shutdown. Workers keep serving
// queued orders after the shut flag flips; a worker exits only once the
// queue is empty.
func (s *System) runWorker(id int) {
	defer s.workers.Done()

	log := s.logger.With(zap.Int("worker_id", id))
	log.Debug("worker started")

	for {
		s.orderMu.Lock()
		for len(s.orderQueue) == 0 && !s.shut.Load() {
			s.orderCond.Wait()
		}
		if len(s.orderQueue) == 0 {
			s.orderMu.Unlock()
			log.Debug("worker exiting")
			return
		}
		ord := s.orderQueue[0]
		s.orderQueue = s.orderQueue[1:]
		s.metrics.QueueDepth.Set(float64(len(s.orderQueue)))
		s.orderMu.Unlock()

		s.fulfill(id, log, ord)
	}
}

// fulfill runs one order end to end: per-product helpers, the readiness
// handshake, and either the failure cleanup or the collection-timeout
// race against the client.
func (s *System) fulfill(id int, log *zap.Logger, ord *order) {
	pager := ord.pager

	resigned := make([]bool, len(ord.products))
	var helpers sync.WaitGroup
	for i, name := range ord.products {
		slot := s.slots[name]
		helpers.Add(1)
		go func(slot *machineSlot, idx int) {
			defer helpers.Done()
			s.acquireProduct(slot, pager, idx, &resigned[idx])
		}(slot, i)
	}
	helpers.Wait()

	report := &s.reports[id]

	if pager.failed.Load() {
		pager.markReady()

		report.FailedOrders = append(report.FailedOrders, ord.products)
		s.metrics.OrdersFailed.Inc()
		log.Debug("order failed", zap.Uint64("order_id", ord.id))

		for i, name := range ord.products {
			if pager.products[i] != nil {
				s.returnProduct(name, pager.products[i])
				pager.products[i] = nil
			} else if !resigned[i] {
				// The machine was actually called and failed; resigned
				// helpers never reached theirs.
				report.FailedProducts = append(report.FailedProducts, name)
			}
		}
		return
	}

	pager.markReady()
	s.insertPending(ord.id)

	// Hold the order for the client, then race for the collect token.
	timer := time.NewTimer(s.clientTimeout)
	select {
	case <-pager.workerWaiter:
		timer.Stop()
	case <-timer.C:
	}

	if pager.claimCollect() {
		report.AbandonedOrders = append(report.AbandonedOrders, ord.products)
		s.metrics.OrdersAbandoned.Inc()
		log.Debug("order abandoned", zap.Uint64("order_id", ord.id))

		s.removePending(ord.id)

		for i, name := range ord.products {
			s.returnProduct(name, pager.products[i])
			pager.products[i] = nil
		}
		return
	}

	report.CollectedOrders = append(report.CollectedOrders, ord.products)
	log.Debug("order picked up", zap.Uint64("order_id", ord.id))
}

// acquireProduct is the helper body: one product for one order. It joins
// the product's admission FIFO, waits for headship, consults the sticky
// failure state, calls the machine, and hands headship to its successor.
func (s *System) acquireProduct(slot *machineSlot, pager *CoasterPager, idx int, resigned *bool) {
	ticket := make(chan struct{})
	slot.queueMu.Lock()
	slot.waiting = append(slot.waiting, ticket)
	head := len(slot.waiting) == 1
	slot.queueMu.Unlock()

	if !head {
		<-ticket
	}

	s.menuMu.Lock()
	stickyFailed := s.failed[slot.name]
	s.menuMu.Unlock()

	if stickyFailed || pager.failed.Load() {
		// The machine is known bad or a sibling helper already failed
		// the order; resign without touching the machine.
		*resigned = true
		pager.failed.Store(true)
	} else {
		slot.machineMu.Lock()
		product, err := slot.machine.GetProduct()
		slot.machineMu.Unlock()

		if err != nil || product == nil {
			s.logger.Warn("machine failed",
				zap.String("product", slot.name),
				zap.Uint64("order_id", pager.id),
				zap.Error(err))
			s.menuMu.Lock()
			s.failed[slot.name] = true
			s.menuMu.Unlock()
			pager.failed.Store(true)
			s.metrics.MachineFailures.WithLabelValues(slot.name).Inc()
		} else {
			pager.products[idx] = product
			s.metrics.ProductsDispensed.Inc()
		}
	}

	slot.queueMu.Lock()
	slot.waiting = slot.waiting[1:]
	var next chan struct{}
	if len(slot.waiting) > 0 {
		next = slot.waiting[0]
	}
	slot.queueMu.Unlock()

	if next != nil {
		close(next)
	}
}

// returnProduct puts an uncollected product back into its machine. A
// failing return is swallowed: the product is gone either way.
func (s *System) returnProduct(name string, product Product) {
	slot := s.slots[name]
	slot.machineMu.Lock()
	err := slot.machine.ReturnProduct(product)
	slot.machineMu.Unlock()
	if err != nil {
		s.logger.Debug("product return failed",
			zap.String("product", name),
			zap.Error(err))
	}
}
