package restaurant

import "errors"

// Failure kinds surfaced to clients. All are matchable with errors.Is;
// call sites wrap them with order context.
var (
	// ErrRestaurantClosed is returned by Order after Shutdown.
	ErrRestaurantClosed = errors.New("restaurant closed")

	// ErrBadOrder is returned for an empty product list, an unknown
	// product name, or a product whose machine already failed.
	ErrBadOrder = errors.New("bad order")

	// ErrBadPager is returned by CollectOrder for a nil pager.
	ErrBadPager = errors.New("bad pager")

	// ErrOrderNotReady is returned by CollectOrder before the order is
	// ready.
	ErrOrderNotReady = errors.New("order not ready")

	// ErrOrderExpired is returned by CollectOrder once the worker has
	// reclaimed the order after the collection window elapsed.
	ErrOrderExpired = errors.New("order expired")

	// ErrFulfillmentFailure is returned from pager waits and from
	// CollectOrder when a machine failed while fulfilling the order.
	ErrFulfillmentFailure = errors.New("order fulfillment failed")
)
