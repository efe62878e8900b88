// Package refcount provides a pointer-sized handle for resources that
// carry their own reference count.
//
// Intrusive counting keeps the count inside the resource: anything exposing
// AddRef and Release can be managed, whether it lives in a pool, in memory
// owned by cgo, or behind a driver API. The handle automates the balancing
// that callers of such APIs otherwise do by hand:
//
//   - Wrap adopts an existing reference (no AddRef), the convention for
//     factory results that arrive with a count of one
//   - Retain and Clone acquire an additional reference
//   - Close drops one reference; Move and Detach transfer without count
//     traffic
//
// # Usage
//
//	h := refcount.Wrap(res) // res arrived with one reference
//	defer h.Close()
//
//	shared := h.Clone() // count is now 2
//	defer shared.Close()
//
// # Deterministic Release
//
// The garbage collector never calls Release. A handle that goes out of
// scope unclosed leaks its reference, so pair every acquired handle with a
// Close, typically via defer. This is deliberate: the resources worth
// counting intrusively are exactly the ones whose release must happen at a
// known point, not whenever the collector runs.
package refcount
