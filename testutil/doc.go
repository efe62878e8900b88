// Package testutil provides testing utilities for memgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides a reference-counted resource double for handle tests,
// allocator doubles for exercising decorators, and deterministic
// randomness for stress tests.
//
// # Allocator Doubles
//
//	upstream := testutil.HeapAllocator{}
//	failing := &testutil.FailingAllocator{AllocErr: io.ErrShortBuffer, Successes: 2}
//
// # Counted Resources
//
//	res := testutil.NewResource(1) // one reference
//	res.AddRef()
//	res.Release()
//	fmt.Println(res.Refs(), res.Destroyed())
package testutil
