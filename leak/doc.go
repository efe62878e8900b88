// Package leak provides a diagnostic allocator decorator that finds
// unmatched frees and unfreed allocations.
//
// Every buffer handed out is remembered in a side table. Freeing a buffer
// the table does not know, whether freed twice or never allocated here,
// fails with ErrUnknownPointer before the underlying allocator sees it.
// Whatever is still in the table at teardown is a leak:
//
//	alloc := leak.New(upstream, leak.WithOriginCapture())
//	...
//	if alloc.ReportLeaks(os.Stderr) {
//		// leak: 2 allocations, 4112 bytes still live
//		//   #7: 4096 bytes allocated at ingest.go:142
//		//   #9: 16 bytes allocated at ingest.go:156
//	}
//
// The layer is meant for tests and debug builds; it costs a map update per
// operation, plus a caller lookup when origin capture is on.
package leak
