// Package tracking provides a byte allocator decorator that counts live
// allocations and bytes.
//
// Each block is prefixed with a fixed 8-byte header holding the total block
// size, so Free recovers the original request from the block itself with no
// side table and no map lookup:
//
//	+-----------------+---------------------------+
//	| total (8 bytes) | payload (size bytes)      |
//	+-----------------+---------------------------+
//	  little-endian     returned to the caller
//
// The reported statistics include the header bytes: tracking an 8-byte
// payload adds 16 bytes to TotalBytes.
//
// # Usage
//
//	alloc := tracking.New(memgo.NewGoAllocator())
//
//	buf, err := alloc.Allocate(256)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer alloc.Free(buf)
//
//	fmt.Println(alloc.AllocationCount(), alloc.TotalBytes()) // 1 264
//
// Typed slices ride on the same accounting via AllocSlice and FreeSlice.
//
// # Thread Safety
//
// Allocator is not safe for concurrent use.
package tracking
