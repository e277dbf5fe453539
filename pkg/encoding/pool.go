package encoding

import "github.com/zeusync/scenegraph/pkg/generic"

var writerPool = generic.NewResetPool(
	func() *Writer { return NewWriter(512) },
	func(w *Writer) { w.Reset() },
)

// AcquireWriter fetches a clean pooled writer. Callers release it with
// ReleaseWriter once the composed bytes have been copied out.
func AcquireWriter() *Writer {
	return writerPool.Get()
}

// ReleaseWriter returns a writer to the pool. The writer's Bytes must not
// be referenced afterwards.
func ReleaseWriter(w *Writer) {
	writerPool.Put(w)
}
