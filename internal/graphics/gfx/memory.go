package gfx

import (
	"fmt"
	"sync"
)

// Upload records one Upload call on a MemoryBuffer.
type Upload struct {
	Buffer *MemoryBuffer
	Offset int
	Len    int
}

// MemoryDevice keeps buffers in host memory and records every call. It backs
// headless runs and tests.
type MemoryDevice struct {
	mu sync.Mutex

	// MaxBufferSize makes NewBuffer and Resize fail with ErrOutOfMemory above
	// this many bytes. Zero means unlimited.
	MaxBufferSize int
	// FailNewBuffer makes the next NewBuffer calls fail.
	FailNewBuffer bool

	nextID    int
	buffers   map[int]*MemoryBuffer
	uploads   []Upload
	draws     []DrawCall
	wireframe bool
	blending  bool
	filter    Filter
}

// NewMemoryDevice creates an empty memory device.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{buffers: make(map[int]*MemoryBuffer)}
}

// NewBuffer implements Device.
func (d *MemoryDevice) NewBuffer(kind BufferKind, size int) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailNewBuffer || (d.MaxBufferSize > 0 && size > d.MaxBufferSize) {
		return nil, fmt.Errorf("create %s buffer of %d bytes: %w", kind, size, ErrOutOfMemory)
	}
	d.nextID++
	b := &MemoryBuffer{dev: d, id: d.nextID, kind: kind, data: make([]byte, size)}
	d.buffers[b.id] = b
	return b, nil
}

// Draw implements Device.
func (d *MemoryDevice) Draw(dc DrawCall) {
	d.mu.Lock()
	d.draws = append(d.draws, dc)
	d.mu.Unlock()
}

// SetWireframe implements Device.
func (d *MemoryDevice) SetWireframe(on bool) {
	d.mu.Lock()
	d.wireframe = on
	d.mu.Unlock()
}

// SetFilter implements Device.
func (d *MemoryDevice) SetFilter(f Filter) {
	d.mu.Lock()
	d.filter = f
	d.mu.Unlock()
}

// SetBlending implements Device.
func (d *MemoryDevice) SetBlending(on bool) {
	d.mu.Lock()
	d.blending = on
	d.mu.Unlock()
}

// Draws returns the draw calls recorded since the last Reset.
func (d *MemoryDevice) Draws() []DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawCall(nil), d.draws...)
}

// Uploads returns the uploads recorded since the last Reset.
func (d *MemoryDevice) Uploads() []Upload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Upload(nil), d.uploads...)
}

// UploadedBytes sums the uploads recorded since the last Reset.
func (d *MemoryDevice) UploadedBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, u := range d.uploads {
		n += u.Len
	}
	return n
}

// Wireframe reports the current polygon mode.
func (d *MemoryDevice) Wireframe() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wireframe
}

// Filter reports the current texture filter.
func (d *MemoryDevice) Filter() Filter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// Blending reports whether alpha blending is on.
func (d *MemoryDevice) Blending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blending
}

// LiveBuffers returns the number of buffers not yet released.
func (d *MemoryDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Reset clears recorded uploads and draws. Call once per frame.
func (d *MemoryDevice) Reset() {
	d.mu.Lock()
	d.uploads = d.uploads[:0]
	d.draws = d.draws[:0]
	d.mu.Unlock()
}

// MemoryBuffer is a Buffer held in host memory.
type MemoryBuffer struct {
	dev      *MemoryDevice
	id       int
	kind     BufferKind
	data     []byte
	released bool
}

// ID identifies the buffer within its device.
func (b *MemoryBuffer) ID() int { return b.id }

// Kind implements Buffer.
func (b *MemoryBuffer) Kind() BufferKind { return b.kind }

// Size implements Buffer.
func (b *MemoryBuffer) Size() int { return len(b.data) }

// Bytes exposes the buffer content.
func (b *MemoryBuffer) Bytes() []byte { return b.data }

// Upload implements Buffer.
func (b *MemoryBuffer) Upload(offset int, data []byte) error {
	if b.released {
		return fmt.Errorf("upload to released %s buffer %d", b.kind, b.id)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("upload [%d,%d) out of bounds of %s buffer %d (%d bytes)",
			offset, offset+len(data), b.kind, b.id, len(b.data))
	}
	copy(b.data[offset:], data)
	b.dev.mu.Lock()
	b.dev.uploads = append(b.dev.uploads, Upload{Buffer: b, Offset: offset, Len: len(data)})
	b.dev.mu.Unlock()
	return nil
}

// Resize implements Buffer.
func (b *MemoryBuffer) Resize(size int) error {
	b.dev.mu.Lock()
	limit := b.dev.MaxBufferSize
	b.dev.mu.Unlock()
	if limit > 0 && size > limit {
		return fmt.Errorf("grow %s buffer %d to %d bytes: %w", b.kind, b.id, size, ErrOutOfMemory)
	}
	next := make([]byte, size)
	copy(next, b.data)
	b.data = next
	return nil
}

// Release implements Buffer.
func (b *MemoryBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.data = nil
	b.dev.mu.Lock()
	delete(b.dev.buffers, b.id)
	b.dev.mu.Unlock()
}
