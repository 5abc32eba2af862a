package gldevice

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"voxmap/internal/graphics/gfx"
)

// buffer is a GL buffer object. Index buffers are bound as element arrays
// only through a VAO, so uploads go through the copy-write target.
type buffer struct {
	dev  *Device
	id   uint32
	kind gfx.BufferKind
	size int
}

var _ gfx.Buffer = (*buffer)(nil)

func (b *buffer) Kind() gfx.BufferKind { return b.kind }

func (b *buffer) Size() int { return b.size }

func (b *buffer) Upload(offset int, data []byte) error {
	if b.id == 0 {
		return fmt.Errorf("upload to released %s buffer", b.kind)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("upload [%d,%d) out of bounds of %s buffer (%d bytes)", offset, offset+len(data), b.kind, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, b.id)
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return checkError("upload")
}

// Resize allocates a new buffer object and copies the old content into it.
func (b *buffer) Resize(size int) error {
	if b.dev.MaxBufferSize > 0 && size > b.dev.MaxBufferSize {
		return fmt.Errorf("grow %s buffer to %d bytes: %w", b.kind, size, gfx.ErrOutOfMemory)
	}
	newID, err := allocate(size)
	if err != nil {
		return fmt.Errorf("grow %s buffer to %d bytes: %w", b.kind, size, err)
	}
	copyBuffer(b.id, newID, min(b.size, size))
	gl.DeleteBuffers(1, &b.id)
	b.dev.forget(b)
	b.id = newID
	b.size = size
	return nil
}

func (b *buffer) Release() {
	if b.id == 0 {
		return
	}
	b.dev.forget(b)
	gl.DeleteBuffers(1, &b.id)
	b.id = 0
	b.size = 0
}

func allocate(size int) (uint32, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, id)
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	if err := checkError("allocate"); err != nil {
		gl.DeleteBuffers(1, &id)
		return 0, err
	}
	return id, nil
}

func copyBuffer(oldID, newID uint32, bytes int) {
	if oldID == 0 || newID == 0 || bytes <= 0 {
		return
	}
	gl.BindBuffer(gl.COPY_READ_BUFFER, oldID)
	srcPtr := gl.MapBufferRange(gl.COPY_READ_BUFFER, 0, bytes, gl.MAP_READ_BIT)

	gl.BindBuffer(gl.COPY_WRITE_BUFFER, newID)
	dstPtr := gl.MapBufferRange(gl.COPY_WRITE_BUFFER, 0, bytes, gl.MAP_WRITE_BIT|gl.MAP_INVALIDATE_RANGE_BIT)

	if srcPtr != nil && dstPtr != nil {
		src := unsafe.Slice((*byte)(srcPtr), bytes)
		dst := unsafe.Slice((*byte)(dstPtr), bytes)
		copy(dst, src)
	}
	if dstPtr != nil {
		gl.UnmapBuffer(gl.COPY_WRITE_BUFFER)
	}
	if srcPtr != nil {
		gl.UnmapBuffer(gl.COPY_READ_BUFFER)
	}
	gl.BindBuffer(gl.COPY_READ_BUFFER, 0)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
}

// checkError maps GL errors raised since the last call to Go errors.
func checkError(label string) error {
	switch code := gl.GetError(); code {
	case gl.NO_ERROR:
		return nil
	case gl.OUT_OF_MEMORY:
		return fmt.Errorf("gl %s: %w", label, gfx.ErrOutOfMemory)
	default:
		return fmt.Errorf("gl %s: error 0x%x", label, code)
	}
}
