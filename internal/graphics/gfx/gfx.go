// Package gfx defines the graphics device the map renderer draws through.
package gfx

import (
	"errors"

	"voxmap/internal/world"
)

// ErrOutOfMemory is returned when the device cannot create or grow a buffer.
var ErrOutOfMemory = errors.New("gfx: out of device memory")

// BufferKind tells the device how a buffer is bound.
type BufferKind uint8

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
)

func (k BufferKind) String() string {
	if k == IndexBuffer {
		return "index"
	}
	return "vertex"
}

// Buffer is a device-resident byte buffer.
type Buffer interface {
	Kind() BufferKind
	// Size is the capacity in bytes.
	Size() int
	// Upload copies data into the buffer at offset.
	Upload(offset int, data []byte) error
	// Resize changes the capacity, preserving the first min(old, new) bytes.
	Resize(size int) error
	Release()
}

// Filter selects texture sampling.
type Filter struct {
	Bilinear    bool
	Trilinear   bool
	Anisotropic bool
}

// DrawCall submits IndexCount indices starting at IndexOffset (both in
// elements) from Indices, reading vertices from Vertices.
type DrawCall struct {
	Vertices    Buffer
	Indices     Buffer
	IndexOffset int
	IndexCount  int

	Material      world.MaterialID
	Transparent   bool
	ReuseMaterial bool // keep the material bound by the previous call
}

// Device is the subset of a graphics API used by the map renderer.
type Device interface {
	NewBuffer(kind BufferKind, size int) (Buffer, error)
	Draw(dc DrawCall)
	SetWireframe(on bool)
	SetFilter(f Filter)
	SetBlending(on bool)
}
