package gfx

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemoryBufferUploadAndResize(t *testing.T) {
	d := NewMemoryDevice()
	buf, err := d.NewBuffer(VertexBuffer, 8)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := buf.Upload(2, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := buf.Upload(7, []byte{1, 2}); err == nil {
		t.Error("expected out of bounds upload to fail")
	}
	if err := buf.Resize(16); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	mb := buf.(*MemoryBuffer)
	if !bytes.Equal(mb.Bytes()[:5], []byte{0, 0, 1, 2, 3}) || mb.Size() != 16 {
		t.Errorf("content not preserved across resize: %v", mb.Bytes())
	}
	if d.UploadedBytes() != 3 || len(d.Uploads()) != 1 {
		t.Errorf("uploads = %+v", d.Uploads())
	}
	d.Reset()
	if d.UploadedBytes() != 0 {
		t.Error("Reset should clear upload records")
	}
}

func TestMemoryDeviceOutOfMemory(t *testing.T) {
	d := NewMemoryDevice()
	d.MaxBufferSize = 64
	if _, err := d.NewBuffer(IndexBuffer, 128); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("NewBuffer err = %v, want ErrOutOfMemory", err)
	}
	buf, err := d.NewBuffer(IndexBuffer, 32)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if err := buf.Resize(65); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Resize err = %v, want ErrOutOfMemory", err)
	}
	d.FailNewBuffer = true
	if _, err := d.NewBuffer(VertexBuffer, 1); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("FailNewBuffer err = %v", err)
	}
}

func TestMemoryDeviceState(t *testing.T) {
	d := NewMemoryDevice()
	d.SetWireframe(true)
	d.SetBlending(true)
	d.SetFilter(Filter{Trilinear: true})
	d.Draw(DrawCall{IndexCount: 6})
	if !d.Wireframe() || !d.Blending() || !d.Filter().Trilinear {
		t.Error("device state not recorded")
	}
	if len(d.Draws()) != 1 || d.Draws()[0].IndexCount != 6 {
		t.Errorf("draws = %+v", d.Draws())
	}

	buf, _ := d.NewBuffer(VertexBuffer, 4)
	if d.LiveBuffers() != 1 {
		t.Fatalf("LiveBuffers = %d", d.LiveBuffers())
	}
	buf.Release()
	buf.Release()
	if d.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers after release = %d", d.LiveBuffers())
	}
	if err := buf.Upload(0, []byte{1}); err == nil {
		t.Error("upload to released buffer should fail")
	}
}
