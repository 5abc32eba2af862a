package meshcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/qmuntal/gltf"
)

func TestExportGLB(t *testing.T) {
	c, _, _, _ := transparentScene(t)
	path := filepath.Join(t.TempDir(), "buffers.glb")
	if err := c.ExportGLB(path); err != nil {
		t.Fatalf("ExportGLB: %v", err)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("gltf.Open: %v", err)
	}
	if len(doc.Meshes) != c.Len() {
		t.Errorf("meshes = %d, want %d", len(doc.Meshes), c.Len())
	}
	if len(doc.Materials) != 2 || doc.Materials[1].AlphaMode != gltf.AlphaBlend {
		t.Errorf("materials = %+v", doc.Materials)
	}
}

func TestExportGLBCompressed(t *testing.T) {
	c, _, _, _ := transparentScene(t)
	path := filepath.Join(t.TempDir(), "buffers.glb.zst")
	if err := c.ExportGLB(path); err != nil {
		t.Fatalf("ExportGLB: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	glb, err := dec.DecodeAll(raw, nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if !bytes.HasPrefix(glb, []byte("glTF")) {
		t.Errorf("decompressed export is not a GLB file")
	}
}
