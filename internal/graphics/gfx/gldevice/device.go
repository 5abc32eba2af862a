// Package gldevice implements gfx.Device on OpenGL 4.1 core. All methods
// must be called on the thread that owns the GL context.
package gldevice

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxmap/internal/graphics/gfx"
	"voxmap/internal/logger"
	"voxmap/internal/world"
)

// Device draws merged map buffers with a single shader program.
type Device struct {
	// MaxBufferSize caps buffer sizes; zero leaves it to the driver.
	MaxBufferSize int

	shader  *Shader
	sampler uint32
	// one VAO per vertex buffer, created on first draw
	vaos      map[*buffer]uint32
	materials map[world.MaterialID]mgl32.Vec4
	log       *zap.Logger

	wireframe bool
	blending  bool
}

var _ gfx.Device = (*Device)(nil)

// New compiles the map shader and sets the fixed pipeline state. The GL
// functions must already be loaded with gl.Init.
func New(log *zap.Logger) (*Device, error) {
	shader, err := NewShader(mapVertexShader, mapFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("map shader: %w", err)
	}
	d := &Device{
		shader:    shader,
		vaos:      make(map[*buffer]uint32),
		materials: make(map[world.MaterialID]mgl32.Vec4),
		log:       logger.OrNop(log),
	}
	gl.GenSamplers(1, &d.sampler)
	gl.BindSampler(0, d.sampler)

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	d.log.Info("gl device ready",
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))))
	return d, nil
}

// SetMaterialColor sets the tint a material is drawn with.
func (d *Device) SetMaterialColor(id world.MaterialID, rgba mgl32.Vec4) {
	d.materials[id] = rgba
}

// BeginFrame clears the target and loads the camera matrix.
func (d *Device) BeginFrame(viewProj mgl32.Mat4, sky mgl32.Vec4) {
	gl.ClearColor(sky[0], sky[1], sky[2], sky[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	d.shader.Use()
	d.shader.SetMatrix4("viewProj", viewProj)
	d.shader.SetBool("wireframe", d.wireframe)
}

// SetViewport resizes the GL viewport.
func (d *Device) SetViewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) NewBuffer(kind gfx.BufferKind, size int) (gfx.Buffer, error) {
	if d.MaxBufferSize > 0 && size > d.MaxBufferSize {
		return nil, fmt.Errorf("create %s buffer of %d bytes: %w", kind, size, gfx.ErrOutOfMemory)
	}
	id, err := allocate(size)
	if err != nil {
		return nil, fmt.Errorf("create %s buffer of %d bytes: %w", kind, size, err)
	}
	return &buffer{dev: d, id: id, kind: kind, size: size}, nil
}

// forget drops the VAO built over b; it is rebuilt on the next draw.
func (d *Device) forget(b *buffer) {
	if vao, ok := d.vaos[b]; ok {
		gl.DeleteVertexArrays(1, &vao)
		delete(d.vaos, b)
	}
}

func (d *Device) vao(vb *buffer) uint32 {
	if vao, ok := d.vaos[vb]; ok {
		return vao
	}
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.id)

	stride := int32(world.VertexBytes)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, stride, gl.PtrOffset(12))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 4, gl.UNSIGNED_BYTE, true, stride, gl.PtrOffset(24))
	gl.EnableVertexAttribArray(3)
	gl.VertexAttribPointer(3, 2, gl.FLOAT, false, stride, gl.PtrOffset(28))

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	d.vaos[vb] = vao
	return vao
}

func (d *Device) Draw(dc gfx.DrawCall) {
	vb, ok := dc.Vertices.(*buffer)
	if !ok || vb.id == 0 {
		return
	}
	ib, ok := dc.Indices.(*buffer)
	if !ok || ib.id == 0 || dc.IndexCount == 0 {
		return
	}
	if !dc.ReuseMaterial {
		color, ok := d.materials[dc.Material]
		if !ok {
			color = mgl32.Vec4{1, 1, 1, 1}
		}
		d.shader.SetVector4("materialColor", color)
	}
	// Transparent geometry is tested against depth but does not write it
	gl.DepthMask(!dc.Transparent)

	gl.BindVertexArray(d.vao(vb))
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ib.id)
	gl.DrawElements(gl.TRIANGLES, int32(dc.IndexCount), gl.UNSIGNED_INT, gl.PtrOffset(dc.IndexOffset*world.IndexBytes))
	gl.BindVertexArray(0)
	gl.DepthMask(true)
}

func (d *Device) SetWireframe(on bool) {
	d.wireframe = on
	if on {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
	d.shader.SetBool("wireframe", on)
}

func (d *Device) SetFilter(f gfx.Filter) {
	magFilter := int32(gl.NEAREST)
	minFilter := int32(gl.NEAREST_MIPMAP_NEAREST)
	switch {
	case f.Trilinear:
		magFilter, minFilter = gl.LINEAR, gl.LINEAR_MIPMAP_LINEAR
	case f.Bilinear:
		magFilter, minFilter = gl.LINEAR, gl.LINEAR_MIPMAP_NEAREST
	}
	gl.SamplerParameteri(d.sampler, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.SamplerParameteri(d.sampler, gl.TEXTURE_MIN_FILTER, minFilter)
	aniso := float32(1)
	if f.Anisotropic {
		aniso = 16
	}
	// GL_TEXTURE_MAX_ANISOTROPY, core since 4.6 and an extension before
	gl.SamplerParameterf(d.sampler, 0x84FE, aniso)
	_ = gl.GetError()
}

func (d *Device) SetBlending(on bool) {
	if on == d.blending {
		return
	}
	d.blending = on
	if on {
		gl.Enable(gl.BLEND)
	} else {
		gl.Disable(gl.BLEND)
	}
}

// Close deletes the GL objects owned by the device. Buffers are released by
// their owners.
func (d *Device) Close() {
	for b, vao := range d.vaos {
		gl.DeleteVertexArrays(1, &vao)
		delete(d.vaos, b)
	}
	gl.DeleteSamplers(1, &d.sampler)
	d.shader.Delete()
}
