// Package mapnode draws the loaded map: it ties the draw list builder, the
// mesh buffer cache and the transparent sorter to a graphics device.
package mapnode

import (
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"voxmap/internal/config"
	"voxmap/internal/graphics/drawlist"
	"voxmap/internal/graphics/gfx"
	"voxmap/internal/graphics/meshcache"
	"voxmap/internal/graphics/renderer"
	"voxmap/internal/logger"
	"voxmap/internal/profiling"
	"voxmap/internal/world"
)

// ShadowMaterial is the depth-only material shadow passes draw with.
const ShadowMaterial world.MaterialID = math.MaxUint32

// noOverride keeps each buffer's own material.
const noOverride world.MaterialID = 0

// Pass selects which buffers a shadow pass draws.
type Pass uint8

const (
	PassSolid Pass = iota
	PassTransparent
)

// FrameStats counts the work of the last Render.
type FrameStats struct {
	Rebuilt          bool
	Resorted         int
	SolidCalls       int
	TransparentCalls int
	ShadowCalls      int
}

// Map is the renderable for the world map.
type Map struct {
	world    *world.Map
	dev      gfx.Device
	settings *config.Settings
	log      *zap.Logger

	opts       config.RenderOptions
	optsDirty  atomic.Bool
	deregister []func()

	builder *drawlist.Builder
	cache   *meshcache.Cache

	descriptors []DrawDescriptor
	stats       FrameStats
}

var _ renderer.Renderable = (*Map)(nil)

// New creates the map renderable. Options are read from settings and
// re-read whenever one of them changes.
func New(m *world.Map, dev gfx.Device, settings *config.Settings, log *zap.Logger) *Map {
	log = logger.OrNop(log)
	opts := settings.Snapshot()
	return &Map{
		world:    m,
		dev:      dev,
		settings: settings,
		log:      log,
		opts:     opts,
		builder:  drawlist.New(m, opts, log.Named("drawlist")),
		cache: meshcache.New(dev, meshcache.Options{
			InitialVertices: opts.BufferInitialVertices,
			InitialIndices:  opts.BufferInitialIndices,
		}, log.Named("meshcache")),
	}
}

var watchedOptions = []string{
	config.OptWantedRange,
	config.OptRangeAll,
	config.OptAllowNoclip,
	config.OptShowWireframe,
	config.OptTrilinearFilter,
	config.OptBilinearFilter,
	config.OptAnisotropicFilter,
	config.OptTransparencySortingDistance,
	config.OptOcclusionCuller,
	config.OptEnableRaytracedCulling,
	config.OptOcclusionSamples,
	config.OptCullWorkers,
	config.OptShadowFrames,
}

// Init registers the settings callbacks.
func (m *Map) Init() error {
	for _, name := range watchedOptions {
		m.deregister = append(m.deregister, m.settings.RegisterChangedCallback(name, m.onSettingChanged))
	}
	return nil
}

// onSettingChanged may run on any goroutine; the new options are picked up
// at the start of the next frame.
func (m *Map) onSettingChanged(name string) {
	m.optsDirty.Store(true)
	m.log.Debug("setting changed", zap.String("name", name))
}

// Dispose releases callbacks, workers and device buffers.
func (m *Map) Dispose() {
	for _, d := range m.deregister {
		d()
	}
	m.deregister = nil
	m.builder.Close()
	m.cache.Close()
}

// SetViewport is a no-op; the camera carries the aspect ratio.
func (m *Map) SetViewport(width, height int) {}

// Builder returns the draw list builder.
func (m *Map) Builder() *drawlist.Builder { return m.builder }

// Cache returns the mesh buffer cache.
func (m *Map) Cache() *meshcache.Cache { return m.cache }

// Stats returns counters of the last frame.
func (m *Map) Stats() FrameStats { return m.stats }

func (m *Map) applySettings() {
	if !m.optsDirty.Swap(false) {
		return
	}
	m.opts = m.settings.Snapshot()
	m.builder.SetOptions(m.opts)
}

// Render updates the draw list when needed, brings the merged buffers in line
// with it and draws the solid then the transparent geometry. When the
// context carries a light, one slice of the shadow casters is drawn as well.
func (m *Map) Render(ctx renderer.RenderContext) error {
	defer profiling.Track("mapnode.Render")()
	m.stats = FrameStats{}
	m.applySettings()

	m.builder.UpdateCamera(ctx.Camera)
	if m.builder.NeedsUpdateDrawList() {
		m.builder.UpdateDrawList()
		m.builder.TouchBlocks()
	}
	if err := m.sync(); err != nil {
		return err
	}
	n, err := m.cache.Resort(ctx.Camera.Position, m.opts.TransparencySortingDistance)
	if err != nil {
		return fmt.Errorf("map render: %w", err)
	}
	m.stats.Resorted = n

	m.dev.SetWireframe(m.opts.ShowWireframe)
	m.dev.SetFilter(gfx.Filter{
		Bilinear:    m.opts.BilinearFilter,
		Trilinear:   m.opts.TrilinearFilter,
		Anisotropic: m.opts.AnisotropicFilter,
	})
	m.stats.SolidCalls = m.submit(m.solidPass(), noOverride)

	m.dev.SetBlending(true)
	m.stats.TransparentCalls = m.submit(m.transparentPass(), noOverride)
	m.dev.SetBlending(false)

	if ctx.Light != nil {
		frames := max(m.opts.ShadowFrames, 1)
		frame := int(ctx.Frame % uint64(frames))
		if frame == 0 {
			m.UpdateShadows(*ctx.Light)
		}
		if err := m.RenderShadows(ShadowMaterial, PassSolid, frame, frames); err != nil {
			return err
		}
	}
	return nil
}

// sync rebuilds the merged buffers when they do not match the blocks of the
// main and shadow lists.
func (m *Map) sync() error {
	rs := m.builder.ResidentSet()
	if !m.cache.IsStale(rs) {
		return nil
	}
	if err := m.cache.Rebuild(rs); err != nil {
		return fmt.Errorf("map render: %w", err)
	}
	m.stats.Rebuilt = true
	return nil
}

func (m *Map) submit(ds []DrawDescriptor, override world.MaterialID) int {
	for _, d := range ds {
		m.dev.Draw(d.call(override))
	}
	return len(ds)
}

// solidPass draws each opaque buffer whole when it holds only blocks of the
// draw list, otherwise as runs of the draw list blocks it holds.
func (m *Map) solidPass() []DrawDescriptor {
	defer profiling.Track("mapnode.solidPass")()
	list := m.builder.DrawList()
	ds := m.descriptors[:0]
	for _, mb := range m.cache.Entries() {
		if mb.Transparent() || mb.IndexCount() == 0 {
			continue
		}
		positions := mb.Positions()
		all := mb.Packed()
		for _, p := range positions {
			if !list.Contains(p) {
				all = false
				break
			}
		}
		if all {
			ds = append(ds, DrawDescriptor{
				Kind:        FullBuffer,
				Pos:         positions[0],
				Buffer:      mb,
				IndexOffset: 0,
				IndexCount:  mb.IndexCount(),
			})
			continue
		}
		for _, p := range positions {
			if !list.Contains(p) {
				continue
			}
			off, n, _ := mb.IndexRange(p)
			if n > 0 {
				ds = appendRange(ds, mb, p, off, n)
			}
		}
	}
	m.descriptors = ds
	return ds
}

// transparentPass walks the draw list farthest first and draws each block's
// transparent ranges, merging ranges the sorter laid out back to back.
func (m *Map) transparentPass() []DrawDescriptor {
	defer profiling.Track("mapnode.transparentPass")()
	var transparent []*meshcache.MergedBuffer
	for _, mb := range m.cache.Entries() {
		if mb.Transparent() && mb.IndexCount() > 0 {
			transparent = append(transparent, mb)
		}
	}
	ds := m.descriptors[:0]
	if len(transparent) == 0 {
		return ds
	}
	for _, e := range m.builder.DrawList().Entries() {
		for _, mb := range transparent {
			if off, n, ok := mb.IndexRange(e.Pos); ok && n > 0 {
				ds = appendRange(ds, mb, e.Pos, off, n)
			}
		}
	}
	m.descriptors = ds
	return ds
}

// UpdateShadows rebuilds the shadow caster list for light.
func (m *Map) UpdateShadows(light drawlist.ShadowLight) {
	m.builder.UpdateDrawListShadow(light)
}

// RenderShadows draws the shadow casters of pass with material. The casters
// are spread over totalFrames frames; this call draws the share of frame.
func (m *Map) RenderShadows(material world.MaterialID, pass Pass, frame, totalFrames int) error {
	defer profiling.Track("mapnode.RenderShadows")()
	if err := m.sync(); err != nil {
		return err
	}
	totalFrames = max(totalFrames, 1)
	ds := m.descriptors[:0]
	entries := m.cache.Entries()
	for i, e := range m.builder.ShadowList().Entries() {
		if i%totalFrames != frame {
			continue
		}
		for _, mb := range entries {
			if mb.Transparent() != (pass == PassTransparent) {
				continue
			}
			if off, n, ok := mb.IndexRange(e.Pos); ok && n > 0 {
				ds = appendRange(ds, mb, e.Pos, off, n)
			}
		}
	}
	m.descriptors = ds
	m.stats.ShadowCalls += m.submit(ds, material)
	return nil
}
