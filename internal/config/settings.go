package config

import (
	"fmt"
	"sort"
	"sync"
)

// Option names passed to change callbacks. They match the yaml keys.
const (
	OptWantedRange                 = "wanted_range"
	OptRangeAll                    = "range_all"
	OptAllowNoclip                 = "allow_noclip"
	OptShowWireframe               = "show_wireframe"
	OptTrilinearFilter             = "trilinear_filter"
	OptBilinearFilter              = "bilinear_filter"
	OptAnisotropicFilter           = "anisotropic_filter"
	OptTransparencySortingDistance = "transparency_sorting_distance"
	OptOcclusionCuller             = "occlusion_culler"
	OptEnableRaytracedCulling      = "enable_raytraced_culling"
	OptOcclusionSamples            = "occlusion_samples"
	OptCullWorkers                 = "cull_workers"
	OptShadowFrames                = "shadow_frames"
)

// ChangedCallback is called with the name of the option that changed.
type ChangedCallback func(name string)

// Settings holds the live render options. Readers take a Snapshot once per
// frame; mutators notify the callbacks registered for the changed option.
type Settings struct {
	mu   sync.RWMutex
	opts RenderOptions

	cbMu      sync.Mutex
	nextID    int
	callbacks map[string]map[int]ChangedCallback
}

// NewSettings creates live settings initialised from opts.
func NewSettings(opts RenderOptions) *Settings {
	return &Settings{
		opts:      opts,
		callbacks: make(map[string]map[int]ChangedCallback),
	}
}

// Snapshot returns a copy of the current options.
func (s *Settings) Snapshot() RenderOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// RegisterChangedCallback registers fn for changes of the named option and
// returns a function that removes it again.
func (s *Settings) RegisterChangedCallback(name string, fn ChangedCallback) (deregister func()) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	id := s.nextID
	s.nextID++
	if s.callbacks[name] == nil {
		s.callbacks[name] = make(map[int]ChangedCallback)
	}
	s.callbacks[name][id] = fn
	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		delete(s.callbacks[name], id)
	}
}

// update applies fn under the write lock and fires callbacks if the options changed.
func (s *Settings) update(name string, fn func(o *RenderOptions)) {
	s.mu.Lock()
	before := s.opts
	fn(&s.opts)
	changed := before != s.opts
	s.mu.Unlock()
	if changed {
		s.notify(name)
	}
}

func (s *Settings) notify(name string) {
	s.cbMu.Lock()
	ids := make([]int, 0, len(s.callbacks[name]))
	for id := range s.callbacks[name] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]ChangedCallback, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.callbacks[name][id])
	}
	s.cbMu.Unlock()

	// Callbacks run outside the lock so they may read or register settings
	for _, fn := range fns {
		fn(name)
	}
}

// SetWantedRange sets the view range in nodes.
func (s *Settings) SetWantedRange(nodes float32) {
	// Clamp to reasonable values
	nodes = min(max(nodes, 20), 4000)
	s.update(OptWantedRange, func(o *RenderOptions) { o.WantedRange = nodes })
}

// SetRangeAll toggles drawing every loaded block.
func (s *Settings) SetRangeAll(v bool) {
	s.update(OptRangeAll, func(o *RenderOptions) { o.RangeAll = v })
}

// SetAllowNoclip toggles disabling occlusion while the camera is inside solid nodes.
func (s *Settings) SetAllowNoclip(v bool) {
	s.update(OptAllowNoclip, func(o *RenderOptions) { o.AllowNoclip = v })
}

// SetShowWireframe toggles wireframe rendering.
func (s *Settings) SetShowWireframe(v bool) {
	s.update(OptShowWireframe, func(o *RenderOptions) { o.ShowWireframe = v })
}

// SetTrilinearFilter toggles trilinear texture filtering.
func (s *Settings) SetTrilinearFilter(v bool) {
	s.update(OptTrilinearFilter, func(o *RenderOptions) { o.TrilinearFilter = v })
}

// SetBilinearFilter toggles bilinear texture filtering.
func (s *Settings) SetBilinearFilter(v bool) {
	s.update(OptBilinearFilter, func(o *RenderOptions) { o.BilinearFilter = v })
}

// SetAnisotropicFilter toggles anisotropic texture filtering.
func (s *Settings) SetAnisotropicFilter(v bool) {
	s.update(OptAnisotropicFilter, func(o *RenderOptions) { o.AnisotropicFilter = v })
}

// SetTransparencySortingDistance sets the distance in nodes within which
// transparent blocks are depth sorted. 0 disables sorting.
func (s *Settings) SetTransparencySortingDistance(nodes int) {
	nodes = max(nodes, 0)
	s.update(OptTransparencySortingDistance, func(o *RenderOptions) { o.TransparencySortingDistance = nodes })
}

// SetOcclusionCuller selects the occlusion policy.
func (s *Settings) SetOcclusionCuller(policy string) error {
	switch policy {
	case CullerSampling, CullerNone:
	default:
		return fmt.Errorf("unknown occlusion culler %q", policy)
	}
	s.update(OptOcclusionCuller, func(o *RenderOptions) { o.OcclusionCuller = policy })
	return nil
}

// SetEnableRaytracedCulling toggles exact ray traversal in the sampling culler.
func (s *Settings) SetEnableRaytracedCulling(v bool) {
	s.update(OptEnableRaytracedCulling, func(o *RenderOptions) { o.EnableRaytracedCulling = v })
}

// SetOcclusionSamples selects the sample point layout.
func (s *Settings) SetOcclusionSamples(layout string) error {
	switch layout {
	case SamplesCorners, SamplesFaces:
	default:
		return fmt.Errorf("unknown occlusion sample layout %q", layout)
	}
	s.update(OptOcclusionSamples, func(o *RenderOptions) { o.OcclusionSamples = layout })
	return nil
}

// SetCullWorkers sets the number of goroutines used for occlusion culling.
func (s *Settings) SetCullWorkers(n int) {
	n = min(max(n, 1), 64)
	s.update(OptCullWorkers, func(o *RenderOptions) { o.CullWorkers = n })
}

// SetShadowFrames sets over how many frames the shadow list is drawn.
func (s *Settings) SetShadowFrames(n int) {
	n = min(max(n, 1), 16)
	s.update(OptShadowFrames, func(o *RenderOptions) { o.ShadowFrames = n })
}
