package mapnode

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"voxmap/internal/profiling"
)

// BufferInfo describes one merged buffer.
type BufferInfo struct {
	Key           string `yaml:"key"`
	Material      string `yaml:"material"`
	Transparent   bool   `yaml:"transparent"`
	Blocks        int    `yaml:"blocks"`
	Vertices      int    `yaml:"vertices"`
	Indices       int    `yaml:"indices"`
	UsedBytes     int    `yaml:"used_bytes"`
	CapacityBytes int    `yaml:"capacity_bytes"`
}

// DebugInfo is a snapshot of the map renderer state.
type DebugInfo struct {
	DrawList   int `yaml:"draw_list"`
	KeepList   int `yaml:"keep_list"`
	ShadowList int `yaml:"shadow_list"`

	Candidates    int  `yaml:"candidates"`
	NoMesh        int  `yaml:"no_mesh"`
	FrustumCulled int  `yaml:"frustum_culled"`
	Occluded      int  `yaml:"occluded"`
	Noclip        bool `yaml:"noclip"`

	Buffers       []BufferInfo `yaml:"buffers"`
	LiveBytes     int          `yaml:"live_bytes"`
	UploadedBytes int          `yaml:"uploaded_bytes"`
	BuffersGrown  int          `yaml:"buffers_grown"`

	SolidCalls       int `yaml:"solid_calls"`
	TransparentCalls int `yaml:"transparent_calls"`
	ShadowCalls      int `yaml:"shadow_calls"`

	Timings map[string]string `yaml:"timings,omitempty"`
}

// DebugInfo collects the current state of the draw lists, the cache and
// this frame's timers.
func (m *Map) DebugInfo() DebugInfo {
	ds := m.builder.Stats()
	cs := m.cache.LastStats()
	info := DebugInfo{
		DrawList:         m.builder.DrawList().Len(),
		KeepList:         len(m.builder.KeepList()),
		ShadowList:       m.builder.ShadowList().Len(),
		Candidates:       ds.Candidates,
		NoMesh:           ds.NoMesh,
		FrustumCulled:    ds.FrustumCulled,
		Occluded:         ds.Occluded,
		Noclip:           ds.Noclip,
		LiveBytes:        m.cache.LiveBytes(),
		UploadedBytes:    cs.UploadedBytes,
		BuffersGrown:     cs.BuffersGrown,
		SolidCalls:       m.stats.SolidCalls,
		TransparentCalls: m.stats.TransparentCalls,
		ShadowCalls:      m.stats.ShadowCalls,
	}
	for _, mb := range m.cache.Entries() {
		info.Buffers = append(info.Buffers, BufferInfo{
			Key:           mb.Key().String(),
			Material:      mb.Material().Name,
			Transparent:   mb.Transparent(),
			Blocks:        mb.Contributors(),
			Vertices:      mb.VertexCount(),
			Indices:       mb.IndexCount(),
			UsedBytes:     mb.UsedBytes(),
			CapacityBytes: mb.CapacityBytes(),
		})
	}
	if t := profiling.Snapshot(); len(t) > 0 {
		info.Timings = make(map[string]string, len(t))
		for name, d := range t {
			info.Timings[name] = d.Round(time.Microsecond).String()
		}
	}
	return info
}

// PrintInfo writes DebugInfo to w as YAML.
func (m *Map) PrintInfo(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.DebugInfo()); err != nil {
		return fmt.Errorf("print map info: %w", err)
	}
	return enc.Close()
}

// LogInfo logs a summary of DebugInfo at info level.
func (m *Map) LogInfo() {
	info := m.DebugInfo()
	m.log.Info("map renderer",
		zap.Int("drawList", info.DrawList),
		zap.Int("keepList", info.KeepList),
		zap.Int("shadowList", info.ShadowList),
		zap.Int("occluded", info.Occluded),
		zap.Int("buffers", len(info.Buffers)),
		zap.Int("liveBytes", info.LiveBytes),
		zap.Int("uploadedBytes", info.UploadedBytes),
		zap.String("top", profiling.TopN(5)))
}
