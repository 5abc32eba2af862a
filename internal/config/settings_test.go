package config

import "testing"

func TestSettingsCallbacksFireOnChange(t *testing.T) {
	s := NewSettings(DefaultRenderOptions())

	var got []string
	s.RegisterChangedCallback(OptWantedRange, func(name string) { got = append(got, name) })
	s.RegisterChangedCallback(OptShowWireframe, func(name string) { got = append(got, name) })

	s.SetWantedRange(300)
	s.SetShowWireframe(true)
	s.SetShowWireframe(true) // unchanged, no callback

	if len(got) != 2 || got[0] != OptWantedRange || got[1] != OptShowWireframe {
		t.Fatalf("callbacks = %v", got)
	}
	snap := s.Snapshot()
	if snap.WantedRange != 300 || !snap.ShowWireframe {
		t.Errorf("snapshot not updated: %+v", snap)
	}
}

func TestSettingsDeregister(t *testing.T) {
	s := NewSettings(DefaultRenderOptions())
	calls := 0
	deregister := s.RegisterChangedCallback(OptRangeAll, func(string) { calls++ })
	s.SetRangeAll(true)
	deregister()
	s.SetRangeAll(false)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSettingsClampAndValidate(t *testing.T) {
	s := NewSettings(DefaultRenderOptions())
	s.SetWantedRange(1)
	if got := s.Snapshot().WantedRange; got != 20 {
		t.Errorf("wanted range clamped to %v, want 20", got)
	}
	s.SetShadowFrames(100)
	if got := s.Snapshot().ShadowFrames; got != 16 {
		t.Errorf("shadow frames clamped to %d, want 16", got)
	}
	if err := s.SetOcclusionCuller("bogus"); err == nil {
		t.Error("expected error for unknown culler")
	}
	if err := s.SetOcclusionCuller(CullerNone); err != nil {
		t.Errorf("SetOcclusionCuller: %v", err)
	}
	if s.Snapshot().OcclusionCuller != CullerNone {
		t.Error("culler not applied")
	}
}

func TestSettingsCallbackMayReadSettings(t *testing.T) {
	s := NewSettings(DefaultRenderOptions())
	var seen bool
	s.RegisterChangedCallback(OptAllowNoclip, func(string) {
		seen = s.Snapshot().AllowNoclip
	})
	s.SetAllowNoclip(false)
	s.SetAllowNoclip(true)
	if !seen {
		t.Error("callback should observe the new value")
	}
}
