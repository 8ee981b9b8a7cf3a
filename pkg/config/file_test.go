package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charlie0129/gazectl/pkg/preview"
	"github.com/charlie0129/gazectl/pkg/session"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "gazectl-config")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	p := filepath.Join(dir, name)
	if content != "" {
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return p
}

func TestDefaults(t *testing.T) {
	f, err := NewFile(writeTemp(t, "missing.json", ""))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if f.CalibrationMode() != preview.Mode2D {
		t.Errorf("mode = %s, want 2d", f.CalibrationMode())
	}
	if !f.DisplayEyeImages() {
		t.Errorf("eye images should default to on")
	}
	if got := f.AvailableScenes(); len(got) != 1 || got[0] != "Demo" {
		t.Errorf("scenes = %v", got)
	}
	if f.DeferredDelay() != time.Second {
		t.Errorf("deferred delay = %s, want 1s", f.DeferredDelay())
	}
	if f.Texts() != session.DefaultTexts() {
		t.Errorf("texts = %+v, want defaults", f.Texts())
	}
	if cam := f.Camera(); cam.FieldOfView != 90 || cam.Aspect != 16.0/9.0 {
		t.Errorf("camera = %+v", cam)
	}
	if len(f.Geometry()) != 0 {
		t.Errorf("expected no geometry overrides, got %v", f.Geometry())
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeTemp(t, "gazectl.json", `{
  "calibrationMode": "3d",
  "displayEyeImages": false,
  "availableScenes": ["Menu", "Demo"],
  "currentSceneIndex": 1,
  "deferredDelay": "250ms",
  "cancelSupersededDeferred": true,
  "texts": {"connected": "Forbundet"}
}`)
	f, err := NewFile(p)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if f.CalibrationMode() != preview.Mode3D || f.DisplayEyeImages() {
		t.Errorf("mode/eyes = %s/%t", f.CalibrationMode(), f.DisplayEyeImages())
	}
	if f.CurrentSceneIndex() != 1 || f.AvailableScenes()[1] != "Demo" {
		t.Errorf("scene = %d of %v", f.CurrentSceneIndex(), f.AvailableScenes())
	}
	if f.DeferredDelay() != 250*time.Millisecond || !f.CancelSupersededDeferred() {
		t.Errorf("deferred = %s/%t", f.DeferredDelay(), f.CancelSupersededDeferred())
	}
	texts := f.Texts()
	if texts.Connected != "Forbundet" || texts.CalibrationDone != session.DefaultTexts().CalibrationDone {
		t.Errorf("texts = %+v", texts)
	}
}

func TestLoadYAMLAndSave(t *testing.T) {
	p := writeTemp(t, "gazectl.yaml", `
calibrationMode: 2d
camera:
  fieldOfView: 60
geometry:
  2d:
    center: {x: 0.5, y: 0.5, z: 0}
    depthRadius:
      - {depth: 3, radius: 0.1}
`)
	f, err := NewFile(p)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if f.Camera().FieldOfView != 60 {
		t.Errorf("fov = %v, want 60", f.Camera().FieldOfView)
	}
	g := f.Geometry()[preview.Mode2D]
	if len(g.DepthRadius) != 1 || g.DepthRadius[0].Depth != 3 {
		t.Fatalf("geometry = %+v", g)
	}

	f.SetCalibrationMode(preview.Mode3D)
	f.SetCancelSupersededDeferred(true)
	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewFile(p)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CalibrationMode() != preview.Mode3D || !reloaded.CancelSupersededDeferred() {
		t.Errorf("saved values not reloaded: %s/%t", reloaded.CalibrationMode(), reloaded.CancelSupersededDeferred())
	}
	if reloaded.Camera().FieldOfView != 60 {
		t.Errorf("fov lost on save")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"mode":        `{"calibrationMode": "4d"}`,
		"delay":       `{"deferredDelay": "soon"}`,
		"scene index": `{"availableScenes": ["Demo"], "currentSceneIndex": 1}`,
		"aspect":      `{"camera": {"aspect": 0}}`,
		"geometry":    `{"geometry": {"flat": {}}}`,
		"syntax":      `{`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewFile(writeTemp(t, "c.json", content)); err == nil {
				t.Fatalf("expected error for %s", content)
			}
		})
	}
}

func TestRawFileConfigRoundTrip(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	f.SetCurrentSceneIndex(0)

	raw, err := NewRawFileConfigFromConfig(f)
	if err != nil {
		t.Fatalf("NewRawFileConfigFromConfig: %v", err)
	}
	if *raw.DeferredDelay != "1s" || *raw.CalibrationMode != "2d" || *raw.CurrentSceneIndex != 0 {
		t.Errorf("raw = %+v", raw)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out of range scene index")
		}
	}()
	f.SetCurrentSceneIndex(5)
}
