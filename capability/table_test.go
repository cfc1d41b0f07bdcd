package capability_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/momentics/hioload-bridge/capability"
)

func TestTableVersionGating(t *testing.T) {
	tbl := capability.NewTable("2021.3.5")
	tbl.Value("platform", "linux")
	if tbl.RegisterSince("2022.1", "render.pipeline.asset", func() (any, error) { return "URP", nil }) {
		t.Error("property newer than host registered")
	}
	if !tbl.RegisterSince("2021.3", "color.space", func() (any, error) { return "Linear", nil }) {
		t.Error("property older than host rejected")
	}

	if got := tbl.Names(); !reflect.DeepEqual(got, []string{"color.space", "platform"}) {
		t.Errorf("Names = %v", got)
	}
	if _, err := tbl.Get("render.pipeline.asset"); !errors.Is(err, capability.ErrUnknownProperty) {
		t.Errorf("gated property: %v", err)
	}
	v, err := tbl.Get("color.space")
	if err != nil || v != "Linear" {
		t.Errorf("color.space = %v, %v", v, err)
	}
}

func TestTableAccessorError(t *testing.T) {
	tbl := capability.NewTable("1")
	boom := errors.New("no active scene")
	tbl.Register("scene.name", func() (any, error) { return nil, boom })
	if _, err := tbl.Get("scene.name"); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestTableHandle(t *testing.T) {
	tbl := capability.NewTable("3.1")
	tbl.Value("threads", 8)
	tbl.Value("platform", "linux")

	raw, err := tbl.Handle(json.RawMessage(`{"name":"threads"}`))
	if err != nil {
		t.Fatal(err)
	}
	var one struct {
		Name  string
		Value int
	}
	if err := json.Unmarshal(raw, &one); err != nil || one.Name != "threads" || one.Value != 8 {
		t.Errorf("single = %s (%v)", raw, err)
	}

	raw, err = tbl.Handle(json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	var all struct {
		Version    string
		Properties map[string]any
	}
	if err := json.Unmarshal(raw, &all); err != nil || all.Version != "3.1" || len(all.Properties) != 2 {
		t.Errorf("all = %s (%v)", raw, err)
	}

	if _, err := tbl.Handle(json.RawMessage(`{"name":"gpu"}`)); !errors.Is(err, capability.ErrUnknownProperty) {
		t.Errorf("unknown: %v", err)
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2022.3.1", "2022.3", 1},
		{"2022.3", "2022.3.0", 0},
		{"2021.10", "2021.9", 1},
		{"1", "2", -1},
	}
	for _, c := range cases {
		if got := capability.CompareVersions(c.a, c.b); got != c.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
