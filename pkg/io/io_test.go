package io

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

func testDesign() *db.Design {
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	u1 := b.Inst("u1", 0, 0, 0, geom.R0)
	u2 := b.Inst("u2", 1, 400, 0, geom.MX)
	b.Net("n1", db.TermRef{Inst: u1, Term: 1}, db.TermRef{Inst: u2, Term: 0})
	b.D.IOTerms = []db.IOTerm{{Name: "in", Net: db.NoNet, Pins: []db.Pin{{Shapes: []db.Shape{{Layer: dbtest.M1, Rect: geom.R(0, 265, 400, 335)}}}}}}
	return b.Build()
}

func TestDesignRoundTrip(t *testing.T) {
	d := testDesign()
	var buf bytes.Buffer
	if err := WriteDesign(d, &buf); err != nil {
		t.Fatalf("WriteDesign() error: %v", err)
	}
	got, err := ReadDesign(&buf)
	if err != nil {
		t.Fatalf("ReadDesign() error: %v", err)
	}
	if !reflect.DeepEqual(got.Tech, d.Tech) || !reflect.DeepEqual(got.Masters, d.Masters) {
		t.Error("tech or masters changed in round trip")
	}
	if len(got.Instances) != 2 || got.Instances[1].Orient != geom.MX || got.Instances[1].Origin != geom.Pt(400, 0) {
		t.Errorf("instances = %+v", got.Instances)
	}
	// The connectivity index is rebuilt on import.
	if got.TermNet(0, 1) != 0 || got.TermNet(1, 0) != 0 || got.TermNet(0, 0) != db.NoNet {
		t.Error("connectivity index not rebuilt")
	}
	if got.Instances[0].PinAccessIdx != -1 {
		t.Errorf("PinAccessIdx = %d, want -1 before classification", got.Instances[0].PinAccessIdx)
	}
}

func TestReadDesignErrors(t *testing.T) {
	valid := func() map[string]any {
		var buf bytes.Buffer
		_ = WriteDesign(testDesign(), &buf)
		var m map[string]any
		_ = json.Unmarshal(buf.Bytes(), &m)
		return m
	}
	tests := []struct {
		name   string
		modify func(map[string]any)
	}{
		{"no tech", func(m map[string]any) { delete(m, "tech") }},
		{"unknown field", func(m map[string]any) { m["placement"] = 1 }},
		{"duplicate instance", func(m map[string]any) {
			insts := m["instances"].([]any)
			m["instances"] = append(insts, insts[0])
		}},
		{"blank instance name", func(m map[string]any) {
			m["instances"].([]any)[0].(map[string]any)["name"] = "u 1"
		}},
		{"net to missing instance", func(m map[string]any) {
			m["nets"] = []any{map[string]any{"name": "bad", "terms": []any{map[string]any{"inst": 7, "term": 0}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.modify(m)
			data, _ := json.Marshal(m)
			_, err := ReadDesign(bytes.NewReader(data))
			if !errors.Is(err, errors.ErrCodeInvalidDesign) {
				t.Errorf("ReadDesign() error = %v, want %s", err, errors.ErrCodeInvalidDesign)
			}
		})
	}
}

func TestReadMoves(t *testing.T) {
	d := testDesign()
	in := `[{"inst": "u2", "origin": {"X": 800, "Y": 0}, "orient": "FS"}, {"inst": "u1", "remove": true}]`
	moves, err := ReadMoves(strings.NewReader(in), d)
	if err != nil {
		t.Fatalf("ReadMoves() error: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("len(moves) = %d, want 2", len(moves))
	}
	if moves[0].Inst != 1 || moves[0].Origin != geom.Pt(800, 0) || moves[0].Orient != geom.MX {
		t.Errorf("moves[0] = %+v", moves[0])
	}
	if moves[1].Inst != 0 || !moves[1].Remove {
		t.Errorf("moves[1] = %+v", moves[1])
	}

	_, err = ReadMoves(strings.NewReader(`[{"inst": "nope"}]`), d)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("ReadMoves(unknown) error = %v, want %s", err, errors.ErrCodeNotFound)
	}
}

func TestWriteAssignments(t *testing.T) {
	d := testDesign()
	rs := []access.Resolved{
		{Inst: 0, IO: -1, Term: 1, Pin: 0, Point: geom.Pt(300, 500), Layer: dbtest.M1, Dirs: access.DirSet(0).With(access.Up), Via: 1, Cost: 0},
		{Inst: -1, IO: 0, Term: -1, Point: geom.Pt(100, 300), Layer: dbtest.M1, Dirs: access.AllPlanar, Via: -1, Cost: 4, BestEffort: true},
	}
	var buf bytes.Buffer
	if err := WriteAssignments(d, rs, &buf); err != nil {
		t.Fatalf("WriteAssignments() error: %v", err)
	}
	var got []assignment
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := []assignment{
		{Inst: "u1", Term: "Y", X: 300, Y: 500, Layer: "M1", Dirs: "U", Via: "V12_R"},
		{IO: "in", X: 100, Y: 300, Layer: "M1", Dirs: "EWNS", Cost: 4, BestEffort: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("assignments = %+v, want %+v", got, want)
	}
}
