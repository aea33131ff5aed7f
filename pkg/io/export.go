package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
)

type assignment struct {
	Inst       string `json:"inst,omitempty"`
	IO         string `json:"io,omitempty"`
	Term       string `json:"term,omitempty"`
	Pin        int    `json:"pin"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Layer      string `json:"layer"`
	Dirs       string `json:"dirs"`
	Via        string `json:"via,omitempty"`
	Cost       int    `json:"cost"`
	BestEffort bool   `json:"best_effort,omitempty"`
}

func named(d *db.Design, r access.Resolved) assignment {
	a := assignment{
		Pin:        r.Pin,
		X:          r.Point.X,
		Y:          r.Point.Y,
		Dirs:       r.Dirs.String(),
		Cost:       r.Cost,
		BestEffort: r.BestEffort,
	}
	if d.Tech.Valid(r.Layer) {
		a.Layer = d.Tech.Layer(r.Layer).Name
	}
	if r.Via >= 0 && r.Via < len(d.Tech.Vias) {
		a.Via = d.Tech.Vias[r.Via].Name
	}
	if r.Inst >= 0 {
		a.Inst = d.Instances[r.Inst].Name
		if m, ok := d.MasterOf(r.Inst); ok && r.Term >= 0 && r.Term < len(m.Terms) {
			a.Term = m.Terms[r.Term].Name
		}
	} else if r.IO >= 0 && int(r.IO) < len(d.IOTerms) {
		a.IO = d.IOTerms[r.IO].Name
	}
	return a
}

// WriteAssignments encodes resolved points with design names and writes
// them to w.
func WriteAssignments(d *db.Design, rs []access.Resolved, w io.Writer) error {
	out := make([]assignment, len(rs))
	for i, r := range rs {
		out[i] = named(d, r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportAssignments writes resolved points to a JSON file at path.
func ExportAssignments(d *db.Design, rs []access.Resolved, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteAssignments(d, rs, f)
}

// WriteDesign encodes d as JSON. The output can be re-imported with
// [ReadDesign].
func WriteDesign(d *db.Design, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
