package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/pinaccess/pkg/access/incr"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// ReadDesign decodes a design from r, validates it and builds its
// connectivity index. ReadDesign does not close r.
func ReadDesign(r io.Reader) (*db.Design, error) {
	var d db.Design
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDesign, err, "decode")
	}
	if err := d.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDesign, err, "design %s", d.Name)
	}
	if err := validateNames(&d); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(d.Instances))
	for i := range d.Instances {
		in := &d.Instances[i]
		if seen[in.Name] {
			return nil, errors.New(errors.ErrCodeInvalidDesign, "duplicate instance name %q", in.Name)
		}
		seen[in.Name] = true
		in.PinAccessIdx = -1
	}
	d.Index()
	return &d, nil
}

func validateNames(d *db.Design) error {
	for _, m := range d.Masters {
		if err := errors.ValidateName("master", m.Name); err != nil {
			return err
		}
	}
	for _, in := range d.Instances {
		if err := errors.ValidateName("instance", in.Name); err != nil {
			return err
		}
	}
	for _, n := range d.Nets {
		if err := errors.ValidateName("net", n.Name); err != nil {
			return err
		}
	}
	for _, t := range d.IOTerms {
		if err := errors.ValidateName("terminal", t.Name); err != nil {
			return err
		}
	}
	return nil
}

// ImportDesign reads a design file at path.
func ImportDesign(path string) (*db.Design, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadDesign(f)
}

type move struct {
	Inst   string      `json:"inst"`
	Origin geom.Point  `json:"origin"`
	Orient geom.Orient `json:"orient"`
	Remove bool        `json:"remove,omitempty"`
}

// ReadMoves decodes a move list from r and resolves instance names
// against d.
func ReadMoves(r io.Reader, d *db.Design) ([]incr.Move, error) {
	var raw []move
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	out := make([]incr.Move, len(raw))
	for i, mv := range raw {
		inst, ok := d.InstByName(mv.Inst)
		if !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "move %d: instance %q", i, mv.Inst)
		}
		out[i] = incr.Move{Inst: inst, Origin: mv.Origin, Orient: mv.Orient, Remove: mv.Remove}
	}
	return out, nil
}

// ImportMoves reads a move file at path.
func ImportMoves(path string, d *db.Design) ([]incr.Move, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadMoves(f, d)
}
