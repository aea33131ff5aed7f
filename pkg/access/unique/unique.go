// Package unique groups placed instances into equivalence classes whose pin
// access can be analyzed once.
//
// Two instances share a class exactly when they share master, orientation,
// the offset of their origin against every relevant preferred-direction track
// pattern, and (unless NDR auto-tapering is enabled) neither touches a net
// with a non-default rule. One member per class, the representative, is the
// instance on which access points and patterns are computed.
//
// Classes live in an arena addressed by class ID. Deleting the representative
// promotes the remaining member with the lowest handle; the class's patterns
// and pin-access index carry over unchanged because access points are stored
// relative to the instance origin.
package unique

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/geom"
)

// NoTrack is the offset recorded for a track pattern the instance box does
// not reach.
const NoTrack = -1

// Key is the equivalence class key of an instance.
type Key struct {
	Master db.MasterID
	Orient geom.Orient
	// Offsets holds one entry per relevant preferred-direction track pattern,
	// in design track order.
	Offsets []int
	// NDR is the instance handle for instances isolated by a non-default
	// rule, -1 otherwise.
	NDR int
}

// String is the canonical form of k. Keys are equal iff their strings are.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(k.Master)))
	b.WriteByte('/')
	b.WriteString(k.Orient.String())
	b.WriteByte('/')
	for i, o := range k.Offsets {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(o))
	}
	if k.NDR >= 0 {
		b.WriteString("/ndr")
		b.WriteString(strconv.Itoa(k.NDR))
	}
	return b.String()
}

// Class is one equivalence class.
type Class struct {
	ID     int
	Key    Key
	Master db.MasterID
	// Rep is the representative ("unique instance").
	Rep db.InstID
	// Members is sorted ascending and always contains Rep.
	Members []db.InstID
	// PAIdx selects this class's PinAccess sets on the master's pins.
	PAIdx int
	// Order is the pin order patterns are indexed by.
	Order    []access.PinRef
	Patterns []access.Pattern
	// Dirty marks classes whose access must be (re)generated.
	Dirty bool
}

// Options configures classification.
type Options struct {
	// NDRAutoTaper lets instances on NDR nets share classes, since their
	// wires are tapered to default rules at the pin.
	NDRAutoTaper bool
	Logger       *log.Logger
}

// Classifier maintains the instance to class partition.
//
// Classifier is not safe for concurrent mutation. Classification runs in a
// sequential phase; the worker pool only reads classes and writes each
// class's own Order, Patterns and Dirty fields.
type Classifier struct {
	d      *db.Design
	store  *access.Store
	opts   Options
	logger *log.Logger

	classes []*Class // nil slots are destroyed classes
	byKey   map[string]int
	of      []int // InstID -> class ID, -1 when unclassified
	skipped map[db.InstID]bool
}

// New returns an empty classifier for d. Pin-access indices are allocated
// from store.
func New(d *db.Design, store *access.Store, opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	c := &Classifier{
		d:       d,
		store:   store,
		opts:    opts,
		logger:  logger,
		byKey:   make(map[string]int),
		skipped: make(map[db.InstID]bool),
	}
	c.grow()
	return c
}

func (c *Classifier) grow() {
	for len(c.of) < len(c.d.Instances) {
		c.of = append(c.of, -1)
	}
}

// Key computes the class key of inst. It is a pure function of the
// instance's master, orientation, origin, the design tracks and NDR
// connectivity.
func (c *Classifier) Key(inst db.InstID) (Key, error) {
	in := &c.d.Instances[inst]
	m, ok := c.d.MasterOf(inst)
	if !ok {
		return Key{}, errors.New(errors.ErrCodeUnknownMaster, "instance %s: master %d is not registered", in.Name, in.Master)
	}
	lo, hi, ok := m.PinLayerRange(c.d.Tech)
	if !ok {
		return Key{}, errors.New(errors.ErrCodeNoPinLayers, "instance %s: master %s has no pin on a routing layer", in.Name, m.Name)
	}
	// Access may step one routing layer above the top pin layer.
	if up := c.d.Tech.RoutingAbove(hi); up != db.NoLayer {
		hi = up
	}

	key := Key{Master: in.Master, Orient: in.Orient, NDR: -1}
	box := c.d.Box(inst)
	for _, tp := range c.d.PrefTracks() {
		if tp.Layer < lo || tp.Layer > hi {
			continue
		}
		key.Offsets = append(key.Offsets, trackOffset(tp, in.Origin, box))
	}
	if !c.opts.NDRAutoTaper && c.d.HasNDR(inst) {
		key.NDR = int(inst)
	}
	return key, nil
}

func trackOffset(tp *db.TrackPattern, origin geom.Point, box geom.Rect) int {
	if tp.Step <= 0 || tp.Count <= 0 {
		return NoTrack
	}
	lo, hi, o := box.XLo, box.XHi, origin.X
	if tp.Dir == db.Horizontal {
		lo, hi, o = box.YLo, box.YHi, origin.Y
	}
	if hi < tp.Start || lo > tp.Last() {
		return NoTrack
	}
	return geom.Mod(o-tp.Start, tp.Step)
}

// Add inserts inst into the class for its key, creating the class when
// needed. isNew reports whether the class was just created. A master
// without pin layers yields a soft NO_PIN_LAYERS error and the instance is
// left unclassified.
func (c *Classifier) Add(inst db.InstID) (isNew bool, err error) {
	c.grow()
	if c.of[inst] >= 0 {
		return false, errors.New(errors.ErrCodeInternal, "instance %s is already classified", c.d.Instances[inst].Name)
	}
	key, err := c.Key(inst)
	if err != nil {
		if errors.IsSoft(err) {
			c.skipped[inst] = true
			c.logger.Warn("instance skipped from class dedup", "inst", c.d.Instances[inst].Name, "err", errors.UserMessage(err))
		}
		return false, err
	}
	delete(c.skipped, inst)

	ks := key.String()
	if id, ok := c.byKey[ks]; ok {
		cls := c.classes[id]
		i, _ := slices.BinarySearch(cls.Members, inst)
		cls.Members = slices.Insert(cls.Members, i, inst)
		c.of[inst] = id
		c.d.Instances[inst].PinAccessIdx = cls.PAIdx
		return false, nil
	}

	cls := &Class{
		ID:      len(c.classes),
		Key:     key,
		Master:  key.Master,
		Rep:     inst,
		Members: []db.InstID{inst},
		PAIdx:   c.store.Alloc(key.Master),
		Dirty:   true,
	}
	c.classes = append(c.classes, cls)
	c.byKey[ks] = cls.ID
	c.of[inst] = cls.ID
	c.d.Instances[inst].PinAccessIdx = cls.PAIdx
	return true, nil
}

// Delete removes inst from its class. It returns the representative of the
// class afterwards; ok is false when inst was unclassified or the class was
// destroyed with its last member.
func (c *Classifier) Delete(inst db.InstID) (rep db.InstID, ok bool) {
	c.grow()
	delete(c.skipped, inst)
	id := c.of[inst]
	if id < 0 {
		return -1, false
	}
	c.of[inst] = -1
	cls := c.classes[id]
	if i, found := slices.BinarySearch(cls.Members, inst); found {
		cls.Members = slices.Delete(cls.Members, i, i+1)
	}
	if len(cls.Members) == 0 {
		delete(c.byKey, cls.Key.String())
		c.store.Release(cls.Master, cls.PAIdx)
		c.classes[id] = nil
		return -1, false
	}
	if cls.Rep == inst {
		cls.Rep = cls.Members[0]
		c.logger.Debug("representative promoted", "class", cls.ID, "rep", c.d.Instances[cls.Rep].Name)
	}
	return cls.Rep, true
}

// Classify adds every live, unclassified instance. Soft failures are logged
// and counted; the first fatal error aborts.
func (c *Classifier) Classify() (skipped int, err error) {
	for _, inst := range c.d.Live() {
		if c.Classified(inst) {
			continue
		}
		if _, err := c.Add(inst); err != nil {
			if errors.IsSoft(err) {
				skipped++
				continue
			}
			return skipped, err
		}
	}
	return skipped, nil
}

// ClassOf returns the class of inst.
func (c *Classifier) ClassOf(inst db.InstID) (*Class, bool) {
	if int(inst) >= len(c.of) || c.of[inst] < 0 {
		return nil, false
	}
	return c.classes[c.of[inst]], true
}

// Classified reports whether inst belongs to a class.
func (c *Classifier) Classified(inst db.InstID) bool {
	_, ok := c.ClassOf(inst)
	return ok
}

// IsRep reports whether inst represents its class.
func (c *Classifier) IsRep(inst db.InstID) bool {
	cls, ok := c.ClassOf(inst)
	return ok && cls.Rep == inst
}

// Class returns the live class with the given ID.
func (c *Classifier) Class(id int) (*Class, bool) {
	if id < 0 || id >= len(c.classes) || c.classes[id] == nil {
		return nil, false
	}
	return c.classes[id], true
}

// Classes returns the live classes in ID order.
func (c *Classifier) Classes() []*Class {
	out := make([]*Class, 0, len(c.classes))
	for _, cls := range c.classes {
		if cls != nil {
			out = append(out, cls)
		}
	}
	return out
}

// DirtyClasses returns the live classes marked dirty, in ID order.
func (c *Classifier) DirtyClasses() []*Class {
	var out []*Class
	for _, cls := range c.Classes() {
		if cls.Dirty {
			out = append(out, cls)
		}
	}
	return out
}

// Skipped returns the instances left out of classification for lacking pin
// layers, in handle order.
func (c *Classifier) Skipped() []db.InstID {
	out := make([]db.InstID, 0, len(c.skipped))
	for inst := range c.skipped {
		out = append(out, inst)
	}
	slices.Sort(out)
	return out
}

// Propagate writes the class pin-access index to every member.
func (c *Classifier) Propagate(cls *Class) {
	for _, m := range cls.Members {
		c.d.Instances[m].PinAccessIdx = cls.PAIdx
	}
}

// PatternsOf returns the pin order, patterns and pin sets that apply to
// inst. ok is false for unclassified instances and classes without
// patterns.
func (c *Classifier) PatternsOf(inst db.InstID) (order []access.PinRef, pats []access.Pattern, pins access.PinSet, ok bool) {
	cls, found := c.ClassOf(inst)
	if !found || len(cls.Patterns) == 0 {
		return nil, nil, nil, false
	}
	return cls.Order, cls.Patterns, c.store.Get(cls.Master, cls.PAIdx), true
}

// Check verifies the partition: every live classified instance is in
// exactly one class, every member points back at its class, and every
// representative is a member.
func (c *Classifier) Check() error {
	seen := make(map[db.InstID]int)
	for _, cls := range c.Classes() {
		if len(cls.Members) == 0 {
			return fmt.Errorf("class %d is empty", cls.ID)
		}
		if _, ok := slices.BinarySearch(cls.Members, cls.Rep); !ok {
			return fmt.Errorf("class %d: representative %d is not a member", cls.ID, cls.Rep)
		}
		for _, m := range cls.Members {
			if prev, dup := seen[m]; dup {
				return fmt.Errorf("instance %d in classes %d and %d", m, prev, cls.ID)
			}
			seen[m] = cls.ID
			if c.of[m] != cls.ID {
				return fmt.Errorf("instance %d: index says class %d, member of %d", m, c.of[m], cls.ID)
			}
		}
	}
	for inst, id := range c.of {
		if id >= 0 {
			if _, ok := seen[db.InstID(inst)]; !ok {
				return fmt.Errorf("instance %d indexed to class %d but not a member", inst, id)
			}
		}
	}
	return nil
}
