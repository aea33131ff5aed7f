package cache

// Keyer builds cache keys. Keys embed a hash of every input that changes the
// cached value, so stale entries are simply never looked up again.
type Keyer interface {
	// ClassKey keys the planned result of one class.
	ClassKey(techHash, master, classKey string, opts ClassKeyOpts) string

	// IOKey keys the access points of a block terminal pin.
	IOKey(techHash, term string, pin int, opts ClassKeyOpts) string
}

// ClassKeyOpts holds the options that influence planning results.
type ClassKeyOpts struct {
	MinStdCellPoints  int  `json:"min_stdcell"`
	MinMacroPoints    int  `json:"min_macro"`
	ViaAccessLayer    int  `json:"via_access_layer"`
	MaxViaAccessLayer int  `json:"max_via_access_layer"`
	MaxViasPerPoint   int  `json:"max_vias"`
	CheckWindow       int  `json:"check_window"`
	Iterations        int  `json:"iterations"`
	NDRAutoTaper      bool `json:"ndr_auto_taper"`
}

// DefaultKeyer produces "class:<sha256>" and "io:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ClassKey implements Keyer.
func (DefaultKeyer) ClassKey(techHash, master, classKey string, opts ClassKeyOpts) string {
	return hashKey("class", techHash, master, classKey, opts)
}

// IOKey implements Keyer.
func (DefaultKeyer) IOKey(techHash, term string, pin int, opts ClassKeyOpts) string {
	return hashKey("io", techHash, term, pin, opts)
}

var _ Keyer = DefaultKeyer{}
