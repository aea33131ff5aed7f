package cache

// ScopedKeyer prefixes every key of an inner keyer, so several designs or
// users can share one Redis instance without seeing each other's entries.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "chip_top:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns a keyer prepending prefix. A nil inner keyer uses
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ClassKey implements Keyer.
func (k *ScopedKeyer) ClassKey(techHash, master, classKey string, opts ClassKeyOpts) string {
	return k.prefix + k.inner.ClassKey(techHash, master, classKey, opts)
}

// IOKey implements Keyer.
func (k *ScopedKeyer) IOKey(techHash, term string, pin int, opts ClassKeyOpts) string {
	return k.prefix + k.inner.IOKey(techHash, term, pin, opts)
}
