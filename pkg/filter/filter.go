// Package filter implements the filter plane (spec.md §4.4): the
// built-in prefix/suffix filters, a Lua-scripted filter, and a registry
// for native (`.so`) filters loaded via the stdlib plugin package.
// Every filter satisfies pkg/backend.Filter so a backend can evaluate
// candidates without materialising rejected records.
package filter

import (
	"bytes"

	"github.com/mochi-hpc/yokan-go/pkg/backend"
	"github.com/mochi-hpc/yokan-go/pkg/wire"
)

// Filter extends backend.Filter with the copy-sizing half of spec.md
// §4.4: key_size_from/value_size_from/key_copy/value_copy let a filter
// transform what gets copied back to the caller (e.g. strip a prefix).
type Filter interface {
	backend.Filter

	KeySizeFrom(key []byte) int
	ValueSizeFrom(value []byte) int
	KeyCopy(dst, key []byte) int
	ValueCopy(dst, value []byte) int
}

// identityFilter copies key/value through unchanged; embedded by the
// built-ins below so each only needs to override Check.
type identityFilter struct{}

func (identityFilter) KeySizeFrom(key []byte) int     { return len(key) }
func (identityFilter) ValueSizeFrom(value []byte) int { return len(value) }
func (identityFilter) KeyCopy(dst, key []byte) int     { return copy(dst, key) }
func (identityFilter) ValueCopy(dst, value []byte) int { return copy(dst, value) }

// Prefix is the default filter: matches keys beginning with Pattern.
type Prefix struct {
	identityFilter
	Pattern []byte
}

func (p Prefix) RequiresValue() bool { return false }
func (p Prefix) Check(key, _ []byte) bool { return bytes.HasPrefix(key, p.Pattern) }

// Suffix matches keys ending with Pattern (mode bit ModeSuffix).
type Suffix struct {
	identityFilter
	Pattern []byte
}

func (s Suffix) RequiresValue() bool { return false }
func (s Suffix) Check(key, _ []byte) bool { return bytes.HasSuffix(key, s.Pattern) }

// ValueFilter wraps another filter so it inspects the value instead of
// the key (mode bit ModeFilterValue combined with a key-shaped filter).
type ValueFilter struct {
	Inner Filter
}

func (v ValueFilter) RequiresValue() bool { return true }
func (v ValueFilter) Check(_, value []byte) bool { return v.Inner.Check(value, nil) }
func (v ValueFilter) KeySizeFrom(key []byte) int     { return len(key) }
func (v ValueFilter) ValueSizeFrom(value []byte) int { return v.Inner.KeySizeFrom(value) }
func (v ValueFilter) KeyCopy(dst, key []byte) int     { return copy(dst, key) }
func (v ValueFilter) ValueCopy(dst, value []byte) int { return v.Inner.KeyCopy(dst, value) }

// FromMode builds the filter selected by mode's filter bits over the
// wire `filter` field, per spec.md §4.4: prefix is the default, SUFFIX
// swaps it, LUA_FILTER runs a script, LIB_FILTER loads a native plugin.
func FromMode(mode wire.Mode, field []byte) (Filter, error) {
	var f Filter
	var err error
	switch {
	case mode.Has(wire.ModeLuaFilter):
		f, err = NewLua(string(field))
	case mode.Has(wire.ModeLibFilter):
		f, err = NewNative(field)
	case mode.Has(wire.ModeSuffix):
		f = Suffix{Pattern: field}
	default:
		f = Prefix{Pattern: field}
	}
	if err != nil {
		return nil, err
	}
	if mode.Has(wire.ModeFilterValue) {
		f = ValueFilter{Inner: f}
	}
	return f, nil
}
