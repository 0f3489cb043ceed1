package filter

import (
	"fmt"
	"plugin"
	"strings"
	"sync"
)

// ErrEmptyFilterField is returned when a mode bit selects a scripted or
// native filter but the wire `filter` field is empty.
var ErrEmptyFilterField = fmt.Errorf("filter: empty filter field for selected mode")

// NativeFactory builds a Filter from the opaque configuration bytes
// that follow a native filter spec's argbytes separator (spec.md §4.4
// "libname.so:symbol:argbytes ... the registered factory is called
// with the remaining bytes as opaque configuration").
type NativeFactory func(config []byte) (Filter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]NativeFactory{}
)

// Register makes a native filter factory available under name, for
// process-init registration by custom filters compiled into the
// provider binary (spec.md §4.4 "custom filters register by name at
// process init").
func Register(name string, factory NativeFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

func lookup(name string) (NativeFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// NewNative parses a `libname.so:symbol:argbytes` spec. If libname is
// already registered by name (via Register), that factory is used
// directly; otherwise libname.so is dlopen'd via the stdlib plugin
// package and symbol is looked up as a NativeFactory-shaped value.
func NewNative(spec []byte) (Filter, error) {
	if len(spec) == 0 {
		return nil, ErrEmptyFilterField
	}
	parts := strings.SplitN(string(spec), ":", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("filter: malformed native filter spec %q", spec)
	}
	libname, symbol := parts[0], parts[1]
	var argbytes []byte
	if len(parts) == 3 {
		argbytes = []byte(parts[2])
	}

	if factory, ok := lookup(libname); ok {
		return factory(argbytes)
	}

	p, err := plugin.Open(libname)
	if err != nil {
		return nil, fmt.Errorf("filter: opening native plugin %s: %w", libname, err)
	}
	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("filter: looking up symbol %s in %s: %w", symbol, libname, err)
	}
	factory, ok := sym.(func([]byte) (Filter, error))
	if !ok {
		return nil, fmt.Errorf("filter: symbol %s in %s is not a NativeFactory", symbol, libname)
	}
	return factory(argbytes)
}
