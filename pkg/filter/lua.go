package filter

import (
	lua "github.com/yuin/gopher-lua"
)

// Lua evaluates a chunk with __key__/__value__ (or __id__/__doc__, via
// CheckDoc, which the document layer calls) in scope; the chunk's
// returned value is read as a boolean (spec.md §4.4
// "evaluates a chunk with __key__/__value__ ... in scope").
type Lua struct {
	identityFilter
	chunk string
}

// NewLua compiles nothing eagerly — gopher-lua chunks are cheap enough
// to load per call, and a state must not be shared across goroutines
// without its own locking, so each Check gets a fresh *lua.LState.
func NewLua(chunk string) (*Lua, error) {
	if chunk == "" {
		return nil, ErrEmptyFilterField
	}
	return &Lua{chunk: chunk}, nil
}

func (l *Lua) RequiresValue() bool { return true }

func (l *Lua) Check(key, value []byte) bool {
	return l.eval("__key__", key, "__value__", value)
}

// CheckDoc evaluates the chunk with __id__/__doc__ bound instead, for
// document-collection list/iter calls (spec.md §4.4).
func (l *Lua) CheckDoc(id uint64, doc []byte) bool {
	L := lua.NewState()
	defer L.Close()
	L.SetGlobal("__id__", lua.LNumber(id))
	L.SetGlobal("__doc__", lua.LString(doc))
	return l.run(L)
}

func (l *Lua) eval(keyName string, key []byte, valName string, value []byte) bool {
	L := lua.NewState()
	defer L.Close()
	L.SetGlobal(keyName, lua.LString(key))
	L.SetGlobal(valName, lua.LString(value))
	return l.run(L)
}

func (l *Lua) run(L *lua.LState) bool {
	if err := L.DoString(l.chunk); err != nil {
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}
