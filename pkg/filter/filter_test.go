package filter

import (
	"testing"

	"github.com/mochi-hpc/yokan-go/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestPrefixFilter(t *testing.T) {
	f := Prefix{Pattern: []byte("foo")}
	require.False(t, f.RequiresValue())
	require.True(t, f.Check([]byte("foobar"), nil))
	require.False(t, f.Check([]byte("barfoo"), nil))
}

func TestSuffixFilter(t *testing.T) {
	f := Suffix{Pattern: []byte("bar")}
	require.True(t, f.Check([]byte("foobar"), nil))
	require.False(t, f.Check([]byte("barfoo"), nil))
}

func TestFromModeDefaultsToPrefix(t *testing.T) {
	f, err := FromMode(wire.ModeDefault, []byte("pre"))
	require.NoError(t, err)
	_, ok := f.(Prefix)
	require.True(t, ok)
}

func TestFromModeSuffix(t *testing.T) {
	f, err := FromMode(wire.ModeSuffix, []byte("suf"))
	require.NoError(t, err)
	_, ok := f.(Suffix)
	require.True(t, ok)
}

func TestFromModeFilterValueWraps(t *testing.T) {
	f, err := FromMode(wire.ModeFilterValue, []byte("v"))
	require.NoError(t, err)
	_, ok := f.(ValueFilter)
	require.True(t, ok)
	require.True(t, f.RequiresValue())
}

func TestLuaFilterEvaluatesKeyAndValue(t *testing.T) {
	f, err := NewLua(`return string.len(__key__) > 2 and __value__ == "yes"`)
	require.NoError(t, err)
	require.True(t, f.RequiresValue())
	require.True(t, f.Check([]byte("abcd"), []byte("yes")))
	require.False(t, f.Check([]byte("ab"), []byte("yes")))
	require.False(t, f.Check([]byte("abcd"), []byte("no")))
}

func TestLuaFilterDocScope(t *testing.T) {
	f, err := NewLua(`return __id__ == 3`)
	require.NoError(t, err)
	require.True(t, f.CheckDoc(3, []byte("doc")))
	require.False(t, f.CheckDoc(4, []byte("doc")))
}

func TestNewLuaRejectsEmptyChunk(t *testing.T) {
	_, err := NewLua("")
	require.ErrorIs(t, err, ErrEmptyFilterField)
}

func TestNewNativeRejectsEmptySpec(t *testing.T) {
	_, err := NewNative(nil)
	require.ErrorIs(t, err, ErrEmptyFilterField)
}

func TestNewNativeUsesRegisteredFactory(t *testing.T) {
	Register("always-true", func(config []byte) (Filter, error) {
		return Prefix{Pattern: config}, nil
	})
	f, err := NewNative([]byte("always-true:unused:ab"))
	require.NoError(t, err)
	require.True(t, f.Check([]byte("abc"), nil))
}
