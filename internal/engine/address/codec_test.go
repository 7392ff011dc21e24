package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNormalizesSeparators(t *testing.T) {
	got := Create("myproj", `src\foo.ts`, KindFunction, "bar")
	assert.Equal(t, "myproj/src/foo.ts#Function:bar", got)
}

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		project, file string
		kind          NodeKind
		symbol        string
	}{
		{"myproj", "src/foo.ts", KindFunction, "bar"},
		{"docs", "guide/intro.md", KindHeading, "Getting Started"},
		{"core", "a/b/c/deep.py", KindClass, "Processor"},
		{"core", "x.go", KindMethod, "Store.Get"},
	}

	for _, tc := range cases {
		raw := Create(tc.project, tc.file, tc.kind, tc.symbol)
		p := Parse(raw)
		require.True(t, p.IsValid, "address %q should parse", raw)
		assert.Equal(t, tc.project, p.Project)
		assert.Equal(t, tc.file, p.FilePath)
		assert.Equal(t, tc.kind, p.Kind)
		assert.Equal(t, tc.symbol, p.SymbolName)
	}
}

func TestParseRejections(t *testing.T) {
	cases := []string{
		"not-an-address",
		"proj/file#Type:",       // empty symbol
		"proj/file#BadType:x",   // unknown kind
		"#Function:x",           // missing project/path
		"proj/file-Function:x",  // missing #
		"proj/file#Function-x",  // missing :
	}

	for _, raw := range cases {
		ok, errs := Validate(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
		assert.NotEmpty(t, errs, "expected errors for %q", raw)
	}
}

func TestParseNeverPanics(t *testing.T) {
	for _, raw := range []string{"", ":", "#", "//#:", "a/b#c:d:e"} {
		assert.NotPanics(t, func() { Parse(raw) })
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := `myproj/src\sub\foo.ts#Class:Widget`
	once := Normalize(raw)
	assert.Equal(t, "myproj/src/sub/foo.ts#Class:Widget", once)
	assert.Equal(t, once, Normalize(once))
}

func TestNormalizeInvalidUnchanged(t *testing.T) {
	assert.Equal(t, "garbage", Normalize("garbage"))
}

func TestEqual(t *testing.T) {
	a := `myproj/src\foo.ts#Function:bar`
	b := "myproj/src/foo.ts#Function:bar"
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, "myproj/src/foo.ts#Function:baz"))
	assert.False(t, Equal("bad", "bad"))
}

func TestAccessors(t *testing.T) {
	raw := "myproj/src/foo.ts#Function:bar"

	file, ok := FilePath(raw)
	require.True(t, ok)
	assert.Equal(t, "src/foo.ts", file)

	proj, ok := ProjectName(raw)
	require.True(t, ok)
	assert.Equal(t, "myproj", proj)

	sym, ok := SymbolName(raw)
	require.True(t, ok)
	assert.Equal(t, "bar", sym)

	kind, ok := Kind(raw)
	require.True(t, ok)
	assert.Equal(t, KindFunction, kind)

	_, ok = FilePath("nope")
	assert.False(t, ok)
	_, ok = Kind("proj/file#BadType:x")
	assert.False(t, ok)
}

func TestRelationalKindsAreAddressable(t *testing.T) {
	raw := Create("myproj", "src/foo.ts", KindParsedBy, "typescript")
	p := Parse(raw)
	require.True(t, p.IsValid)
	assert.Equal(t, KindParsedBy, p.Kind)
}
