package directive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defdoc/internal/registry"
)

func TestMatch(t *testing.T) {
	d, ok := Match("    //+ c-func: symbol.c `ID rb_intern(const char*)`")
	require.True(t, ok)
	assert.Equal(t, "    ", d.Indent)
	assert.Equal(t, "c-func", d.Command)
	assert.Equal(t, "symbol.c `ID rb_intern(const char*)`", d.Args)
	assert.Equal(t, registry.KindFunction, d.Kind)

	d, ok = Match("//+ function-definition: symbol.c `ID rb_intern(const char*)`")
	require.True(t, ok)
	assert.Equal(t, registry.KindFunction, d.Kind, "descriptive alias")

	d, ok = Match("//+ c-macro: ruby.h `RSTRING_PTR`")
	require.True(t, ok)
	assert.False(t, d.Known())

	for _, line := range []string{
		"// c-func: symbol.c `ID rb_intern(const char*)`",
		"/// # Defined In",
		"pub fn rb_intern(name: *const c_char) -> ID;",
		"//+c-func: missing space",
	} {
		_, ok := Match(line)
		assert.False(t, ok, line)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Args
	}{
		{
			name: "class",
			line: "//+ c-class: object.c `VALUE rb_cObject`",
			want: Args{SourcePath: "object.c", Signature: "VALUE rb_cObject", Type: "VALUE", Name: "rb_cObject"},
		},
		{
			name: "module with trailing space",
			line: "//+ c-module: object.c `VALUE rb_mKernel`  ",
			want: Args{SourcePath: "object.c", Signature: "VALUE rb_mKernel", Type: "VALUE", Name: "rb_mKernel"},
		},
		{
			name: "function",
			line: "//+ c-func: symbol.c `ID rb_intern(const char*)`",
			want: Args{SourcePath: "symbol.c", Signature: "ID rb_intern(const char*)", Type: "ID", Name: "rb_intern", Arguments: "const char*"},
		},
		{
			name: "function with pointer return and nested path",
			line: "//+ c-func: enc/utf_8.c `const char *rb_enc_name(rb_encoding *enc)`",
			want: Args{SourcePath: "enc/utf_8.c", Signature: "const char *rb_enc_name(rb_encoding *enc)", Type: "const char *", Name: "rb_enc_name", Arguments: "rb_encoding *enc"},
		},
		{
			name: "function without arguments",
			line: "//+ c-func: array.c `VALUE rb_ary_new(void)`",
			want: Args{SourcePath: "array.c", Signature: "VALUE rb_ary_new(void)", Type: "VALUE", Name: "rb_ary_new", Arguments: "void"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Match(tt.line)
			require.True(t, ok)
			got, err := d.ParseArgs()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs_GrammarMismatch(t *testing.T) {
	for _, line := range []string{
		"//+ c-class: object.c VALUE rb_cObject",
		"//+ c-class: object.h `VALUE rb_cObject`",
		"//+ c-func: symbol.c `ID rb_intern`",
		"//+ c-module: object.c `VALUE Kernel`",
	} {
		d, ok := Match(line)
		require.True(t, ok, line)
		_, err := d.ParseArgs()
		assert.Error(t, err, line)
	}
}

func TestParser_ParseFile(t *testing.T) {
	lines := []string{
		"extern {",
		"    //+ c-module: object.c `VALUE rb_mKernel`",
		"    pub static rb_mKernel: VALUE;",
		"    //+ c-macro: ruby.h `RTEST`",
		"    //+ c-func: symbol.c `ID rb_intern(const char*)`",
		"    pub fn rb_intern(name: *const c_char) -> ID;",
		"}",
	}

	reg := registry.New()
	p := NewParser(reg, nil)
	require.NoError(t, p.ParseFile("ruby.rs", "ruby.h", lines))

	assert.Equal(t, 1, p.Unknown)
	require.Equal(t, 2, reg.Len())

	kernel := reg.All()[0]
	assert.Equal(t, registry.KindModule, kernel.Kind)
	assert.Equal(t, "ruby.h", kernel.HeaderPath)
	assert.Equal(t, "object.c", kernel.SourcePath)
	assert.Equal(t, registry.Origin{File: "ruby.rs", Line: 2}, kernel.Origin)

	intern, ok := reg.Lookup(registry.KindFunction, "ID rb_intern(const char*)")
	require.True(t, ok)
	assert.Equal(t, "const char*", intern.Arguments)
	assert.Equal(t, 5, intern.Origin.Line)
}

func TestParser_ParseFileGrammarErrorIsFatal(t *testing.T) {
	lines := []string{
		"// header",
		"//+ c-class: object.c `VALUE`",
	}

	reg := registry.New()
	err := NewParser(reg, nil).ParseFile("ruby.rs", "ruby.h", lines)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, "ruby.rs", perr.File)
	assert.Contains(t, err.Error(), "//+ c-class: object.c `VALUE`")
	assert.Equal(t, 0, reg.Len())
}

func TestParser_DuplicateAcrossFiles(t *testing.T) {
	reg := registry.New()
	p := NewParser(reg, nil)
	require.NoError(t, p.ParseFile("ruby.rs", "ruby.h", []string{"//+ c-class: object.c `VALUE rb_cObject`"}))

	err := p.ParseFile("intern.rs", "intern.h", []string{"//+ c-module: object.c `VALUE rb_cObject`"})
	assert.ErrorIs(t, err, registry.ErrDuplicate)
}
