package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defdoc/internal/config"
	"defdoc/internal/metrics"
	"defdoc/internal/resolver"
	"defdoc/internal/source"
	"defdoc/internal/storage"
)

const rubyRS = "extern \"C\" {\n" +
	"    //+ c-module: object.c `VALUE rb_mBar`\n" +
	"    pub static rb_mBar: VALUE;\n" +
	"    //+ c-class: object.c `VALUE rb_cFoo`\n" +
	"    /// stale\n" +
	"    pub static rb_cFoo: VALUE;\n" +
	"}\n"

const internRS = "extern \"C\" {\n" +
	"    //+ c-func: symbol.c `ID rb_intern(const char*)`\n" +
	"    pub fn rb_intern(name: *const c_char) -> ID;\n" +
	"}\n"

func nativeTree() map[string]string {
	return map[string]string{
		"include/ruby/ruby.h":   "RUBY_EXTERN VALUE rb_mBar;\nRUBY_EXTERN VALUE rb_cFoo;\n",
		"include/ruby/intern.h": "/* symbol.c */\nID rb_intern(const char*);\n",
		"object.c": "void\nInit_Object(void)\n{\n" +
			"    rb_mBar = rb_define_module(\"Bar\");\n" +
			"    rb_cFoo = rb_define_class_under(rb_mBar, \"Foo\", rb_cObject);\n" +
			"}\n",
		"symbol.c": "ID\nrb_intern(const char *name)\n{\n    return 0;\n}\n",
	}
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Bindings.Root = root
	cfg.Versions = []config.Version{
		{Short: "2.3", Tag: "v2_3_7", Doc: "2.3.7"},
		{Short: "2.6", Tag: "v2_6_0_preview2"},
	}
	return cfg
}

func bindingsDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ruby.rs"), []byte(rubyRS), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "intern.rs"), []byte(internRS), 0644))
	return root
}

func snapshots() *source.MapProvider {
	return source.NewMapProvider(map[string]map[string]string{
		"v2_3_7":          nativeTree(),
		"v2_6_0_preview2": nativeTree(),
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestGenerator_InPlace(t *testing.T) {
	root := bindingsDir(t)
	g := NewGenerator(testConfig(root), snapshots(), nil)

	var out bytes.Buffer
	res, err := g.Run(context.Background(), Options{Mode: ModeInPlace, Out: &out})
	require.NoError(t, err)
	assert.Equal(t, []string{"ruby.rs", "intern.rs"}, res.Written)
	assert.Equal(t, 3, res.Registry.Len())
	assert.Empty(t, res.Warnings)

	want := "extern \"C\" {\n" +
		"    //+ c-func: symbol.c `ID rb_intern(const char*)`\n" +
		"    /// # Defined In\n" +
		"    ///\n" +
		"    /// * **2.3:**\n" +
		"    ///     [intern.h](https://github.com/ruby/ruby/blob/v2_3_7/include/ruby/intern.h#L2) |\n" +
		"    ///     [symbol.c](https://github.com/ruby/ruby/blob/v2_3_7/symbol.c#L2-L5)\n" +
		"    /// * **2.6:**\n" +
		"    ///     [intern.h](https://github.com/ruby/ruby/blob/v2_6_0_preview2/include/ruby/intern.h#L2) |\n" +
		"    ///     [symbol.c](https://github.com/ruby/ruby/blob/v2_6_0_preview2/symbol.c#L2-L5)\n" +
		"    pub fn rb_intern(name: *const c_char) -> ID;\n" +
		"}\n"
	assert.Equal(t, want, readFile(t, filepath.Join(root, "intern.rs")))

	ruby := readFile(t, filepath.Join(root, "ruby.rs"))
	assert.Contains(t, ruby, "[documentation](https://ruby-doc.org/core-2.3.7/Bar/Foo.html)")
	assert.NotContains(t, ruby, "/// stale")
	assert.Contains(t, out.String(), "Resolving 3 definitions against 2.3")

	// a second run over its own output changes nothing
	again, err := NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Mode: ModeInPlace})
	require.NoError(t, err)
	assert.Empty(t, again.Written)
	assert.Empty(t, again.Stale)
}

func TestGenerator_DeterministicAcrossJobs(t *testing.T) {
	run := func(jobs int) (string, string) {
		root := bindingsDir(t)
		_, err := NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Jobs: jobs})
		require.NoError(t, err)
		return readFile(t, filepath.Join(root, "ruby.rs")), readFile(t, filepath.Join(root, "intern.rs"))
	}

	r1, i1 := run(1)
	r8, i8 := run(8)
	assert.Equal(t, r1, r8)
	assert.Equal(t, i1, i8)
}

func TestGenerator_CheckMode(t *testing.T) {
	root := bindingsDir(t)

	var out bytes.Buffer
	res, err := NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Mode: ModeCheck, Out: &out})
	require.True(t, errors.Is(err, ErrStale))
	assert.Equal(t, []string{"ruby.rs", "intern.rs"}, res.Stale)
	assert.Empty(t, res.Written)
	assert.Contains(t, out.String(), "+++ b/intern.rs")
	assert.Equal(t, internRS, readFile(t, filepath.Join(root, "intern.rs")), "check mode never writes")

	_, err = NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{})
	require.NoError(t, err)

	_, err = NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Mode: ModeCheck})
	assert.NoError(t, err)
}

func TestGenerator_DryRun(t *testing.T) {
	root := bindingsDir(t)

	var out bytes.Buffer
	res, err := NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Mode: ModeDryRun, Out: &out})
	require.NoError(t, err)
	assert.Len(t, res.Stale, 2)
	assert.Empty(t, res.Written)
	assert.Contains(t, out.String(), "-    /// stale")
	assert.Equal(t, rubyRS, readFile(t, filepath.Join(root, "ruby.rs")))
}

func TestGenerator_OutputDir(t *testing.T) {
	root := bindingsDir(t)
	dest := filepath.Join(t.TempDir(), "out")

	res, err := NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Mode: ModeOutputDir, OutputDir: dest})
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)
	assert.Equal(t, internRS, readFile(t, filepath.Join(root, "intern.rs")))
	assert.Contains(t, readFile(t, filepath.Join(dest, "intern.rs")), "# Defined In")

	_, err = NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{Mode: ModeOutputDir})
	assert.Error(t, err)
}

func TestGenerator_FailsFastWithoutWriting(t *testing.T) {
	root := bindingsDir(t)
	broken := nativeTree()
	broken["symbol.c"] = "ID\nrb_intern2(const char *name)\n{\n}\n"
	files := source.NewMapProvider(map[string]map[string]string{
		"v2_3_7":          nativeTree(),
		"v2_6_0_preview2": broken,
	})

	res, err := NewGenerator(testConfig(root), files, nil).Run(context.Background(), Options{Jobs: 4})
	var nf *resolver.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "2.6", nf.Version)
	assert.Contains(t, err.Error(), "resolve 2.6")

	assert.Empty(t, res.Written)
	assert.Equal(t, rubyRS, readFile(t, filepath.Join(root, "ruby.rs")))
	assert.Equal(t, internRS, readFile(t, filepath.Join(root, "intern.rs")))

	last := res.Report.Stages[len(res.Report.Stages)-1]
	assert.Equal(t, "resolve 2.6", last.Name)
	assert.Equal(t, "error", last.Status)
}

func TestGenerator_EmptyRegistryIsFatal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ruby.rs"), []byte("// nothing\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "intern.rs"), []byte(""), 0644))

	_, err := NewGenerator(testConfig(root), snapshots(), nil).Run(context.Background(), Options{})
	assert.ErrorContains(t, err, "no definitions found")
}

func TestGenerator_WarningsAndUnmanagedFiles(t *testing.T) {
	root := bindingsDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.rs"), []byte("//+ c-func: x.c `VALUE rb_x(void)`\n"), 0644))

	tree := nativeTree()
	tree["object.c"] = strings.Replace(tree["object.c"], `rb_define_module("Bar")`, `rb_module_new()`, 1)
	files := source.NewMapProvider(map[string]map[string]string{"v2_3_7": tree, "v2_6_0_preview2": tree})

	res, err := NewGenerator(testConfig(root), files, nil).Run(context.Background(), Options{Jobs: 3})
	require.NoError(t, err)

	var got []string
	for _, w := range res.Warnings {
		got = append(got, w.Version+" "+w.Definition.Name+" "+w.Reason)
	}
	assert.Equal(t, []string{
		"2.3 rb_mBar missing_public_name",
		"2.3 rb_cFoo missing_namespace",
		"2.6 rb_mBar missing_public_name",
	}, got, "2.6 has no doc site so no namespace lookup")

	codes := map[string]int{}
	for _, s := range res.Report.Signals {
		codes[s.Code]++
	}
	assert.Equal(t, 1, codes["unmanaged_file"])
	assert.Equal(t, 4, res.Report.Warnings(), "three resolver warnings plus the unmanaged file")
}

func TestGenerator_RunReportAndMetrics(t *testing.T) {
	root := bindingsDir(t)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	g := NewGenerator(testConfig(root), snapshots(), nil)
	g.Store = store
	g.Metrics = metrics.New()

	res, err := g.Run(context.Background(), Options{})
	require.NoError(t, err)

	latest, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.RunID, latest)

	rows, err := store.LoadLinks(context.Background(), latest, "Bar::Foo")
	require.NoError(t, err)
	require.Len(t, rows, 5, "2.3 has docs, header and source; 2.6 has header and source")
	assert.Equal(t, "documentation", rows[0].Category)

	promPath := filepath.Join(t.TempDir(), "defdoc.prom")
	require.NoError(t, g.Metrics.WriteTextfile(promPath))
	assert.Contains(t, readFile(t, promPath), "defdoc_files_written_total 2")

	reportPath := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, res.Report.Save(reportPath))
	var saved Report
	require.NoError(t, json.Unmarshal([]byte(readFile(t, reportPath)), &saved))
	assert.Equal(t, res.RunID, saved.RunID)
	assert.Equal(t, 3, saved.Summary.Definitions)
	assert.Equal(t, 2, saved.Summary.FilesChanged)
	assert.Equal(t, 0, saved.Summary.FailedStages)
	assert.Equal(t, []string{"2.3", "2.6"}, saved.Versions)
}

// editingProvider runs edit before every checkout, after parsing is done.
type editingProvider struct {
	*source.MapProvider
	edit func()
}

func (p *editingProvider) Checkout(ctx context.Context, v config.Version) error {
	p.edit()
	return p.MapProvider.Checkout(ctx, v)
}

func TestGenerator_RendersContentItParsed(t *testing.T) {
	root := bindingsDir(t)
	files := &editingProvider{MapProvider: snapshots(), edit: func() {
		require.NoError(t, os.WriteFile(filepath.Join(root, "intern.rs"), []byte("// edited\n"), 0644))
	}}

	var out bytes.Buffer
	res, err := NewGenerator(testConfig(root), files, nil).Run(context.Background(), Options{Mode: ModeDryRun, Out: &out})
	require.NoError(t, err)
	require.Len(t, res.Updates, 2)
	assert.Equal(t, internRS, res.Updates[1].Original)
	assert.Contains(t, res.Updates[1].Updated, "[symbol.c](https://github.com/ruby/ruby/blob/v2_6_0_preview2/symbol.c#L2-L5)")
	assert.NotContains(t, out.String(), "edited")
}
