package extract

import (
	"reflect"
	"testing"

	"yarasynth/internal/core/config"
	"yarasynth/internal/engine/bang"
)

func defaultOptions() Options {
	return Options{
		StringCutoff:     8,
		IdentifierCutoff: 2,
		Denylist:         config.EmptyDenylist(),
	}
}

func TestKindOf(t *testing.T) {
	elf := bang.Entry{Path: "a/libz.so", ScanEntry: bang.ScanEntry{Labels: []string{"elf", "shared"}}}
	dex := bang.Entry{Path: "a/classes.dex", ScanEntry: bang.ScanEntry{Labels: []string{"dex"}}}
	other := bang.Entry{Path: "a/readme", ScanEntry: bang.ScanEntry{Labels: []string{"text"}}}

	if k, ok := KindOf(elf); !ok || k != KindELF {
		t.Fatalf("expected elf, got %q %v", k, ok)
	}
	if k, ok := KindOf(dex); !ok || k != KindDEX {
		t.Fatalf("expected dex, got %q %v", k, ok)
	}
	if _, ok := KindOf(other); ok {
		t.Fatal("expected unrecognized entry")
	}
}

func TestExtractELF(t *testing.T) {
	rec := &bang.Record{
		TLSH: "T1AA",
		Metadata: &bang.Metadata{
			Telfhash: "t1ff",
			Strings:  []string{"hello world", "short", "        ", "hello world", `path "C:\x"`},
			Symbols: []bang.Symbol{
				{Name: "inflate@@ZLIB_1.2", Type: "func", Binding: "global", SectionIndex: 12},
				{Name: "printf", Type: "func", Binding: "global", SectionIndex: 0},
				{Name: "z_errmsg", Type: "object", Binding: "global", SectionIndex: 20},
				{Name: "_init", Type: "func", Binding: "global", SectionIndex: 10},
			},
		},
	}
	opts := defaultOptions()
	opts.Denylist.ELF.Functions = config.IdentifierSet{"_init": {}}

	res := Extract(KindELF, rec, opts)
	want := Sorted{
		Strings:   []string{"hello world", `path \"C:\\x\"`},
		Functions: []string{"inflate"},
		Variables: []string{"z_errmsg"},
	}
	if !reflect.DeepEqual(res.Identifiers, want) {
		t.Fatalf("unexpected identifiers:\n got %#v\nwant %#v", res.Identifiers, want)
	}
	if res.Telfhash != "t1ff" {
		t.Fatalf("expected telfhash to be carried, got %q", res.Telfhash)
	}
	if res.Truncated != 0 {
		t.Fatalf("expected no truncation, got %d", res.Truncated)
	}
}

func TestExtractDEX(t *testing.T) {
	rec := &bang.Record{Metadata: &bang.Metadata{
		Classes: []bang.Class{
			{
				Name: "Lcom/example/Main;",
				Methods: []bang.Method{
					{Name: "<init>", Strings: []string{"constructor literal"}},
					{Name: "onCreate", Strings: []string{"tiny", "activity started"}},
					{Name: "access$000"},
					{Name: "toString"},
				},
				Fields: []bang.Field{{Name: "mContext"}, {Name: "TAG"}, {Name: " "}},
			},
		},
	}}
	opts := defaultOptions()
	opts.Denylist.DEX = config.KindDenylist{
		Functions: config.IdentifierSet{"toString": {}},
		Variables: config.IdentifierSet{"TAG": {}},
	}

	res := Extract(KindDEX, rec, opts)
	want := Sorted{
		Strings:   []string{"activity started", "constructor literal"},
		Functions: []string{"onCreate"},
		Variables: []string{"mContext"},
	}
	if !reflect.DeepEqual(res.Identifiers, want) {
		t.Fatalf("unexpected identifiers:\n got %#v\nwant %#v", res.Identifiers, want)
	}
	if res.Telfhash != "" {
		t.Fatalf("expected no telfhash for dex, got %q", res.Telfhash)
	}
}

func TestExtractMissingMetadata(t *testing.T) {
	res := Extract(KindELF, &bang.Record{TLSH: "T1"}, defaultOptions())
	if !res.Identifiers.Empty() {
		t.Fatalf("expected empty identifiers, got %#v", res.Identifiers)
	}
	res = Extract(KindDEX, nil, defaultOptions())
	if !res.Identifiers.Empty() {
		t.Fatalf("expected empty identifiers for nil record, got %#v", res.Identifiers)
	}
}

func TestExtractEverythingFiltered(t *testing.T) {
	rec := &bang.Record{Metadata: &bang.Metadata{
		Strings: []string{"abc", "\t\t\t\t\t\t\t\t\t"},
		Symbols: []bang.Symbol{{Name: "x", Type: "func", SectionIndex: 1}},
	}}
	if res := Extract(KindELF, rec, defaultOptions()); !res.Identifiers.Empty() {
		t.Fatalf("expected empty identifiers, got %#v", res.Identifiers)
	}
}

func TestLimit(t *testing.T) {
	in := Sorted{
		Strings:   []string{"s1", "s2", "s3"},
		Functions: []string{"f1", "f2"},
		Variables: []string{"v1", "v2"},
	}

	tests := []struct {
		name      string
		max       int
		want      Sorted
		truncated int
	}{
		{name: "disabled", max: 0, want: in, truncated: 0},
		{name: "under limit", max: 7, want: in, truncated: 0},
		{name: "functions only", max: 1, want: Sorted{Strings: []string{}, Functions: []string{"f1"}, Variables: []string{}}, truncated: 6},
		{name: "into variables", max: 3, want: Sorted{Strings: []string{}, Functions: []string{"f1", "f2"}, Variables: []string{"v1"}}, truncated: 4},
		{name: "into strings", max: 5, want: Sorted{Strings: []string{"s1"}, Functions: []string{"f1", "f2"}, Variables: []string{"v1", "v2"}}, truncated: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Limit(in, tt.max)
			if truncated != tt.truncated {
				t.Fatalf("expected %d truncated, got %d", tt.truncated, truncated)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected result:\n got %#v\nwant %#v", got, tt.want)
			}
		})
	}
}

func TestExtractAppliesLimit(t *testing.T) {
	rec := &bang.Record{Metadata: &bang.Metadata{
		Strings: []string{"string number one", "string number two"},
		Symbols: []bang.Symbol{
			{Name: "beta", Type: "func", SectionIndex: 1},
			{Name: "alpha", Type: "func", SectionIndex: 1},
		},
	}}
	opts := defaultOptions()
	opts.MaxIdentifiers = 3

	res := Extract(KindELF, rec, opts)
	if res.Truncated != 1 {
		t.Fatalf("expected one truncated identifier, got %d", res.Truncated)
	}
	if !reflect.DeepEqual(res.Identifiers.Functions, []string{"alpha", "beta"}) ||
		!reflect.DeepEqual(res.Identifiers.Strings, []string{"string number one"}) {
		t.Fatalf("unexpected identifiers %#v", res.Identifiers)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Yara.IgnoreWeakSymbols = true
	opts := OptionsFromConfig(cfg)
	if opts.StringCutoff != config.DefaultStringCutoff || opts.IdentifierCutoff != config.DefaultIdentifierCutoff {
		t.Fatalf("unexpected cutoffs %+v", opts)
	}
	if !opts.IgnoreWeakSymbols || opts.MaxIdentifiers != config.DefaultMaxIdentifiers {
		t.Fatalf("unexpected options %+v", opts)
	}
}
