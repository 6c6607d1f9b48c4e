package shader

import (
	"strings"
	"testing"
)

func preprocess(t *testing.T, src string, defines ...string) string {
	t.Helper()
	p := Preprocessor{Defines: make(map[string]struct{})}
	for _, d := range defines {
		p.Defines[d] = struct{}{}
	}
	out, err := p.Preprocess([]byte(src), "test.wgsl")
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	return string(out)
}

// code returns the non-empty lines of s, trimmed.
func code(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestPreprocessIfdef(t *testing.T) {
	src := "a\n#ifdef X\nb\n#else\nc\n#endif\nd\n"

	if got := code(preprocess(t, src, "X")); strings.Join(got, ",") != "a,b,d" {
		t.Errorf("with X: got %v", got)
	}
	if got := code(preprocess(t, src)); strings.Join(got, ",") != "a,c,d" {
		t.Errorf("without X: got %v", got)
	}
}

func TestPreprocessIfndef(t *testing.T) {
	src := "#ifndef X\nyes\n#endif\n"
	if got := code(preprocess(t, src)); len(got) != 1 || got[0] != "yes" {
		t.Errorf("got %v", got)
	}
	if got := code(preprocess(t, src, "X")); len(got) != 0 {
		t.Errorf("got %v, want nothing", got)
	}
}

func TestPreprocessNested(t *testing.T) {
	src := `#ifdef A
#ifdef B
ab
#else
a
#endif
#else
#ifdef B
b
#endif
none
#endif
`
	tests := []struct {
		defines []string
		want    string
	}{
		{[]string{"A", "B"}, "ab"},
		{[]string{"A"}, "a"},
		{[]string{"B"}, "b,none"},
		{nil, "none"},
	}
	for _, tt := range tests {
		got := strings.Join(code(preprocess(t, src, tt.defines...)), ",")
		if got != tt.want {
			t.Errorf("defines %v: got %q, want %q", tt.defines, got, tt.want)
		}
	}
}

func TestPreprocessKeepsLineNumbers(t *testing.T) {
	src := "a\n#ifdef X\nb\n#endif\nc\n"
	out := preprocess(t, src)
	lines := strings.Split(out, "\n")
	if lines[4] != "c" {
		t.Errorf("line 5 = %q, want %q", lines[4], "c")
	}
}

func TestPreprocessDefine(t *testing.T) {
	src := "#define LOCAL 1\n#ifdef LOCAL\nlocal\n#endif\n"
	if got := code(preprocess(t, src)); len(got) != 1 || got[0] != "local" {
		t.Errorf("got %v", got)
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"mismatched endif", "#endif\n", "mismatched endif"},
		{"mismatched else", "#else\n", "mismatched else"},
		{"second else", "#ifdef X\n#else\n#else\n#endif\n", "second else"},
		{"unterminated", "#ifdef X\n", "unterminated"},
		{"unknown directive", "#include foo\n", "unknown preprocessor directive"},
		{"ifdef without name", "#ifdef\n#endif\n", "needs an argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Preprocessor{}
			_, err := p.Preprocess([]byte(tt.src), "bad.wgsl")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
			if !strings.Contains(err.Error(), "bad.wgsl:") {
				t.Errorf("error %q has no location", err)
			}
		})
	}
}

func TestPreprocessReferenced(t *testing.T) {
	p := Preprocessor{}
	_, err := p.Preprocess([]byte("#ifdef B\n#endif\n#ifndef A\n#endif\n"), "x")
	if err != nil {
		t.Fatal(err)
	}
	got := p.Referenced()
	if strings.Join(got, ",") != "A,B" {
		t.Errorf("Referenced() = %v, want [A B]", got)
	}
}

func TestPreprocessSwitchesExcludeDefinedSymbols(t *testing.T) {
	src := "#ifdef OUTER\n#define LOCAL\n#endif\n#ifdef LOCAL\n#endif\n#ifndef SPLIT_INOUT\n#endif\n"
	p := Preprocessor{}
	if _, err := p.Preprocess([]byte(src), "x"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(p.Referenced(), ","); got != "LOCAL,OUTER,SPLIT_INOUT" {
		t.Errorf("Referenced() = %q", got)
	}
	if got := strings.Join(p.Switches(), ","); got != "OUTER,SPLIT_INOUT" {
		t.Errorf("Switches() = %q, want OUTER,SPLIT_INOUT", got)
	}
}
