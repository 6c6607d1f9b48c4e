package shader

import (
	"bytes"
	"fmt"
	"sort"
)

// Preprocessor resolves conditional blocks in WGSL sources.
//
// Supported directives, each alone on its line:
//
//	#ifdef NAME
//	#ifndef NAME
//	#else
//	#endif
//	#define NAME [VALUE]
//
// Directive lines and lines in inactive branches are replaced by empty
// lines, so compiler diagnostics keep the line numbers of the original file.
type Preprocessor struct {
	// Defines is the set of defined symbols.
	Defines map[string]struct{}

	// referenced collects every symbol tested by #ifdef/#ifndef.
	referenced map[string]struct{}

	// declared collects every symbol named by a #define, active or not.
	declared map[string]struct{}
}

type condFrame struct {
	active     bool
	elsePassed bool
}

// Preprocess returns source with all directives resolved. name is used in
// error locations.
func (p *Preprocessor) Preprocess(source []byte, name string) ([]byte, error) {
	defines := make(map[string]struct{}, len(p.Defines))
	for k := range p.Defines {
		defines[k] = struct{}{}
	}
	p.referenced = make(map[string]struct{})
	p.declared = make(map[string]struct{})

	out := make([]byte, 0, len(source))
	var stack []condFrame
	lineNo := 0
	errorf := func(f string, v ...any) error {
		return fmt.Errorf("%s (at %s:%d)", fmt.Sprintf(f, v...), name, lineNo)
	}
	active := func() bool {
		for _, f := range stack {
			if !f.active {
				return false
			}
		}
		return true
	}

	for len(source) > 0 {
		lineNo++
		var line []byte
		line, source, _ = bytes.Cut(source, []byte("\n"))

		trimmed := bytes.TrimSpace(line)
		if !bytes.HasPrefix(trimmed, []byte("#")) {
			if active() {
				out = append(out, line...)
			}
			out = append(out, '\n')
			continue
		}

		directive, arg, _ := bytes.Cut(trimmed[1:], []byte(" "))
		arg = bytes.TrimSpace(arg)
		if i := bytes.Index(arg, []byte("//")); i >= 0 {
			arg = bytes.TrimSpace(arg[:i])
		}

		switch string(directive) {
		case "ifdef", "ifndef":
			if len(arg) == 0 {
				return nil, errorf("#%s needs an argument", directive)
			}
			p.referenced[string(arg)] = struct{}{}
			_, exists := defines[string(arg)]
			stack = append(stack, condFrame{active: (string(directive) == "ifdef") == exists})
		case "else":
			if len(stack) == 0 {
				return nil, errorf("mismatched else")
			}
			if len(arg) != 0 {
				return nil, errorf("#else directive doesn't accept arguments")
			}
			top := &stack[len(stack)-1]
			if top.elsePassed {
				return nil, errorf("second else for same ifdef/ifndef")
			}
			top.elsePassed = true
			top.active = !top.active
		case "endif":
			if len(stack) == 0 {
				return nil, errorf("mismatched endif")
			}
			if len(arg) != 0 {
				return nil, errorf("#endif directive doesn't accept arguments")
			}
			stack = stack[:len(stack)-1]
		case "define":
			if len(arg) == 0 {
				return nil, errorf("#define needs an argument")
			}
			sym, _, _ := bytes.Cut(arg, []byte(" "))
			p.declared[string(sym)] = struct{}{}
			if active() {
				defines[string(sym)] = struct{}{}
			}
		default:
			return nil, errorf("unknown preprocessor directive %q", directive)
		}
		out = append(out, '\n')
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unterminated conditional block (at %s:%d)", name, lineNo)
	}
	return out, nil
}

// Referenced returns the symbols tested by the last Preprocess call,
// sorted by name.
func (p *Preprocessor) Referenced() []string {
	names := make([]string, 0, len(p.referenced))
	for k := range p.referenced {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Switches returns the symbols tested by the last Preprocess call that the
// source does not #define itself, sorted by name. These are the names a
// caller can switch on.
func (p *Preprocessor) Switches() []string {
	var names []string
	for _, k := range p.Referenced() {
		if _, ok := p.declared[k]; !ok {
			names = append(names, k)
		}
	}
	return names
}
