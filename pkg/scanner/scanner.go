// Package scanner implements the Include Scanner: given a BuildConfig and
// the description directory, produces the transitive set of source and
// header files the config depends on, per spec.md §4.2. The directory-walk
// expansion step is grounded on the teacher's directory-walk-skip-excluded
// pattern used across the pack for source discovery (e.g. a Go-generate
// scan), generalised here from "*.go" discovery to the engine's
// source-spec glob syntax.
package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containifyci/builder/pkg/config"
	"github.com/containifyci/builder/pkg/platform"
)

// Result is the scanner's output: every concrete source file expanded
// from the config's source specs, and the full transitive tracked-file
// set (sources + every header reached via #include), relative to root.
type Result struct {
	Sources []string
	Tracked []string
}

// Scan expands cfg's source specifications under root and follows
// #include directives transitively, per spec.md §4.2.
func Scan(ctx *platform.Context, root string, cfg *config.BuildConfig) (*Result, error) {
	sources, err := expandSources(ctx, root, cfg.Sources)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var worklist []string
	for _, s := range sources {
		if !seen[s] {
			seen[s] = true
			worklist = append(worklist, s)
		}
	}

	for i := 0; i < len(worklist); i++ {
		file := worklist[i]
		abs := filepath.Join(root, file)
		data, err := ctx.FS.ReadFile(abs)
		if err != nil {
			if ctx.Verbose {
				ctx.Log.Warn("could not read file while scanning includes", "file", abs, "error", err)
			}
			continue
		}
		includes := extractIncludes(data)
		for _, inc := range includes {
			resolved, ok := resolveInclude(ctx, root, file, inc, cfg.AdditionalIncludes)
			if !ok {
				if ctx.Verbose {
					ctx.Log.Warn("include not found", "include", inc.path, "from", file)
				}
				continue
			}
			if !seen[resolved] {
				seen[resolved] = true
				worklist = append(worklist, resolved)
			}
		}
	}

	sort.Strings(worklist)
	return &Result{Sources: sources, Tracked: worklist}, nil
}

// expandSources walks root matching each spec's filename component
// (supporting a single trailing wildcard), per spec.md §4.2 step 1.
func expandSources(ctx *platform.Context, root string, specs []string) ([]string, error) {
	var out []string
	for _, spec := range specs {
		dir, pattern := filepath.Split(spec)
		searchDir := filepath.Join(root, dir)

		if !strings.Contains(pattern, "*") {
			out = append(out, filepath.Join(dir, pattern))
			continue
		}

		prefix, suffix, _ := strings.Cut(pattern, "*")
		err := ctx.FS.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				return nil
			}
			name := info.Name()
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
				rel, rerr := filepath.Rel(root, path)
				if rerr == nil {
					out = append(out, rel)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type includeDirective struct {
	path   string
	quoted bool
}

// extractIncludes scans data lexically for #include directives, skipping
// "//" line comments before the directive and tolerating CRLF and
// backslash-escaped spaces, per spec.md §4.2's edge cases. It does not
// evaluate conditionals: every #include lexically present is reported,
// a deliberate over-approximation per spec.md §8 property 5.
func extractIncludes(data []byte) []includeDirective {
	var out []includeDirective
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		rest := strings.TrimLeft(trimmed[1:], " \t")
		if !strings.HasPrefix(rest, "include") {
			continue
		}
		rest = strings.TrimLeft(rest[len("include"):], " \t")
		if rest == "" {
			continue
		}
		quoted := rest[0] == '"'
		open, close := '"', '"'
		if rest[0] == '<' {
			quoted, open, close = false, '<', '>'
		} else if rest[0] != '"' {
			continue
		}
		end := strings.IndexRune(rest[1:], close)
		if end < 0 {
			continue
		}
		_ = open
		path := unescapeBackslashSpaces(rest[1 : 1+end])
		out = append(out, includeDirective{path: path, quoted: quoted})
	}
	return out
}

func unescapeBackslashSpaces(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}

// resolveInclude implements spec.md §4.2 steps 3-4: quoted includes
// resolve relative to the including file's directory; angle-bracket
// includes search additionalIncludes in order, first hit wins.
func resolveInclude(ctx *platform.Context, root, includingFile string, inc includeDirective, additionalIncludes []string) (string, bool) {
	if inc.quoted {
		candidate := filepath.Join(filepath.Dir(includingFile), inc.path)
		if ctx.FS.Exists(filepath.Join(root, candidate)) {
			return filepath.Clean(candidate), true
		}
		return "", false
	}
	for _, dir := range additionalIncludes {
		candidate := filepath.Join(dir, inc.path)
		abs := candidate
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, candidate)
		}
		if ctx.FS.Exists(abs) {
			rel, err := filepath.Rel(root, abs)
			if err == nil {
				return filepath.Clean(rel), true
			}
		}
	}
	return "", false
}
