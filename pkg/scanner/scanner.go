// Package scanner walks a source tree and extracts the fully-qualified
// class/interface/trait/enum names declared in every PHP file, the way
// Composer's own classmap generator does, via a single-pass byte state
// machine rather than a real PHP tokenizer.
package scanner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/libretto-pm/libretto-sub002/pkg/platform"
)

// Result is one file's scan outcome.
type Result struct {
	Path    string
	Classes []string
}

// ScanReport is the outcome of scanning an entire directory tree.
type ScanReport struct {
	// Classes maps a fully-qualified class name to the file path that
	// declares it. Files are scanned concurrently, so when two files
	// declare the same FQCN, which of the two paths is kept is not
	// defined.
	Classes map[string]string
	// ParseErrors counts files that could not be read (permission
	// denied, vanished between walk and read); parsing itself never
	// errors since the scanner treats anything it doesn't recognize as
	// plain code bytes.
	ParseErrors int
}

// skipDirs are directory names never descended into; vendor is excluded
// because a classmap build walks package source trees one at a time and
// a nested vendor/ would double-count already-installed dependencies.
var skipDirs = map[string]bool{
	".git":   true,
	"vendor": true,
	"node_modules": true,
}

// ScanDirectory walks root (symlinked ".php" files are scanned; symlinked
// directories are not descended into) and returns the FQCN ->
// path classmap for every ".php" file found, using up to maxWorkers
// goroutines for the per-file parse.
func ScanDirectory(ctx context.Context, root string, maxWorkers int) (ScanReport, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	paths, err := walkPHPFiles(root)
	if err != nil {
		return ScanReport{}, err
	}

	results := cmap.New[string]() // FQCN -> path
	var parseErrors atomicCounter

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, p := range paths {
		p := p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := ScanFile(p)
			if err != nil {
				parseErrors.add(1)
				return nil
			}
			for _, fqcn := range res.Classes {
				results.Set(fqcn, p)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScanReport{}, err
	}

	out := make(map[string]string, results.Count())
	for item := range results.IterBuffered() {
		out[item.Key] = item.Val
	}
	return ScanReport{Classes: out, ParseErrors: parseErrors.load()}, nil
}

// ScanFile reads and parses a single PHP file.
func ScanFile(path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	if len(content) == 0 {
		return Result{Path: path}, nil
	}
	classes := FindClasses(content)
	return Result{Path: path, Classes: classes}, nil
}

func walkPHPFiles(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole walk
		}
		if info.IsDir() {
			if skipDirs[info.Name()] && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".php") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// hasClassKeyword is the fast multi-substring pre-rejection check: a
// file containing none of these four keywords cannot declare any
// classlike symbol, so the byte state machine never needs to run.
func hasClassKeyword(content []byte) bool {
	return platform.ContainsAny(content, []byte("class"), []byte("interface"), []byte("trait"), []byte("enum"))
}

// FindClasses runs the single-pass state machine over content and
// returns every fully-qualified class/interface/trait/enum name it
// declares, skipping anything inside a line comment, block comment,
// single- or double-quoted string, or heredoc/nowdoc body.
func FindClasses(content []byte) []string {
	if !hasClassKeyword(content) {
		return nil
	}

	var (
		classes   []string
		namespace string
		length    = len(content)
		i         = 0

		inLineComment   bool
		inBlockComment  bool
		inSingleString  bool
		inDoubleString  bool
		inHeredoc       bool
		heredocID       []byte
	)

	for i < length {
		if inLineComment {
			if content[i] == '\n' {
				inLineComment = false
			}
			i++
			continue
		}

		if inBlockComment {
			if content[i] == '*' && i+1 < length && content[i+1] == '/' {
				inBlockComment = false
				i += 2
			} else {
				i++
			}
			continue
		}

		if inSingleString {
			if content[i] == '\\' && i+1 < length {
				i += 2
			} else if content[i] == '\'' {
				inSingleString = false
				i++
			} else {
				i++
			}
			continue
		}

		if inDoubleString {
			if content[i] == '\\' && i+1 < length {
				i += 2
			} else if content[i] == '"' {
				inDoubleString = false
				i++
			} else {
				i++
			}
			continue
		}

		if inHeredoc {
			lineStart := i
			for i < length && (content[i] == ' ' || content[i] == '\t') {
				i++
			}
			if i+len(heredocID) <= length && bytes.Equal(content[i:i+len(heredocID)], heredocID) {
				after := i + len(heredocID)
				if after >= length || content[after] == ';' || content[after] == '\n' || content[after] == ',' || content[after] == ')' {
					inHeredoc = false
					i = after
					continue
				}
			}
			i = lineStart
			for i < length && content[i] != '\n' {
				i++
			}
			if i < length {
				i++
			}
			continue
		}

		b := content[i]

		if b == '/' && i+1 < length {
			if content[i+1] == '/' {
				inLineComment = true
				i += 2
				continue
			}
			if content[i+1] == '*' {
				inBlockComment = true
				i += 2
				continue
			}
		}

		if b == '#' && i+1 < length && content[i+1] != '[' {
			inLineComment = true
			i++
			continue
		}

		if b == '\'' {
			inSingleString = true
			i++
			continue
		}
		if b == '"' {
			inDoubleString = true
			i++
			continue
		}

		if b == '<' && i+2 < length && content[i+1] == '<' && content[i+2] == '<' {
			i += 3
			for i < length && content[i] == ' ' {
				i++
			}
			if i < length && (content[i] == '\'' || content[i] == '"') {
				i++
			}
			idStart := i
			for i < length && (isAlnum(content[i]) || content[i] == '_') {
				i++
			}
			if i > idStart {
				heredocID = content[idStart:i]
				inHeredoc = true
				if i < length && (content[i] == '\'' || content[i] == '"') {
					i++
				}
				for i < length && content[i] != '\n' {
					i++
				}
				if i < length {
					i++
				}
			}
			continue
		}

		if i == 0 || isBoundaryChar(content[i-1]) {
			if b == 'n' && i+9 <= length && string(content[i:i+9]) == "namespace" {
				if i+9 >= length || isSpace(content[i+9]) {
					i += 9
					for i < length && isSpace(content[i]) {
						i++
					}
					nsStart := i
					for i < length {
						c := content[i]
						if isAlnum(c) || c == '_' || c == '\\' || isSpace(c) {
							i++
						} else {
							break
						}
					}
					var sb strings.Builder
					for _, c := range content[nsStart:i] {
						if !isSpace(c) {
							sb.WriteByte(c)
						}
					}
					namespace = sb.String()
					if namespace != "" && !strings.HasSuffix(namespace, "\\") {
						namespace += "\\"
					}
					continue
				}
			}

			if _, ok := matchKeyword(content, i, length, "class"); ok {
				i += len("class")
				if n, next, found := readName(content, i, length); found {
					classes = append(classes, namespace+n)
					i = next
				}
				continue
			}
			if _, ok := matchKeyword(content, i, length, "interface"); ok {
				i += len("interface")
				if n, next, found := readName(content, i, length); found {
					classes = append(classes, namespace+n)
					i = next
				}
				continue
			}
			if _, ok := matchKeyword(content, i, length, "trait"); ok {
				i += len("trait")
				if n, next, found := readName(content, i, length); found {
					classes = append(classes, namespace+n)
					i = next
				}
				continue
			}
			if _, ok := matchKeyword(content, i, length, "enum"); ok {
				i += len("enum")
				if n, next, found := readName(content, i, length); found {
					classes = append(classes, namespace+n)
					i = next
				}
				continue
			}
		}

		i++
	}

	return classes
}

func matchKeyword(content []byte, i, length int, kw string) (string, bool) {
	if content[i] != kw[0] {
		return "", false
	}
	end := i + len(kw)
	if end > length || string(content[i:end]) != kw {
		return "", false
	}
	if end < length && !isSpace(content[end]) {
		return "", false
	}
	return kw, true
}

func readName(content []byte, i, length int) (string, int, bool) {
	for i < length && isSpace(content[i]) {
		i++
	}
	start := i
	for i < length {
		c := content[i]
		if isAlnum(c) || c == '_' {
			i++
		} else {
			break
		}
	}
	if i == start {
		return "", i, false
	}
	name := string(content[start:i])
	if name == "extends" || name == "implements" {
		return "", i, false
	}
	return name, i, true
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// isBoundaryChar reports whether c cannot be part of a PHP identifier,
// preventing a false match like "Foo::class" or "$enum" from being
// mistaken for a keyword.
func isBoundaryChar(c byte) bool {
	return !isAlnum(c) && c != '_' && c != ':' && c != '$'
}

type atomicCounter struct {
	n atomic.Int64
}

func (c *atomicCounter) add(delta int) { c.n.Add(int64(delta)) }
func (c *atomicCounter) load() int     { return int(c.n.Load()) }
