// Package autoloader assembles a project's PSR-4, PSR-0, classmap, and
// eagerly-loaded "files" autoload rules across every installed package
// and emits them as autoload_*.php files under vendorDir/composer for an
// installed project's runtime bootstrap. No generated/ directory is
// written.
package autoloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
	"github.com/libretto-pm/libretto-sub002/pkg/scanner"
)

// PackageAutoload is one package's autoload section as declared in its
// composer.json, already resolved to an absolute package root.
type PackageAutoload struct {
	PackageRoot string
	PSR4        map[string][]string // namespace prefix -> relative dirs
	PSR0        map[string][]string
	Classmap    []string // relative dirs/files to scan directly
	Files       []string // relative files always required eagerly
	Exclude     []string // relative paths excluded from classmap scanning
}

// OptimizationLevel controls how PSR-4/PSR-0 rules are represented in
// the emitted artifacts.
type OptimizationLevel int

const (
	// None emits PSR-4/PSR-0 as prefix->dir lookup tables resolved at
	// runtime, Composer's default (fast to regenerate, slower to load).
	None OptimizationLevel = iota
	// Optimized additionally classmap-scans every PSR-4/PSR-0 directory
	// up front, so most classes resolve via a single array lookup.
	Optimized
	// Authoritative is Optimized but also treats the classmap as
	// complete: any class not in it is assumed not to exist at all,
	// skipping a PSR-4 prefix-match fallback entirely.
	Authoritative
)

// Generator accumulates every package's autoload rules and emits the
// combined artifacts under vendorDir/composer/.
type Generator struct {
	vendorDir string
	level     OptimizationLevel
	packages  []PackageAutoload
}

// NewGenerator returns a Generator that writes into vendorDir/composer.
func NewGenerator(vendorDir string, level OptimizationLevel) *Generator {
	return &Generator{vendorDir: vendorDir, level: level}
}

// AddPackage registers one package's autoload rules.
func (g *Generator) AddPackage(p PackageAutoload) {
	g.packages = append(g.packages, p)
}

// Generated holds the fully assembled autoload data before it is
// rendered to disk, letting tests inspect the result without parsing
// generated PHP source.
type Generated struct {
	PSR4     map[string][]string // namespace -> absolute dirs, merged across packages
	PSR0     map[string][]string
	Classmap map[string]string // FQCN -> absolute path
	Files    []string          // absolute paths, declaration order preserved
}

// Assemble merges every registered package's rules (PSR-4/PSR-0 prefixes
// accumulate directories rather than overwrite) and, at Optimized or
// above, classmap-scans every PSR-4/PSR-0 directory and every explicit
// classmap entry via pkg/scanner. Classes whose file matches or lies
// under a package's Exclude path are dropped from the classmap.
func (g *Generator) Assemble() (Generated, error) {
	out := Generated{
		PSR4:     make(map[string][]string),
		PSR0:     make(map[string][]string),
		Classmap: make(map[string]string),
	}

	var classmapRoots, excludes []string
	seenFiles := make(map[string]bool)

	for _, pkg := range g.packages {
		for prefix, dirs := range pkg.PSR4 {
			for _, d := range dirs {
				out.PSR4[prefix] = append(out.PSR4[prefix], filepath.Join(pkg.PackageRoot, d))
			}
		}
		for prefix, dirs := range pkg.PSR0 {
			for _, d := range dirs {
				out.PSR0[prefix] = append(out.PSR0[prefix], filepath.Join(pkg.PackageRoot, d))
			}
		}
		for _, c := range pkg.Classmap {
			classmapRoots = append(classmapRoots, filepath.Join(pkg.PackageRoot, c))
		}
		for _, f := range pkg.Files {
			abs := filepath.Join(pkg.PackageRoot, f)
			if !seenFiles[abs] {
				seenFiles[abs] = true
				out.Files = append(out.Files, abs)
			}
		}

		for _, e := range pkg.Exclude {
			excludes = append(excludes, filepath.Join(pkg.PackageRoot, e))
		}

		if g.level >= Optimized {
			for prefix, dirs := range pkg.PSR4 {
				for _, d := range dirs {
					if err := g.scanInto(out.Classmap, filepath.Join(pkg.PackageRoot, d), prefix); err != nil {
						return Generated{}, err
					}
				}
			}
			for prefix, dirs := range pkg.PSR0 {
				for _, d := range dirs {
					if err := g.scanInto(out.Classmap, filepath.Join(pkg.PackageRoot, d), prefix); err != nil {
						return Generated{}, err
					}
				}
			}
		}
	}

	for _, root := range classmapRoots {
		if err := g.scanInto(out.Classmap, root, ""); err != nil {
			return Generated{}, err
		}
	}

	for fqcn, path := range out.Classmap {
		for _, ex := range excludes {
			if matched, _ := filepath.Match(ex, path); matched || path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
				delete(out.Classmap, fqcn)
				break
			}
		}
	}

	return out, nil
}

// scanInto classmap-scans root (a file or directory) and merges any
// classes found into dest. namespaceHint is unused by the scanner itself
// (FQCNs come from the file's own `namespace` declarations) but documents
// why the call site exists.
func (g *Generator) scanInto(dest map[string]string, root, namespaceHint string) error {
	info, err := os.Stat(root)
	if err != nil {
		return nil // a declared dir that doesn't exist yet is not fatal
	}
	if !info.IsDir() {
		res, err := scanner.ScanFile(root)
		if err != nil {
			return nil
		}
		for _, fqcn := range res.Classes {
			dest[fqcn] = root
		}
		return nil
	}

	report, err := scanner.ScanDirectory(context.Background(), root, 4)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.scan", err)
	}
	for fqcn, path := range report.Classes {
		dest[fqcn] = path
	}
	return nil
}

// Emit renders Generated to five files under vendorDir/composer
// (autoload_namespaces.php, autoload_psr4.php, autoload_classmap.php,
// autoload_files.php and autoload_real.php), each written atomically
// (temp file + rename).
func (g *Generator) Emit(gen Generated) error {
	composerDir := filepath.Join(g.vendorDir, "composer")
	if err := os.MkdirAll(composerDir, 0o755); err != nil {
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.emit", err)
	}

	artifacts := map[string]string{
		"autoload_namespaces.php": renderPrefixMap(gen.PSR0),
		"autoload_psr4.php":       renderPrefixMap(gen.PSR4),
		"autoload_classmap.php":   renderClassmap(gen.Classmap),
		"autoload_files.php":      renderFiles(gen.Files),
		"autoload_real.php":       renderLoader(g.level),
	}

	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writeAtomic(filepath.Join(composerDir, name), []byte(artifacts[name])); err != nil {
			return err
		}
	}
	return nil
}

func renderPrefixMap(m map[string][]string) string {
	var sb strings.Builder
	sb.WriteString("<?php\n\n// autogenerated, do not edit\nreturn array(\n")
	keys := sortedKeys(m)
	for _, prefix := range keys {
		dirs := m[prefix]
		sort.Strings(dirs)
		sb.WriteString(fmt.Sprintf("    %s => array(\n", phpString(prefix)))
		for _, d := range dirs {
			sb.WriteString(fmt.Sprintf("        %s,\n", phpDirConst(d)))
		}
		sb.WriteString("    ),\n")
	}
	sb.WriteString(");\n")
	return sb.String()
}

func renderClassmap(classmap map[string]string) string {
	var sb strings.Builder
	sb.WriteString("<?php\n\n// autogenerated, do not edit\nreturn array(\n")
	fqcns := make([]string, 0, len(classmap))
	for fqcn := range classmap {
		fqcns = append(fqcns, fqcn)
	}
	sort.Strings(fqcns)
	for _, fqcn := range fqcns {
		sb.WriteString(fmt.Sprintf("    %s => %s,\n", phpString(fqcn), phpDirConst(classmap[fqcn])))
	}
	sb.WriteString(");\n")
	return sb.String()
}

func renderFiles(files []string) string {
	var sb strings.Builder
	sb.WriteString("<?php\n\n// autogenerated, do not edit\nreturn array(\n")
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("    %s => %s,\n", phpString(fileHash(f)), phpDirConst(f)))
	}
	sb.WriteString(");\n")
	return sb.String()
}

func renderLoader(level OptimizationLevel) string {
	var sb strings.Builder
	sb.WriteString("<?php\n\n// autogenerated, do not edit\n\n")
	sb.WriteString("// optimization level: ")
	switch level {
	case Authoritative:
		sb.WriteString("authoritative\n")
	case Optimized:
		sb.WriteString("optimized\n")
	default:
		sb.WriteString("none\n")
	}
	sb.WriteString("$classLoader = new \\Composer\\Autoload\\ClassLoader();\n")
	sb.WriteString("$classMap = require __DIR__ . '/autoload_classmap.php';\n")
	sb.WriteString("if ($classMap) { $classLoader->addClassMap($classMap); }\n")
	sb.WriteString("$classLoader->register(true);\n")
	sb.WriteString("foreach (require __DIR__ . '/autoload_files.php' as $file) { require $file; }\n")
	sb.WriteString("return $classLoader;\n")
	return sb.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func phpString(s string) string {
	escaped := strings.ReplaceAll(s, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")
	return "'" + escaped + "'"
}

func phpDirConst(path string) string {
	return "$vendorDir . " + phpString(strings.TrimPrefix(path, "/"))
}

// fileHash is the key composer uses for its files autoload entries: a
// stable hash of the file's absolute path, so the same file registered
// by two packages collapses to one require.
func fileHash(path string) string {
	var h uint32 = 2166136261
	for i := 0; i < len(path); i++ {
		h ^= uint32(path[i])
		h *= 16777619
	}
	return fmt.Sprintf("%08x", h)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".autoload-*")
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.emit", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.emit", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.emit", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.emit", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return pipelineerr.Wrap(pipelineerr.KindIO, "autoloader.emit", err)
	}
	return nil
}
