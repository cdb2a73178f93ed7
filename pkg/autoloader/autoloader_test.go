package autoloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePHP(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAssembleMergesPSR4AcrossPackages(t *testing.T) {
	root := t.TempDir()
	pkgA := filepath.Join(root, "vendor", "acme", "a")
	pkgB := filepath.Join(root, "vendor", "acme", "b")
	writePHP(t, pkgA, "src/Foo.php", "<?php\nnamespace Acme\\A;\nclass Foo {}\n")
	writePHP(t, pkgB, "src/Bar.php", "<?php\nnamespace Acme\\B;\nclass Bar {}\n")

	g := NewGenerator(filepath.Join(root, "vendor"), Optimized)
	g.AddPackage(PackageAutoload{PackageRoot: pkgA, PSR4: map[string][]string{"Acme\\A\\": {"src"}}})
	g.AddPackage(PackageAutoload{PackageRoot: pkgB, PSR4: map[string][]string{"Acme\\B\\": {"src"}}})

	gen, err := g.Assemble()
	require.NoError(t, err)

	assert.Contains(t, gen.PSR4, "Acme\\A\\")
	assert.Contains(t, gen.PSR4, "Acme\\B\\")
	assert.Equal(t, filepath.Join(pkgA, "src", "Foo.php"), gen.Classmap["Acme\\A\\Foo"])
	assert.Equal(t, filepath.Join(pkgB, "src", "Bar.php"), gen.Classmap["Acme\\B\\Bar"])
}

func TestAssembleDeduplicatesFiles(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "vendor", "acme", "c")
	writePHP(t, pkg, "bootstrap.php", "<?php\n")

	g := NewGenerator(filepath.Join(root, "vendor"), None)
	g.AddPackage(PackageAutoload{PackageRoot: pkg, Files: []string{"bootstrap.php"}})
	g.AddPackage(PackageAutoload{PackageRoot: pkg, Files: []string{"bootstrap.php"}})

	gen, err := g.Assemble()
	require.NoError(t, err)
	assert.Len(t, gen.Files, 1)
}

func TestEmitWritesFiveArtifactsAtomically(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "vendor", "acme", "d")
	writePHP(t, pkg, "src/Baz.php", "<?php\nnamespace Acme\\D;\nclass Baz {}\n")

	g := NewGenerator(filepath.Join(root, "vendor"), Optimized)
	g.AddPackage(PackageAutoload{PackageRoot: pkg, PSR4: map[string][]string{"Acme\\D\\": {"src"}}})

	gen, err := g.Assemble()
	require.NoError(t, err)
	require.NoError(t, g.Emit(gen))

	composerDir := filepath.Join(root, "vendor", "composer")
	for _, name := range []string{"autoload_namespaces.php", "autoload_psr4.php", "autoload_classmap.php", "autoload_files.php", "autoload_real.php"} {
		info, err := os.Stat(filepath.Join(composerDir, name))
		require.NoError(t, err)
		assert.False(t, info.IsDir())
	}

	classmapContent, err := os.ReadFile(filepath.Join(composerDir, "autoload_classmap.php"))
	require.NoError(t, err)
	assert.Contains(t, string(classmapContent), "Acme\\\\D\\\\Baz")
}

func TestAuthoritativeLevelRecordedInLoader(t *testing.T) {
	root := t.TempDir()
	g := NewGenerator(filepath.Join(root, "vendor"), Authoritative)
	gen, err := g.Assemble()
	require.NoError(t, err)
	require.NoError(t, g.Emit(gen))

	content, err := os.ReadFile(filepath.Join(root, "vendor", "composer", "autoload_real.php"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "authoritative")
}
