package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindClassesSimple(t *testing.T) {
	classes := FindClasses([]byte("<?php\nclass Foo {}"))
	assert.Equal(t, []string{"Foo"}, classes)
}

func TestFindClassesNamespaced(t *testing.T) {
	classes := FindClasses([]byte("<?php\nnamespace App\\Models;\nclass User {}"))
	assert.Equal(t, []string{"App\\Models\\User"}, classes)
}

func TestFindClassesMultiple(t *testing.T) {
	src := []byte("<?php\nnamespace App;\n\nclass Foo {}\ninterface Bar {}\ntrait Baz {}\nenum Status {}\n")
	classes := FindClasses(src)
	assert.Equal(t, []string{"App\\Foo", "App\\Bar", "App\\Baz", "App\\Status"}, classes)
}

func TestFindClassesIgnoresComments(t *testing.T) {
	src := []byte("<?php\n// class Fake {}\n/* class AlsoFake {} */\nclass Real {}\n")
	classes := FindClasses(src)
	assert.Equal(t, []string{"Real"}, classes)
}

func TestFindClassesIgnoresStrings(t *testing.T) {
	src := []byte("<?php\n$x = \"class Fake {}\";\n$y = 'class AlsoFake {}';\nclass Real {}\n")
	classes := FindClasses(src)
	assert.Equal(t, []string{"Real"}, classes)
}

func TestFindClassesNoClasses(t *testing.T) {
	classes := FindClasses([]byte("<?php\necho 'hello';"))
	assert.Empty(t, classes)
}

func TestFindClassesEnumWithBackingType(t *testing.T) {
	classes := FindClasses([]byte("<?php\nenum Status: int { case Active = 1; }"))
	assert.Equal(t, []string{"Status"}, classes)
}

func TestFindClassesIgnoresClassConstant(t *testing.T) {
	classes := FindClasses([]byte("<?php\n$x = SomeClass::class;\nclass Real {}"))
	assert.Equal(t, []string{"Real"}, classes)
}

func TestFindClassesAttribute(t *testing.T) {
	classes := FindClasses([]byte("<?php\n#[Attribute]\nclass MyAttribute {}\n"))
	assert.Equal(t, []string{"MyAttribute"}, classes)
}

func TestFindClassesIgnoresHeredocBody(t *testing.T) {
	src := []byte("<?php\n$x = <<<EOT\nclass Fake {}\nEOT;\nclass Real {}\n")
	classes := FindClasses(src)
	assert.Equal(t, []string{"Real"}, classes)
}

func TestFindClassesEmptyInput(t *testing.T) {
	assert.Nil(t, FindClasses(nil))
	assert.Nil(t, FindClasses([]byte{}))
}
