package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTempFile(t *testing.T) {
	txt := []byte("hello world")
	p, err := WriteTempFile(txt)
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(p)

	if !Exist(p) {
		t.Fatalf("%q expected to exist", p)
	}

	d, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(txt, d) {
		t.Fatalf("expected %q, got %q", string(txt), string(d))
	}
}

func TestCopy(t *testing.T) {
	src, err := WriteTempFile([]byte("benchmark_train"))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(src)

	dst := filepath.Join(MkTmpDir("", "fileutil"), "copied.txt")
	defer os.RemoveAll(filepath.Dir(dst))

	if err = Copy(src, dst); err != nil {
		t.Fatal(err)
	}
	d, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(d) != "benchmark_train" {
		t.Fatalf("unexpected copy contents %q", string(d))
	}
}

func TestIsDirWriteable(t *testing.T) {
	dir := MkTmpDir("", "fileutil")
	defer os.RemoveAll(dir)

	if err := IsDirWriteable(dir); err != nil {
		t.Fatal(err)
	}
	// non-existing directory is not an error
	if err := IsDirWriteable(filepath.Join(dir, "does-not-exist")); err != nil {
		t.Fatal(err)
	}
}
