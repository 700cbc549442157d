package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

// createTestTarGz builds a small archive with a dir, a file, and a symlink.
func createTestTarGz(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	if err := tw.WriteHeader(&tar.Header{
		Name:     "pkg/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
	}); err != nil {
		t.Fatalf("write dir header: %v", err)
	}

	content := []byte("#!/bin/sh\necho hi\n")
	if err := tw.WriteHeader(&tar.Header{
		Name:     "pkg/tool",
		Typeflag: tar.TypeReg,
		Mode:     0755,
		Size:     int64(len(content)),
	}); err != nil {
		t.Fatalf("write file header: %v", err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("write file content: %v", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:     "pkg/tool-link",
		Typeflag: tar.TypeSymlink,
		Linkname: "tool",
	}); err != nil {
		t.Fatalf("write symlink header: %v", err)
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
}

func TestExtractTarGz(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "test.tar.gz")
	createTestTarGz(t, archivePath)

	destDir := filepath.Join(tmpDir, "out")
	e := NewExtractor()
	if err := e.ExtractTarGz(archivePath, destDir); err != nil {
		t.Fatalf("ExtractTarGz(): %v", err)
	}

	toolPath := filepath.Join(destDir, "pkg", "tool")
	info, err := os.Stat(toolPath)
	if err != nil {
		t.Fatalf("stat extracted file: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("extracted file not executable: %v", info.Mode())
	}

	link, err := os.Readlink(filepath.Join(destDir, "pkg", "tool-link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if link != "tool" {
		t.Errorf("symlink target = %q, want tool", link)
	}
}

func TestExtractTarGzPathTraversal(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "evil.tar.gz")

	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	content := []byte("evil")
	if err := tw.WriteHeader(&tar.Header{
		Name:     "../escape",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     int64(len(content)),
	}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	tw.Write(content)
	tw.Close()
	gw.Close()
	f.Close()

	e := NewExtractor()
	if err := e.ExtractTarGz(archivePath, filepath.Join(tmpDir, "out")); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestExtractZip(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "test.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("dir/file.txt")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	w.Write([]byte("zip content"))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	f.Close()

	destDir := filepath.Join(tmpDir, "out")
	e := NewExtractor()
	if err := e.ExtractZip(archivePath, destDir); err != nil {
		t.Fatalf("ExtractZip(): %v", err)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "dir", "file.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "zip content" {
		t.Errorf("content = %q", data)
	}
}

func TestExtractBinary(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "test.tar.gz")
	createTestTarGz(t, archivePath)

	destPath := filepath.Join(tmpDir, "bin", "tool")
	e := NewExtractor()
	if err := e.ExtractBinary(archivePath, destPath, "tool"); err != nil {
		t.Fatalf("ExtractBinary(): %v", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		t.Fatalf("stat extracted binary: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("binary mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestExtractBinaryNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, "test.tar.gz")
	createTestTarGz(t, archivePath)

	e := NewExtractor()
	err := e.ExtractBinary(archivePath, filepath.Join(tmpDir, "bin", "x"), "missing")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
