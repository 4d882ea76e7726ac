package proxy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPoolFile_SkipsBlanksAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tier1.txt")
	content := "socks5://proxy1:1080\n\n# comment\nsocks5://proxy2:1080\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test pool file: %v", err)
	}

	pool, err := LoadPoolFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.Proxies) != 2 {
		t.Fatalf("expected 2 proxies, got %d: %v", len(pool.Proxies), pool.Proxies)
	}
	if pool.Proxies[0] != "socks5://proxy1:1080" || pool.Proxies[1] != "socks5://proxy2:1080" {
		t.Errorf("unexpected proxies: %v", pool.Proxies)
	}
}

func TestPool_Changed_DetectsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tier1.txt")
	if err := os.WriteFile(path, []byte("socks5://proxy1:1080\n"), 0o644); err != nil {
		t.Fatalf("failed to write test pool file: %v", err)
	}

	pool, err := LoadPoolFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed, err := pool.Changed(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("expected no change immediately after load")
	}

	if err := os.WriteFile(path, []byte("socks5://proxy1:1080\nsocks5://proxy2:1080\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite test pool file: %v", err)
	}
	changed, err = pool.Changed(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected change detected after file rewrite")
	}
}
