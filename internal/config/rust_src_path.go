package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// fallbackSrcPaths are tried, in order, after rustc --print sysroot fails or
// its derived path doesn't exist.
var fallbackSrcPaths = []string{
	"/usr/local/src/rust/src",
	"/usr/src/rust/src",
}

// ResolveRustSrcPath implements RUST_SRC_PATH resolution:
// explicit override, then the RUST_SRC_PATH environment variable, then
// `rustc --print sysroot` + lib/rustlib/src/rust/library, then a fixed list
// of OS-package-manager install locations. Returns "" if nothing resolves;
// the racer fallback degrades gracefully without a stdlib source tree.
func ResolveRustSrcPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("RUST_SRC_PATH"); env != "" {
		return env
	}
	if sysroot, err := rustcSysroot(); err == nil {
		candidate := filepath.Join(sysroot, "lib", "rustlib", "src", "rust", "library")
		if pathExists(candidate) {
			return candidate
		}
	}
	for _, p := range fallbackSrcPaths {
		if pathExists(p) {
			return p
		}
	}
	return ""
}

func rustcSysroot() (string, error) {
	out, err := exec.Command("rustc", "--print", "sysroot").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
