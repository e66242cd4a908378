package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Available reports whether both the RCS commit and checkout programs can
// be found as executables in one of the directories listed in pathEnv.
func Available(pathEnv string) bool {
	return onPath(pathEnv, "ci") && onPath(pathEnv, "co")
}

func onPath(pathEnv, name string) bool {
	for _, dir := range filepath.SplitList(pathEnv) {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		for _, candidate := range []string{name, name + ".exe"} {
			info, err := os.Stat(filepath.Join(dir, candidate))
			if err == nil && executable(info) {
				return true
			}
		}
	}
	return false
}

func executable(info os.FileInfo) bool {
	if !info.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0111 != 0
}
