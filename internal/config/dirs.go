package config

import (
	"fmt"
	"os"
)

// DirState reports what EnsureDir found or did.
type DirState int

const (
	// DirCreated means the directory did not exist and was created.
	DirCreated DirState = iota
	// DirExisted means the directory was already present.
	DirExisted
)

// String returns a human-readable name for logging.
func (s DirState) String() string {
	switch s {
	case DirCreated:
		return "created"
	case DirExisted:
		return "existed"
	default:
		return fmt.Sprintf("DirState(%d)", int(s))
	}
}

// EnsureDir creates path (including parents) if it is absent. It returns
// DirExisted when the directory is already there, DirCreated when it was made,
// and an error when the path exists as a non-directory or creation fails.
func EnsureDir(path string) (DirState, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return DirExisted, nil
	case err == nil:
		return DirExisted, fmt.Errorf("path %s exists and is not a directory", path)
	case !os.IsNotExist(err):
		return DirExisted, fmt.Errorf("checking directory %s: %w", path, err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return DirExisted, fmt.Errorf("creating directory %s: %w", path, err)
	}
	return DirCreated, nil
}
