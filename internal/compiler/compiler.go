package compiler

import (
	"fmt"
	"log"
	"os"

	"github.com/keyrx-dev/krx/internal/krxerr"
	"github.com/keyrx-dev/krx/internal/mapping"
)

// MaxProfileFileBytes bounds how much of a script file the compiler will
// read before giving up (spec.md §7: "Profile-file reads have a bounded
// size (512 KB); oversize aborts with FileTooLarge").
const MaxProfileFileBytes = 512 * 1024

// CompileFile reads path and compiles it into a mapping.Profile. An
// oversize file fails with krxerr.ErrFileTooLarge before a single byte of
// script is parsed. A nil logger means quiet; otherwise every compile
// attempt and its outcome is logged.
func CompileFile(path string, logger *log.Logger) (*mapping.Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if logger != nil {
			logger.Printf("compile %s: stat failed: %v", path, err)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > MaxProfileFileBytes {
		if logger != nil {
			logger.Printf("compile %s: %d bytes exceeds %d byte limit", path, info.Size(), MaxProfileFileBytes)
		}
		return nil, fmt.Errorf("%s: %w", path, krxerr.ErrFileTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if logger != nil {
			logger.Printf("compile %s: read failed: %v", path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	profile, err := Compile(string(data))
	if logger != nil {
		if err != nil {
			logger.Printf("compile %s: failed: %v", path, err)
		} else {
			logger.Printf("compile %s: %d base rules, %d groups", path, len(profile.Base), len(profile.Groups))
		}
	}
	return profile, err
}
