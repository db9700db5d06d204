package coordinator

import (
	"fmt"
	"os"
	"time"

	"github.com/clopapp/clop/internal/corelog"
	"github.com/clopapp/clop/internal/corepath"
)

// staleLockTimeout is how long a ".clop-lock" sibling file may sit
// untouched before a later run is allowed to break it, adapted from the
// teacher's acquireLock staleness window — here covering a crash mid-
// optimisation rather than a crashed encode.
const staleLockTimeout = 10 * time.Minute

// acquirePathLock creates a lockPath+".clop-lock" sibling file so two
// coordinator instances (e.g. the CLI and a background watcher process)
// never optimise the same source concurrently. Supplements spec section
// 4.D with crash/restart recovery per the stale-lock rule below.
func acquirePathLock(path corepath.FilePath, log *corelog.Logger) (release func(), err error) {
	lockPath := path.Value() + ".clop-lock"

	if err := tryCreateLock(lockPath); err == nil {
		return func() { removeLock(lockPath, log) }, nil
	} else if !os.IsExist(err) {
		return nil, fmt.Errorf("coordinator: lock error: %w", err)
	}

	info, statErr := os.Stat(lockPath)
	if statErr != nil {
		return nil, fmt.Errorf("coordinator: cannot stat lock %s: %w", lockPath, statErr)
	}
	if time.Since(info.ModTime()) < staleLockTimeout {
		return nil, fmt.Errorf("coordinator: %s is locked by another instance (age %v)", path.Value(), time.Since(info.ModTime()).Round(time.Second))
	}

	log.Printf("breaking stale lock %s (age %v)", lockPath, time.Since(info.ModTime()).Round(time.Minute))
	_ = os.Remove(lockPath)

	if err := tryCreateLock(lockPath); err != nil {
		return nil, fmt.Errorf("coordinator: lock retry failed: %w", err)
	}
	return func() { removeLock(lockPath, log) }, nil
}

func tryCreateLock(lockPath string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "pid %d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	return f.Close()
}

func removeLock(lockPath string, log *corelog.Logger) {
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not remove lock %s: %v", lockPath, err)
	}
}
