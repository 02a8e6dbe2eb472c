package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned by Guard when the named module has been
// administratively paused. Callers match it with errors.Is.
var ErrModulePaused = errors.New("native: module paused")

// PauseView reports the pause state of native modules. A nil view means
// pausing is not configured and every module runs.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations against a paused module. It sits at the top of
// every state-changing native operation.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
