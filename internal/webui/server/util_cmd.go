package server

import (
	"os/exec"
)

// runCmd starts name detached and reaps it in the background.
func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
