package main

import (
	"os/exec"
	"runtime"
)

// execExecutor запускает системные reboot/shutdown. Процесс не ждём:
// и так умрём вместе с хостом.
type execExecutor struct{}

func (execExecutor) Reboot() error {
	if runtime.GOOS == "windows" {
		return exec.Command("shutdown", "/r", "/t", "0").Start()
	}
	return exec.Command("sudo", "reboot").Start()
}

func (execExecutor) Shutdown() error {
	if runtime.GOOS == "windows" {
		return exec.Command("shutdown", "/s", "/t", "0").Start()
	}
	return exec.Command("sudo", "shutdown", "-h", "now").Start()
}
