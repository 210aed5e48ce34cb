package keyreg

import (
	"errors"
	"fmt"
)

// Command — закрытое множество команд агента. На проводе — голый токен,
// декодируем на границе: неизвестный токен это ошибка валидации, а не
// молча проглоченная строка.
type Command string

const (
	CmdReboot    Command = "reboot"
	CmdShutdown  Command = "shutdown"
	CmdSpeedTest Command = "speed-test"
)

var ErrUnknownCommand = errors.New("unknown command")

func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CmdReboot, CmdShutdown, CmdSpeedTest:
		return Command(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
}
