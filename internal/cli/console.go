package cli

import "fmt"

// ANSI codes, suppressed wholesale when --no-color is set.
const (
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiReset  = "\033[0m"
)

var noColor bool

func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

func okf(format string, args ...any) string {
	return colorize(ansiGreen) + fmt.Sprintf(format, args...) + colorize(ansiReset)
}

func warnf(format string, args ...any) string {
	return colorize(ansiYellow) + fmt.Sprintf(format, args...) + colorize(ansiReset)
}

func errf(format string, args ...any) string {
	return colorize(ansiRed) + fmt.Sprintf(format, args...) + colorize(ansiReset)
}
