package ui

import (
	"fmt"
	"sync"
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	mu       sync.Mutex
	quiet    bool
	noColor  bool
)

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetNoColor disables ANSI colors
func SetNoColor(nc bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = nc
}

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		defer mu.Unlock()
		if noColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func isQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

// PrintError prints an error message in red. Errors print even in quiet
// mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if isQuiet() {
		return
	}
	fmt.Println(Green(msg))
}

// PrintInfo prints a labeled value in cyan
func PrintInfo(label string, value string) {
	if isQuiet() {
		return
	}
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if isQuiet() {
		return
	}
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}
