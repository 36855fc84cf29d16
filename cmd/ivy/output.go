package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// diag receives notices and status lines; stdout stays for command output.
var diag io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func notice(color, mark, format string, args ...any) {
	fmt.Fprintln(diag, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { notice(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { notice(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { notice(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(diag, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// speaker renders a chat line prefixed with who said it.
func speaker(w io.Writer, who, text string) {
	color := colorCyan
	if who != "ivy" {
		color = colorBold
	}
	fmt.Fprintf(w, "%s %s\n", colorize(color, who+">"), text)
}

// milestoneBar renders progress as "Milestone 3/8 [###-----]".
func milestoneBar(n, total int) string {
	n = max(0, min(n, total))
	bar := strings.Repeat("#", n) + strings.Repeat("-", total-n)
	return fmt.Sprintf("Milestone %d/%d [%s]", n, total, colorize(colorGreen, bar))
}
