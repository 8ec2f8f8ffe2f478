package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/nishad/srafetch/internal/config"
)

// Output styles; rendered against stderr, where diagnostics go
var (
	stderrRenderer = lipgloss.NewRenderer(os.Stderr)

	errorStyle   = stderrRenderer.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	successStyle = stderrRenderer.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	warningStyle = stderrRenderer.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	infoStyle    = stderrRenderer.NewStyle().Foreground(lipgloss.Color("#A8DADC"))
	keyStyle     = stderrRenderer.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	dimStyle     = stderrRenderer.NewStyle().Foreground(lipgloss.Color("#6C757D"))
	boldStyle    = stderrRenderer.NewStyle().Bold(true)
)

// Check if stderr is a terminal
func isTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Apply style if terminal output and color enabled
func colorize(style lipgloss.Style, text string) string {
	if !noColor && isTerminal() && os.Getenv("NO_COLOR") == "" {
		return style.Render(text)
	}
	return text
}

// Print error message in user-friendly format
func printError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(errorStyle, "✗"), msg)
}

// Print success message
func printSuccess(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s %s\n", colorize(successStyle, "✓"), msg)
	}
}

// Print info message
func printInfo(format string, args ...interface{}) {
	if !quiet {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s\n", colorize(infoStyle, msg))
	}
}

// Print warning message
func printWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s %s\n", colorize(warningStyle, "⚠"), msg)
}

// Print debug message
func printDebug(format string, args ...interface{}) {
	if debug {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(os.Stderr, "%s %s\n", colorize(dimStyle, "[DEBUG]"), msg)
	}
}

// readLines returns every line of r with trailing whitespace removed.
// Blank and comment lines are kept so reported line numbers match the input.
func readLines(r io.Reader) ([]string, error) {
	lines := make([]string, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r"))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// readAccessions collects input lines from positional arguments, a file
// or stdin, in that order of preference.
func readAccessions(args []string, input string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	if input != "" && input != "-" {
		file, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return readLines(file)
	}

	return readLines(stdin)
}

// loadConfig reads .env files and the config file chosen by --config.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		printWarning("%v", err)
	}

	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	printDebug("Using config file %s", path)

	return config.Load(path)
}
