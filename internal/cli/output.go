package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stock-analysis/pkg/utils"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

// Format is the structured output mode.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	format       Format
	colorEnabled bool
	dateFormat   string
}

// NewOutput creates a new Output instance from the global flags.
func NewOutput(cmd *cobra.Command, app *App) *Output {
	format := FormatText
	if yamlMode, _ := cmd.Flags().GetBool("yaml"); yamlMode {
		format = FormatYAML
	}
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		format = FormatJSON
	}

	colorEnabled := format == FormatText && isTerminal()
	dateFormat := DefaultDateFormat
	if app != nil && app.Config != nil {
		colorEnabled = colorEnabled && app.Config.UI.ColorEnabled
		if app.Config.UI.DateFormat != "" {
			dateFormat = app.Config.UI.DateFormat
		}
	}

	return &Output{
		writer:       cmd.OutOrStdout(),
		format:       format,
		colorEnabled: colorEnabled,
		dateFormat:   dateFormat,
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsStructured reports whether JSON or YAML output was requested.
func (o *Output) IsStructured() bool {
	return o.format != FormatText
}

// Structured writes data in the requested structured format.
func (o *Output) Structured(data interface{}) error {
	switch o.format {
	case FormatYAML:
		encoder := yaml.NewEncoder(o.writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	default:
		encoder := json.NewEncoder(o.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	}
}

// Date formats a date with the configured layout.
func (o *Output) Date(t time.Time) string {
	return FormatDate(t, o.dateFormat)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(ColorGreen, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(ColorRed, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(ColorYellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(ColorCyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(ColorBold, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(ColorDim, format, args...)
}

func (o *Output) colored(color, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if o.colorEnabled {
		fmt.Fprintf(o.writer, "%s%s%s\n", color, msg, ColorReset)
	} else {
		fmt.Fprintln(o.writer, msg)
	}
}

// ColoredString returns a colored string without newline.
func (o *Output) ColoredString(color, text string) string {
	if o.colorEnabled {
		return color + text + ColorReset
	}
	return text
}

// PnLColor returns the appropriate color for P&L.
func (o *Output) PnLColor(pnl float64) string {
	if pnl > 0 {
		return ColorGreen
	} else if pnl < 0 {
		return ColorRed
	}
	return ColorWhite
}

// FormatPnL formats P&L with color.
func (o *Output) FormatPnL(pnl float64) string {
	return o.ColoredString(o.PnLColor(pnl), utils.FormatPnL(pnl))
}

// FormatPercent formats a fraction as a colored percentage.
func (o *Output) FormatPercent(fraction float64) string {
	return o.ColoredString(o.PnLColor(fraction), utils.FormatPercent(fraction))
}

// Action colors a consensus or signal action.
func (o *Output) Action(action string) string {
	switch action {
	case "BUY":
		return o.ColoredString(ColorGreen, action)
	case "SELL":
		return o.ColoredString(ColorRed, action)
	default:
		return o.ColoredString(ColorYellow, action)
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(stripANSI(h))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if n := len(stripANSI(cell)); n > widths[i] {
					widths[i] = n
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i < len(widths) {
			padding := widths[i] - len(stripANSI(cell))
			if padding < 0 {
				padding = 0
			}
			padded := cell + strings.Repeat(" ", padding)
			if isHeader && t.output.colorEnabled {
				padded = ColorBold + padded + ColorReset
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("-", w))
	}
	sep := strings.Join(parts, "--")
	if t.output.colorEnabled {
		sep = ColorDim + sep + ColorReset
	}
	t.output.Println(sep)
}

// stripANSI removes the escape codes this package emits.
func stripANSI(s string) string {
	for _, esc := range []string{
		ColorReset, ColorRed, ColorGreen, ColorYellow,
		ColorCyan, ColorWhite, ColorBold, ColorDim,
	} {
		s = strings.ReplaceAll(s, esc, "")
	}
	return s
}
