//go:build !js && !wasm

// Package console renders styled terminal output for the maker CLI: status
// messages, tables, trees, and composed sections, all TTY-aware with a plain
// fallback for pipes and log files.
package console

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/makercode/maker/pkg/logger"
	"github.com/makercode/maker/pkg/styles"
	"github.com/makercode/maker/pkg/tty"
)

var consoleLog = logger.New("console:console")

// TreeNode is a generic node for RenderTree.
type TreeNode struct {
	Value    string
	Children []TreeNode
}

// TableConfig configures RenderTable.
type TableConfig struct {
	Title     string
	Headers   []string
	Rows      [][]string
	ShowTotal bool
	TotalRow  []string
}

// isTTY checks if stdout is a terminal
func isTTY() bool {
	return tty.IsStdoutTerminal()
}

// applyStyle conditionally applies styling based on TTY status
func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// FormatSuccessMessage formats a success message with styling
func FormatSuccessMessage(message string) string {
	return applyStyle(styles.Success, "✓ ") + message
}

// FormatInfoMessage formats an informational message
func FormatInfoMessage(message string) string {
	return applyStyle(styles.Info, "ℹ ") + message
}

// FormatWarningMessage formats a warning message
func FormatWarningMessage(message string) string {
	return applyStyle(styles.Warning, "⚠ ") + message
}

// FormatErrorMessage formats a simple error message (for stderr output)
func FormatErrorMessage(message string) string {
	return applyStyle(styles.Error, "✗ ") + message
}

// FormatSectionHeader formats a section header with proper styling
func FormatSectionHeader(header string) string {
	if isTTY() {
		return applyStyle(styles.Header, header)
	}
	return header
}

// LogVerbose prints a verbose diagnostic line to stderr when verbose is true.
func LogVerbose(verbose bool, message string) {
	if !verbose {
		return
	}
	fmt.Fprintln(os.Stderr, applyStyle(styles.Verbose, "\U0001f50d ")+message)
}

// RenderTable renders a formatted table using lipgloss/table.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 {
		consoleLog.Print("No headers provided for table rendering")
		return ""
	}

	consoleLog.Printf("Rendering table: title=%s, columns=%d, rows=%d", config.Title, len(config.Headers), len(config.Rows))
	var output strings.Builder

	if config.Title != "" {
		output.WriteString(applyStyle(styles.TableTitle, config.Title))
		output.WriteString("\n")
	}

	allRows := config.Rows
	if config.ShowTotal && len(config.TotalRow) > 0 {
		allRows = append(allRows, config.TotalRow)
	}

	dataRowCount := len(config.Rows)

	styleFunc := func(row, col int) lipgloss.Style {
		if !isTTY() {
			return lipgloss.NewStyle()
		}
		if row == table.HeaderRow {
			return styles.TableHeader.PaddingLeft(1).PaddingRight(1)
		}
		if config.ShowTotal && len(config.TotalRow) > 0 && row == dataRowCount {
			return styles.TableTotal.PaddingLeft(1).PaddingRight(1)
		}
		if row%2 == 0 {
			return styles.TableCell.PaddingLeft(1).PaddingRight(1)
		}
		return lipgloss.NewStyle().
			Foreground(styles.ColorForeground).
			Background(styles.ColorTableAltRow).
			PaddingLeft(1).
			PaddingRight(1)
	}

	t := table.New().
		Headers(config.Headers...).
		Rows(allRows...).
		Border(styles.RoundedBorder).
		BorderStyle(styles.TableBorder).
		StyleFunc(styleFunc)

	output.WriteString(t.String())
	output.WriteString("\n")

	return output.String()
}

// RenderTitleBox renders a title with a double border box in TTY mode.
func RenderTitleBox(title string, width int) []string {
	if tty.IsStderrTerminal() {
		box := lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorInfo).
			Border(lipgloss.DoubleBorder(), true, false).
			Padding(0, 2).
			Width(width).
			Align(lipgloss.Center).
			Render(title)
		return []string{box}
	}

	separator := strings.Repeat("━", width)
	return []string{separator, "  " + title, separator}
}

// RenderErrorBox renders an error/warning message with a rounded border box.
func RenderErrorBox(title string) []string {
	if tty.IsStderrTerminal() {
		box := lipgloss.NewStyle().
			Border(styles.RoundedBorder).
			BorderForeground(styles.ColorError).
			Padding(1, 2).
			Bold(true).
			Render(title)
		return []string{box}
	}

	return []string{FormatErrorMessage(title)}
}

// RenderComposedSections composes and outputs a slice of sections to stderr.
func RenderComposedSections(sections []string) {
	if tty.IsStderrTerminal() {
		plan := lipgloss.JoinVertical(lipgloss.Left, sections...)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, plan)
		fmt.Fprintln(os.Stderr, "")
	} else {
		fmt.Fprintln(os.Stderr, "")
		for _, section := range sections {
			fmt.Fprintln(os.Stderr, section)
		}
		fmt.Fprintln(os.Stderr, "")
	}
}

// RenderTree renders a hierarchical tree structure using lipgloss/tree,
// falling back to ASCII connectors outside a TTY.
func RenderTree(root TreeNode) string {
	if !isTTY() {
		return renderTreeSimple(root, "", true)
	}
	return buildLipglossTree(root).String()
}

func buildLipglossTree(node TreeNode) *tree.Tree {
	t := tree.Root(node.Value).
		EnumeratorStyle(styles.TreeEnumerator).
		ItemStyle(styles.TreeNode)

	if len(node.Children) > 0 {
		children := make([]any, len(node.Children))
		for i, child := range node.Children {
			if len(child.Children) > 0 {
				children[i] = buildLipglossTree(child)
			} else {
				children[i] = child.Value
			}
		}
		t.Child(children...)
	}

	return t
}

func renderTreeSimple(node TreeNode, prefix string, isLast bool) string {
	var b strings.Builder
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	b.WriteString(prefix + connector + node.Value + "\n")

	childPrefix := prefix + "│   "
	if isLast {
		childPrefix = prefix + "    "
	}
	for i, child := range node.Children {
		b.WriteString(renderTreeSimple(child, childPrefix, i == len(node.Children)-1))
	}
	return b.String()
}
