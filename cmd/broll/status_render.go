package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"broll/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// colorizeStatus wraps label in the color for kind when colorize is set.
func colorizeStatus(label string, kind statusKind, colorize bool) string {
	if !colorize {
		return label
	}
	if color := statusKindColor(kind); color != "" {
		return color + label + ansiReset
	}
	return label
}

// jobStatusKind maps a job status string onto a display kind.
func jobStatusKind(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "error", "not_found":
		return statusError
	case "processing":
		return statusWarn
	default:
		return statusInfo
	}
}

func checkCell(passed bool, detail string, colorize bool) string {
	kind := statusError
	if passed {
		kind = statusOK
	}
	return colorizeStatus(fmt.Sprintf("[%s]", statusKindLabel(kind)), kind, colorize) + " " + detail
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderStatusLine formats a single progress line for watch output.
func renderStatusLine(status api.StatusResponse, colorize bool) string {
	label := colorizeStatus(fmt.Sprintf("%-10s", status.Status), jobStatusKind(status.Status), colorize)
	line := fmt.Sprintf("%s %3d%%", label, status.Progress)
	if status.Stage != "" {
		line += "  " + status.Stage
	}
	if status.Error != "" {
		line += "  " + status.Error
	}
	return line
}

// renderStatusDetail renders the full status payload as a two-column table.
func renderStatusDetail(status api.StatusResponse, colorize bool) string {
	return renderFieldTable([][2]string{
		{"Task", status.TaskID},
		{"Status", colorizeStatus(status.Status, jobStatusKind(status.Status), colorize)},
		{"Progress", fmt.Sprintf("%d%%", status.Progress)},
		{"Stage", status.Stage},
		{"Output", status.Output},
		{"Download", status.DownloadURL},
		{"Error", status.Error},
		{"Error kind", status.ErrorKind},
		{"Created", status.CreatedAt},
		{"Updated", status.UpdatedAt},
	})
}
