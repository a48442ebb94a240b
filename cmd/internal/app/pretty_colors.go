package app

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

const (
	defaultLogWidth = 100
	minLogWidth     = 40
	wrapIndent      = "    "
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// visualLen counts runes as they appear on screen (escape codes excluded).
func visualLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

func colorize(s, code string, color bool) string {
	if !color {
		return s
	}
	return code + s + ansiReset
}

func colorizeHTTPMethod(method string, color bool) string {
	switch method {
	case "GET":
		return colorize(method, ansiGreen, color)
	case "POST":
		return colorize(method, ansiBlue, color)
	case "PUT", "PATCH":
		return colorize(method, ansiYellow, color)
	case "DELETE":
		return colorize(method, ansiRed, color)
	default:
		return colorize(method, ansiMagenta, color)
	}
}

func colorizeStatusCode(code int, color bool) string {
	s := strconv.Itoa(code)
	switch {
	case code >= 500:
		return colorize(s, ansiRed, color)
	case code >= 400:
		return colorize(s, ansiYellow, color)
	case code >= 300:
		return colorize(s, ansiCyan, color)
	default:
		return colorize(s, ansiGreen, color)
	}
}

func colorizeStatusClass(class string, color bool) string {
	switch class {
	case "5xx":
		return colorize(class, ansiRed, color)
	case "4xx":
		return colorize(class, ansiYellow, color)
	case "3xx":
		return colorize(class, ansiCyan, color)
	default:
		return colorize(class, ansiGreen, color)
	}
}

func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return colorize(s, ansiRed, color)
	case ms >= 250:
		return colorize(s, ansiYellow, color)
	default:
		return colorize(s, ansiDim, color)
	}
}

// colorizeResult covers both request results and session login results.
func colorizeResult(result string, color bool) string {
	switch result {
	case "success", "ok":
		return colorize(result, ansiGreen, color)
	case "server_error", "error":
		return colorize(result, ansiRed, color)
	case "redirect":
		return colorize(result, ansiCyan, color)
	default:
		return colorize(result, ansiYellow, color)
	}
}

// wrapSegments packs segments into lines no wider than width.
// Continuation lines start with indent. A segment that cannot fit on its
// own is truncated with an ellipsis.
func wrapSegments(segments []string, sep string, width int, indent string) []string {
	if width <= 0 {
		return []string{strings.Join(segments, sep)}
	}

	var lines []string
	cur := ""
	curLen := 0

	for _, seg := range segments {
		if seg == "" {
			continue
		}

		if curLen == 0 {
			prefix := ""
			if len(lines) > 0 {
				prefix = indent
			}
			seg = truncateVisual(seg, width-visualLen(prefix))
			cur = prefix + seg
			curLen = visualLen(cur)
			continue
		}

		segLen := visualLen(seg)
		if curLen+visualLen(sep)+segLen <= width {
			cur += sep + seg
			curLen += visualLen(sep) + segLen
			continue
		}

		lines = append(lines, cur)
		seg = truncateVisual(seg, width-visualLen(indent))
		cur = indent + seg
		curLen = visualLen(cur)
	}

	if curLen > 0 {
		lines = append(lines, cur)
	}
	return lines
}

func truncateVisual(s string, limit int) string {
	if limit <= 1 || visualLen(s) <= limit {
		return s
	}
	runes := []rune(stripANSI(s))
	return string(runes[:limit-1]) + "…"
}

// terminalWidth: WEBAPP_LOG_WIDTH, then COLUMNS, then the attached terminal, then 100.
func (h *prettyHandler) terminalWidth() int {
	for _, key := range []string{"WEBAPP_LOG_WIDTH", "COLUMNS"} {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n >= minLogWidth {
			return n
		}
	}

	if f, ok := h.w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w >= minLogWidth {
			return w
		}
	}
	return defaultLogWidth
}
