package utils

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Error classes used as metric labels and log fields.
const (
	ErrorClassCanceled    = "canceled"
	ErrorClassTimeout     = "timeout"
	ErrorClassRateLimited = "rate_limited"
	ErrorClassServer      = "server_error"
	ErrorClassClient      = "client_error"
	ErrorClassNetwork     = "network"
)

// ClassifyError maps a failed chat-completion call onto a coarse class. Every
// class is retried by the pipeline; the class only feeds logs and metrics.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == 429:
		return ErrorClassRateLimited
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	}

	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

var pythonLiterals = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "null",
}

// NormalizePythonLiterals turns a Python dict literal into something a JSON5
// decoder accepts. Single-quoted strings are rewritten with double quotes, the
// bare words True, False and None get their JSON spelling and // or /* */
// comments are dropped. Double-quoted strings are copied untouched.
func NormalizePythonLiterals(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		c := text[i]

		switch {
		case c == '"':
			i = copyDoubleQuoted(&b, text, i)
		case c == '\'':
			i = requoteSingleQuoted(&b, text, i)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
			} else {
				i += end + 4
			}
			b.WriteByte(' ')
		case isWordByte(c):
			j := i
			for j < len(text) && isWordByte(text[j]) {
				j++
			}
			word := text[i:j]
			if replacement, ok := pythonLiterals[word]; ok {
				word = replacement
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// copyDoubleQuoted copies the string starting at text[start] and returns the
// index after its closing quote.
func copyDoubleQuoted(b *strings.Builder, text string, start int) int {
	b.WriteByte('"')
	i := start + 1
	for i < len(text) {
		c := text[i]
		if c == '\\' && i+1 < len(text) {
			b.WriteString(text[i : i+2])
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
		if c == '"' {
			break
		}
	}
	return i
}

// requoteSingleQuoted writes the single-quoted string starting at text[start]
// with double quotes: \' loses its backslash and a bare " gains one.
func requoteSingleQuoted(b *strings.Builder, text string, start int) int {
	b.WriteByte('"')
	i := start + 1
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			if text[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteString(text[i : i+2])
			}
			i += 2
			continue
		case c == '"':
			b.WriteString(`\"`)
		case c == '\'':
			b.WriteByte('"')
			return i + 1
		default:
			b.WriteByte(c)
		}
		i++
	}
	// unterminated, leave it to the decoder to reject
	return i
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
