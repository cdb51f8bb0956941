// Package style loads the stylesheet pushed to the display backend.
//
// Stylesheet semantics belong to the backend. This package only reads the
// file, checks that it is structurally sound and reports where it is not.
package style

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ParseError reports a stylesheet that could not be read or is malformed.
type ParseError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("stylesheet %s: %v", e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("stylesheet %s:%d: %s", e.Path, e.Line, e.Msg)
	default:
		return fmt.Sprintf("stylesheet %s: %s", e.Path, e.Msg)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseFromFile reads the stylesheet at path. A ".toml" file is read as a
// palette theme and rendered to CSS. A file that cannot be read is a
// *ParseError wrapping the read error.
func ParseFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ParseError{Path: path, Err: err}
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		theme, err := LoadThemeTOML(data)
		if err != nil {
			return "", &ParseError{Path: path, Err: err}
		}
		return theme.CSS(), nil
	}

	css, err := Parse(string(data))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return "", err
	}
	return css, nil
}

// ParseFromFileOrEmpty is ParseFromFile with a missing file read as an
// empty stylesheet.
func ParseFromFileOrEmpty(path string) (string, error) {
	css, err := ParseFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return css, err
}

// Parse strips comments from css and checks that braces balance and that
// comments and strings are terminated. It returns the stripped text.
func Parse(css string) (string, error) {
	var (
		out     strings.Builder
		depth   int
		line    = 1
		opened  []int
		inStr   rune
		strLine int
	)

	for i := 0; i < len(css); i++ {
		c := css[i]

		if inStr != 0 {
			out.WriteByte(c)
			switch {
			case c == '\\' && i+1 < len(css):
				i++
				out.WriteByte(css[i])
			case rune(c) == inStr:
				inStr = 0
			case c == '\n':
				return "", &ParseError{Line: strLine, Msg: "unterminated string"}
			}
			continue
		}

		switch {
		case c == '\n':
			line++
			out.WriteByte(c)
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				return "", &ParseError{Line: line, Msg: "unterminated comment"}
			}
			comment := css[i : i+2+end+2]
			// Keep line numbers stable for later errors.
			n := strings.Count(comment, "\n")
			line += n
			out.WriteString(strings.Repeat("\n", n))
			i += len(comment) - 1
		case c == '"' || c == '\'':
			inStr = rune(c)
			strLine = line
			out.WriteByte(c)
		case c == '{':
			depth++
			opened = append(opened, line)
			out.WriteByte(c)
		case c == '}':
			if depth == 0 {
				return "", &ParseError{Line: line, Msg: "unexpected '}'"}
			}
			depth--
			opened = opened[:len(opened)-1]
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}

	if inStr != 0 {
		return "", &ParseError{Line: strLine, Msg: "unterminated string"}
	}
	if depth > 0 {
		return "", &ParseError{Line: opened[len(opened)-1], Msg: "unclosed '{'"}
	}
	return out.String(), nil
}
