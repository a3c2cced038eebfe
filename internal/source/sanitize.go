// Package source checks submitted code and derives structural metrics from it.
package source

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// Sanitize syntax-checks code as Go source. Valid code is returned unchanged.
// Invalid code is wrapped in comments naming the parse error so that agents
// can still review it. Sanitize never fails.
func Sanitize(code string) string {
	if _, err := parse(code); err != nil {
		return fmt.Sprintf("// Invalid Go code\n%s\n// Error: %v", code, err)
	}
	return code
}

// Fragment wrappers. Each ends in a newline so the user's code starts on a
// fresh line and parse errors can be mapped back by a fixed line offset.
const (
	declPrefix = "package p\n"
	stmtPrefix = "package p\nfunc _() {\n"
)

// parse accepts the same fragments gofmt does: a complete file, a list of
// declarations without a package clause, or a list of statements.
// Error positions always refer to lines of code.
func parse(code string) (*ast.File, error) {
	fset := token.NewFileSet()
	const mode = parser.SkipObjectResolution

	file, err := parser.ParseFile(fset, "", code, mode)
	if err == nil || !strings.Contains(err.Error(), "expected 'package'") {
		return file, err
	}

	// Declaration list.
	file, err = parser.ParseFile(fset, "", declPrefix+code, mode)
	if err == nil || !strings.Contains(err.Error(), "expected declaration") {
		return file, shiftErrors(err, declPrefix)
	}

	// Statement list. The closing brace sits on its own line so that a
	// trailing line comment in code cannot swallow it.
	file, err = parser.ParseFile(fset, "", stmtPrefix+code+"\n\n}", mode)
	return file, shiftErrors(err, stmtPrefix)
}

// shiftErrors moves scanner error positions back by the lines and bytes
// that prefix added in front of the code.
func shiftErrors(err error, prefix string) error {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return err
	}
	lines := strings.Count(prefix, "\n")
	shifted := make(scanner.ErrorList, 0, len(list))
	for _, e := range list {
		pos := e.Pos
		pos.Line = max(pos.Line-lines, 1)
		pos.Offset = max(pos.Offset-len(prefix), 0)
		shifted = append(shifted, &scanner.Error{Pos: pos, Msg: e.Msg})
	}
	return shifted
}
