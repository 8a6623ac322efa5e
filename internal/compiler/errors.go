package compiler

import "github.com/keyrx-dev/krx/internal/krxerr"

func newSyntaxError(line, col int, msg string) error {
	return krxerr.NewCompileError(line, col, "syntax error", msg)
}

func newSemanticError(line, col int, msg string) error {
	return krxerr.NewCompileError(line, col, "semantic error", msg)
}
