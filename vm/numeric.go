package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// parseNumberText materialises a MakeNumberRef operand's source text
// (used for floats and integers too large for int64's fast path in
// compiler/lower.go's lowerScalar) into a number value, preferring
// int64 when the text round-trips without loss.
func parseNumberText(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("vm: invalid number literal %q: %w", text, err)
	}
	return f, nil
}
