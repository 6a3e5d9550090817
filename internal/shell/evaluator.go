package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// maxDisplayItems caps how many array elements a result shows.
const maxDisplayItems = 20

// Evaluator is the user's namespace: one goja runtime that lives for the
// whole shell, so variables defined by one command are visible to the
// next.
type Evaluator struct {
	vm  *goja.Runtime
	out io.Writer
}

// NewEvaluator creates a runtime whose print and console.log write to out.
func NewEvaluator(out io.Writer) (*Evaluator, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	e := &Evaluator{vm: vm, out: out}
	if err := e.setupBuiltins(); err != nil {
		return nil, err
	}
	return e, nil
}

// Runtime exposes the underlying runtime for binding Go values.
func (e *Evaluator) Runtime() *goja.Runtime {
	return e.vm
}

// Set binds name in the user namespace.
func (e *Evaluator) Set(name string, value any) error {
	if err := e.vm.Set(name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

// Get returns the current value of name, or nil if it was never set.
func (e *Evaluator) Get(name string) goja.Value {
	return e.vm.Get(name)
}

// Eval runs code and returns the formatted value of its last expression,
// or "" when there is nothing to show. Cancelling ctx interrupts the
// running code.
func (e *Evaluator) Eval(ctx context.Context, code string) (result string, err error) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			e.vm.Interrupt("interrupted")
		case <-done:
		}
	}()
	defer func() {
		close(done)
		<-stopped
		e.vm.ClearInterrupt()
		// A Go panic that is not a JavaScript exception escapes goja.
		if r := recover(); r != nil {
			result, err = "", fmt.Errorf("internal error: %v", r)
		}
	}()

	val, err := e.vm.RunString(code)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", fmt.Errorf("execution interrupted: %v", interrupted.Value())
		}
		return "", err
	}
	return formatValue(val), nil
}

// Incomplete reports whether code stops in the middle of a statement,
// so the shell should keep reading lines.
func Incomplete(code string) bool {
	_, err := goja.Compile("", code, false)
	return err != nil && strings.Contains(err.Error(), "Unexpected end of input")
}

func (e *Evaluator) setupBuiltins() error {
	printFunc := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		fmt.Fprintln(e.out, strings.Join(args, " "))
		return goja.Undefined()
	}
	if err := e.vm.Set("print", printFunc); err != nil {
		return fmt.Errorf("failed to set print: %w", err)
	}

	console := e.vm.NewObject()
	if err := console.Set("log", printFunc); err != nil {
		return fmt.Errorf("failed to set console.log: %w", err)
	}
	return e.vm.Set("console", console)
}

// formatValue renders a result the way the shell echoes it.
func formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return ""
	}

	switch v := val.Export().(type) {
	case string:
		if len(v) > 1000 {
			return fmt.Sprintf("%q... (truncated, total %d chars)", v[:1000], len(v))
		}
		return fmt.Sprintf("%q", v)
	case []any:
		if len(v) == 0 {
			return "[]"
		}
		n := min(len(v), maxDisplayItems)
		items := make([]string, 0, n+1)
		for _, item := range v[:n] {
			items = append(items, formatExported(item))
		}
		if len(v) > maxDisplayItems {
			items = append(items, fmt.Sprintf("... (%d more items)", len(v)-maxDisplayItems))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		return formatExported(v)
	case func(goja.FunctionCall) goja.Value:
		return "[function]"
	default:
		if obj, ok := val.(*goja.Object); ok && obj.ClassName() == "Function" {
			return "[function]"
		}
		return val.String()
	}
}

// formatExported prints objects with sorted keys so output is stable.
func formatExported(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		if s, ok := v.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + formatExported(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
