package shell

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/itsmostafa/inkbridge/internal/document"
	"github.com/itsmostafa/inkbridge/internal/session"
)

// KeyPresser sends keys to the main Inkscape window.
type KeyPresser interface {
	PressKeys(ctx context.Context, keys ...string) error
}

// ActionRunner runs Inkscape action commands and returns one output per
// command.
type ActionRunner interface {
	Run(ctx context.Context, commands ...string) ([]string, error)
}

// units are bound in this order; "in" comes last because it is a reserved
// word and has to be set as a global property.
var units = []string{"mm", "cm", "pt", "px"}

// FrontendOptions configures a Frontend.
type FrontendOptions struct {
	Controller *session.Controller
	Evaluator  *Evaluator
	Keys       KeyPresser
	Actions    ActionRunner
	// Connect enables borrowing the document around every command.
	Connect bool
	Logger  *zap.Logger
}

// Frontend ties the session lifecycle to the command loop: a session is
// opened before each command and its fields are bound as variables, then
// the variables are read back and the session finalized afterwards.
type Frontend struct {
	ctrl    *session.Controller
	eval    *Evaluator
	keys    KeyPresser
	actions ActionRunner
	connect bool
	logger  *zap.Logger

	// cmdCtx is the context of the command being evaluated; builtins
	// called from user code use it.
	cmdCtx  context.Context
	bindErr error
	readErr error
}

// NewFrontend builds a Frontend. Call Register to attach it.
func NewFrontend(opts FrontendOptions) *Frontend {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Frontend{
		ctrl:    opts.Controller,
		eval:    opts.Evaluator,
		keys:    opts.Keys,
		actions: opts.Actions,
		connect: opts.Connect,
		logger:  opts.Logger,
		cmdCtx:  context.Background(),
	}
}

// Connect reports whether commands borrow the document.
func (f *Frontend) Connect() bool {
	return f.connect
}

// Register installs the hooks, the session observers and the builtins.
func (f *Frontend) Register(h *Hooks) error {
	f.ctrl.OnOpen(f.bind)
	f.ctrl.OnFinalize(f.readBack)
	h.BeforeCommand(f.beforeCommand)
	h.AfterCommand(f.afterCommand)
	return f.setupBuiltins()
}

func (f *Frontend) beforeCommand(ctx context.Context) error {
	f.cmdCtx = ctx
	if !f.connect {
		return nil
	}
	if _, err := f.ctrl.Open(ctx); err != nil {
		return err
	}
	if err := f.bindErr; err != nil {
		f.bindErr = nil
		return err
	}
	return nil
}

func (f *Frontend) afterCommand(ctx context.Context) error {
	err := f.ctrl.Finalize(ctx)
	err = errors.Join(f.readErr, err)
	f.readErr = nil
	f.cmdCtx = context.Background()
	return err
}

type binding struct {
	name  string
	value any
}

// bind exposes s to user code. It also runs for the sessions reopened by
// a pause, so the variables never point at a finalized document.
func (f *Frontend) bind(s *session.Session) {
	vm := f.eval.Runtime()
	bindings := []binding{
		{"svg_root", &svgRoot{doc: s.SVGRoot}},
		{"guides", guidesToJS(vm, s.Guides)},
		{"user_args", s.UserArgs},
		{"canvas", canvasToJS(vm, s.Canvas)},
		{"metadata", metadataToJS(vm, s.Metadata)},
	}
	for _, u := range units {
		bindings = append(bindings, binding{u, s.Unit(u)})
	}

	var errs []error
	for _, b := range bindings {
		errs = append(errs, f.eval.Set(b.name, b.value))
	}
	inch := s.Unit("in")
	errs = append(errs, f.eval.Set("inch", inch), vm.GlobalObject().Set("in", inch))
	f.bindErr = errors.Join(errs...)
}

// readBack copies the bound variables into s before it is finalized. A
// variable the user left in an unusable shape keeps the session's value
// and is reported after the command.
func (f *Frontend) readBack(s *session.Session) {
	var errs []error
	if guides, err := guidesFromJS(f.eval.Get("guides")); err != nil {
		errs = append(errs, err)
	} else {
		s.Guides = guides
	}
	if args, err := stringFromJS(f.eval.Get("user_args"), "user_args"); err != nil {
		errs = append(errs, err)
	} else {
		s.UserArgs = args
	}
	if meta, err := metadataFromJS(f.eval.Get("metadata")); err != nil {
		errs = append(errs, err)
	} else {
		s.Metadata = meta
	}
	if err := errors.Join(errs...); err != nil {
		f.logger.Warn("discarding malformed bindings", zap.String("session_id", s.ID), zap.Error(err))
		f.readErr = errors.Join(f.readErr, err)
	}
}

func (f *Frontend) setupBuiltins() error {
	vm := f.eval.Runtime()

	setConnect := func(call goja.FunctionCall) goja.Value {
		f.connect = call.Argument(0).ToBoolean()
		return goja.Undefined()
	}
	if err := f.eval.Set("set_connect_to_client", setConnect); err != nil {
		return err
	}

	pause := func(call goja.FunctionCall) goja.Value {
		fn := requireFunction(vm, call.Argument(0), "pause_extension_run")
		err := f.ctrl.Pause(f.cmdCtx, func() error {
			_, err := fn(goja.Undefined())
			return err
		})
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}
	if err := f.eval.Set("pause_extension_run", pause); err != nil {
		return err
	}

	require := func(call goja.FunctionCall) goja.Value {
		fn := requireFunction(vm, call.Argument(0), "require_extension_run")
		var result goja.Value
		err := f.ctrl.RequireSession(f.cmdCtx, func(*session.Session) error {
			var err error
			result, err = fn(goja.Undefined())
			return err
		})
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return result
	}
	if err := f.eval.Set("require_extension_run", require); err != nil {
		return err
	}

	pressKeys := func(call goja.FunctionCall) goja.Value {
		if f.keys == nil {
			panic(vm.NewGoError(errors.New("inkscape_press_keys is not available")))
		}
		keys := stringArgs(call)
		err := f.ctrl.Pause(f.cmdCtx, func() error {
			return f.keys.PressKeys(f.cmdCtx, keys...)
		})
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}
	if err := f.eval.Set("inkscape_press_keys", pressKeys); err != nil {
		return err
	}

	actions := func(call goja.FunctionCall) goja.Value {
		if f.actions == nil {
			panic(vm.NewGoError(errors.New("inkscape_actions is not available")))
		}
		out, err := f.actions.Run(f.cmdCtx, stringArgs(call)...)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		if len(call.Arguments) == 1 && len(out) == 1 {
			return vm.ToValue(out[0])
		}
		return vm.ToValue(out)
	}
	return f.eval.Set("inkscape_actions", actions)
}

func requireFunction(vm *goja.Runtime, v goja.Value, name string) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(vm.NewTypeError(name + " requires a function"))
	}
	return fn
}

// stringArgs flattens the arguments, expanding arrays, into strings.
func stringArgs(call goja.FunctionCall) []string {
	var out []string
	for _, arg := range call.Arguments {
		if items, ok := arg.Export().([]any); ok {
			for _, item := range items {
				out = append(out, fmt.Sprint(item))
			}
			continue
		}
		out = append(out, arg.String())
	}
	return out
}

func guidesToJS(vm *goja.Runtime, guides []document.Guide) *goja.Object {
	items := make([]any, len(guides))
	for i, g := range guides {
		obj := vm.NewObject()
		obj.Set("id", g.ID)
		obj.Set("x", g.X)
		obj.Set("y", g.Y)
		obj.Set("ox", g.OrientationX)
		obj.Set("oy", g.OrientationY)
		obj.Set("label", g.Label)
		obj.Set("color", g.Color)
		items[i] = obj
	}
	return vm.NewArray(items...)
}

func guidesFromJS(v goja.Value) ([]document.Guide, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, errors.New("guides is not defined")
	}
	items, ok := v.Export().([]any)
	if !ok {
		return nil, fmt.Errorf("guides must be an array, got %s", v.String())
	}
	guides := make([]document.Guide, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("guides[%d] must be an object", i)
		}
		var g document.Guide
		var err error
		for _, field := range []struct {
			key string
			dst *float64
		}{{"x", &g.X}, {"y", &g.Y}, {"ox", &g.OrientationX}, {"oy", &g.OrientationY}} {
			if *field.dst, err = numberField(m, field.key); err != nil {
				return nil, fmt.Errorf("guides[%d]: %w", i, err)
			}
		}
		if g.OrientationX == 0 && g.OrientationY == 0 {
			return nil, fmt.Errorf("guides[%d]: orientation ox,oy must not both be zero", i)
		}
		g.ID = stringField(m, "id")
		g.Label = stringField(m, "label")
		g.Color = stringField(m, "color")
		guides = append(guides, g)
	}
	return guides, nil
}

func numberField(m map[string]any, key string) (float64, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %v", key, v)
	}
}

func stringField(m map[string]any, key string) string {
	if m[key] == nil {
		return ""
	}
	return fmt.Sprint(m[key])
}

func stringFromJS(v goja.Value, name string) (string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	s, ok := v.Export().(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return s, nil
}

func metadataToJS(vm *goja.Runtime, m document.Metadata) *goja.Object {
	obj := vm.NewObject()
	obj.Set("title", m.Title)
	obj.Set("description", m.Description)
	return obj
}

func metadataFromJS(v goja.Value) (document.Metadata, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return document.Metadata{}, errors.New("metadata is not defined")
	}
	m, ok := v.Export().(map[string]any)
	if !ok {
		return document.Metadata{}, errors.New("metadata must be an object")
	}
	return document.Metadata{
		Title:       stringField(m, "title"),
		Description: stringField(m, "description"),
	}, nil
}

func canvasToJS(vm *goja.Runtime, c document.Canvas) *goja.Object {
	obj := vm.NewObject()
	obj.Set("width", c.Width)
	obj.Set("height", c.Height)
	obj.Set("viewBox", vm.NewArray(c.ViewBox[0], c.ViewBox[1], c.ViewBox[2], c.ViewBox[3]))
	obj.Set("scale", c.Scale)
	pages := make([]any, len(c.Pages))
	for i, p := range c.Pages {
		page := vm.NewObject()
		page.Set("id", p.ID)
		page.Set("label", p.Label)
		page.Set("x", p.X)
		page.Set("y", p.Y)
		page.Set("width", p.Width)
		page.Set("height", p.Height)
		pages[i] = page
	}
	obj.Set("pages", vm.NewArray(pages...))
	return obj
}
