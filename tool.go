package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Tool is a named capability the model may invoke. Tools receive their
// arguments as a JSON-like map and return text for the model to observe.
type Tool interface {

	// Name returns the name the model uses to select the tool
	Name() string

	// Description returns the text shown to the model
	Description() string

	// InputSchema returns a JSON schema describing the arguments, or nil
	InputSchema() map[string]any

	// Invoke runs the tool
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// StringInputCoercer is implemented by tools that accept a bare string in
// place of their argument map. The returned map is used as the arguments.
type StringInputCoercer interface {
	CoerceStringInput(input string) (map[string]any, bool)
}

// DefaultInputField receives a bare string input for tools that do not
// declare their own coercion.
const DefaultInputField = "input"

// ToolFunction is the signature of a function-backed tool.
type ToolFunction func(ctx context.Context, args map[string]any) (string, error)

// FuncTool wraps a function for use as a Tool.
type FuncTool struct {
	name        string
	description string
	schema      map[string]any
	stringField string
	fn          ToolFunction
}

// NewFuncTool returns a Tool backed by fn.
func NewFuncTool(name, description string, schema map[string]any, fn ToolFunction) *FuncTool {
	return &FuncTool{name: name, description: description, schema: schema, fn: fn}
}

// WithStringInput declares that a bare string input maps to the given field.
func (t *FuncTool) WithStringInput(field string) *FuncTool {
	t.stringField = field
	return t
}

func (t *FuncTool) Name() string {
	return t.name
}

func (t *FuncTool) Description() string {
	return t.description
}

func (t *FuncTool) InputSchema() map[string]any {
	return t.schema
}

func (t *FuncTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return t.fn(ctx, args)
}

func (t *FuncTool) CoerceStringInput(input string) (map[string]any, bool) {
	if t.stringField == "" {
		return nil, false
	}
	return map[string]any{t.stringField: input}, true
}

// DecodeInput converts a tool argument map into a typed struct using its
// json tags.
func DecodeInput[T any](args map[string]any) (T, error) {
	var params T
	data, err := json.Marshal(args)
	if err != nil {
		return params, fmt.Errorf("failed to marshal tool input: %w", err)
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("invalid tool input: %w", err)
	}
	return params, nil
}

// ToolRegistry maps tool names to tools and validates their arguments.
type ToolRegistry struct {
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewToolRegistry returns a registry holding the given tools.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools:   map[string]Tool{},
		schemas: map[string]*jsonschema.Schema{},
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique and schemas must compile.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	if schema := tool.InputSchema(); schema != nil {
		compiled, err := compileSchema(name, schema)
		if err != nil {
			return err
		}
		r.schemas[name] = compiled
	}
	r.tools[name] = tool
	return nil
}

// Get returns the tool with the given name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools sorted by name.
func (r *ToolRegistry) Tools() []Tool {
	var tools []Tool
	for _, name := range r.Names() {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	return len(r.tools)
}

// Describe renders the tool names and descriptions for a prompt.
func (r *ToolRegistry) Describe() string {
	if len(r.tools) == 0 {
		return "(no tools available)"
	}
	var lines []string
	for _, tool := range r.Tools() {
		lines = append(lines, fmt.Sprintf("- %s: %s", tool.Name(), tool.Description()))
	}
	return strings.Join(lines, "\n")
}

// CoerceInput maps a bare string input onto the argument shape of the named
// tool, falling back to {"input": s}.
func (r *ToolRegistry) CoerceInput(name, input string) map[string]any {
	if tool, ok := r.tools[name]; ok {
		if coercer, ok := tool.(StringInputCoercer); ok {
			if args, ok := coercer.CoerceStringInput(input); ok {
				return args
			}
		}
	}
	return map[string]any{DefaultInputField: input}
}

// Validate checks args against the schema of the named tool.
func (r *ToolRegistry) Validate(name string, args map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return nil
	}
	instance, err := normalizeJSON(args)
	if err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return nil
}

// Invoke resolves, validates and runs a tool.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := r.Validate(name, args); err != nil {
		return "", WrapError(ErrorTypeToolFailed, err)
	}
	return tool.Invoke(ctx, args)
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	doc, err := normalizeJSON(schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for tool %s: %w", name, err)
	}
	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for tool %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %s: %w", name, err)
	}
	return compiled, nil
}

// normalizeJSON round-trips v through encoding/json so Go numeric types
// become the float64 values the validator expects.
func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
