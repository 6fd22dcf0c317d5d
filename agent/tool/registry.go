package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

type Param struct {
	Type     ParamType
	Desc     string
	Required bool
}

// Handler executes one tool call. Operational faults are reported through
// the outcome, never as a panic or a Go error.
type Handler func(ctx context.Context, args map[string]any) contractx.ToolOutcome

// Declaration is one callable capability exposed to an agent: a native
// function or a delegated sub-agent. The parameter schema is what the
// runtime validates generated arguments against before dispatch.
type Declaration struct {
	Name    string
	Desc    string
	Params  map[string]Param
	Handler Handler
}

// Registry is the per-agent tool set. Names are unique; declarations are
// static for the agent's lifetime.
type Registry struct {
	agentType contractx.AgentType
	order     []string
	decls     map[string]Declaration
}

func NewRegistry(agentType contractx.AgentType) *Registry {
	return &Registry{
		agentType: agentType,
		decls:     make(map[string]Declaration),
	}
}

func (r *Registry) Declare(d Declaration) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: tool=%s has no handler", contractx.ErrValidation, name)
	}
	if _, exists := r.decls[name]; exists {
		return fmt.Errorf("%w: tool=%s declared twice for agent=%s", contractx.ErrValidation, name, r.agentType)
	}
	d.Name = name
	r.decls[name] = d
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) MustDeclare(d Declaration) {
	if err := r.Declare(d); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(name string) bool {
	_, ok := r.decls[name]
	return ok
}

// ValidateArgs checks generated arguments against the declaration before
// dispatch. Malformed calls are rejected, not passed through.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	decl, ok := r.decls[name]
	if !ok {
		return fmt.Errorf("%w: tool=%s agent=%s", contractx.ErrToolUnknown, name, r.agentType)
	}

	for _, param := range contractx.SortedKeys(decl.Params) {
		spec := decl.Params[param]
		value, present := args[param]
		if !present {
			if spec.Required {
				return fmt.Errorf("%w: tool=%s missing required param=%s", contractx.ErrToolArgs, name, param)
			}
			continue
		}
		if err := checkParamType(param, spec.Type, value); err != nil {
			return fmt.Errorf("%w: tool=%s: %v", contractx.ErrToolArgs, name, err)
		}
	}

	for arg := range args {
		if _, declared := decl.Params[arg]; !declared {
			return fmt.Errorf("%w: tool=%s has undeclared param=%s", contractx.ErrToolArgs, name, arg)
		}
	}
	return nil
}

func checkParamType(param string, want ParamType, value any) error {
	switch want {
	case ParamString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("param=%s must be a string, got %T", param, value)
		}
	case ParamInteger:
		switch v := value.(type) {
		case int:
		case int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("param=%s must be an integer, got %v", param, v)
			}
		default:
			return fmt.Errorf("param=%s must be an integer, got %T", param, value)
		}
	default:
		return fmt.Errorf("param=%s has unknown type=%q", param, want)
	}
	return nil
}

// Execute validates and runs one tool request. Validation failures become
// invalid_args outcomes so the agent can report them without aborting.
func (r *Registry) Execute(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	if err := r.ValidateArgs(req.Tool, req.Args); err != nil {
		return contractx.ToolResult{
			Tool:    req.Tool,
			Outcome: contractx.Errf(contractx.FailInvalidArgs, "%v", err),
		}
	}
	decl := r.decls[req.Tool]
	return contractx.ToolResult{
		Tool:    req.Tool,
		Outcome: decl.Handler(ctx, req.Args),
	}
}

// ToolInfos renders the declarations for binding to a tool-calling chat
// model.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		decl := r.decls[name]
		params := make(map[string]*schema.ParameterInfo, len(decl.Params))
		for pname, p := range decl.Params {
			params[pname] = &schema.ParameterInfo{
				Type:     dataTypeFor(p.Type),
				Desc:     p.Desc,
				Required: p.Required,
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        decl.Name,
			Desc:        decl.Desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}

func dataTypeFor(t ParamType) schema.DataType {
	if t == ParamInteger {
		return schema.Integer
	}
	return schema.String
}

// IntArg reads an integer argument that may arrive as a JSON float64.
func IntArg(args map[string]any, name string) (int, bool) {
	switch v := args[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int64(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// StringArg reads a trimmed string argument.
func StringArg(args map[string]any, name string) (string, bool) {
	v, ok := args[name].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
