// Package graphdef loads a document graph from an HCL definition file.
// It is a front end for the CLI and tests only: the engine itself never
// touches serialized state, and this format is not the editor's
// persistence schema.
//
// Definition syntax:
//
//	node "<kind>" "<name>" {
//	  a        = 2                 # literal slot binding
//	  b        = node.other       # connection to another node's output
//	  position = [100, 40]        # editor metadata, execution-irrelevant
//	  label    = "Sum"
//	}
//
//	output = node.result
package graphdef

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/nodeflow/internal/ctxlog"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/internal/value"
)

// Document is a loaded definition: the populated graph, the requested
// output, and the name-to-identity mapping for callers that address
// nodes by their definition names.
type Document struct {
	Graph  *document.Graph
	Output document.ID
	Names  map[string]document.ID
}

// reserved attribute names inside a node block that are metadata, not
// slot bindings.
const (
	attrPosition = "position"
	attrLabel    = "label"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "node", LabelNames: []string{"kind", "name"}},
	},
	Attributes: []hcl.AttributeSchema{
		{Name: "output", Required: true},
	},
}

// evalCtx provides the literal constructors available in definition
// files: vec2(x, y) and rgba(r, g, b, a).
func evalCtx() *hcl.EvalContext {
	vec2Fn := function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "x", Type: cty.Number},
			{Name: "y", Type: cty.Number},
		},
		Type: function.StaticReturnType(value.Vec2().Base),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			x, _ := args[0].AsBigFloat().Float64()
			y, _ := args[1].AsBigFloat().Float64()
			return value.Vec2Val(x, y), nil
		},
	})
	rgbaFn := function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "r", Type: cty.Number},
			{Name: "g", Type: cty.Number},
			{Name: "b", Type: cty.Number},
			{Name: "a", Type: cty.Number},
		},
		Type: function.StaticReturnType(value.Color().Base),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			ch := make([]float64, 4)
			for i := range args {
				ch[i], _ = args[i].AsBigFloat().Float64()
			}
			return value.ColorVal(ch[0], ch[1], ch[2], ch[3]), nil
		},
	})
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"vec2": vec2Fn,
			"rgba": rgbaFn,
		},
	}
}

// LoadFile parses a definition file and builds a document graph against
// the given registry.
func LoadFile(ctx context.Context, reg *registry.Registry, path string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph definition %s: %s", path, diags.Error())
	}
	return build(ctx, reg, file.Body, path)
}

// LoadSource parses definition source text; filename appears in
// diagnostics only.
func LoadSource(ctx context.Context, reg *registry.Registry, src, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL([]byte(src), filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph definition %s: %s", filename, diags.Error())
	}
	return build(ctx, reg, file.Body, filename)
}

func build(ctx context.Context, reg *registry.Registry, body hcl.Body, filename string) (*Document, error) {
	logger := ctxlog.FromContext(ctx)
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode graph definition %s: %s", filename, diags.Error())
	}

	graph := document.NewGraph(reg)
	names := make(map[string]document.ID, len(content.Blocks))
	ectx := evalCtx()

	// First pass: create all nodes so connections can reference any
	// definition order.
	type pendingNode struct {
		id    document.ID
		block *hcl.Block
	}
	var pending []pendingNode
	for _, block := range content.Blocks {
		kind, name := block.Labels[0], block.Labels[1]
		if _, dup := names[name]; dup {
			return nil, fmt.Errorf("%s: duplicate node name '%s'", filename, name)
		}
		meta, err := metadataFromBlock(block, ectx)
		if err != nil {
			return nil, err
		}
		id, err := graph.AddNode(ctx, kind, meta)
		if err != nil {
			return nil, fmt.Errorf("%s: node '%s': %w", filename, name, err)
		}
		names[name] = id
		pending = append(pending, pendingNode{id: id, block: block})
	}
	logger.Debug("Definition nodes created.", "file", filename, "count", len(pending))

	// Second pass: bind slots.
	for _, pn := range pending {
		attrs, diags := pn.block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: node '%s': %s", filename, pn.block.Labels[1], diags.Error())
		}
		for name, attr := range attrs {
			if name == attrPosition || name == attrLabel {
				continue
			}
			binding, err := bindingFromExpr(attr.Expr, names, ectx)
			if err != nil {
				return nil, fmt.Errorf("%s: node '%s', slot '%s': %w", filename, pn.block.Labels[1], name, err)
			}
			if err := graph.SetInput(ctx, pn.id, name, binding); err != nil {
				return nil, fmt.Errorf("%s: node '%s': %w", filename, pn.block.Labels[1], err)
			}
		}
	}

	outputID, err := referencedNode(content.Attributes["output"].Expr, names)
	if err != nil {
		return nil, fmt.Errorf("%s: output: %w", filename, err)
	}

	logger.Debug("Graph definition loaded.", "file", filename, "nodes", graph.Len())
	return &Document{Graph: graph, Output: outputID, Names: names}, nil
}

// metadataFromBlock extracts position/label editor metadata.
func metadataFromBlock(block *hcl.Block, ectx *hcl.EvalContext) (document.Metadata, error) {
	var meta document.Metadata
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return meta, fmt.Errorf("node '%s': %s", block.Labels[1], diags.Error())
	}
	if attr, ok := attrs[attrPosition]; ok {
		v, diags := attr.Expr.Value(ectx)
		if diags.HasErrors() {
			return meta, fmt.Errorf("node '%s' position: %s", block.Labels[1], diags.Error())
		}
		if v.Type().IsTupleType() && v.LengthInt() == 2 {
			meta.X, _ = v.Index(cty.NumberIntVal(0)).AsBigFloat().Float64()
			meta.Y, _ = v.Index(cty.NumberIntVal(1)).AsBigFloat().Float64()
		} else {
			return meta, fmt.Errorf("node '%s' position must be a two-element tuple", block.Labels[1])
		}
	}
	if attr, ok := attrs[attrLabel]; ok {
		v, diags := attr.Expr.Value(ectx)
		if diags.HasErrors() {
			return meta, fmt.Errorf("node '%s' label: %s", block.Labels[1], diags.Error())
		}
		if v.Type() != cty.String {
			return meta, fmt.Errorf("node '%s' label must be a string", block.Labels[1])
		}
		meta.Label = v.AsString()
	}
	return meta, nil
}

// bindingFromExpr turns an attribute expression into a slot binding: a
// node.<name> traversal becomes a connection, anything else evaluates
// to a literal.
func bindingFromExpr(expr hcl.Expression, names map[string]document.ID, ectx *hcl.EvalContext) (document.Binding, error) {
	for _, traversal := range expr.Variables() {
		if traversal.RootName() != "node" {
			return document.Binding{}, fmt.Errorf("unknown reference root '%s'", traversal.RootName())
		}
		id, err := referencedNode(expr, names)
		if err != nil {
			return document.Binding{}, err
		}
		return document.ConnectionBinding(id, document.DefaultOutput), nil
	}

	v, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return document.Binding{}, fmt.Errorf("%s", diags.Error())
	}
	return document.LiteralBinding(v), nil
}

// referencedNode resolves a node.<name> traversal to a node identity.
func referencedNode(expr hcl.Expression, names map[string]document.ID) (document.ID, error) {
	vars := expr.Variables()
	if len(vars) != 1 {
		return "", fmt.Errorf("expected a single node.<name> reference")
	}
	traversal := vars[0]
	if traversal.RootName() != "node" || len(traversal) < 2 {
		return "", fmt.Errorf("expected a node.<name> reference")
	}
	step, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("expected a node.<name> reference")
	}
	id, ok := names[step.Name]
	if !ok {
		return "", fmt.Errorf("reference to undefined node '%s'", step.Name)
	}
	return id, nil
}
