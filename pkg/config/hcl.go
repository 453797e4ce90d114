package config

import (
	"os"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// optionsAttr lets HCL files carry keys that are not valid identifiers:
//
//	source "FakeSource" {
//	  result_table_name = "fake"
//	  options = { "row.num" = 10 }
//	}
const optionsAttr = "options"

var hclJobSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: SectionEnv},
		{Type: SectionSource, LabelNames: []string{"plugin"}},
		{Type: SectionTransform, LabelNames: []string{"plugin"}},
		{Type: SectionSink, LabelNames: []string{"plugin"}},
	},
}

// decodeHCL turns an HCL job file into the same document shape the YAML and
// JSON decoders produce. Expressions may read environment variables as env.NAME.
func decodeHCL(data []byte, filename string) (map[string]interface{}, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	content, diags := file.Body.Content(hclJobSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	evalCtx := envEvalContext()
	doc := map[string]interface{}{}
	lists := map[string][]interface{}{}

	for _, block := range content.Blocks {
		attrs, err := decodeAttributes(block.Body, evalCtx)
		if err != nil {
			return nil, err
		}
		if block.Type == SectionEnv {
			doc[SectionEnv] = attrs
			continue
		}
		attrs[KeyPluginName] = block.Labels[0]
		lists[block.Type] = append(lists[block.Type], attrs)
	}
	for section, list := range lists {
		doc[section] = list
	}
	return doc, nil
}

func decodeAttributes(body hcl.Body, evalCtx *hcl.EvalContext) (map[string]interface{}, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	out := make(map[string]interface{}, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, diags
		}
		goVal, err := ctyToGo(val)
		if err != nil {
			return nil, err
		}
		if name == optionsAttr {
			if m, ok := goVal.(map[string]interface{}); ok {
				for k, v := range m {
					out[k] = v
				}
				continue
			}
		}
		out[name] = goVal
	}
	return out, nil
}

// ctyToGo converts through the cty JSON encoding, which already handles every
// cty type; numbers come back as float64 like the JSON job format.
func ctyToGo(val cty.Value) (interface{}, error) {
	if val.IsNull() {
		return nil, nil
	}
	raw, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := gojson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func envEvalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}
}
