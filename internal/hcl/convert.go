package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// decodeStringMap evaluates expr and converts the result into a string map.
// A null result yields a nil map. Numbers and bools are converted to their
// string form so that `STOP_N = 5` is accepted.
func decodeStringMap(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]string, hcl.Diagnostics) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}

	target := cty.Map(cty.String)
	converted, err := convert.Convert(val, target)
	if err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid values",
			Detail:   fmt.Sprintf("Cannot convert %s to %s: %s.", val.Type().FriendlyName(), target.FriendlyName(), err),
			Subject:  expr.Range().Ptr(),
		}}
	}
	if !converted.IsWhollyKnown() {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid values",
			Detail:   "Case values must be known when the configuration is loaded.",
			Subject:  expr.Range().Ptr(),
		}}
	}

	var out map[string]string
	if err := gocty.FromCtyValue(converted, &out); err != nil {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid values",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		}}
	}
	return out, nil
}
