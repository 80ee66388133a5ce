package hcl

import "github.com/hashicorp/hcl/v2"

// findUniqueBlock returns the block of the given type, with an error
// diagnostic for every repeated occurrence. It returns nil if none is found.
func findUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "Only one \"" + name + "\" block is allowed; the first was defined at " + found.DefRange.String() + ".",
				Subject:  &block.DefRange,
			})
			continue
		}
		found = block
	}

	return found, diags
}

// labeledBlocks returns blocks of the given type keyed by their first label,
// rejecting repeated labels.
func labeledBlocks(blocks hcl.Blocks, name string) ([]*hcl.Block, hcl.Diagnostics) {
	var out []*hcl.Block
	var diags hcl.Diagnostics
	seen := map[string]*hcl.Block{}

	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		label := block.Labels[0]
		if prev, ok := seen[label]; ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "A \"" + name + "\" block labeled \"" + label + "\" was already defined at " + prev.DefRange.String() + ".",
				Subject:  &block.DefRange,
			})
			continue
		}
		seen[label] = block
		out = append(out, block)
	}

	return out, diags
}
