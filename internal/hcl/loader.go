package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/rxcropmaturity/internal/config"
	"github.com/vk/rxcropmaturity/internal/ctxlog"
	"github.com/vk/rxcropmaturity/internal/fsutil"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	environ func() []string
}

var _ config.Loader = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader)

// WithEnviron replaces the source of the `env` variable, which defaults to
// os.Environ.
func WithEnviron(fn func() []string) Option {
	return func(l *Loader) { l.environ = fn }
}

// NewLoader creates a new HCL loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{environ: os.Environ}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load finds all .hcl files under the given paths, merges them and decodes
// the result. Exactly one `case` block is required across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to find config files in %s: %w", p, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Found config files.", "count", len(files), "files", files)

	parser := hclparse.NewParser()
	parsed := make([]*hcl.File, 0, len(files))
	for _, f := range files {
		file, diags := parser.ParseHCLFile(f)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", f, diags)
		}
		parsed = append(parsed, file)
	}

	model, diags := l.decode(hcl.MergeFiles(parsed))
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", diags)
	}
	logger.Debug("Configuration decoded.",
		"case_root", model.Case.Root,
		"calendars", len(model.Calendars),
		"surface_dataset", model.GddGen.UseSurfaceDataset,
	)
	return model, nil
}

func (l *Loader) decode(body hcl.Body) (*config.Model, hcl.Diagnostics) {
	evalCtx := newEvalContext(l.environ())

	content, diags := body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	model := &config.Model{}

	caseBlk, d := findUniqueBlock(content.Blocks, "case")
	diags = append(diags, d...)
	if caseBlk == nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing \"case\" block",
			Detail:   "A configuration must define exactly one \"case\" block.",
		})
	} else {
		diags = append(diags, decodeCase(caseBlk, evalCtx, &model.Case)...)
	}

	calendars, d := labeledBlocks(content.Blocks, "calendar")
	diags = append(diags, d...)
	for _, blk := range calendars {
		var cal calendarBlock
		if d := gohcl.DecodeBody(blk.Body, evalCtx, &cal); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		model.Calendars = append(model.Calendars, config.Calendar{
			Resolution:  blk.Labels[0],
			SowingFile:  cal.SowingFile,
			HarvestFile: cal.HarvestFile,
		})
	}

	if blk, d := findUniqueBlock(content.Blocks, "environment"); blk != nil || d.HasErrors() {
		diags = append(diags, d...)
		var env environmentBlock
		if blk != nil {
			diags = append(diags, gohcl.DecodeBody(blk.Body, evalCtx, &env)...)
		}
		model.Environment = config.Environment(env)
	}

	if blk, d := findUniqueBlock(content.Blocks, "gddgen"); blk != nil || d.HasErrors() {
		diags = append(diags, d...)
		var g gddgenBlock
		if blk != nil {
			diags = append(diags, gohcl.DecodeBody(blk.Body, evalCtx, &g)...)
		}
		model.GddGen = config.GddGen(g)
	}

	return model, diags
}

func decodeCase(blk *hcl.Block, evalCtx *hcl.EvalContext, out *config.Case) hcl.Diagnostics {
	var c caseBlock
	diags := gohcl.DecodeBody(blk.Body, evalCtx, &c)
	if diags.HasErrors() {
		return diags
	}
	if c.Root == "" {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Empty case root",
			Detail:   "The \"root\" attribute of the \"case\" block must not be empty.",
			Subject:  &blk.DefRange,
		})
	}

	values, d := decodeStringMap(c.Values, evalCtx)
	diags = append(diags, d...)

	out.Root = c.Root
	out.CloneSuffix = c.CloneSuffix
	out.Values = values
	if c.Commands != nil {
		out.Commands = config.Commands(*c.Commands)
	}
	return diags
}
