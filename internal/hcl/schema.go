package hcl

import "github.com/hashicorp/hcl/v2"

// rootSchema lists the top-level blocks of a test configuration. Blocks are
// extracted first so that uniqueness can be checked across merged files.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "case"},
		{Type: "calendar", LabelNames: []string{"resolution"}},
		{Type: "environment"},
		{Type: "gddgen"},
	},
}

type caseBlock struct {
	Root        string         `hcl:"root"`
	CloneSuffix string         `hcl:"clone_suffix,optional"`
	Values      hcl.Expression `hcl:"values,optional"`
	Commands    *commandsBlock `hcl:"commands,block"`
}

type commandsBlock struct {
	CreateClone     string `hcl:"create_clone,optional"`
	PreviewNamelist string `hcl:"preview_namelists,optional"`
	CheckInputData  string `hcl:"check_input_data,optional"`
	Submit          string `hcl:"submit,optional"`
	STArchive       string `hcl:"st_archive,optional"`
	Compare         string `hcl:"compare,optional"`
	ResetEnv        string `hcl:"reset_env,optional"`
}

type calendarBlock struct {
	SowingFile  string `hcl:"sowing_file"`
	HarvestFile string `hcl:"harvest_file"`
}

type environmentBlock struct {
	MachineScript      string `hcl:"machine_script,optional"`
	PythonEnv          string `hcl:"python_env,optional"`
	ProbeCommand       string `hcl:"probe_command,optional"`
	FallbackActivation string `hcl:"fallback_activation,optional"`
	Python             string `hcl:"python,optional"`
}

type gddgenBlock struct {
	UseSurfaceDataset bool `hcl:"use_surface_dataset,optional"`
}
