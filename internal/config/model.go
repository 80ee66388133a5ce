package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files or directories and
	// translates it into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified representation of the test configuration.
type Model struct {
	Case        Case
	Calendars   []Calendar
	Environment Environment
	GddGen      GddGen
}

// Case describes the base case the test operates on.
type Case struct {
	// Root is the case directory. Relative paths are resolved against the
	// working directory by the caller.
	Root string
	// Values override case variables; used for offline runs and tests.
	Values      map[string]string
	CloneSuffix string
	Commands    Commands
}

// Commands overrides the scripts used to drive a case. Empty fields keep
// the defaults.
type Commands struct {
	CreateClone     string
	PreviewNamelist string
	CheckInputData  string
	Submit          string
	STArchive       string
	Compare         string
	ResetEnv        string
}

// Calendar is a `calendar "<resolution>"` block.
type Calendar struct {
	Resolution  string
	SowingFile  string
	HarvestFile string
}

// Environment configures how analysis tools get their Python environment.
// Empty fields keep the defaults.
type Environment struct {
	MachineScript      string
	PythonEnv          string
	ProbeCommand       string
	FallbackActivation string
	Python             string
}

// GddGen holds options for the GDD-generating run.
type GddGen struct {
	UseSurfaceDataset bool
}
