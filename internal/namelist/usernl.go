package namelist

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vk/rxcropmaturity/internal/fsutil"
)

// ErrNoUserNamelist is returned when a case has no user_nl file for a component.
var ErrNoUserNamelist = errors.New("no user_nl files found")

// UserNLFiles lists the user_nl_<component>* files in caseRoot. Multi-instance
// cases have one file per instance.
func UserNLFiles(caseRoot, component string) ([]string, error) {
	files, err := fsutil.MatchFiles(caseRoot, "user_nl_"+component+"*")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w for component %s in %s", ErrNoUserNamelist, component, caseRoot)
	}
	return files, nil
}

// AppendUserNL appends each line to every user_nl_<component> file of the
// case. Lines are written verbatim; an empty slice is a no-op.
func AppendUserNL(caseRoot, component string, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	files, err := UserNLFiles(caseRoot, component)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString("\n")
		b.WriteString(line)
		b.WriteString("\n")
	}
	contents := b.String()

	for _, path := range files {
		if err := appendFile(path, contents); err != nil {
			return err
		}
	}
	return nil
}

func appendFile(path, contents string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	if _, err := f.WriteString(contents); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return f.Close()
}
