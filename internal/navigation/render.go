// Package navigation turns a matched knowledge entry into a concrete destination,
// or tells the planner to fall back to element-level interaction.
package navigation

import (
	"errors"
	"fmt"
	"strings"

	"waypoint-mcp-server/internal/knowledge"
)

// ErrMissingTemplateParameter is matched by every *MissingParameterError.
var ErrMissingTemplateParameter = errors.New("missing template parameter")

// MissingParameterError lists the placeholders an intent did not supply.
type MissingParameterError struct {
	Entry   string
	Missing []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("entry %q: %s: %s", e.Entry, ErrMissingTemplateParameter, strings.Join(e.Missing, ", "))
}

func (e *MissingParameterError) Is(target error) bool {
	return target == ErrMissingTemplateParameter
}

// Render substitutes every placeholder of entry's template from intent by exact
// key. Values are inserted verbatim and unused keys are ignored. A missing key
// fails the whole render.
func Render(entry knowledge.Entry, intent knowledge.TaskIntent) (string, error) {
	dest, missing := entry.Template.Fill(intent)
	if len(missing) > 0 {
		return "", &MissingParameterError{Entry: entry.Name, Missing: missing}
	}
	return dest, nil
}
