package survey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// NewSurveyID returns a fresh session identifier.
func NewSurveyID() string {
	return uuid.NewString()
}

// ValidateBasicInfo checks that every required field has a non-blank value.
// Array values (multi-select fields) must hold at least one non-blank entry.
func ValidateBasicInfo(fields []Field, info *tree.Object) error {
	var missing []string
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if !filled(info, f.ID) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func filled(info *tree.Object, id string) bool {
	if info == nil {
		return false
	}
	v, ok := info.Get(id)
	if !ok {
		return false
	}
	switch tv := v.(type) {
	case tree.String:
		return strings.TrimSpace(string(tv)) != ""
	case tree.Array:
		for _, elem := range tv {
			if s, ok := elem.(tree.String); ok && strings.TrimSpace(string(s)) != "" {
				return true
			}
		}
		return false
	case tree.Null:
		return false
	}
	return true
}
