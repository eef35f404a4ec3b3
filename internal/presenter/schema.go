// Package presenter provides schema-aware rendering for speedviz entities.
// It sits between commands and the output renderer, using declarative YAML
// schemas to turn generic data into readable terminal output.
package presenter

// EntitySchema describes how an entity wants to be presented.
// Schemas are declarative metadata loaded from YAML files.
type EntitySchema struct {
	Entity   string               `yaml:"entity"`
	Identity Identity             `yaml:"identity"`
	Headline map[string]string    `yaml:"headline"`
	Fields   map[string]FieldSpec `yaml:"fields"`
	Views    ViewSpecs            `yaml:"views"`
	Actions  []Affordance         `yaml:"affordances"`
}

// Identity identifies the entity's label and ID fields.
type Identity struct {
	Label string `yaml:"label"`
	ID    string `yaml:"id"`
}

// FieldSpec describes how a single field should be presented.
type FieldSpec struct {
	Label    string `yaml:"label"`
	Role     string `yaml:"role"`
	Emphasis string `yaml:"emphasis"`
	Format   string `yaml:"format"`
	Collapse bool   `yaml:"collapse"`

	// Rating colors a numeric field by how good the value is.
	Rating *Rating `yaml:"rating"`
}

// Rating thresholds. For most metrics higher is better; LowerIsBetter
// flips the comparison (latency, retransmits).
type Rating struct {
	Good          float64 `yaml:"good"`
	Poor          float64 `yaml:"poor"`
	LowerIsBetter bool    `yaml:"lower_is_better"`
}

// Grade classifies v as "success", "warning" or "error".
func (r Rating) Grade(v float64) string {
	if r.LowerIsBetter {
		v, r.Good, r.Poor = -v, -r.Good, -r.Poor
	}
	switch {
	case v >= r.Good:
		return "success"
	case v <= r.Poor:
		return "error"
	default:
		return "warning"
	}
}

// ViewSpecs declares which fields appear per presentation context.
type ViewSpecs struct {
	List   ListView   `yaml:"list"`
	Detail DetailView `yaml:"detail"`
}

// ListView configures the table/list presentation.
type ListView struct {
	Columns []string `yaml:"columns"`
}

// DetailView configures the single-entity detail presentation.
type DetailView struct {
	Sections []DetailSection `yaml:"sections"`
}

// DetailSection groups fields under an optional heading.
type DetailSection struct {
	Heading string   `yaml:"heading"`
	Fields  []string `yaml:"fields"`
}

// Affordance is a templated CLI action the user can take.
type Affordance struct {
	Action string `yaml:"action"`
	Cmd    string `yaml:"cmd"`
	Label  string `yaml:"label"`
	When   string `yaml:"when"`
}
