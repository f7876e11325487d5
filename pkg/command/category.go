package command

import "fmt"

// Category is an entity category. Tags are unique within a category, which is
// how the engine resolves cross-references.
type Category int

const (
	// CategoryControl covers commands without identity: constraints, analysis
	// setup, analyze, wipe. They never allocate a tag.
	CategoryControl Category = iota
	CategoryNode
	CategoryUniaxialMaterial
	CategoryNDMaterial
	CategorySection
	CategoryElement
	CategoryTimeSeries
	CategoryPattern
	CategoryRecorder
	CategoryLayer
	CategoryCurve
	CategoryGeomTransf
	CategoryBeamIntegration
	CategoryFriction

	numCategories
)

type categoryInfo struct {
	name    string
	command string
	// hiddenTag marks categories whose tag the engine assigns itself in
	// creation order; the tag is tracked but not emitted.
	hiddenTag bool
	// bare marks categories created without an op_type token.
	bare bool
}

var categories = [numCategories]categoryInfo{
	CategoryControl:          {name: "control"},
	CategoryNode:             {name: "node", command: "node", bare: true},
	CategoryUniaxialMaterial: {name: "uniaxial_material", command: "uniaxialMaterial"},
	CategoryNDMaterial:       {name: "nd_material", command: "nDMaterial"},
	CategorySection:          {name: "section", command: "section"},
	CategoryElement:          {name: "element", command: "element"},
	CategoryTimeSeries:       {name: "time_series", command: "timeSeries"},
	CategoryPattern:          {name: "pattern", command: "pattern"},
	CategoryRecorder:         {name: "recorder", command: "recorder", hiddenTag: true},
	CategoryLayer:            {name: "layer", command: "layer"},
	CategoryCurve:            {name: "curve", command: "limitCurve"},
	CategoryGeomTransf:       {name: "geom_transf", command: "geomTransf"},
	CategoryBeamIntegration:  {name: "beam_integration", command: "beamIntegration"},
	CategoryFriction:         {name: "friction", command: "frictionModel"},
}

// String returns the category name.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categories[c].name
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

// Tagged reports whether objects of this category carry a tag.
func (c Category) Tagged() bool {
	return c.Valid() && c != CategoryControl
}

// EmitsTag reports whether the tag appears in the encoded tokens.
func (c Category) EmitsTag() bool {
	return c.Tagged() && !categories[c].hiddenTag
}

// Command returns the engine procedure that creates objects of this category.
// Control commands name their own procedure, so it returns "" for them.
func (c Category) Command() string {
	if !c.Valid() {
		return ""
	}
	return categories[c].command
}

// TagPosition returns the index of the tag among the encoded tokens, or -1
// when the tag is not emitted.
func (c Category) TagPosition() int {
	if !c.EmitsTag() {
		return -1
	}
	if categories[c].bare {
		return 0
	}
	return 1
}

// Categories returns every tagged category.
func Categories() []Category {
	out := make([]Category, 0, numCategories-1)
	for c := CategoryNode; c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

// CategoryForCommand maps an engine procedure to its category. Procedures that
// create no tagged entity map to CategoryControl.
func CategoryForCommand(command string) Category {
	for c := CategoryNode; c < numCategories; c++ {
		if categories[c].command == command {
			return c
		}
	}
	return CategoryControl
}

// ParseCategory parses a category name as returned by String.
func ParseCategory(name string) (Category, error) {
	for c := CategoryControl; c < numCategories; c++ {
		if categories[c].name == name {
			return c, nil
		}
	}
	return CategoryControl, fmt.Errorf("unknown category: %s", name)
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
