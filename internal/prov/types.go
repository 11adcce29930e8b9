package prov

import "fmt"

// Category is the provenance class of a node.
type Category string

const (
	CategoryActivity Category = "Activity"
	CategoryAgent    Category = "Agent"
	CategoryEntity   Category = "Entity"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{CategoryActivity, CategoryAgent, CategoryEntity}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryActivity, CategoryAgent, CategoryEntity:
		return true
	}
	return false
}

// ParseCategory validates a wire value.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", NewInvalidGraphError("", fmt.Sprintf("unknown category %q", s))
	}
	return c, nil
}

// Subtype is the provenance role of a node within its category.
type Subtype string

const (
	SubtypeRun        Subtype = "Run"
	SubtypeCreation   Subtype = "Creation"
	SubtypeVersioning Subtype = "Versioning"

	SubtypePerson        Subtype = "Person"
	SubtypeOrganization  Subtype = "Organization"
	SubtypeSoftwareAgent Subtype = "SoftwareAgent"

	SubtypeDataset  Subtype = "Dataset"
	SubtypeModel    Subtype = "Model"
	SubtypeArtifact Subtype = "Artifact"
	SubtypeCode     Subtype = "Code"
	SubtypeVersion  Subtype = "Version"
)

var subtypeCategory = map[Subtype]Category{
	SubtypeRun:        CategoryActivity,
	SubtypeCreation:   CategoryActivity,
	SubtypeVersioning: CategoryActivity,

	SubtypePerson:        CategoryAgent,
	SubtypeOrganization:  CategoryAgent,
	SubtypeSoftwareAgent: CategoryAgent,

	SubtypeDataset:  CategoryEntity,
	SubtypeModel:    CategoryEntity,
	SubtypeArtifact: CategoryEntity,
	SubtypeCode:     CategoryEntity,
	SubtypeVersion:  CategoryEntity,
}

// Category returns the category the subtype belongs to, or "" if the
// subtype is unknown.
func (s Subtype) Category() Category {
	return subtypeCategory[s]
}

// Valid reports whether s is a declared subtype.
func (s Subtype) Valid() bool {
	_, ok := subtypeCategory[s]
	return ok
}

// ParseSubtype validates a wire value.
func ParseSubtype(s string) (Subtype, error) {
	st := Subtype(s)
	if !st.Valid() {
		return "", NewInvalidGraphError("", fmt.Sprintf("unknown subtype %q", s))
	}
	return st, nil
}

// Relation is the provenance relation kind carried by an edge.
type Relation string

const (
	RelationUsed              Relation = "used"
	RelationWasGeneratedBy    Relation = "wasGeneratedBy"
	RelationWasAssociatedWith Relation = "wasAssociatedWith"
	RelationWasAttributedTo   Relation = "wasAttributedTo"
	RelationWasDerivedFrom    Relation = "wasDerivedFrom"
	RelationWasInformedBy     Relation = "wasInformedBy"
	RelationActedOnBehalfOf   Relation = "actedOnBehalfOf"
	RelationWasRevisionOf     Relation = "wasRevisionOf"
)

// Relations lists every valid relation kind.
var Relations = []Relation{
	RelationUsed,
	RelationWasGeneratedBy,
	RelationWasAssociatedWith,
	RelationWasAttributedTo,
	RelationWasDerivedFrom,
	RelationWasInformedBy,
	RelationActedOnBehalfOf,
	RelationWasRevisionOf,
}

// Valid reports whether r is a declared relation kind.
func (r Relation) Valid() bool {
	for _, known := range Relations {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRelation validates a wire value.
func ParseRelation(s string) (Relation, error) {
	r := Relation(s)
	if !r.Valid() {
		return "", NewInvalidGraphError("", fmt.Sprintf("unknown relation %q", s))
	}
	return r, nil
}
