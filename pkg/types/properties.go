package types

import "sort"

// SearchableProperty describes a node property that is indexed for search.
// Exact and Fulltext report which of the class's two indexes carry it.
type SearchableProperty struct {
	Name     string      `json:"name" yaml:"name"`
	Class    EntityClass `json:"class" yaml:"class"`
	Exact    bool        `json:"exact" yaml:"exact"`
	Fulltext bool        `json:"fulltext" yaml:"fulltext"`
}

// Predicate builds a predicate for this property using the property's own
// index flags as match modes.
func (p SearchableProperty) Predicate(value string) SearchPredicate {
	return SearchPredicate{
		Property: p.Name,
		Value:    value,
		Exact:    p.Exact,
		Fulltext: p.Fulltext,
	}
}

var searchableProperties = map[EntityClass][]SearchableProperty{
	StudyClass: {
		{Name: StudyIDProperty, Exact: true},
		{Name: "ot:studyPublicationReference", Fulltext: true},
		{Name: "ot:studyPublication", Exact: true},
		{Name: "ot:curatorName", Exact: true, Fulltext: true},
		{Name: "ot:dataDeposit", Exact: true},
		{Name: "ot:studyYear", Exact: true},
		{Name: "ot:focalClade", Exact: true},
		{Name: "ot:focalCladeOTTTaxonName", Exact: true, Fulltext: true},
		{Name: "ot:tag", Exact: true, Fulltext: true},
		{Name: "ot:comment", Fulltext: true},
	},
	TreeClass: {
		{Name: TreeIDProperty, Exact: true},
		{Name: "ot:treeId", Exact: true},
		{Name: StudyIDProperty, Exact: true},
		{Name: "ot:branchLengthMode", Exact: true},
		{Name: "ot:inGroupClade", Exact: true},
		{Name: "ot:treebaseTreeId", Exact: true},
		{Name: "ot:tag", Exact: true, Fulltext: true},
	},
	TreeNodeClass: {
		{Name: "ot:ottId", Exact: true},
		{Name: "ot:ottTaxonName", Exact: true, Fulltext: true},
		{Name: "ot:originalLabel", Exact: true, Fulltext: true},
		{Name: "ot:nodeId", Exact: true},
		{Name: NexsonIDProperty, Exact: true},
	},
}

func init() {
	for class, props := range searchableProperties {
		for i := range props {
			props[i].Class = class
		}
	}
}

// SearchableProperties returns the properties indexed for a class, sorted by name.
// The returned slice is a copy.
func SearchableProperties(class EntityClass) []SearchableProperty {
	props := append([]SearchableProperty(nil), searchableProperties[class]...)
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props
}

// LookupProperty finds a searchable property of a class by name.
func LookupProperty(class EntityClass, name string) (SearchableProperty, bool) {
	for _, p := range searchableProperties[class] {
		if p.Name == name {
			return p, true
		}
	}
	return SearchableProperty{}, false
}

// IndexedProperties returns the names of the properties a given index covers.
func IndexedProperties(ref IndexRef) []string {
	var names []string
	for _, p := range SearchableProperties(ref.Class) {
		if (ref.Kind == ExactIndex && p.Exact) || (ref.Kind == FulltextIndex && p.Fulltext) {
			names = append(names, p.Name)
		}
	}
	return names
}
