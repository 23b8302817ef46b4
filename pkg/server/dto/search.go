package dto

import (
	"errors"
	"strings"

	"github.com/chinchliff/oti/pkg/types"
)

// Validation errors
var (
	ErrEmptyProperty   = errors.New("property cannot be empty")
	ErrPropertyTooLong = errors.New("property exceeds maximum length (256)")
	ErrValueTooLong    = errors.New("value exceeds maximum length (1024)")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxPropertyLength = 256
	MaxValueLength    = 1024
)

// SearchRequest is the body of the find_studies, find_trees and
// find_tree_nodes endpoints. Exact and Fulltext default to the indexes the
// property is registered in when omitted.
type SearchRequest struct {
	Property string `json:"property" binding:"required"`
	Value    string `json:"value"`
	Exact    *bool  `json:"exact,omitempty"`
	Fulltext *bool  `json:"fulltext,omitempty"`
}

// Validate performs validation on SearchRequest
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Property) == "" {
		return ErrEmptyProperty
	}
	if len(r.Property) > MaxPropertyLength {
		return ErrPropertyTooLong
	}
	if len(r.Value) > MaxValueLength {
		return ErrValueTooLong
	}
	return nil
}

// Predicate converts the request into a predicate for an entity class.
// A property unknown to the class defaults to both match modes so the
// search rejects it rather than silently matching nothing.
func (r *SearchRequest) Predicate(class types.EntityClass) types.SearchPredicate {
	pred := types.SearchPredicate{Property: r.Property, Value: r.Value, Exact: true, Fulltext: true}
	if p, ok := types.LookupProperty(class, r.Property); ok {
		pred = p.Predicate(r.Value)
	}
	if r.Exact != nil {
		pred.Exact = *r.Exact
	}
	if r.Fulltext != nil {
		pred.Fulltext = *r.Fulltext
	}
	return pred
}

// StudySearchResponse is returned by find_studies.
type StudySearchResponse struct {
	MatchedStudies []types.StudyResult `json:"matched_studies" yaml:"matched_studies"`
	Total          int                 `json:"total" yaml:"total"`
}

// TreeSearchResponse is returned by find_trees.
type TreeSearchResponse struct {
	MatchedTrees []types.TreeResult `json:"matched_trees" yaml:"matched_trees"`
	Total        int                `json:"total" yaml:"total"`
}

// TreeNodeSearchResponse is returned by find_tree_nodes. Each entry is a
// tree with the nodes in it that matched.
type TreeNodeSearchResponse struct {
	MatchedTrees []types.TreeNodeSearchResult `json:"matched_trees" yaml:"matched_trees"`
	Total        int                          `json:"total" yaml:"total"`
}

// PropertiesResponse lists the searchable properties of every entity class.
type PropertiesResponse struct {
	Properties map[types.EntityClass][]types.SearchableProperty `json:"properties" yaml:"properties"`
}
