package driver

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chinchliff/oti/pkg/types"
)

// ExactFieldPrefix marks the lowercased mirror properties that back the exact
// indexes on Neo4j. The keyword analyzer keeps a whole value as one token, so
// the mirror holds the normalized form queried against it.
const ExactFieldPrefix = "exact:"

// ExactField returns the mirror property name for an exact-indexed property.
func ExactField(property string) string {
	return ExactFieldPrefix + property
}

// Fulltext analyzers used for the two index kinds.
const (
	exactAnalyzer    = "keyword"
	fulltextAnalyzer = "standard-no-stop-words"
)

// NodeLabel returns the label carried by nodes of an entity class.
func NodeLabel(class types.EntityClass) string {
	switch class {
	case types.StudyClass:
		return "StudyMeta"
	case types.TreeClass:
		return "TreeRoot"
	default:
		return "TreeNode"
	}
}

// GetFulltextIndices returns the index creation queries for the six search indexes.
func GetFulltextIndices() []string {
	queries := make([]string, 0, len(types.AllIndexes()))
	for _, ref := range types.AllIndexes() {
		queries = append(queries, fulltextIndexQuery(ref))
	}
	return queries
}

func fulltextIndexQuery(ref types.IndexRef) string {
	analyzer := fulltextAnalyzer
	if ref.Kind == types.ExactIndex {
		analyzer = exactAnalyzer
	}

	props := types.IndexedProperties(ref)
	fields := make([]string, 0, len(props))
	for _, p := range props {
		if ref.Kind == types.ExactIndex {
			p = ExactField(p)
		}
		fields = append(fields, fmt.Sprintf("n.`%s`", p))
	}

	return fmt.Sprintf(
		"CREATE FULLTEXT INDEX %s IF NOT EXISTS\nFOR (n:%s) ON EACH [%s]\nOPTIONS {indexConfig: {`fulltext.analyzer`: '%s'}}",
		ref.Name(), NodeLabel(ref.Class), strings.Join(fields, ", "), analyzer)
}

const queryIndexNodes = `
	CALL db.index.fulltext.queryNodes($index, $query)
	YIELD node
	RETURN elementId(node) AS id, properties(node) AS props
`

const getNodeProperty = `
	MATCH (n) WHERE elementId(n) = $id
	RETURN n[$name] AS value
`

const getContainingRoot = `
	MATCH (n) WHERE elementId(n) = $id
	OPTIONAL MATCH (n)-[:CHILDOF*0..]->(r:TreeRoot)
	RETURN elementId(r) AS root
	LIMIT 1
`

// pruneStudy deletes the tree roots and tree nodes of a study that a reload
// no longer carries. Node keys are "<tree id>/<nexson id>".
const pruneStudy = `
	MATCH (n {` + "`ot:studyId`" + `: $studyId})
	WHERE (n:TreeRoot AND NOT n.oti_tree_id IN $treeIds)
	   OR (n:TreeNode AND NOT (n.oti_tree_id + '/' + n.nexson_id) IN $nodeKeys)
	DETACH DELETE n
`

// unlinkStudyNodes drops the parent links of a study's tree nodes so a
// reload can relink them.
const unlinkStudyNodes = `
	MATCH (:TreeNode {` + "`ot:studyId`" + `: $studyId})-[r:CHILDOF]->()
	DELETE r
`

const mergeStudyNode = `
	MERGE (s:StudyMeta {` + "`ot:studyId`" + `: $studyId})
	SET s = $props
`

const mergeTreeRoot = `
	MERGE (t:TreeRoot {` + "`ot:studyId`" + `: $studyId, oti_tree_id: $treeId})
	SET t = $props
`

const mergeTreeNodes = `
	UNWIND $nodes AS node
	MERGE (c:TreeNode {` + "`ot:studyId`" + `: $studyId, oti_tree_id: $treeId, nexson_id: node.nexson_id})
	SET c = node.props
`

const mergeChildEdges = `
	UNWIND $edges AS edge
	MATCH (c:TreeNode {` + "`ot:studyId`" + `: $studyId, oti_tree_id: $treeId, nexson_id: edge.child})
	MATCH (p {` + "`ot:studyId`" + `: $studyId, oti_tree_id: $treeId, nexson_id: edge.parent})
	MERGE (c)-[:CHILDOF]->(p)
`

// luceneReplacer escapes the characters the Lucene query parser treats as syntax.
var luceneReplacer = strings.NewReplacer(
	`"`, `\"`,
	`\`, `\\`,
	`+`, `\+`,
	`-`, `\-`,
	`!`, `\!`,
	`(`, `\(`,
	`)`, `\)`,
	`{`, `\{`,
	`}`, `\}`,
	`[`, `\[`,
	`]`, `\]`,
	`^`, `\^`,
	`~`, `\~`,
	`*`, `\*`,
	`?`, `\?`,
	`:`, `\:`,
	`|`, `\|`,
	`&`, `\&`,
	`/`, `\/`,
)

// EscapeQueryString escapes special characters in search queries
func EscapeQueryString(query string) string {
	return luceneReplacer.Replace(query)
}

// UnescapeQueryString reverses EscapeQueryString.
func UnescapeQueryString(query string) string {
	if !strings.Contains(query, `\`) {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	escaped := false
	for _, r := range query {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// maxFuzzyEdits is the largest edit distance Lucene fuzzy queries support.
const maxFuzzyEdits = 2

// FuzzyQuery is a normalized fuzzy term query on one property.
// Term holds the lowercased value with query syntax escaped.
type FuzzyQuery struct {
	Property    string
	Term        string
	MinIdentity float64
}

// NewFuzzyQuery builds the query for a raw search value.
func NewFuzzyQuery(property, value string) FuzzyQuery {
	return FuzzyQuery{
		Property:    property,
		Term:        EscapeQueryString(strings.ToLower(value)),
		MinIdentity: MinIdentity(value),
	}
}

// MinIdentity returns the minimum fraction of matching characters a term
// needs to match value. Short values must match exactly; longer ones tolerate
// one or two edits, one fewer when the value contains a digit.
func MinIdentity(value string) float64 {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return 1
	}

	var edits int
	switch {
	case n <= 3:
		edits = 0
	case n <= 7:
		edits = 1
	default:
		edits = 2
	}
	if edits > 0 && strings.IndexFunc(value, unicode.IsDigit) >= 0 {
		edits--
	}

	return float64(n-edits) / float64(n)
}

// Text returns the unescaped search text.
func (q FuzzyQuery) Text() string {
	return UnescapeQueryString(q.Term)
}

// Words returns the tokens of the search text.
func (q FuzzyQuery) Words() []string {
	return Tokenize(q.Text())
}

// MaxEdits returns the edit distance allowed for the whole search text.
func (q FuzzyQuery) MaxEdits() int {
	return editsFor(utf8.RuneCountInString(q.Text()), q.MinIdentity)
}

func editsFor(length int, minIdentity float64) int {
	edits := int(math.Floor((1-minIdentity)*float64(length) + 1e-9))
	if edits > maxFuzzyEdits {
		return maxFuzzyEdits
	}
	if edits < 0 {
		return 0
	}
	return edits
}

// LuceneQuery renders the query for an index of the given kind. Exact
// indexes match the whole value against the mirror field; fulltext indexes
// match any of the words.
func (q FuzzyQuery) LuceneQuery(kind types.IndexKind) string {
	if q.Term == "" {
		return fmt.Sprintf(`%s:""`, EscapeQueryString(q.Property))
	}

	if kind == types.ExactIndex {
		field := EscapeQueryString(ExactField(q.Property))
		return field + ":" + fuzzyTerm(escapeWhitespace(q.Term), q.MaxEdits())
	}

	words := q.Words()
	if len(words) == 0 {
		return fmt.Sprintf(`%s:""`, EscapeQueryString(q.Property))
	}
	terms := make([]string, 0, len(words))
	for _, w := range words {
		edits := min(editsFor(utf8.RuneCountInString(w), q.MinIdentity), q.MaxEdits())
		terms = append(terms, fuzzyTerm(EscapeQueryString(w), edits))
	}
	field := EscapeQueryString(q.Property)
	if len(terms) == 1 {
		return field + ":" + terms[0]
	}
	return fmt.Sprintf("%s:(%s)", field, strings.Join(terms, " OR "))
}

func fuzzyTerm(term string, edits int) string {
	if edits == 0 {
		return term
	}
	return fmt.Sprintf("%s~%d", term, edits)
}

func escapeWhitespace(term string) string {
	return strings.Join(strings.Fields(term), `\ `)
}

// Tokenize lowercases s and splits it into runs of letters and digits, the way
// the fulltext indexes tokenize stored values.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
