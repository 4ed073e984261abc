package query

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"

	"codegraph/internal/graph"
	"codegraph/internal/resolver"
)

// symbolDoc is the bleve document for one declaration.
type symbolDoc struct {
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
	Qualified string `json:"qualified"`
	Kind      string `json:"kind"`
	File      string `json:"file"`
}

// symbolIndex is an in-memory bleve index over declaration names, backing
// the fuzzy leg of Resolve.
type symbolIndex struct {
	idx bleve.Index
}

func newSymbolIndex() (*symbolIndex, error) {
	docMapping := bleve.NewDocumentMapping()

	// Names index as whole terms so fuzzy matching sees get_user, not
	// its fragments.
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("name", nameField)

	canonicalField := bleve.NewTextFieldMapping()
	canonicalField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("canonical", canonicalField)

	qualifiedField := bleve.NewTextFieldMapping()
	qualifiedField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("qualified", qualifiedField)

	mapping := bleve.NewIndexMapping()
	mapping.DefaultMapping = docMapping

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	return &symbolIndex{idx: idx}, nil
}

// rebuild reindexes every declaration in the store.
func (s *symbolIndex) rebuild(store *graph.Store) error {
	batch := s.idx.NewBatch()
	for _, node := range store.Nodes() {
		if !node.Kind.IsDeclaration() {
			continue
		}
		doc := symbolDoc{
			Name:      node.Name,
			Canonical: resolver.CanonicalName(node.Name),
			Qualified: resolver.ModuleName(node.File) + "." + node.Name,
			Kind:      string(node.Kind),
			File:      node.File,
		}
		if err := batch.Index(string(node.ID), doc); err != nil {
			return err
		}
	}
	return s.idx.Batch(batch)
}

// scoredID is one fuzzy search hit with its normalized score.
type scoredID struct {
	id    graph.NodeID
	score float64
}

// search runs a fuzzy + prefix disjunction over symbol names. Scores are
// normalized into (0, 1) so they compose with edge confidences.
func (s *symbolIndex) search(query string, limit int) ([]scoredID, error) {
	fuzzy := bleve.NewFuzzyQuery(query)
	fuzzy.SetField("name")
	fuzzy.SetFuzziness(1)

	prefix := bleve.NewPrefixQuery(query)
	prefix.SetField("name")

	canonical := bleve.NewTermQuery(resolver.CanonicalName(query))
	canonical.SetField("canonical")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(fuzzy, prefix, canonical))
	req.Size = limit

	result, err := s.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]scoredID, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, scoredID{
			id:    graph.NodeID(hit.ID),
			score: hit.Score / (hit.Score + 1),
		})
	}
	return out, nil
}

func (s *symbolIndex) close() error {
	return s.idx.Close()
}
