package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Document is a search hit. Score is in the range [0, 1].
type Document struct {
	Content string
	Source  string
	Score   float64
}

// Searcher finds documents relevant to a query
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

// KeywordSearcher scores paragraphs of local text files by the share of
// query terms they contain.
type KeywordSearcher struct {
	chunks []chunk
}

type chunk struct {
	content string
	source  string
	terms   map[string]struct{}
}

// NewKeywordSearcher indexes the .txt and .md files below dir.
func NewKeywordSearcher(dir string) (*KeywordSearcher, error) {
	s := &KeywordSearcher{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		s.Add(rel, string(data))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", dir, err)
	}
	return s, nil
}

// Add indexes the paragraphs of text under the given source name.
func (s *KeywordSearcher) Add(source, text string) {
	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		terms := map[string]struct{}{}
		for _, term := range tokenize(paragraph) {
			terms[term] = struct{}{}
		}
		s.chunks = append(s.chunks, chunk{content: paragraph, source: source, terms: terms})
	}
}

// Len returns the number of indexed paragraphs
func (s *KeywordSearcher) Len() int {
	return len(s.chunks)
}

func (s *KeywordSearcher) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	queryTerms := map[string]struct{}{}
	for _, term := range tokenize(query) {
		queryTerms[term] = struct{}{}
	}
	if len(queryTerms) == 0 {
		return nil, nil
	}

	var docs []Document
	for _, c := range s.chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matched := 0
		for term := range queryTerms {
			if _, ok := c.terms[term]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		docs = append(docs, Document{
			Content: c.content,
			Source:  c.source,
			Score:   float64(matched) / float64(len(queryTerms)),
		})
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if topK > 0 && len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
