package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticSearcher []Document

func (s staticSearcher) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if len(s) > topK {
		return s[:topK], nil
	}
	return s, nil
}

func TestRAGSearch(t *testing.T) {
	ctx := context.Background()
	search, err := NewRAGSearch(RAGSearchOptions{Searcher: staticSearcher{
		{Content: "vacation policy: 20 days", Source: "hr.md", Score: 0.9},
		{Content: "unrelated", Score: 0.1},
	}})
	require.NoError(t, err)

	out, err := search.Invoke(ctx, map[string]any{"query": "vacation"})
	require.NoError(t, err)
	require.Equal(t, "[Result 1] (score: 0.900)\nContent: vacation policy: 20 days\nSource: hr.md", out)

	out, err = search.Invoke(ctx, map[string]any{"query": "vacation", "score_threshold": 0.95})
	require.NoError(t, err)
	require.Equal(t, "No relevant documents found", out)

	out, err = search.Invoke(ctx, map[string]any{"query": "vacation", "score_threshold": 0.0})
	require.NoError(t, err)
	require.Contains(t, out, "Source: Unknown")

	_, err = NewRAGSearch(RAGSearchOptions{})
	require.ErrorContains(t, err, "searcher is required")
}

func TestKeywordSearcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr.md"),
		[]byte("Vacation policy allows 20 days.\n\nExpense reports are due monthly."), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "eng"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eng", "deploy.txt"),
		[]byte("Deploys happen on Tuesdays after the vacation freeze."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte("vacation"), 0644))

	searcher, err := NewKeywordSearcher(dir)
	require.NoError(t, err)
	require.Equal(t, 3, searcher.Len())

	docs, err := searcher.Search(context.Background(), "vacation policy", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "hr.md", docs[0].Source)
	require.Equal(t, 1.0, docs[0].Score)
	require.Equal(t, filepath.Join("eng", "deploy.txt"), docs[1].Source)
	require.Equal(t, 0.5, docs[1].Score)

	docs, err = searcher.Search(context.Background(), "vacation", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	docs, err = searcher.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestNewBuiltinTools(t *testing.T) {
	tools, err := New(Options{
		Calculator: &CalculatorOptions{},
		Files:      &FileOptions{},
		RAGSearch:  &RAGSearchOptions{Searcher: staticSearcher{}},
	})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name())
	}
	require.Equal(t, []string{"calculator", "read_file", "write_file", "rag_search"}, names)

	_, err = New(Options{WebSearch: &WebSearchOptions{}})
	require.ErrorContains(t, err, "web_search")
}
