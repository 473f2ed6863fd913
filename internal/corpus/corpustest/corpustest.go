// Package corpustest writes small on-disk corpora for tests.
package corpustest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kk0kc/oip/internal/corpus"
)

// Sample is a five-document corpus. Every document realises the lemma "be",
// so it is the only common lemma.
//
//	0: cat dog be
//	1: dog mouse be
//	2: cat cheese be
//	3: mouse cheese cat be
//	4: bird be
func Sample() []corpus.Document {
	return []corpus.Document{
		{
			ID:    0,
			Terms: []string{"cat", "cats", "dog", "is"},
			Lemmas: []corpus.LemmaEntry{
				{Lemma: "be", Words: []string{"is"}},
				{Lemma: "cat", Words: []string{"cat", "cats"}},
				{Lemma: "dog", Words: []string{"dog"}},
			},
		},
		{
			ID:    1,
			Terms: []string{"dogs", "mouse", "are"},
			Lemmas: []corpus.LemmaEntry{
				{Lemma: "be", Words: []string{"are"}},
				{Lemma: "dog", Words: []string{"dogs"}},
				{Lemma: "mouse", Words: []string{"mouse"}},
			},
		},
		{
			ID:    2,
			Terms: []string{"cat", "cheese", "cheese", "is"},
			Lemmas: []corpus.LemmaEntry{
				{Lemma: "be", Words: []string{"is"}},
				{Lemma: "cat", Words: []string{"cat"}},
				{Lemma: "cheese", Words: []string{"cheese"}},
			},
		},
		{
			ID:    3,
			Terms: []string{"mice", "cheese", "cat", "were"},
			Lemmas: []corpus.LemmaEntry{
				{Lemma: "be", Words: []string{"were"}},
				{Lemma: "cat", Words: []string{"cat"}},
				{Lemma: "cheese", Words: []string{"cheese"}},
				{Lemma: "mouse", Words: []string{"mice"}},
			},
		},
		{
			ID:    4,
			Terms: []string{"bird", "birds", "is", "was"},
			Lemmas: []corpus.LemmaEntry{
				{Lemma: "be", Words: []string{"is", "was"}},
				{Lemma: "bird", Words: []string{"bird", "birds"}},
			},
		},
	}
}

// Write lays docs out under a fresh temp directory and returns its layout.
func Write(t testing.TB, docs []corpus.Document) corpus.Layout {
	t.Helper()
	layout := corpus.DefaultLayout(filepath.Join(t.TempDir(), "pages"))
	for _, doc := range docs {
		dir := layout.DocDir(doc.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
		var terms strings.Builder
		for _, term := range doc.Terms {
			terms.WriteString(term)
			terms.WriteByte('\n')
		}
		writeFile(t, filepath.Join(dir, layout.TermsFile), terms.String())

		var lemmas strings.Builder
		for _, entry := range doc.Lemmas {
			lemmas.WriteString(entry.Lemma)
			for _, w := range entry.Words {
				lemmas.WriteByte(' ')
				lemmas.WriteString(w)
			}
			lemmas.WriteByte('\n')
		}
		writeFile(t, filepath.Join(dir, layout.LemmasFile), lemmas.String())
	}
	return layout
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
