package lemma

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kk0kc/oip/internal/corpus"
)

func TestFromDocuments(t *testing.T) {
	m := FromDocuments([]corpus.Document{
		{ID: 0, Lemmas: []corpus.LemmaEntry{{Lemma: "cat", Words: []string{"cat", "cats"}}}},
		{ID: 1, Lemmas: []corpus.LemmaEntry{{Lemma: "cat", Words: []string{"cats"}}}},
	})

	l, ok := m.Lemmatize("Cats")
	assert.True(t, ok)
	assert.Equal(t, "cat", l)
	assert.Equal(t, 2, m.Len())
	assert.Zero(t, m.Conflicts(), "same word under the same lemma is not a conflict")

	_, ok = m.Lemmatize("dog")
	assert.False(t, ok)
}

func TestLastWriterWins(t *testing.T) {
	b := NewBuilder()
	b.Add("leaf", "leaves")
	b.Add("leave", "leaves")
	m := b.Build()

	l, ok := m.Lemmatize("leaves")
	assert.True(t, ok)
	assert.Equal(t, "leave", l)
	assert.Equal(t, 1, m.Conflicts())
}

func TestFunc(t *testing.T) {
	var lem WordLemmatizer = Func(func(w string) (string, bool) { return w + "!", true })
	l, ok := lem.Lemmatize("hey")
	assert.True(t, ok)
	assert.Equal(t, "hey!", l)
}
