package tfidf

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk0kc/oip/internal/corpus"
	"github.com/kk0kc/oip/internal/corpus/corpustest"
)

func TestLemmaWeights(t *testing.T) {
	m := Build(corpustest.Sample())
	require.Equal(t, 5, m.Documents())

	// doc 0 realises be×1, cat×2, dog×1: four lemma occurrences.
	vec, ok := m.Vector(0)
	require.True(t, ok)
	assert.InDelta(t, 0.5*math.Log(5.0/3.0), vec["cat"], 1e-12)
	assert.InDelta(t, 0.25*math.Log(5.0/2.0), vec["dog"], 1e-12)

	idfCat, ok := m.IDF("cat")
	require.True(t, ok)
	assert.InDelta(t, math.Log(5.0/3.0), idfCat, 1e-12)

	wantNorm := math.Sqrt(vec["cat"]*vec["cat"] + vec["dog"]*vec["dog"])
	assert.InDelta(t, wantNorm, m.Norm(0), 1e-12)
}

func TestTermsUseTheirOwnLength(t *testing.T) {
	m := Build(corpustest.Sample())

	// doc 0 has four raw terms; "cats" occurs once and only in doc 0.
	var cats Weight
	for _, w := range m.TermWeights(0) {
		if w.Unit == "cats" {
			cats = w
		}
	}
	require.Equal(t, "cats", cats.Unit)
	assert.InDelta(t, math.Log(5.0), cats.IDF, 1e-12)
	assert.InDelta(t, 0.25*math.Log(5.0), cats.TfIdf, 1e-12)
}

func TestCommonUnitHasZeroWeight(t *testing.T) {
	docs := []corpus.Document{
		{ID: 0, Terms: []string{"the", "the", "fox"}, Lemmas: []corpus.LemmaEntry{{Lemma: "the", Words: []string{"the", "the"}}, {Lemma: "fox", Words: []string{"fox"}}}},
		{ID: 1, Terms: []string{"the", "hen"}, Lemmas: []corpus.LemmaEntry{{Lemma: "the", Words: []string{"the"}}, {Lemma: "hen", Words: []string{"hen"}}}},
	}
	m := Build(docs)

	idfThe, ok := m.IDF("the")
	require.True(t, ok)
	assert.Zero(t, idfThe)
	termIDF, ok := m.TermIDF("the")
	require.True(t, ok)
	assert.Zero(t, termIDF)

	for _, id := range []int{0, 1} {
		vec, _ := m.Vector(id)
		assert.Zero(t, vec["the"])
		for _, w := range m.TermWeights(id) {
			if w.Unit == "the" {
				assert.Zero(t, w.TfIdf)
			}
		}
	}
}

func TestEmptyDocumentHasZeroNorm(t *testing.T) {
	m := Build([]corpus.Document{
		{ID: 0, Lemmas: []corpus.LemmaEntry{{Lemma: "a", Words: []string{"a"}}}},
		{ID: 1},
	})
	vec, ok := m.Vector(1)
	assert.True(t, ok)
	assert.Empty(t, vec)
	assert.Zero(t, m.Norm(1))
	assert.Equal(t, []int{0, 1}, m.DocIDs())
}

func TestArtifactsAreByteIdenticalAcrossBuilds(t *testing.T) {
	docs := corpustest.Sample()
	first := corpustest.Write(t, docs)
	second := corpustest.Write(t, docs)

	require.NoError(t, Build(docs).WriteArtifacts(first))
	require.NoError(t, Build(docs).WriteArtifacts(second))

	for _, doc := range docs {
		for _, name := range []string{first.TermsTfIdfFile, first.LemmasTfIdfFile} {
			a, err := os.ReadFile(filepath.Join(first.DocDir(doc.ID), name))
			require.NoError(t, err)
			b, err := os.ReadFile(filepath.Join(second.DocDir(doc.ID), name))
			require.NoError(t, err)
			assert.Equal(t, a, b, "doc %d %s", doc.ID, name)
		}
	}
}

func TestWriteWeightsFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWeights(&buf, []Weight{{Unit: "cat", IDF: math.Log(5.0 / 3.0), TfIdf: 0.25}}))
	assert.Equal(t, "cat 0.510826 0.250000\n", buf.String())
}

func TestParseWeightsSkipsMalformed(t *testing.T) {
	input := "cat 0.5 0.25\nshort 1\ndog x 0.1\n\nbird 1.609438 0.804719\n"
	ws, skipped, err := ParseWeights(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, ws, 2)
	assert.Equal(t, Weight{Unit: "cat", IDF: 0.5, TfIdf: 0.25}, ws[0])
}

func TestReadArtifactsRoundTrip(t *testing.T) {
	docs := corpustest.Sample()
	layout := corpustest.Write(t, docs)
	built := Build(docs)
	require.NoError(t, built.WriteArtifacts(layout))

	// doc 5 has no directory at all and must come back empty.
	loaded, skipped, err := ReadArtifacts(layout, []int{0, 1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, 5, loaded.Documents())

	for _, doc := range docs {
		want, _ := built.Vector(doc.ID)
		got, ok := loaded.Vector(doc.ID)
		require.True(t, ok)
		require.Len(t, got, len(want))
		for l, w := range want {
			assert.InDelta(t, w, got[l], 1e-6, "doc %d lemma %s", doc.ID, l)
		}
		assert.InDelta(t, built.Norm(doc.ID), loaded.Norm(doc.ID), 1e-5)
	}
	assert.Zero(t, loaded.Norm(5))
}
