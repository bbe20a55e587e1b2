package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioDocs() []Document {
	return []Document{
		{BookID: "book_a", Title: "Book A", SequenceIndex: 0, Text: "arma virumque arma"},
		{BookID: "book_b", Title: "Book B", SequenceIndex: 5, Text: "arma cano"},
	}
}

func countAll(docs []Document) []BookCounts {
	out := make([]BookCounts, 0, len(docs))
	for _, d := range docs {
		out = append(out, CountBook(d))
	}
	return out
}

func TestCountBook(t *testing.T) {
	bc := CountBook(Document{BookID: "1", SequenceIndex: 1, Text: "Arma virumque cano, Troiae qui primus ab oris; ARMA!"})
	assert.Equal(t, 9, bc.TotalWords)
	assert.Equal(t, 8, bc.UniqueWords())
	assert.Equal(t, 2, bc.Counts["arma"])
	assert.Equal(t, 1, bc.Counts["troiae"])
}

func TestCountBookEmpty(t *testing.T) {
	bc := CountBook(Document{BookID: "empty", Text: ""})
	assert.Equal(t, 0, bc.TotalWords)
	assert.Equal(t, 0, bc.UniqueWords())
}

func TestAggregateScenario(t *testing.T) {
	res := Aggregate(countAll(scenarioDocs()))

	require.Len(t, res.Books, 2)
	assert.Equal(t, "book_a", res.Books[0].BookID)
	assert.Equal(t, 3, res.Books[0].TotalWords)
	assert.Equal(t, 2, res.Books[0].UniqueWords)
	assert.Equal(t, 5, res.TotalWords)

	require.Len(t, res.Stats, 3)
	arma := res.Stats[0]
	assert.Equal(t, "arma", arma.Word)
	assert.Equal(t, 3, arma.TotalCount)
	assert.Equal(t, 2, arma.BookCount)
	assert.InDelta(t, 5.0/3.0, arma.MeanPosition, 1e-9)
	assert.Equal(t, "cano", res.Stats[1].Word)
	assert.InDelta(t, 5.0, res.Stats[1].MeanPosition, 1e-9)
	assert.Equal(t, "virumque", res.Stats[2].Word)
	assert.InDelta(t, 0.0, res.Stats[2].MeanPosition, 1e-9)

	// by word, then sequence index
	require.Len(t, res.Frequencies, 4)
	assert.Equal(t, "arma", res.Frequencies[0].Word)
	assert.Equal(t, "book_a", res.Frequencies[0].BookID)
	assert.InDelta(t, 6666.67, res.Frequencies[0].RelativeFrequency, 0.01)
	assert.Equal(t, "book_b", res.Frequencies[1].BookID)
	assert.InDelta(t, 5000.0, res.Frequencies[1].RelativeFrequency, 1e-9)
	assert.Equal(t, "cano", res.Frequencies[2].Word)
	assert.Equal(t, "virumque", res.Frequencies[3].Word)
	assert.InDelta(t, 3333.33, res.Frequencies[3].RelativeFrequency, 0.01)
}

func TestAggregateIgnoresInputOrder(t *testing.T) {
	docs := []Document{
		{BookID: "3", SequenceIndex: 30, Text: "bellum pax bellum Romani"},
		{BookID: "1", SequenceIndex: 1, Text: "Romani bellum gerebant"},
		{BookID: "2", SequenceIndex: 2, Text: "pax Romana, pax Romani"},
	}
	forward := Aggregate(countAll(docs))
	reversed := Aggregate(countAll([]Document{docs[2], docs[0], docs[1]}))
	assert.Equal(t, forward, reversed)
}

func TestAggregateTotalsAndBounds(t *testing.T) {
	docs := []Document{
		{BookID: "1", SequenceIndex: 1, Text: "urbs urbs roma"},
		{BookID: "2", SequenceIndex: 4, Text: "roma urbs"},
		{BookID: "3", SequenceIndex: 9, Text: ""},
	}
	res := Aggregate(countAll(docs))

	byWord := map[string]int{}
	for _, wf := range res.Frequencies {
		assert.Greater(t, wf.Count, 0)
		byWord[wf.Word] += wf.Count
	}
	for _, ws := range res.Stats {
		assert.Equal(t, ws.TotalCount, byWord[ws.Word], ws.Word)
		assert.GreaterOrEqual(t, ws.MeanPosition, 1.0)
		assert.LessOrEqual(t, ws.MeanPosition, 4.0)
	}
	require.Len(t, res.Books, 3)
	assert.Equal(t, 0, res.Books[2].TotalWords)
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil)
	assert.Empty(t, res.Books)
	assert.NotNil(t, res.Frequencies)
	assert.Empty(t, res.Stats)
}

func TestRelativeFrequency(t *testing.T) {
	assert.InDelta(t, 5000.0, RelativeFrequency(1, 2), 1e-9)
	assert.Equal(t, 0.0, RelativeFrequency(0, 0))
	assert.Equal(t, 0.0, RelativeFrequency(3, 0))
}

func TestEligible(t *testing.T) {
	res := Aggregate(countAll(scenarioDocs()))
	assert.Equal(t, []string{"arma"}, res.Eligible(2))
	assert.Equal(t, []string{"arma", "cano", "virumque"}, res.Eligible(1))
	assert.Empty(t, res.Eligible(4))
}

func TestValidateDocuments(t *testing.T) {
	assert.NoError(t, ValidateDocuments(scenarioDocs()))

	cases := map[string][]Document{
		"duplicate id": {
			{BookID: "1", SequenceIndex: 1},
			{BookID: "1", SequenceIndex: 2},
		},
		"duplicate sequence": {
			{BookID: "1", SequenceIndex: 1},
			{BookID: "2", SequenceIndex: 1},
		},
		"negative sequence": {
			{BookID: "1", SequenceIndex: -1},
		},
		"empty id": {
			{BookID: "", SequenceIndex: 0},
		},
	}
	for name, docs := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateDocuments(docs)
			assert.True(t, errors.Is(err, ErrInvalidManifest), "got %v", err)
		})
	}
}
