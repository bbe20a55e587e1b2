package db

// Book is one document of the corpus.
type Book struct {
	BookID        string
	Title         string
	SequenceIndex int
	TotalWords    int
	UniqueWords   int
}

// WordFrequency is the count of a word within one book. Rows exist only for count > 0.
type WordFrequency struct {
	Word              string
	BookID            string
	Count             int
	RelativeFrequency float64 // per 10,000 tokens of the book
}

// WordStat holds corpus-wide statistics for a word.
type WordStat struct {
	Word         string
	TotalCount   int
	BookCount    int
	MeanPosition float64
}

// Snippet is a sampled context window around one occurrence of a word.
type Snippet struct {
	ID             int64
	Word           string
	BookID         string
	Context        string
	PositionInBook int
}

// BookFrequency is a WordFrequency joined with its book, zero-filled when the word is absent.
type BookFrequency struct {
	BookID            string
	Title             string
	SequenceIndex     int
	Count             int
	RelativeFrequency float64
}

// BookSnippet is a Snippet joined with its book.
type BookSnippet struct {
	BookID         string
	Title          string
	SequenceIndex  int
	Context        string
	PositionInBook int
}

// CorpusStats summarizes a built index.
type CorpusStats struct {
	Books         int
	TotalWords    int
	DistinctWords int
}
