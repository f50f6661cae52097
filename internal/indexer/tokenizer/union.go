package tokenizer

// Union merges TokenSets produced from separate text sources of one record.
// Each sequence keeps source order, drops repeats and is cut back to the
// configured cap. Tokenizing the sources separately means no n-gram ever
// spans the boundary between two sources.
func (t *Tokenizer) Union(sets ...TokenSet) TokenSet {
	tokens := newUniqueList(t.opts.MaxSequenceLength)
	bigrams := newUniqueList(t.opts.MaxSequenceLength)
	trigrams := newUniqueList(t.opts.MaxSequenceLength)
	for _, s := range sets {
		for _, v := range s.Tokens {
			tokens.add(v)
		}
		for _, v := range s.Bigrams {
			bigrams.add(v)
		}
		for _, v := range s.Trigrams {
			trigrams.add(v)
		}
	}
	return TokenSet{
		Tokens:   tokens.items,
		Bigrams:  bigrams.items,
		Trigrams: trigrams.items,
	}
}

// TokenizeAll tokenizes every source on its own and returns the union.
func (t *Tokenizer) TokenizeAll(sources ...string) TokenSet {
	sets := make([]TokenSet, 0, len(sources))
	for _, src := range sources {
		sets = append(sets, t.Tokenize(src))
	}
	return t.Union(sets...)
}
