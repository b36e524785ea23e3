package token

import (
	"strings"
	"sync/atomic"
)

// nextTokenID tracks the next available dynamic token ID.
// Dynamic tokens start after maxBuiltin (999).
var nextTokenID = int32(maxBuiltin)

// dynamicTokens maps registered dynamic tokens to their names.
// Protected by atomic operations for the ID counter; registration
// happens at init() time so the maps are effectively read-only after.
var dynamicTokens = make(map[TokenType]string)

// phrases maps canonical phrase spellings ("sort by") to their token types.
var phrases = make(map[string]TokenType)

// phrasesByFirst maps the first word of each phrase to the word sequences
// starting with it, used by the lexer for longest-match lookahead.
var phrasesByFirst = make(map[string][][]string)

// Register registers a new dynamic token with the given name.
//
// Thread-safe: uses atomic increment for ID generation. Concurrent
// registration of the same name should be avoided.
func Register(name string) TokenType {
	id := atomic.AddInt32(&nextTokenID, 1)
	t := TokenType(id)

	dynamicTokens[t] = name

	return t
}

// RegisterPhrase registers a multi-word phrase keyword ("sort by",
// "starts before") as a single dynamic token. The lexer recognizes the
// word sequence via longest-match lookahead and emits the phrase token
// instead of the individual word tokens.
func RegisterPhrase(words ...string) TokenType {
	name := strings.Join(words, " ")
	t := Register(name)

	phrases[name] = t
	first := words[0]
	phrasesByFirst[first] = append(phrasesByFirst[first], words)

	// Keep longer sequences first so "same or before" wins over "same as"
	// when both could match at the same position.
	seqs := phrasesByFirst[first]
	for i := len(seqs) - 1; i > 0; i-- {
		if len(seqs[i]) > len(seqs[i-1]) {
			seqs[i], seqs[i-1] = seqs[i-1], seqs[i]
		}
	}

	return t
}

// getDynamicName returns the name of a dynamic token.
func getDynamicName(t TokenType) (string, bool) {
	name, ok := dynamicTokens[t]
	return name, ok
}

// PhrasesStartingWith returns the registered phrase word sequences whose
// first word matches, longest first.
func PhrasesStartingWith(word string) [][]string {
	return phrasesByFirst[word]
}

// LookupPhrase returns the token type for a registered phrase spelling.
// Returns IDENT and false if the phrase is not registered.
func LookupPhrase(name string) (TokenType, bool) {
	if tok, ok := phrases[name]; ok {
		return tok, true
	}
	return IDENT, false
}

// IsDynamic returns true if the token type is a dynamically registered token.
func IsDynamic(t TokenType) bool {
	return t > maxBuiltin
}

// RegisteredTokens returns a copy of all registered dynamic tokens.
func RegisteredTokens() map[TokenType]string {
	result := make(map[TokenType]string, len(dynamicTokens))
	for k, v := range dynamicTokens {
		result[k] = v
	}
	return result
}
