package token

// Phrase keyword tokens. CQL spells several operators as multi-word
// phrases; each is registered as a single dynamic token so the parser
// never has to reassemble them from word tokens.
//
//nolint:revive // ALL_CAPS names follow the keyword spelling conventions
var (
	SORT_BY              = RegisterPhrase("sort", "by")
	SUCH_THAT            = RegisterPhrase("such", "that")
	START_OF             = RegisterPhrase("start", "of")
	END_OF               = RegisterPhrase("end", "of")
	SINGLETON_FROM       = RegisterPhrase("singleton", "from")
	PREDECESSOR_OF       = RegisterPhrase("predecessor", "of")
	SUCCESSOR_OF         = RegisterPhrase("successor", "of")
	INCLUDED_IN          = RegisterPhrase("included", "in")
	PROPERLY_INCLUDES    = RegisterPhrase("properly", "includes")
	PROPERLY_INCLUDED_IN = RegisterPhrase("properly", "included", "in")
	STARTS_BEFORE        = RegisterPhrase("starts", "before")
	STARTS_AFTER         = RegisterPhrase("starts", "after")
	ENDS_BEFORE          = RegisterPhrase("ends", "before")
	ENDS_AFTER           = RegisterPhrase("ends", "after")
	OCCURS_BEFORE        = RegisterPhrase("occurs", "before")
	OCCURS_AFTER         = RegisterPhrase("occurs", "after")
	SAME_AS              = RegisterPhrase("same", "as")
	SAME_OR_BEFORE       = RegisterPhrase("same", "or", "before")
	SAME_OR_AFTER        = RegisterPhrase("same", "or", "after")
	OVERLAPS_BEFORE      = RegisterPhrase("overlaps", "before")
	OVERLAPS_AFTER       = RegisterPhrase("overlaps", "after")
	MEETS_BEFORE         = RegisterPhrase("meets", "before")
	MEETS_AFTER          = RegisterPhrase("meets", "after")
	OVERLAPS             = Register("overlaps")
	MEETS                = Register("meets")
)

// phraseWords registers the single-word members so the lexer treats a
// bare "overlaps"/"meets" as an operator token rather than an identifier.
func init() {
	phrases["overlaps"] = OVERLAPS
	phrasesByFirst["overlaps"] = append(phrasesByFirst["overlaps"], []string{"overlaps"})
	phrases["meets"] = MEETS
	phrasesByFirst["meets"] = append(phrasesByFirst["meets"], []string{"meets"})
}
