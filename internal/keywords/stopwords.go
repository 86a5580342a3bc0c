package keywords

// stopWords holds common French and English function words. It is filled once at
// package init and only read afterwards, so it is safe to share between goroutines.
var stopWords = newWordSet(
	// English
	"about", "above", "after", "again", "also", "because", "been", "before", "being",
	"below", "between", "both", "could", "does", "doing", "down", "during", "each",
	"from", "further", "have", "having", "hello", "here", "hers", "herself", "himself",
	"into", "itself", "just", "more", "most", "myself", "once", "only", "other", "ours",
	"ourselves", "over", "please", "same", "should", "some", "such", "than", "thank",
	"thanks", "that", "their", "theirs", "them", "themselves", "then", "there", "these",
	"they", "this", "those", "through", "under", "until", "very", "want", "were", "what",
	"when", "where", "which", "while", "whom", "will", "with", "would", "your", "yours",
	"yourself", "yourselves",
	// French
	"alors", "aussi", "autre", "autres", "avec", "avez", "avoir", "avons", "bien",
	"bonjour", "bonsoir", "car", "cela", "celle", "celui", "cette", "ceux", "chez",
	"comme", "comment", "dans", "depuis", "donc", "dont", "elle", "elles", "encore",
	"entre", "est-ce", "étaient", "était", "être", "fait", "faire", "leur", "leurs",
	"mais", "merci", "même", "moins", "nous", "notre", "nôtre", "ont", "oui", "parce",
	"pendant", "peut", "peux", "plus", "pour", "pourquoi", "pouvez", "quand", "quel",
	"quelle", "quelles", "quels", "sans", "sera", "serait", "sont", "sous", "suis",
	"tous", "tout", "toute", "toutes", "très", "vers", "veux", "voici", "voilà",
	"votre", "vôtre", "vous", "voudrais",
)

func newWordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether word belongs to the built-in stop-word set.
// The lookup is case-sensitive; callers pass lowercase tokens.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
