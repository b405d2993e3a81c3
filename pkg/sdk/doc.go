// Package itemmatch provides a Go client that finds semantically matching
// items across two lists of short strings using a language-model oracle.
//
// The client runs the comparison pipeline in-process: it builds one
// instruction, makes one bounded oracle round trip, validates the structured
// answer and keeps the pairs that reach the similarity threshold.
//
//	client, _ := itemmatch.New(ctx,
//	    itemmatch.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "gpt-4o-mini"),
//	    itemmatch.WithTimeout(30*time.Second),
//	)
//	res, err := client.Compare(ctx,
//	    []string{"Apple", "Banana"},
//	    []string{"apple ", "Banana!"},
//	    0.8,
//	)
//	if itemmatch.Retryable(err) {
//	    // transport failure, a second attempt may succeed
//	}
//	for _, m := range res.Matches {
//	    fmt.Println(m.Item1, "~", m.Item2, m.Similarity)
//	}
package itemmatch
