// Package router selects which experts answer a request.
//
// Routing is delegated to Classifier implementations:
//   - KeywordClassifier: case-sensitive keyword substring matching (default)
//   - RuleClassifier: CEL boolean expressions over the request text
//   - LLMClassifier: asks the backend to name the experts
//
// The Router runs the classifiers of its mode, keeps only catalog ids, removes
// duplicates, orders the result by catalog declaration and falls back to the
// catalog's default expert when nothing matched. A Decision therefore always
// carries at least one expert.
//
// Example keyword routing:
//
//	r, err := router.NewRouter(catalog, router.Options{Mode: router.ModeKeyword}, nil, logger)
//	decision, err := r.Route(ctx, "What is our policy automation OCR rate?")
//	// decision.ExpertIDs == []string{"insurance", "tech"}
//
// Example hybrid routing:
//
//	opts := router.Options{
//	    Mode: router.ModeHybrid,
//	    Rules: []router.Rule{
//	        {Condition: "request.matches('(?i)refund')", Target: "insurance"},
//	    },
//	}
//	r, err := router.NewRouter(catalog, opts, backend, logger)
//
// In hybrid mode keywords are tried first, then rules, then the LLM; the
// first stage that yields experts wins. PathTaken reports "fast" for keyword
// and rule matches, "slow" for the LLM and "fallback" for the default expert.
package router
