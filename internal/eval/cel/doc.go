// Package cel provides a CEL (Common Expression Language) evaluator for rule-based expert routing.
//
// Rules are boolean expressions over a single string variable, request, which
// holds the raw request text.
//
// Example usage:
//
//	evaluator := cel.NewEvaluator()
//
//	matched, err := evaluator.Match(ctx, "request.contains('claim') || request.startsWith('Policy')", text)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Supported operations:
//   - Comparisons: ==, !=
//   - Boolean logic: &&, ||, !
//   - String operations: contains, startsWith, endsWith, matches
//   - size(request)
package cel
