// Package pipeline answers a request by fanning it out to experts.
//
// One request flows through three steps:
//
//  1. the router picks the experts (at least one)
//  2. the Invoker renders each expert prompt and calls the backend, tagging
//     each output with 【DisplayName】
//  3. Aggregate joins the tagged outputs
//
// Example usage:
//
//	orch, err := pipeline.NewOrchestrator(catalog, r, gen, pipeline.Options{}, nil, logger)
//	answer, err := orch.Process(ctx, "What is our policy automation OCR rate?")
//	fmt.Println(answer.Text)
//
// Expert calls for one request run concurrently and are reassembled by
// index, so the answer always follows the routing order regardless of which
// backend call finished first. A failing expert contributes a visible
// "expert <id> failed: <reason>" section instead of aborting the request.
// Cancelling the context fails the request; partial sets are never
// aggregated.
package pipeline
