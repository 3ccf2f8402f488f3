// Package worker exposes the expert pipeline over Redis Streams and HTTP.
//
// The worker joins a consumer group on the request stream, answers each
// request through a Processor and publishes the answer to the result stream.
// Requests that fail outright are published to "<result stream>.errors".
// On start it claims stale entries from dead consumers and replays its own
// pending entries before reading new ones.
//
// Request entries carry JSON in their data field:
//
//	{"request_id": "r-1", "text": "What is our policy automation OCR rate?"}
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//
//	worker := worker.NewWorker(cfg, redisClient, orchestrator, logger)
//	if err := worker.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer worker.Stop(ctx)
//
// The HTTP server provides:
//
//   - GET /health and /ready, pinging Redis when it is enabled
//   - POST /process, answering {"request": "..."} synchronously
//   - GET /metrics for Prometheus
//
// Example:
//
//	server := worker.NewHTTPServer(8082, redisClient, orchestrator, registry, logger)
//	server.Start()
//	defer server.Stop()
package worker
