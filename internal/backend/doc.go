// Package backend provides the text-generation backends called once per expert.
//
// A Backend turns a rendered prompt into text. Concrete backends:
//   - LLM - a dago-adapters LLM client (Anthropic, OpenAI, Gemini, Ollama)
//   - Echo - offline canned responses for development without credentials
//   - Func - adapts a function, mostly for tests
//
// Wrappers compose around any Backend:
//
//	var b backend.Backend = backend.NewLLM(client, backend.LLMOptions{Model: model}, logger)
//	b = backend.NewBreaker("anthropic", b, backend.BreakerConfig{MaxFailures: 5}, logger)
//	b = backend.NewLimited(b, 10, 5)
//
// Shared resources such as HTTP connection pools are owned by the backend,
// not by the pipeline that calls it.
package backend
