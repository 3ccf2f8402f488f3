// Package template provides a Handlebars template engine for rendering expert prompts.
//
// Every expert prompt has a single {{request}} slot that receives the user's
// request text. The text is inserted verbatim: Handlebars HTML escaping is
// bypassed so quotes and ampersands reach the backend unchanged.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	prompt, err := engine.RenderRequest(
//	    "You are an insurance expert. Answer: {{request}}",
//	    "What does my policy cover?",
//	    nil,
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Built-in helpers:
//   - uppercase - Convert string to uppercase
//   - lowercase - Convert string to lowercase
//   - trim - Trim whitespace from string
//   - default - Return default value if first arg is empty
//   - eq - Equality comparison
//   - ne - Inequality comparison
//   - contains - Check if string contains substring
//   - join - Join list elements with separator
//
// Example with helpers:
//
//	{{uppercase name}}          # "JOHN"
//	{{default value "N/A"}}     # "N/A" if value is empty
//	{{join experts ", "}}       # "insurance, tech"
package template
