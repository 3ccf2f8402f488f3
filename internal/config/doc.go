// Package config provides configuration management for the expert router.
//
// Process settings are loaded from environment variables and validated on
// startup. The expert catalog comes from the YAML or JSON file named by
// CATALOG_PATH, or from the built-in catalog when it is unset.
//
// Example catalog file:
//
//	default_expert: insurance
//	routing:
//	  mode: hybrid
//	  max_experts: 3
//	  rules:
//	    - condition: "request.matches('(?i)refund')"
//	      target: insurance
//	experts:
//	  - id: insurance
//	    display_name: Insurance Expert
//	    keywords: [insurance, policy, claim]
//	    prompt_template: "As an insurance expert, answer: {{request}}"
//	  - id: tech
//	    display_name: Technology Expert
//	    keywords: [automation, OCR]
//	    prompt_template: "As a technology architect, answer: {{request}}"
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	catalog, routing, err := cfg.BuildCatalog(template.NewEngine())
package config
