package expert

// BuiltinDefault is the fallback expert of the built-in catalog.
const BuiltinDefault = "insurance"

// Builtin returns the catalog used when no catalog file is configured.
func Builtin() []Definition {
	return []Definition{
		{
			ID:          "insurance",
			DisplayName: "Insurance Expert",
			Keywords:    []string{"insurance", "Insurance", "policy", "claim", "underwriting", "保險", "保单", "核保", "理賠"},
			PromptTemplate: "You are a senior insurance industry expert covering underwriting, claims and policy servicing.\n" +
				"Answer the following request from that perspective, with concrete and practical guidance.\n\n" +
				"Request: {{request}}",
		},
		{
			ID:          "tech",
			DisplayName: "Technology Expert",
			Keywords:    []string{"automation", "OCR", "API", "system", "architecture", "自動化", "技術", "系統"},
			PromptTemplate: "You are a technology architect specialising in automation, OCR and system integration.\n" +
				"Explain the technical approach, trade-offs and an implementation outline for:\n\n" +
				"{{request}}",
		},
		{
			ID:          "data",
			DisplayName: "Data Analysis Expert",
			Keywords:    []string{"data", "analysis", "statistics", "metrics", "report", "數據", "分析", "統計"},
			PromptTemplate: "You are a data analyst. Identify the relevant data, the metrics to compute and how to read them for:\n\n" +
				"{{request}}",
		},
		{
			ID:          "strategy",
			DisplayName: "Business Strategy Expert",
			Keywords:    []string{"strategy", "market", "competitor", "cost", "ROI", "策略", "市場", "成本"},
			PromptTemplate: "You are a business strategy consultant. Give a structured recommendation with risks and next steps for:\n\n" +
				"{{request}}",
		},
	}
}
