package nlp

var englishProfile = &profile{
	lang: LangEnglish,
	// 情态词按优先级排列，句中取最先命中的一个
	modals: []string{"shall", "must", "should", "will", "needs to", "need to", "has to", "have to", "is required to", "are required to", "requires", "require"},
	roles: map[string]bool{
		"system":        true,
		"subsystem":     true,
		"user":          true,
		"users":         true,
		"administrator": true,
		"admin":         true,
		"operator":      true,
		"application":   true,
		"service":       true,
		"server":        true,
		"client":        true,
		"module":        true,
		"component":     true,
		"platform":      true,
		"database":      true,
		"api":           true,
	},
	determiners: map[string]bool{
		"the": true, "a": true, "an": true, "all": true, "every": true,
		"each": true, "any": true, "this": true, "that": true, "its": true,
	},
	adverbs: map[string]bool{
		"not": true, "always": true, "never": true, "also": true,
		"automatically": true, "only": true, "be": true, "been": true,
		"able": true, "to": true,
	},
	purposeMarkers: []string{"in order to", "so that", "to ", "for "},
	functionalKeys: []string{"functional requirement", "features", "use case", "interface", "behavior", "behaviour"},
	nonFuncKeys: []string{
		"non-functional", "nonfunctional", "performance", "security",
		"usability", "reliability", "availability", "scalability",
		"latency", "throughput", "maintainability", "quality",
	},
	constraintKeys: []string{"constraint", "limitation", "restriction", "assumption", "compliance", "standard"},
}
