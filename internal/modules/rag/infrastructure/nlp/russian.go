package nlp

var russianProfile = &profile{
	lang: LangRussian,
	modals: []string{
		"должна", "должен", "должно", "должны",
		"обязана", "обязан", "обязано", "обязаны",
		"следует", "необходимо", "требуется", "нужно",
	},
	roles: map[string]bool{
		"система":       true,
		"подсистема":    true,
		"пользователь":  true,
		"пользователи":  true,
		"администратор": true,
		"оператор":      true,
		"приложение":    true,
		"сервис":        true,
		"сервер":        true,
		"клиент":        true,
		"модуль":        true,
		"компонент":     true,
		"платформа":     true,
		"база":          true,
	},
	determiners: map[string]bool{
		"все": true, "каждый": true, "каждая": true, "каждое": true,
		"этот": true, "эта": true, "это": true, "любой": true, "любая": true,
	},
	adverbs: map[string]bool{
		"не": true, "всегда": true, "также": true, "автоматически": true,
		"только": true, "быть": true,
	},
	purposeMarkers: []string{"для того чтобы", "чтобы", "для ", "с целью"},
	functionalKeys: []string{"функциональные требования", "функции", "сценарии", "интерфейс", "поведение"},
	nonFuncKeys: []string{
		"нефункциональные", "производительность", "безопасность",
		"надежность", "надёжность", "доступность", "масштабируемость",
		"удобство", "качество",
	},
	constraintKeys: []string{"ограничени", "допущени", "соответстви", "стандарт"},
}
