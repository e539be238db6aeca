package models

const (
	LangEn = "en"
	LangRu = "ru"
	LangEl = "el"
)

// Languages lists the supported content languages.
var Languages = []string{LangEn, LangRu, LangEl}

// IsLanguage reports whether lang is a supported content language.
func IsLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Localized is a string in each supported language.
type Localized struct {
	En string `bson:"en" json:"en"`
	Ru string `bson:"ru,omitempty" json:"ru,omitempty"`
	El string `bson:"el,omitempty" json:"el,omitempty"`
}

// Get returns the value for lang, falling back to English when it is empty.
func (l Localized) Get(lang string) string {
	var v string
	switch lang {
	case LangRu:
		v = l.Ru
	case LangEl:
		v = l.El
	default:
		v = l.En
	}
	if v == "" {
		return l.En
	}
	return v
}

// Values returns every non-empty translation keyed by language.
func (l Localized) Values() map[string]string {
	out := make(map[string]string, 3)
	if l.En != "" {
		out[LangEn] = l.En
	}
	if l.Ru != "" {
		out[LangRu] = l.Ru
	}
	if l.El != "" {
		out[LangEl] = l.El
	}
	return out
}
