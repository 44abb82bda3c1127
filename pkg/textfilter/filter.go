package textfilter

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// Replacements for English and Indonesian swear words. Generated banter is
// slangy, and the model sometimes slips one of these into a line.
var replacements = map[string]string{
	// English
	"fuck":     "fudge",
	"shit":     "shoot",
	"damn":     "dang",
	"hell":     "heck",
	"bitch":    "jerk",
	"bastard":  "jerk",
	"crap":     "crud",
	"asshole":  "jerk",
	"dumbass":  "dummy",
	"bullshit": "baloney",
	"dick":     "jerk",
	"slut":     "[disensor]",
	"whore":    "[disensor]",
	"retard":   "[disensor]",

	// Indonesian
	"anjing":   "astaga",
	"anjir":    "astaga",
	"bangsat":  "kurang ajar",
	"bajingan": "kurang ajar",
	"brengsek": "nyebelin",
	"kampret":  "kocak",
	"goblok":   "bego",
	"tolol":    "bego",
	"babi":     "[disensor]",
	"tai":      "duh",
	"jancok":   "[disensor]",
	"asu":      "[disensor]",
	"kontol":   "[disensor]",
	"memek":    "[disensor]",
	"ngentot":  "[disensor]",
	"lonte":    "[disensor]",
	"perek":    "[disensor]",
}

// ProfanityFilter handles filtering and replacement of profanity
type ProfanityFilter struct {
	words   []string
	regexes map[string]*regexp.Regexp
}

// NewProfanityFilter creates a new profanity filter
func NewProfanityFilter() *ProfanityFilter {
	pf := &ProfanityFilter{
		regexes: make(map[string]*regexp.Regexp, len(replacements)),
	}

	// Longer words first so "asshole" is handled before any shorter overlap.
	for word := range replacements {
		pf.words = append(pf.words, word)
	}
	sort.Slice(pf.words, func(i, j int) bool {
		if len(pf.words[i]) != len(pf.words[j]) {
			return len(pf.words[i]) > len(pf.words[j])
		}
		return pf.words[i] < pf.words[j]
	})

	for _, word := range pf.words {
		// Optional English plural suffix, kept on the replacement.
		pf.regexes[word] = regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(word) + `)(s?)\b`)
	}
	return pf
}

// FilterText replaces profanity in the input text with friendlier alternatives
func (pf *ProfanityFilter) FilterText(text string) string {
	result := text
	for _, word := range pf.words {
		re := pf.regexes[word]
		replacement := replacements[word]
		result = re.ReplaceAllStringFunc(result, func(match string) string {
			sub := re.FindStringSubmatch(match)
			return pf.preserveCase(sub[1], replacement) + sub[2]
		})
	}
	return result
}

// ContainsProfanity checks if the text contains any profanity
func (pf *ProfanityFilter) ContainsProfanity(text string) bool {
	for _, word := range pf.words {
		if pf.regexes[word].MatchString(text) {
			return true
		}
	}
	return false
}

// FilterScene cleans every player-visible string of s in place.
func (pf *ProfanityFilter) FilterScene(s *scene.Scene) {
	if s == nil {
		return
	}
	s.SceneTitle = pf.FilterText(s.SceneTitle)
	s.Background = pf.FilterText(s.Background)
	s.Explanation = pf.FilterText(s.Explanation)
	for i := range s.Dialog {
		s.Dialog[i].Text = pf.FilterText(s.Dialog[i].Text)
	}
	for i := range s.Choices {
		s.Choices[i].Text = pf.FilterText(s.Choices[i].Text)
	}
}

// preserveCase applies the case pattern of the original word to the replacement
func (pf *ProfanityFilter) preserveCase(original, replacement string) string {
	if original == "" || strings.HasPrefix(replacement, "[") {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}
	// Casers carry state, so each call gets its own.
	titler := cases.Title(language.Indonesian)
	if titler.String(strings.ToLower(original)) == original {
		return titler.String(replacement)
	}

	// Mixed case: copy the pattern rune by rune.
	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)
	for i, r := range []rune(replacement) {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}
