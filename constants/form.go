package constants

import (
	"strings"

	"github.com/kljensen/snowball"
)

// DoseForm is the closed vocabulary of physical medicine forms.
type DoseForm string

const (
	FormTablet    DoseForm = "TABLET"
	FormCapsule   DoseForm = "CAPSULE"
	FormSyrup     DoseForm = "SYRUP"
	FormInjection DoseForm = "INJECTION"
	FormCream     DoseForm = "CREAM"
	FormOintment  DoseForm = "OINTMENT"
	FormDrops     DoseForm = "DROPS"
	FormSpray     DoseForm = "SPRAY"
	FormInhaler   DoseForm = "INHALER"
	FormPatch     DoseForm = "PATCH"
	FormPowder    DoseForm = "POWDER"
	FormSolution  DoseForm = "SOLUTION"
)

var allForms = []DoseForm{
	FormTablet,
	FormCapsule,
	FormSyrup,
	FormInjection,
	FormCream,
	FormOintment,
	FormDrops,
	FormSpray,
	FormInhaler,
	FormPatch,
	FormPowder,
	FormSolution,
}

// formStems maps the snowball stem of each vocabulary word to its form, so
// plurals and inflections ("tablets", "injections") match without listing
// every variant.
var formStems = map[string]DoseForm{}

// formSynonyms covers the label shorthand that stemming cannot reach.
var formSynonyms = map[string]DoseForm{
	"tab":   FormTablet,
	"tabs":  FormTablet,
	"cap":   FormCapsule,
	"caps":  FormCapsule,
	"syp":   FormSyrup,
	"inj":   FormInjection,
	"oint":  FormOintment,
	"gtt":   FormDrops,
	"susp":  FormSolution,
	"sol":   FormSolution,
	"pdr":   FormPowder,
	"puff":  FormInhaler,
	"amp":   FormInjection,
	"vial":  FormInjection,
}

func init() {
	for _, f := range allForms {
		stem, err := snowball.Stem(strings.ToLower(string(f)), "english", true)
		if err != nil {
			continue
		}
		formStems[stem] = f
	}
}

// FormStrings returns the stable string values in declaration order.
func FormStrings() []string {
	result := make([]string, len(allForms))
	for i, f := range allForms {
		result[i] = string(f)
	}
	return result
}

// CanonicalizeForm maps a single word to a DoseForm, if it belongs to the
// vocabulary. Matching is case-insensitive and stem-based.
func CanonicalizeForm(word string) (DoseForm, bool) {
	normalized := strings.ToLower(strings.Trim(word, ".,:;()"))
	if normalized == "" {
		return "", false
	}

	if f, ok := formSynonyms[normalized]; ok {
		return f, true
	}

	stem, err := snowball.Stem(normalized, "english", true)
	if err != nil {
		return "", false
	}
	if f, ok := formStems[stem]; ok {
		return f, true
	}

	return "", false
}
