package reference

import (
	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
)

// BuiltinSet returns the stock reference set used when no external file is
// configured. Small on purpose: deployments with a formulary load their
// own file.
func BuiltinSet() *Set {
	s, err := NewSet([]entity.ReferenceEntry{
		{Name: "Paracetamol", GenericName: "Acetaminophen", Category: "Analgesic",
			CommonForms: []constants.DoseForm{constants.FormTablet, constants.FormSyrup, constants.FormDrops}},
		{Name: "Aspirin", GenericName: "Acetylsalicylic acid", Category: "NSAID",
			CommonForms: []constants.DoseForm{constants.FormTablet}},
		{Name: "Ibuprofen", GenericName: "Ibuprofen", Category: "NSAID",
			CommonForms: []constants.DoseForm{constants.FormTablet, constants.FormSyrup, constants.FormCream}},
		{Name: "Amoxicillin", GenericName: "Amoxicillin", Category: "Antibiotic",
			CommonForms: []constants.DoseForm{constants.FormCapsule, constants.FormSyrup, constants.FormInjection}},
		{Name: "Ciprofloxacin", GenericName: "Ciprofloxacin", Category: "Antibiotic",
			CommonForms: []constants.DoseForm{constants.FormTablet, constants.FormDrops, constants.FormInjection}},
		{Name: "Azithromycin", GenericName: "Azithromycin", Category: "Antibiotic",
			CommonForms: []constants.DoseForm{constants.FormTablet, constants.FormSyrup}},
		{Name: "Metformin", GenericName: "Metformin", Category: "Antidiabetic",
			CommonForms: []constants.DoseForm{constants.FormTablet}},
		{Name: "Omeprazole", GenericName: "Omeprazole", Category: "PPI",
			CommonForms: []constants.DoseForm{constants.FormCapsule, constants.FormTablet}},
		{Name: "Losartan", GenericName: "Losartan", Category: "ARB",
			CommonForms: []constants.DoseForm{constants.FormTablet}},
		{Name: "Amlodipine", GenericName: "Amlodipine", Category: "Calcium channel blocker",
			CommonForms: []constants.DoseForm{constants.FormTablet}},
		{Name: "Atorvastatin", GenericName: "Atorvastatin", Category: "Statin",
			CommonForms: []constants.DoseForm{constants.FormTablet}},
		{Name: "Cetirizine", GenericName: "Cetirizine", Category: "Antihistamine",
			CommonForms: []constants.DoseForm{constants.FormTablet, constants.FormSyrup}},
	})
	if err != nil {
		// builtin entries are static; a failure here is a programming error
		panic(err)
	}
	return s
}
