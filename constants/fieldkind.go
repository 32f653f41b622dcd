package constants

// FieldKind is the canonical identity of a classified field on a record.
type FieldKind string

const (
	FieldName            FieldKind = "NAME"
	FieldGenericName     FieldKind = "GENERIC_NAME"
	FieldExpiryDate      FieldKind = "EXPIRY_DATE"
	FieldManufactureDate FieldKind = "MANUFACTURE_DATE"
	FieldBatchNumber     FieldKind = "BATCH_NUMBER"
	FieldDosage          FieldKind = "DOSAGE"
	FieldStrength        FieldKind = "STRENGTH"
	FieldForm            FieldKind = "FORM"
	FieldManufacturer    FieldKind = "MANUFACTURER"
	FieldFrequency       FieldKind = "FREQUENCY"
	FieldDuration        FieldKind = "DURATION"
	FieldQuantity        FieldKind = "QUANTITY"
)

// PrimaryFieldKinds are the kinds that feed record-level confidence and
// coverage. Extras (frequency, duration, quantity) ride along without
// affecting the score of scans that legitimately lack them.
var PrimaryFieldKinds = []FieldKind{
	FieldName,
	FieldGenericName,
	FieldExpiryDate,
	FieldManufactureDate,
	FieldBatchNumber,
	FieldDosage,
	FieldStrength,
	FieldForm,
	FieldManufacturer,
}

// CandidateHint is the scanner's guess at what a matched span could be,
// before the classifier assigns a FieldKind.
type CandidateHint string

const (
	HintDate      CandidateHint = "DATE"
	HintDosage    CandidateHint = "DOSAGE"
	HintBatch     CandidateHint = "BATCH"
	HintStrength  CandidateHint = "STRENGTH"
	HintForm      CandidateHint = "FORM"
	HintNameLike  CandidateHint = "NAME_LIKE"
	HintFrequency CandidateHint = "FREQUENCY"
	HintDuration  CandidateHint = "DURATION"
	HintQuantity  CandidateHint = "QUANTITY"
)
