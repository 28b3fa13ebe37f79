package sheetfill

import "strings"

// FieldKey names a bindable template field. Keys are either well-known
// scalar keys, well-known list keys, or custom.<identifier> references
// resolved against a per-catalog custom field set.
type FieldKey string

// CustomPrefix namespaces per-student configurable fields.
const CustomPrefix = "custom."

// Scalar field keys.
const (
	FieldStudentNo          FieldKey = "student_no"
	FieldName               FieldKey = "name"
	FieldGender             FieldKey = "gender"
	FieldGrade              FieldKey = "grade"
	FieldClassName          FieldKey = "class_name"
	FieldMajor              FieldKey = "major"
	FieldCollege            FieldKey = "college"
	FieldTotalSelfHours     FieldKey = "total_self_hours"
	FieldTotalApprovedHours FieldKey = "total_approved_hours"
	FieldRejectReasons      FieldKey = "reject_reasons"
	FieldFirstSignImage     FieldKey = "first_sign_image"
	FieldSecondSignImage    FieldKey = "second_sign_image"
)

// List field keys, one value per award record.
const (
	FieldSeq              FieldKey = "seq"
	FieldYear             FieldKey = "year"
	FieldCategory         FieldKey = "category"
	FieldContestName      FieldKey = "contest_name"
	FieldLevel            FieldKey = "level"
	FieldRole             FieldKey = "role"
	FieldAwardTier        FieldKey = "award_tier"
	FieldAwardDate        FieldKey = "award_date"
	FieldSelfHours        FieldKey = "self_hours"
	FieldFirstHours       FieldKey = "first_hours"
	FieldSecondHours      FieldKey = "second_hours"
	FieldRecommendedHours FieldKey = "recommended_hours"
	FieldStatus           FieldKey = "status"
	FieldRejectReason     FieldKey = "reject_reason"
)

// IsCustom reports whether the key references a configurable custom field.
func (k FieldKey) IsCustom() bool {
	return strings.HasPrefix(string(k), CustomPrefix)
}

// CustomName returns the identifier portion of a custom.<key> reference.
func (k FieldKey) CustomName() string {
	return strings.TrimPrefix(string(k), CustomPrefix)
}

var scalarFields = map[FieldKey]struct{}{
	FieldStudentNo:          {},
	FieldName:               {},
	FieldGender:             {},
	FieldGrade:              {},
	FieldClassName:          {},
	FieldMajor:              {},
	FieldCollege:            {},
	FieldTotalSelfHours:     {},
	FieldTotalApprovedHours: {},
	FieldRejectReasons:      {},
	FieldFirstSignImage:     {},
	FieldSecondSignImage:    {},
}

var listFields = map[FieldKey]struct{}{
	FieldSeq:              {},
	FieldYear:             {},
	FieldCategory:         {},
	FieldContestName:      {},
	FieldLevel:            {},
	FieldRole:             {},
	FieldAwardTier:        {},
	FieldAwardDate:        {},
	FieldSelfHours:        {},
	FieldFirstHours:       {},
	FieldSecondHours:      {},
	FieldRecommendedHours: {},
	FieldStatus:           {},
	FieldRejectReason:     {},
}

var imageFields = map[FieldKey]struct{}{
	FieldFirstSignImage:  {},
	FieldSecondSignImage: {},
}

// Catalog is the single source of truth for which field keys are legal in
// which binding kind. It is pure lookup: construction fixes the custom field
// set and nothing mutates it afterwards.
type Catalog struct {
	custom map[string]struct{}
}

// NewCatalog creates a catalog with the given custom field identifiers.
func NewCatalog(customFields ...string) *Catalog {
	custom := make(map[string]struct{}, len(customFields))
	for _, name := range customFields {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		custom[name] = struct{}{}
	}
	return &Catalog{custom: custom}
}

// ScalarAllowed reports whether key may appear in a scalar placeholder.
func (c *Catalog) ScalarAllowed(key FieldKey) bool {
	if key.IsCustom() {
		return true
	}
	_, ok := scalarFields[key]
	return ok
}

// ListAllowed reports whether key may appear in a list head placeholder.
func (c *Catalog) ListAllowed(key FieldKey) bool {
	if key.IsCustom() {
		return true
	}
	_, ok := listFields[key]
	return ok
}

// IsImage reports whether the scalar key resolves to a signature image.
func (c *Catalog) IsImage(key FieldKey) bool {
	_, ok := imageFields[key]
	return ok
}

// CustomDefined reports whether a custom.<key> reference names a configured
// custom field. Undefined references are advisory at validation time and
// resolve to empty values at export time.
func (c *Catalog) CustomDefined(key FieldKey) bool {
	if c == nil || !key.IsCustom() {
		return false
	}
	_, ok := c.custom[key.CustomName()]
	return ok
}

// CustomFields returns the configured custom field identifiers.
func (c *Catalog) CustomFields() []string {
	if c == nil {
		return nil
	}
	fields := make([]string, 0, len(c.custom))
	for name := range c.custom {
		fields = append(fields, name)
	}
	return fields
}
