package sheetfill

import (
	"strconv"
	"strings"
	"time"
)

// Award review states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Student is one student's certification data as handed over by the
// surrounding portal.
type Student struct {
	StudentNo string
	Name      string
	Gender    string
	Grade     string
	ClassName string
	Major     string
	College   string

	// Signature image files uploaded by the stage reviewers; empty when the
	// reviewer has not signed.
	FirstSignPath  string
	SecondSignPath string

	Custom map[string]string
	Awards []Award
}

// Award is one contest/labor record.
type Award struct {
	Year        string
	Category    string
	ContestName string
	Level       string
	Role        string
	AwardTier   string
	AwardedOn   time.Time

	SelfHours   float64
	FirstHours  float64
	SecondHours float64

	Status       string
	RejectReason string

	Custom map[string]string
}

// RecommendedHours is the derived hour value: the latest review stage that
// recorded hours wins, falling back to the student's self report.
func (a Award) RecommendedHours() float64 {
	if a.SecondHours > 0 {
		return a.SecondHours
	}
	if a.FirstHours > 0 {
		return a.FirstHours
	}
	return a.SelfHours
}

// ResolveOptions tunes binding resolution.
type ResolveOptions struct {
	// Filter keeps only matching awards. The seq pseudo-field is renumbered
	// 1..N over the records that survive filtering.
	Filter func(Award) bool
}

// Resolve computes the BindingContext for one student. Missing optional
// values resolve to empty strings; signature placeholders with no uploaded
// image resolve to an empty ImageRef rather than failing the export. The
// context is built fresh per export and is never cached across students.
func Resolve(student Student, catalog *Catalog, opts ResolveOptions) BindingContext {
	awards := student.Awards
	if opts.Filter != nil {
		kept := make([]Award, 0, len(awards))
		for _, award := range awards {
			if opts.Filter(award) {
				kept = append(kept, award)
			}
		}
		awards = kept
	}

	var totalSelf, totalApproved float64
	var rejectReasons []string
	for _, award := range awards {
		totalSelf += award.SelfHours
		if award.Status == StatusApproved {
			totalApproved += award.RecommendedHours()
		}
		if reason := strings.TrimSpace(award.RejectReason); reason != "" {
			rejectReasons = append(rejectReasons, reason)
		}
	}

	scalars := map[FieldKey]any{
		FieldStudentNo:          student.StudentNo,
		FieldName:               student.Name,
		FieldGender:             student.Gender,
		FieldGrade:              student.Grade,
		FieldClassName:          student.ClassName,
		FieldMajor:              student.Major,
		FieldCollege:            student.College,
		FieldTotalSelfHours:     totalSelf,
		FieldTotalApprovedHours: totalApproved,
		FieldRejectReasons:      strings.Join(rejectReasons, "; "),
		FieldFirstSignImage:     ImageRef{Path: student.FirstSignPath},
		FieldSecondSignImage:    ImageRef{Path: student.SecondSignPath},
	}
	for _, name := range catalog.CustomFields() {
		scalars[FieldKey(CustomPrefix+name)] = student.Custom[name]
	}

	records := make([]Record, len(awards))
	for i, award := range awards {
		record := Record{
			FieldSeq:              i + 1,
			FieldYear:             award.Year,
			FieldCategory:         award.Category,
			FieldContestName:      award.ContestName,
			FieldLevel:            award.Level,
			FieldRole:             award.Role,
			FieldAwardTier:        award.AwardTier,
			FieldAwardDate:        formatDate(award.AwardedOn),
			FieldSelfHours:        award.SelfHours,
			FieldFirstHours:       award.FirstHours,
			FieldSecondHours:      award.SecondHours,
			FieldRecommendedHours: award.RecommendedHours(),
			FieldStatus:           award.Status,
			FieldRejectReason:     award.RejectReason,
		}
		for _, name := range catalog.CustomFields() {
			record[FieldKey(CustomPrefix+name)] = award.Custom[name]
		}
		records[i] = record
	}

	return BindingContext{Scalars: scalars, Records: records}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatValue renders a resolved value as cell text. Unresolved custom
// fields come through as nil and render empty.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case ImageRef:
		return ""
	default:
		return ""
	}
}
