// Package relevance holds the fixed keyword allow-lists used to decide whether a
// question is about taxes and whether it concerns students.
//
// Matching is a case-insensitive substring scan. There is no tokenization, so a
// term also matches inside longer words ("vat" matches "private").
package relevance

import "strings"

var taxTerms = []string{
	"tax", "deduction", "credit", "irs", "audit", "filing",
	"income", "expense", "write-off", "depreciation", "withholding",
	"return", "liability", "exemption", "compliance", "section",
	"revenue", "fiscal", "taxation", "payroll", "vat", "gst",
	"1040", "w2", "w4", "schedule", "1099", "fica",
}

var studentTerms = []string{
	"student", "college", "university", "education",
	"tuition", "scholarship", "fafsa", "loan",
}

// IsTaxRelated reports whether question contains any tax term.
func IsTaxRelated(question string) bool {
	return containsAny(question, taxTerms)
}

// IsStudentRelated reports whether text contains any student term.
func IsStudentRelated(text string) bool {
	return containsAny(text, studentTerms)
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
