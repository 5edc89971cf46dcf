package usecase

import (
	"strings"

	"tax-assistant/internal/domain"
	"tax-assistant/internal/relevance"
)

const (
	probeSystemPrompt = "You are a helpful assistant."
	probeUserPrompt   = "Say hello world."
)

func studentSystemPrompt() string {
	return strings.Join([]string{
		"You are a specialized tax expert assistant for students and educational matters.",
		"Provide accurate, personalized information about tax laws affecting students, with expertise in:",
		"",
		"1. Student-specific tax deductions, credits, and exemptions",
		"2. Education-related tax benefits (tuition credits, loan interest deductions)",
		"3. Scholarship and grant taxation rules",
		"4. Filing requirements for students with various income sources",
		"5. Impact of tax filing on financial aid eligibility",
		"6. International student tax considerations",
		"7. Education savings accounts and 529 plans",
		"8. Work-study and teaching assistant tax implications",
		"",
		"Include relevant tax code references when applicable. Provide direct, practical advice",
		"tailored specifically to students, not corporate clients. Use clear, straightforward language",
		"appropriate for students who may have limited tax knowledge.",
	}, "\n")
}

func businessSystemPrompt() string {
	return strings.Join([]string{
		"You are a comprehensive tax expert assistant for Deloitte auditors.",
		"Provide accurate, detailed information about tax laws globally, with special expertise in:",
		"",
		"1. Personal and business tax deductions, credits, and exemptions",
		"2. Filing requirements, deadlines, and compliance procedures",
		"3. Recent and historical tax law changes affecting individuals and businesses",
		"4. Documentation requirements for tax compliance and audit defense",
		"5. International tax treaties and cross-border taxation",
		"6. Specialized tax codes like Section 80D and other health insurance deductions",
		"7. Industry-specific tax considerations and regulations",
		"8. Tax planning strategies and optimization approaches",
		"",
		"Include relevant tax code references when applicable (IRS codes, sections, etc.).",
		"Provide comprehensive answers to all tax-related inquiries regardless of complexity.",
		"Keep responses professional, factual, and helpful for tax professionals and their clients.",
	}, "\n")
}

// audienceFor picks the system prompt audience from the prompt text. The
// client's "As a student, " prefix matches "student", so a student-mode
// submission always gets the student prompt.
func audienceFor(prompt string) domain.AudienceMode {
	if relevance.IsStudentRelated(prompt) {
		return domain.AudienceStudent
	}
	return domain.AudienceBusiness
}

func systemPromptFor(audience domain.AudienceMode) string {
	if audience == domain.AudienceStudent {
		return studentSystemPrompt()
	}
	return businessSystemPrompt()
}

func buildMessages(system, user string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}
}
