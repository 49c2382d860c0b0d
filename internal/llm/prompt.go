package llm

import (
	"fmt"
	"strings"

	"docubrain/internal/domain"
)

// mcqKeywords mark a request for multiple-choice questions. Matching is a
// case-insensitive substring test, so short words like "تست" also match inside
// longer ones.
var mcqKeywords = []string{
	"multiple choice", "multiple-choice", "mcq", "quiz",
	"سوال چهار گزینه", "سوال چهارگزینه", "چهار گزینه", "چهارگزینه",
	"سوال تستی", "تست", "گزینه", "سوال انتخابی", "سوال کنکوری", "آزمون", "امتحان",
}

// IsMCQRequest reports whether question asks for multiple-choice questions.
func IsMCQRequest(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range mcqKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

const mcqTemplate = `You are an expert exam designer. Using only the reference material below, write high quality multiple-choice questions.

Reference material:
%s

User request:
%s

Instructions:
1. Base every question on the reference material.
2. Give each question exactly one correct option and three plausible but wrong options.
3. Keep questions factually accurate.
4. Write in the same language as the user request.
5. State the correct answer after each question.

Output format:
Question 1: [question text]
A) [option]
B) [option]
C) [option]
D) [option]

Correct answer: [letter]

Explanation: [short explanation]

---

If the material is not enough to write questions, say so.`

const answerTemplate = `You are a precise assistant that answers from the provided information.

Reference material:
%s

User question:
%s

Instructions:
1. Answer only from the reference material.
2. If the material is not sufficient, say so plainly.
3. Give accurate, complete and useful answers.
4. Write in the same language as the question.
5. Mention the relevant sources where possible.

Answer:`

// BuildPrompt fills the multiple-choice or the standard template.
func BuildPrompt(reference, question string) string {
	if IsMCQRequest(question) {
		return fmt.Sprintf(mcqTemplate, reference, question)
	}
	return fmt.Sprintf(answerTemplate, reference, question)
}

// ApplyMode rewrites question for the selected mode. MCQ and quiz requests are
// prefixed with an instruction unless the question already asks for
// multiple-choice questions.
func ApplyMode(mode domain.Mode, question string) string {
	question = strings.TrimSpace(question)
	switch mode {
	case domain.ModeMCQ:
		if IsMCQRequest(question) {
			return question
		}
		return "Write one multiple-choice question about: " + question
	case domain.ModeQuiz:
		if IsMCQRequest(question) {
			return question
		}
		return "Based on this request, write several multiple-choice quiz questions: " + question
	}
	return question
}
