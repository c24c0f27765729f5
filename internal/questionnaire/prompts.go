package questionnaire

import (
	"fmt"
	"strings"
)

// QuestionPrompt asks for follow-up questions about a complaint
func QuestionPrompt(complaint string) string {
	return fmt.Sprintf(
		"Seorang pengguna mengeluhkan: %q.\n"+
			"Buat maksimal %d pertanyaan singkat untuk memahami gejalanya. "+
			"Tulis satu pertanyaan per baris dengan nomor.",
		complaint, MaxQuestions,
	)
}

// RecommendationPrompt asks for a recommendation from the answered session
func RecommendationPrompt(s Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Keluhan: %s\n", s.Complaint)
	for i, q := range s.Questions {
		answer := ""
		if i < len(s.Answers) {
			answer = s.Answers[i]
		}
		fmt.Fprintf(&sb, "%d. %s\n   Jawaban: %s\n", i+1, q, answer)
	}
	sb.WriteString("Berikan rekomendasi kesehatan singkat dan kapan perlu ke dokter.")
	return sb.String()
}
