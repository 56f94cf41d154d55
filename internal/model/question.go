package model

// Question is a multiple-choice question belonging to an exam.
// CorrectOption is never serialized to students.
type Question struct {
	ID            int64  `json:"id"`
	ExamID        int64  `json:"exam_id"`
	Number        int    `json:"question_number"`
	Text          string `json:"text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption string `json:"-"`
	Marks         int    `json:"marks"`
}

// QuestionForStudent is the student-facing view of a question, stripped of
// the correct option.
type QuestionForStudent struct {
	ID      int64  `json:"id"`
	Number  int    `json:"question_number"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
	Marks   int    `json:"marks"`
}

// ForStudent converts a question into its student-facing view.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:      q.ID,
		Number:  q.Number,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
		Marks:   q.Marks,
	}
}

// ValidOption reports whether o is one of the four answer options.
func ValidOption(o string) bool {
	switch o {
	case "A", "B", "C", "D":
		return true
	}
	return false
}
