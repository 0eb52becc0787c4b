package script

import "fmt"

// Mode is the presentation style a script was written for.
type Mode string

const (
	ChildrenBook Mode = "children_book"
	ExamPassage  Mode = "exam_passage"
)

// Modes lists every supported mode.
var Modes = []Mode{ChildrenBook, ExamPassage}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ChildrenBook, ExamPassage:
		return Mode(s), nil
	case "":
		return ChildrenBook, nil
	}
	return "", fmt.Errorf("invalid mode %q: must be %s or %s", s, ChildrenBook, ExamPassage)
}

// Title is a human readable mode name.
func (m Mode) Title() string {
	switch m {
	case ExamPassage:
		return "Exam Passage"
	default:
		return "Children's Book"
	}
}
