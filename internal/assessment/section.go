package assessment

import "github.com/abhisek/prepcoach/internal/content"

// Section is a run of questions sharing one type.
type Section struct {
	Type      content.QuestionType
	Questions []content.Question
}

// ItemCount returns the number of answerable items in the section.
func (s Section) ItemCount() int {
	return content.ItemCount(s.Questions)
}

// hasItem reports whether itemID belongs to questionID in this section.
func (s Section) hasItem(questionID, itemID string) bool {
	for _, q := range s.Questions {
		if q.ID != questionID {
			continue
		}
		for _, it := range q.Items {
			if it.ID == itemID {
				return true
			}
		}
	}
	return false
}

// BuildSections groups questions by type. Sections appear in the order
// their type is first seen; questions keep their input order.
func BuildSections(questions []content.Question) []Section {
	var sections []Section
	index := make(map[content.QuestionType]int)
	for _, q := range questions {
		i, ok := index[q.Type]
		if !ok {
			i = len(sections)
			index[q.Type] = i
			sections = append(sections, Section{Type: q.Type})
		}
		sections[i].Questions = append(sections[i].Questions, q)
	}
	return sections
}
