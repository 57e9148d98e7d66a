package spf

// stringsStack tracks the chain of domains currently being evaluated, so a
// record that reaches itself again through include or redirect is caught as
// a loop instead of burning the whole lookup budget.
type stringsStack struct {
	s []string
}

func newStringsStack() *stringsStack {
	return &stringsStack{make([]string, 0, 20)}
}

func (s *stringsStack) push(v string) {
	s.s = append(s.s, v)
}

func (s *stringsStack) pop() {
	if l := len(s.s); l > 0 {
		s.s = s.s[:l-1]
	}
}

func (s *stringsStack) has(v string) bool {
	for _, str := range s.s {
		if v == str {
			return true
		}
	}
	return false
}
