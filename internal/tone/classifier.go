// Package tone computes per-response tone adaptations: how a persona's
// delivery should shift given its current mood, the kind of message the
// student sent, and the student's own mood when known. Adaptations are
// advisory numbers the prompt builder folds into generation; they never
// mutate the persona.
package tone

import "strings"

// Kind is the coarse category of a student message.
type Kind string

const (
	KindQuestion  Kind = "question"
	KindRequest   Kind = "request"
	KindFeedback  Kind = "feedback"
	KindStatement Kind = "statement"
)

// Classifier turns a raw student message into a Kind. The default is
// lexical; a model-backed classifier can slot in without touching the
// calculator.
type Classifier interface {
	Classify(message string) Kind
}

// LexicalClassifier categorizes messages with keyword tables. Checks run
// question, request, feedback, in that order, so "can you help?" is a
// question rather than a request.
type LexicalClassifier struct{}

// NewLexicalClassifier returns the default classifier.
func NewLexicalClassifier() *LexicalClassifier {
	return &LexicalClassifier{}
}

var (
	questionOpeners = []string{
		"what", "why", "how", "when", "where", "who", "which",
		"is", "are", "do", "does", "did", "can", "could", "should", "would",
	}
	requestMarkers = []string{
		"please", "can you", "could you", "would you", "i need",
		"help me", "let's", "give me", "send me", "show me",
	}
	feedbackMarkers = []string{
		"thanks", "thank you", "great", "great job", "well done", "good work",
		"appreciate", "terrible", "disappointing", "wrong", "that helped",
		"not what i asked",
	}
)

func (c *LexicalClassifier) Classify(message string) Kind {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return KindStatement
	}

	if strings.Contains(msg, "?") {
		return KindQuestion
	}
	for _, opener := range questionOpeners {
		if strings.HasPrefix(msg, opener+" ") {
			return KindQuestion
		}
	}

	for _, marker := range requestMarkers {
		if containsPhrase(msg, marker) {
			return KindRequest
		}
	}

	for _, marker := range feedbackMarkers {
		if containsPhrase(msg, marker) {
			return KindFeedback
		}
	}

	return KindStatement
}

// containsPhrase is a whole-word match so "great" does not fire inside
// "greatly".
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)

		leftOK := start == 0 || !isWordChar(text[start-1])
		rightOK := end == len(text) || !isWordChar(text[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
