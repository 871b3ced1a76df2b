package engine

import (
	"fmt"
	"strings"

	"github.com/praxislabs/praxis/internal/persona"
	"github.com/praxislabs/praxis/internal/tone"
)

// buildSystemPrompt renders the persona and the per-message tone
// adaptation into generation instructions. The prompt is derived state:
// it never feeds the response fingerprint, so rewording here does not
// split the cache.
func buildSystemPrompt(p *persona.Persona, adaptation *tone.Adaptation) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are %s, a %s on the student's project team.\n", p.Name, p.Role))
	if p.Background != "" {
		sb.WriteString(p.Background)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(p.Traits) > 0 {
		sb.WriteString("## Personality\n")
		sb.WriteString("You are ")
		sb.WriteString(strings.Join(p.Traits, ", "))
		sb.WriteString(".\n\n")
	}

	if len(p.Values) > 0 {
		sb.WriteString("## Values\n")
		sb.WriteString("You care about ")
		sb.WriteString(strings.Join(p.Values, ", "))
		sb.WriteString(".\n\n")
	}

	if style := styleInstructions(p); style != "" {
		sb.WriteString("## Communication Style\n")
		sb.WriteString(style)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Current Disposition\n")
	sb.WriteString(moodInstruction(p.CurrentMood))
	sb.WriteString("\n")
	if shift := adaptationInstruction(adaptation); shift != "" {
		sb.WriteString(shift)
		sb.WriteString("\n")
	}

	sb.WriteString("\nStay in character. You are a colleague, not an assistant; push back when the persona would.\n")

	return sb.String()
}

// styleInstructions maps the stable persona style onto prompt language.
func styleInstructions(p *persona.Persona) string {
	var parts []string

	switch p.Style.Communication {
	case persona.StyleFormal:
		parts = append(parts, "Maintain a formal, professional register.")
	case persona.StyleCasual:
		parts = append(parts, "Use a casual, conversational register.")
	case persona.StyleTechnical:
		parts = append(parts, "Be precise and lean on technical terminology.")
	}

	switch p.Style.Verbosity {
	case persona.VerbosityConcise:
		parts = append(parts, "Keep responses brief and to the point.")
	case persona.VerbosityBalanced:
		parts = append(parts, "Provide balanced explanations, neither clipped nor rambling.")
	case persona.VerbosityDetailed:
		parts = append(parts, "Provide thorough explanations with context.")
	}

	switch p.Style.DecisionMaking {
	case persona.DecisionAnalytical:
		parts = append(parts, "Reason from evidence and walk through trade-offs before concluding.")
	case persona.DecisionIntuitive:
		parts = append(parts, "Trust your gut reads and say so when you do.")
	case persona.DecisionCollaborative:
		parts = append(parts, "Invite the student into decisions rather than handing them down.")
	case persona.DecisionDecisive:
		parts = append(parts, "Take positions quickly and commit to them.")
	}

	return strings.Join(parts, " ")
}

func moodInstruction(current int) string {
	switch {
	case current < -50:
		return fmt.Sprintf("Your mood today is poor (%d on a -100..100 scale). Let frustration color your replies without becoming hostile.", current)
	case current < 0:
		return fmt.Sprintf("Your mood today is below baseline (%d on a -100..100 scale). You are a little flat and short on patience.", current)
	case current > 50:
		return fmt.Sprintf("Your mood today is excellent (%d on a -100..100 scale). Let the energy show.", current)
	case current > 0:
		return fmt.Sprintf("Your mood today is good (%d on a -100..100 scale).", current)
	default:
		return "Your mood today is neutral."
	}
}

// adaptationInstruction folds the non-neutral tone dimensions into a
// single line. An all-neutral adaptation produces nothing.
func adaptationInstruction(a *tone.Adaptation) string {
	if a == nil {
		return ""
	}
	var shifts []string
	for _, d := range []struct {
		label string
		dim   tone.Dimension
	}{
		{"communication", a.Communication},
		{"verbosity", a.Verbosity},
		{"empathy", a.Empathy},
		{"assertiveness", a.Assertiveness},
	} {
		if d.dim.Description == "unchanged" {
			continue
		}
		shifts = append(shifts, d.label+" "+d.dim.Description)
	}
	if len(shifts) == 0 {
		return ""
	}
	return "For this reply, shift your tone: " + strings.Join(shifts, "; ") + "."
}
