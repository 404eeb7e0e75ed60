package llm

import "fmt"

// ImpactPrompt asks the model to rate how poignant a memory is for an agent,
// on a 1 to 10 scale. kind is "event", "thought" or "chat"; identity is the
// agent's standing description and may be empty.
func ImpactPrompt(kind, agent, identity, description string) string {
	var subject, low, high string
	switch kind {
	case "chat":
		subject = "conversation"
		low = "a routine morning greeting"
		high = "a conversation about a breakup, a fight"
	case "thought":
		subject = "thought"
		low = "I need to do the dishes"
		high = "I wish to become a professor"
	default:
		subject = "event"
		low = "brushing teeth, making bed"
		high = "a break up, college acceptance"
	}

	if identity == "" {
		identity = agent + " has no further description."
	}

	return fmt.Sprintf(`Here is a brief description of %[1]s.
%[2]s

On the scale of 1 to 10, where 1 is purely mundane (e.g., %[3]s) and 10 is extremely poignant (e.g., %[4]s), rate the likely poignancy of the following %[5]s for %[1]s.

%[5]s: %[6]s

Rules:
- Answer with ONE integer between 1 and 10
- Return ONLY the number, no other text

Rating:`, agent, identity, low, high, subject, description)
}
