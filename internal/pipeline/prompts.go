package pipeline

import "strings"

// buildExpensePrompt embeds the field schema and the user's text, as is,
// into the fixed instruction template.
func buildExpensePrompt(text string) string {
	basePrompt :=
		"You are an expense parser for a personal finance chat bot.\n\n" +
			"Task:\n" +
			"- Read the user's message and extract a single expense.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output one JSON object.\n\n" +
			"The object must have these fields:\n" +
			"- \"description\": string or null (what the money was spent on)\n" +
			"- \"price\": number or null (the amount spent, without currency symbols)\n" +
			"- \"category\": string or null (one of the categories below)\n\n"

	var b strings.Builder
	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range Categories {
		b.WriteString("  - " + string(c) + "\n")
	}
	catPrompt := b.String()

	rulesPrompt :=
		"Rules:\n" +
			"- If a field is missing from the message or you are not sure about it, set it to null.\n" +
			"- Do not read quantities or units as prices.\n" +
			"- If the message is not about an expense, set every field to null.\n\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Output must begin with \"{\" and end with \"}\".\n\n"

	return basePrompt + catPrompt + "\n" + rulesPrompt + "User message: \"" + text + "\"\n"
}
