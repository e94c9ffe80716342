package prompts

import "fmt"

// GetScriptSystemPrompt returns the fixed instruction demanding a JSON-only answer.
func GetScriptSystemPrompt() string {
	return `**STRICT FORMAT: RETURN ONLY JSON. DO NOT THINK OR EXPLAIN.**
` + "```json" + `
{
  "files": [
    {"name": "script.ext", "content": "# Script content here"}
  ]
}
` + "```" + `
**FAIL IF RESPONSE CONTAINS ANYTHING ELSE.**`
}

// GetScriptUserPrompt embeds the stack and the description into the user turn.
func GetScriptUserPrompt(stack, description string) string {
	return fmt.Sprintf(
		"Generate a minimal %s script for '%s'. "+
			"Only return JSON inside ```json ... ``` format. "+
			"**STRICTLY NO HTML. STRICTLY NO EXPLANATION.**",
		stack, description,
	)
}
