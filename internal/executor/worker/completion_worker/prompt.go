package completion_worker

import (
	"fmt"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

// ErrorSentinel prefixes a completion that reports a failure of the program itself.
const ErrorSentinel = "ERROR:"

const noInputMarker = "(no input)"

func systemPrompt(lang model.LanguageSpec) string {
	return fmt.Sprintf(
		"You simulate running %s programs. Reply with exactly what the program would print to the terminal "+
			"for the given standard input and nothing else: no explanations, no commentary, no markdown. "+
			"If the program fails to compile or crashes, reply with %q followed by the error message.",
		lang.DisplayName, ErrorSentinel)
}

func userPrompt(code string, lang model.LanguageSpec, stdin string) string {
	if stdin == "" {
		stdin = noInputMarker
	}
	return fmt.Sprintf(
		"Run this %s program:\n\n```%s\n%s\n```\n\nStandard input:\n%s\n\nReply with the raw output only:",
		lang.DisplayName, lang.ID, code, stdin)
}
