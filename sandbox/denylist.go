package sandbox

import (
	"fmt"
	"regexp"
)

// denylistPatterns match source-text shapes that would indicate an
// attempt to escape the instruction set entirely (someone embedding raw
// script text in the Code field rather than a valid instruction program,
// or probing for a runtime host object the evaluator doesn't expose).
// This scan is redundant with the evaluator's closed instruction set — it
// exists as a second, independent layer per S8's three concrete probes.
var denylistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\.`),
	regexp.MustCompile(`(?i)globalThis`),
	regexp.MustCompile(`(?i)fetch\s*\(`),
	regexp.MustCompile(`(?i)\bhttp\.`),
	regexp.MustCompile(`(?i)\bos\.`),
	regexp.MustCompile(`(?i)\bexec\.`),
	regexp.MustCompile(`^\s*/`), // absolute path as the first non-whitespace character
}

// Scan rejects source that matches a denylisted pattern before it is ever
// handed to ParseProgram. A code_exec task whose source trips this check
// never reaches the evaluator at all.
func Scan(source string) error {
	for _, p := range denylistPatterns {
		if p.MatchString(source) {
			return fmt.Errorf("[sandbox:Scan] source matches denylisted pattern %q", p.String())
		}
	}
	return nil
}
