// Package redflag runs static sanity checks against generated content
// before it is written to disk (spec §4.6).
package redflag

import (
	"fmt"
	"strings"

	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("engine:redflag")

// MaxRetries is the bounded retry budget before ErrRedFlagPersisted fires
// (spec §4.6, §7).
const MaxRetries = 2

const maxOutputLen = 50000

// Check runs the static red-flag checks over generated content for the
// given primary language, returning every flag that fired.
func Check(content, primaryLanguage string) []string {
	var flags []string

	if primaryLanguage == "python" && strings.Contains(content, "npm install") {
		flags = append(flags, "python project content contains 'npm install'")
	}
	if primaryLanguage == "rust" && strings.Contains(content, "pip install") {
		flags = append(flags, "rust project content contains 'pip install'")
	}
	if len(content) > maxOutputLen {
		flags = append(flags, "output too large")
	}

	if len(flags) > 0 && log.Enabled() {
		log.Printf("red flags fired: %v", flags)
	}
	return flags
}

// Feedback renders the flags into the regeneration feedback string fed
// back to the model (spec §4.6).
func Feedback(flags []string) string {
	return fmt.Sprintf("CRITICAL SYSTEM WARNING - RED FLAGS DETECTED: %s", strings.Join(flags, "; "))
}
