package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var templateRe = regexp.MustCompile(`\$\{([a-zA-Z0-9_. ]+)\}`)

// Expand substitutes ${arch}, ${platform} and ${env.NAME} variables in a
// configured value. Unknown variables and unset environment variables are
// errors; a value without templates passes through untouched.
func Expand(value string, e Environment) (string, error) {
	var expandErr error
	out := templateRe.ReplaceAllStringFunc(value, func(match string) string {
		if expandErr != nil {
			return match
		}
		name := strings.TrimSpace(templateRe.FindStringSubmatch(match)[1])
		switch {
		case name == "arch":
			return e.Arch.Node()
		case name == "platform":
			return e.Platform.Node()
		case strings.HasPrefix(name, "env."):
			v, ok := os.LookupEnv(strings.TrimPrefix(name, "env."))
			if !ok {
				expandErr = fmt.Errorf("environment variable not set: %q", strings.TrimPrefix(name, "env."))
				return match
			}
			return v
		default:
			expandErr = fmt.Errorf("unknown template variable: %q", name)
			return match
		}
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}
