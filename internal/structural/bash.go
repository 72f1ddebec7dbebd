package structural

import (
	"regexp"
	"strings"
)

// fallbackSecretPatterns are applied when the caller passes none.
var fallbackSecretPatterns = []string{
	`--token=\S+`, `--password=\S+`, `API_KEY=\S+`,
	`Bearer\s+\S+`, `--secret=\S+`,
}

var gitMessageRe = regexp.MustCompile(`-m\s+["']([^"']+)["']|-m\s+(\S+)`)

// ExtractBash parses a Bash command into its structural shape. The command
// is sanitized against the secret patterns before anything is recorded.
func ExtractBash(command string, secretPatterns []string) *Payload {
	sanitized := SanitizeCommand(command, secretPatterns)

	p := &Payload{
		Operation:   OpCommand,
		FullCommand: sanitized,
	}

	parts := strings.Fields(sanitized)
	if len(parts) == 0 {
		return p
	}
	p.Program = parts[0]

	if len(parts) > 1 && !strings.HasPrefix(parts[1], "-") {
		p.Subcommand = parts[1]
	}

	for _, arg := range parts[1:] {
		if strings.HasPrefix(arg, "-") && !strings.Contains(arg, "=") {
			p.Flags = append(p.Flags, arg)
		}
	}

	if len(parts) > 2 {
		for _, arg := range parts[2:] {
			if !strings.HasPrefix(arg, "-") {
				p.Targets = append(p.Targets, arg)
			}
			if len(p.Targets) == 5 {
				break
			}
		}
	}

	switch p.Program {
	case "git":
		enrichGit(p, sanitized)
	case "npm", "npx", "yarn", "pnpm", "bun":
		enrichNode(p, parts)
	case "pytest", "python", "dotnet", "go":
		enrichTest(p, parts)
	}

	return p
}

func enrichGit(p *Payload, command string) {
	if p.Subcommand != "commit" {
		return
	}
	if m := gitMessageRe.FindStringSubmatch(command); m != nil {
		if m[1] != "" {
			p.GitMessage = m[1]
		} else {
			p.GitMessage = m[2]
		}
	}
}

func enrichNode(p *Payload, parts []string) {
	if len(parts) < 2 {
		return
	}
	switch parts[1] {
	case "test", "run":
		p.TestScope = strings.Join(parts[1:min(4, len(parts))], " ")
	case "build":
		p.BuildTarget = strings.Join(parts[1:min(4, len(parts))], " ")
	}
}

func enrichTest(p *Payload, parts []string) {
	switch p.Program {
	case "pytest":
		for _, arg := range parts[1:] {
			if !strings.HasPrefix(arg, "-") {
				p.TestScope = arg
				break
			}
		}
	case "dotnet", "go":
		if len(parts) > 1 && parts[1] == "test" {
			p.TestScope = strings.Join(parts[1:min(3, len(parts))], " ")
		}
	}
}

// SanitizeCommand strips secret-looking tokens from a command string.
// Invalid patterns are skipped rather than failing the capture.
func SanitizeCommand(command string, secretPatterns []string) string {
	if command == "" {
		return command
	}
	if len(secretPatterns) == 0 {
		secretPatterns = fallbackSecretPatterns
	}

	sanitized := command
	for _, pattern := range secretPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		sanitized = re.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
