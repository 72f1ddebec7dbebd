package structural

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Language families. Files outside these families carry no structural payload.
var langExtensions = map[string]string{
	".ts": "ts", ".tsx": "ts", ".js": "ts", ".jsx": "ts", ".mjs": "ts",
	".py": "py",
	".cs": "cs",
	".go": "go",
}

// LanguageFamily maps a file path to its language family, or "" for
// non-code files.
func LanguageFamily(filePath string) string {
	if filePath == "" {
		return ""
	}
	return langExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// TypeScript/JavaScript patterns.
var (
	tsImportRe = regexp.MustCompile(`(?m)^import\s+(?:(?:type\s+)?(?:\{([^}]+)\}|(\w+))(?:\s*,\s*(?:\{([^}]+)\}|(\w+)))?\s+from\s+["']([^"']+)["']|["']([^"']+)["'])`)
	tsFuncRe   = regexp.MustCompile(`(?m)(?:export\s+)?(async\s+)?function\s+(\w+)\s*(?:<[^>]+>)?\s*\(([^)]*)\)(?:\s*:\s*([^\s{]+))?`)
	tsArrowRe  = regexp.MustCompile(`(?m)(?:export\s+)?(?:const|let|var)\s+(\w+)(?:\s*:\s*[^=]+?)?\s*=\s*(async\s+)?(?:\([^)]*\)|\w+)\s*(?::\s*([^\s=>{]+))?\s*=>`)
	tsClassRe  = regexp.MustCompile(`(?m)(?:export\s+)?(?:abstract\s+)?class\s+(\w+)(?:\s+extends\s+(\w+))?(?:\s+implements\s+([\w,\s]+))?`)
	tsIfaceRe  = regexp.MustCompile(`(?m)(?:export\s+)?interface\s+(\w+)(?:\s+extends\s+([\w,\s]+))?`)
	tsDecorRe  = regexp.MustCompile(`@(\w+)\s*(?:\([^)]*\))?\s*\n\s*(?:export\s+)?(?:class|function)\s+(\w+)`)
	tsExportRe = regexp.MustCompile(`(?m)^export\s+(?:default\s+)?(?:class|function|const|let|var|interface|type|enum|abstract)\s+(\w+)`)
)

// Python patterns.
var (
	pyImportRe = regexp.MustCompile(`(?m)^(?:from\s+([\w.]+)\s+import\s+([^#\n]+)|import\s+(\w+(?:\s*,\s*\w+)*))\s*$`)
	pyFuncRe   = regexp.MustCompile(`(?m)^\s*(async\s+)?def\s+(\w+)\s*\(([^)]*)\)(?:\s*->\s*([^\s:]+))?`)
	pyClassRe  = regexp.MustCompile(`(?m)^class\s+(\w+)\s*(?:\(([^)]*)\))?`)
	pyDecorRe  = regexp.MustCompile(`@(\w[\w.]*)\s*(?:\([^)]*\))?\s*\n\s*(?:class|(?:async\s+)?def)\s+(\w+)`)
)

// C# patterns.
var (
	csUsingRe  = regexp.MustCompile(`(?m)^using\s+([\w.]+)\s*;`)
	csClassRe  = regexp.MustCompile(`(?:public|private|internal|protected)?\s*(?:static\s+)?(?:abstract\s+|sealed\s+)?class\s+(\w+)(?:\s*<[^>]+>)?(?:\s*:\s*([\w,\s.<>]+))?`)
	csMethodRe = regexp.MustCompile(`(?:public|private|internal|protected)\s+(?:static\s+)?(async\s+)?(?:virtual\s+|override\s+|abstract\s+)?([\w<>\[\]?]+)\s+(\w+)\s*(?:<[^>]+>)?\s*\(([^)]*)\)`)
	csAttrRe   = regexp.MustCompile(`\[(\w+)(?:\([^)]*\))?\]\s*\n\s*(?:public|private|internal|protected)`)
)

// Go patterns.
var (
	goImportBlockRe  = regexp.MustCompile(`import\s*\(([^)]*)\)`)
	goImportSingleRe = regexp.MustCompile(`(?m)^import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportPathRe   = regexp.MustCompile(`"([^"]+)"`)
	goFuncRe         = regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s+)?(\w+)\s*\(([^)]*)\)\s*([\w*\[\]. ]+|\([^)]*\))?\s*\{`)
	goStructRe       = regexp.MustCompile(`(?m)^type\s+(\w+)\s+struct\b`)
	goIfaceRe        = regexp.MustCompile(`(?m)^type\s+(\w+)\s+interface\b`)
)

// Extract pulls structural elements from new file content. No implementation
// bodies, no values.
func Extract(content, lang string) *Elements {
	el := &Elements{
		Imports:    []Import{},
		Functions:  []Function{},
		Classes:    []Class{},
		Interfaces: []Interface{},
		Decorators: []Decorator{},
		Exports:    []string{},
	}

	switch lang {
	case "ts":
		extractTS(content, el)
	case "py":
		extractPy(content, el)
	case "cs":
		extractCS(content, el)
	case "go":
		extractGo(content, el)
	}

	el.Metrics = Metrics{
		Lines:         strings.Count(content, "\n") + 1,
		FunctionCount: len(el.Functions),
		ClassCount:    len(el.Classes),
	}
	return el
}

func countParams(params string) int {
	n := 0
	for _, p := range strings.Split(params, ",") {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func extractTS(content string, el *Elements) {
	for _, m := range tsImportRe.FindAllStringSubmatch(content, -1) {
		var names []string
		for _, g := range m[1:5] {
			names = append(names, splitNames(g)...)
		}
		module := m[5]
		if module == "" {
			module = m[6]
		}
		if module != "" {
			el.Imports = append(el.Imports, Import{Module: module, Names: names})
		}
	}

	for _, m := range tsFuncRe.FindAllStringSubmatch(content, -1) {
		el.Functions = append(el.Functions, Function{
			Name:       m[2],
			Params:     countParams(m[3]),
			ReturnType: m[4],
			IsAsync:    m[1] != "",
		})
	}
	for _, m := range tsArrowRe.FindAllStringSubmatch(content, -1) {
		el.Functions = append(el.Functions, Function{
			Name:       m[1],
			Params:     -1, // arrow params are not counted reliably
			ReturnType: m[3],
			IsAsync:    m[2] != "",
		})
	}

	for _, m := range tsClassRe.FindAllStringSubmatch(content, -1) {
		el.Classes = append(el.Classes, Class{
			Name:       m[1],
			Extends:    m[2],
			Implements: splitNames(m[3]),
		})
	}
	for _, m := range tsIfaceRe.FindAllStringSubmatch(content, -1) {
		el.Interfaces = append(el.Interfaces, Interface{Name: m[1], Extends: splitNames(m[2])})
	}
	for _, m := range tsDecorRe.FindAllStringSubmatch(content, -1) {
		el.Decorators = append(el.Decorators, Decorator{Name: m[1], Target: m[2]})
	}
	for _, m := range tsExportRe.FindAllStringSubmatch(content, -1) {
		el.Exports = append(el.Exports, m[1])
	}
}

func extractPy(content string, el *Elements) {
	for _, m := range pyImportRe.FindAllStringSubmatch(content, -1) {
		if m[1] != "" {
			el.Imports = append(el.Imports, Import{Module: m[1], Names: splitNames(m[2])})
		} else if m[3] != "" {
			for _, mod := range splitNames(m[3]) {
				el.Imports = append(el.Imports, Import{Module: mod})
			}
		}
	}
	for _, m := range pyFuncRe.FindAllStringSubmatch(content, -1) {
		el.Functions = append(el.Functions, Function{
			Name:       m[2],
			Params:     countParams(m[3]),
			ReturnType: m[4],
			IsAsync:    m[1] != "",
		})
	}
	for _, m := range pyClassRe.FindAllStringSubmatch(content, -1) {
		bases := splitNames(m[2])
		c := Class{Name: m[1]}
		if len(bases) > 0 {
			c.Extends = bases[0]
			c.Implements = bases[1:]
		}
		el.Classes = append(el.Classes, c)
	}
	for _, m := range pyDecorRe.FindAllStringSubmatch(content, -1) {
		el.Decorators = append(el.Decorators, Decorator{Name: m[1], Target: m[2]})
	}
}

func extractCS(content string, el *Elements) {
	for _, m := range csUsingRe.FindAllStringSubmatch(content, -1) {
		el.Imports = append(el.Imports, Import{Module: m[1]})
	}
	for _, m := range csMethodRe.FindAllStringSubmatch(content, -1) {
		el.Functions = append(el.Functions, Function{
			Name:       m[3],
			Params:     countParams(m[4]),
			ReturnType: m[2],
			IsAsync:    m[1] != "",
		})
	}
	for _, m := range csClassRe.FindAllStringSubmatch(content, -1) {
		if m[1] == "" {
			continue
		}
		bases := splitNames(m[2])
		c := Class{Name: m[1]}
		if len(bases) > 0 {
			c.Extends = bases[0]
			c.Implements = bases[1:]
		}
		el.Classes = append(el.Classes, c)
	}
	for _, m := range csAttrRe.FindAllStringSubmatch(content, -1) {
		el.Decorators = append(el.Decorators, Decorator{Name: m[1]})
	}
}

func extractGo(content string, el *Elements) {
	for _, block := range goImportBlockRe.FindAllStringSubmatch(content, -1) {
		for _, m := range goImportPathRe.FindAllStringSubmatch(block[1], -1) {
			el.Imports = append(el.Imports, Import{Module: m[1]})
		}
	}
	for _, m := range goImportSingleRe.FindAllStringSubmatch(content, -1) {
		el.Imports = append(el.Imports, Import{Module: m[1]})
	}
	for _, m := range goFuncRe.FindAllStringSubmatch(content, -1) {
		el.Functions = append(el.Functions, Function{
			Name:       m[1],
			Params:     countParams(m[2]),
			ReturnType: strings.TrimSpace(m[3]),
		})
	}
	for _, m := range goStructRe.FindAllStringSubmatch(content, -1) {
		el.Classes = append(el.Classes, Class{Name: m[1]})
	}
	for _, m := range goIfaceRe.FindAllStringSubmatch(content, -1) {
		el.Interfaces = append(el.Interfaces, Interface{Name: m[1]})
	}
}
