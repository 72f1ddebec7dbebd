package hooks

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/structural"
)

// correctionWindowSeconds bounds how long after a Write an Edit to the same
// file still counts as a correction signal.
const correctionWindowSeconds = 300

func handleTool(cfg config.Config, olog *obslog.Log, input *HookInput) error {
	if input.ShouldSkipTool() {
		return nil
	}
	tool := normalizeTool(input.ToolName)
	if tool == "" || excludedTool(cfg, input.ToolName) {
		return nil
	}

	now := time.Now()
	cache := loadCache(olog.Dir, input.SessionID)
	obs := obslog.Observation{
		Timestamp: now,
		SessionID: input.SessionID,
		Tool:      tool,
		Output:    parseOutcome(input.ToolResponse),
	}

	var payload *structural.Payload
	switch tool {
	case obslog.ToolWrite:
		var in writeInput
		if err := json.Unmarshal(input.ToolInput, &in); err != nil {
			return fmt.Errorf("parse write input: %w", err)
		}
		if excludedPath(cfg, in.FilePath) {
			return nil
		}
		obs.Input.FilePath = in.FilePath
		obs.Input.ContentLength = len(in.Content)
		payload = summarizeWrite(cfg, &in, cache, &obs, now)
		cache.Writes[in.FilePath] = now.UnixMilli()

	case obslog.ToolEdit:
		var in editInput
		if err := json.Unmarshal(input.ToolInput, &in); err != nil {
			return fmt.Errorf("parse edit input: %w", err)
		}
		if excludedPath(cfg, in.FilePath) {
			return nil
		}
		obs.Input.FilePath = in.FilePath
		obs.Input.ContentLength = len(in.NewString)
		obs.Input.HasOldString = in.OldString != ""
		obs.Input.ReplaceAll = in.ReplaceAll
		payload = summarizeEdit(&in, cache, &obs, now)

	case obslog.ToolBash:
		var in bashInput
		if err := json.Unmarshal(input.ToolInput, &in); err != nil {
			return fmt.Errorf("parse bash input: %w", err)
		}
		payload = summarizeBash(cfg, in.Command, cache, &obs)

	case obslog.ToolRead:
		var in writeInput
		if err := json.Unmarshal(input.ToolInput, &in); err == nil {
			if excludedPath(cfg, in.FilePath) {
				return nil
			}
			obs.Input.FilePath = in.FilePath
		}

	case obslog.ToolSkill:
		var in skillInput
		if err := json.Unmarshal(input.ToolInput, &in); err != nil {
			return fmt.Errorf("parse skill input: %w", err)
		}
		name := in.Skill
		if name == "" {
			name = in.Name
		}
		obs.Input.SkillName = name
	}

	cache.recordTool(tool)
	if hash := cache.workflowHash(); hash != "" {
		hints := ensureHints(&obs)
		hints.WorkflowHash = hash
	}

	maxBytes := int64(cfg.Observer.MaxObservationsMB) * 1024 * 1024
	if err := olog.Append(obslog.SourceObservations, &obs, maxBytes); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	if payload != nil {
		structObs := obs
		structObs.Struct = payload
		structObs.Patterns = nil
		if err := olog.Append(obslog.SourceStructural, &structObs, maxBytes); err != nil {
			return fmt.Errorf("append structural observation: %w", err)
		}
	}
	return cache.save(olog.Dir)
}

func summarizeWrite(cfg config.Config, in *writeInput, cache *sessionCache, obs *obslog.Observation, now time.Time) *structural.Payload {
	style := caseStyleOf(filepath.Base(in.FilePath))
	if style != "" {
		hints := ensureHints(obs)
		hints.Naming = &obslog.NamingHint{Case: style, SuffixPattern: suffixOf(in.FilePath)}
		cache.FileCases[in.FilePath] = style
	}

	lang := structural.LanguageFamily(in.FilePath)
	if lang == "" || len(in.Content) > cfg.Privacy.MaxContentBytes {
		return nil
	}
	elements := structural.Extract(in.Content, lang)
	if elements == nil {
		return nil
	}
	return &structural.Payload{
		Operation: structural.OpCreate,
		FilePath:  in.FilePath,
		Language:  lang,
		Elements:  elements,
	}
}

func summarizeEdit(in *editInput, cache *sessionCache, obs *obslog.Observation, now time.Time) *structural.Payload {
	isCorrection := false
	if wroteAt, ok := cache.Writes[in.FilePath]; ok {
		elapsed := int(now.Sub(time.UnixMilli(wroteAt)).Seconds())
		if elapsed >= 0 && elapsed <= correctionWindowSeconds {
			isCorrection = true
			obs.Input.IsCorrection = true
			hints := ensureHints(obs)
			hints.Correction = &obslog.CorrectionHint{
				TargetFile:        in.FilePath,
				SecondsSinceWrite: elapsed,
			}
		}
	}

	lang := structural.LanguageFamily(in.FilePath)
	if lang == "" || in.OldString == "" {
		return nil
	}
	payload := structural.Diff(in.OldString, in.NewString, lang)
	if payload == nil {
		return nil
	}
	payload.FilePath = in.FilePath
	payload.IsCorrection = isCorrection
	return payload
}

func summarizeBash(cfg config.Config, command string, cache *sessionCache, obs *obslog.Observation) *structural.Payload {
	sanitized := structural.SanitizeCommand(command, cfg.Privacy.SecretCommandPatterns)
	preview := sanitized
	if limit := cfg.Privacy.MaxCommandPreviewLength; limit > 0 && len(preview) > limit {
		preview = preview[:limit]
	}
	obs.Input.CommandPreview = preview
	obs.Input.CommandLength = len(command)

	payload := structural.ExtractBash(command, cfg.Privacy.SecretCommandPatterns)

	prefix := commandPrefix(sanitized)
	if prefix != "" {
		if obs.Output.Success {
			if cache.BashFailures[prefix] > 0 {
				hints := ensureHints(obs)
				hints.ErrorResolution = &obslog.ErrorResolutionHint{CommandPrefix: prefix, Resolved: true}
				delete(cache.BashFailures, prefix)
			}
		} else {
			cache.BashFailures[prefix]++
		}
	}

	if pref := toolPreferenceOf(sanitized); pref != nil {
		hints := ensureHints(obs)
		hints.ToolPreference = pref
	}
	return payload
}

// toolPreferenceOf flags bash commands that duplicate a dedicated tool.
func toolPreferenceOf(command string) *obslog.ToolPreferenceHint {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "rg", "grep", "ag":
		return &obslog.ToolPreferenceHint{Category: "content-search", Chose: fields[0]}
	case "cat", "head", "tail":
		if !strings.Contains(command, ">") {
			return &obslog.ToolPreferenceHint{Category: "file-read", Chose: fields[0]}
		}
	case "echo":
		if strings.Contains(command, ">") {
			return &obslog.ToolPreferenceHint{Category: "file-write", Chose: "bash-redirect"}
		}
	}
	return nil
}

func commandPrefix(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) == 1 {
		return fields[0]
	}
	if strings.HasPrefix(fields[1], "-") {
		return fields[0]
	}
	return fields[0] + " " + fields[1]
}

func parseOutcome(raw json.RawMessage) obslog.OutputSummary {
	out := obslog.OutputSummary{Success: true}
	if len(raw) == 0 {
		return out
	}
	var resp toolResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return out
	}
	if resp.Success != nil {
		out.Success = *resp.Success
	}
	if resp.IsError || resp.Error != "" {
		out.Success = false
		out.ErrorType = errorTypeOf(resp.Error)
	}
	if resp.ExitCode != 0 {
		out.Success = false
		out.ExitCode = resp.ExitCode
	}
	return out
}

func errorTypeOf(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission"):
		return "permission"
	case strings.Contains(lower, "not found") || strings.Contains(lower, "no such file"):
		return "not-found"
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case msg == "":
		return ""
	}
	return "error"
}

func ensureHints(obs *obslog.Observation) *obslog.PatternHints {
	if obs.Patterns == nil {
		obs.Patterns = &obslog.PatternHints{}
	}
	return obs.Patterns
}

func excludedTool(cfg config.Config, name string) bool {
	for _, t := range cfg.Observer.ExcludeTools {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// excludedPath filters secret files and user-configured path patterns.
func excludedPath(cfg config.Config, path string) bool {
	if path == "" {
		return false
	}
	base := filepath.Base(path)
	for _, pat := range cfg.Privacy.ExcludeSecretFiles {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	for _, pat := range cfg.Observer.ExcludePathPatterns {
		if ok, _ := filepath.Match(pat, path); ok {
			return true
		}
		if strings.Contains(path, pat) {
			return true
		}
	}
	return false
}

func caseStyleOf(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" {
		return ""
	}
	switch {
	case strings.Contains(name, "-"):
		return "kebab"
	case strings.Contains(name, "_"):
		return "snake"
	case name[0] >= 'A' && name[0] <= 'Z':
		return "pascal"
	case strings.ToLower(name) != name:
		return "camel"
	}
	return "lower"
}

// suffixOf captures compound suffixes like ".service.ts" or "_test.go".
func suffixOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if i := strings.LastIndexAny(stem, "._-"); i > 0 {
		return stem[i:] + ext
	}
	return ext
}
