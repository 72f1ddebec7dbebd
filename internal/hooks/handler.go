package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/engine"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/store"
)

// Handle reads HookInput from the given reader, dispatches to the
// appropriate handler based on the event argument, and writes output to
// stdout. Hook handlers never propagate a failing exit code to the host.
func Handle(event string, stdin io.Reader) {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		ExitError(fmt.Errorf("decode stdin: %w", err))
		return
	}

	cfg, err := config.Load("")
	if err != nil {
		ExitError(err)
		return
	}

	projectDir := input.CWD
	if projectDir == "" {
		projectDir, _ = os.Getwd()
	}
	olog := obslog.Open(obslog.DefaultDir(projectDir))

	switch event {
	case "tool":
		if err := handleTool(cfg, olog, &input); err != nil {
			ExitError(err)
			return
		}
		if normalizeTool(input.ToolName) == obslog.ToolSkill {
			withDB(cfg, func(db *store.DB) error {
				return handleSkillUse(engine.New(db, olog, cfg), &input)
			})
		}
	case "suggest":
		var out *suggestOutput
		err := withDB(cfg, func(db *store.DB) error {
			var err error
			out, err = handleSuggest(cfg, db, olog, &input)
			return err
		})
		if err != nil {
			ExitError(err)
			return
		}
		if out != nil {
			json.NewEncoder(os.Stdout).Encode(out)
		}
	case "skill":
		err := withDB(cfg, func(db *store.DB) error {
			return handleSkillUse(engine.New(db, olog, cfg), &input)
		})
		if err != nil {
			ExitError(err)
			return
		}
	case "start":
		// A fresh cache keeps a recycled session id from inheriting the
		// previous session's hints.
		fresh := &sessionCache{
			SessionID:    input.SessionID,
			Writes:       make(map[string]int64),
			BashFailures: make(map[string]int),
			Suggested:    make(map[string]bool),
			FileCases:    make(map[string]string),
		}
		if err := fresh.save(olog.Dir); err != nil {
			ExitError(err)
			return
		}
	case "end":
		if err := os.Remove(cachePath(olog.Dir)); err != nil && !os.IsNotExist(err) {
			ExitError(err)
			return
		}
	default:
		ExitError(fmt.Errorf("unknown hook event: %s", event))
	}
}

func withDB(cfg config.Config, fn func(db *store.DB) error) error {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return err
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
