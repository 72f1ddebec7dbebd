package engine

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/instinct/internal/store"
)

// ExportDoc is the YAML document shape shared by export and import.
type ExportDoc struct {
	Version    int                `yaml:"version"`
	ExportedAt string             `yaml:"exported_at"`
	Instincts  []ExportedInstinct `yaml:"instincts"`
}

// ExportedInstinct is one instinct in portable form.
type ExportedInstinct struct {
	ID         string  `yaml:"id"`
	Domain     string  `yaml:"domain"`
	Category   string  `yaml:"category"`
	Trigger    string  `yaml:"trigger"`
	Action     string  `yaml:"action"`
	Confidence float64 `yaml:"confidence"`
}

// ExportFilter selects which instincts are exported.
type ExportFilter struct {
	Domain        string
	MinConfidence float64
}

// Export writes active instincts matching the filter as a YAML document.
func (e *Engine) Export(w io.Writer, filter ExportFilter) (int, error) {
	instincts, err := store.ListInstincts(e.DB, store.StatusActive)
	if err != nil {
		return 0, err
	}

	doc := ExportDoc{
		Version:    1,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
	}
	for _, in := range instincts {
		if filter.Domain != "" && in.Domain != filter.Domain {
			continue
		}
		if in.Confidence < filter.MinConfidence {
			continue
		}
		doc.Instincts = append(doc.Instincts, ExportedInstinct{
			ID:         in.ID,
			Domain:     in.Domain,
			Category:   in.Category,
			Trigger:    in.Trigger,
			Action:     in.Action,
			Confidence: in.Confidence,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("finish export: %w", err)
	}
	return len(doc.Instincts), nil
}

// Import reads a YAML export document and merges its instincts into the
// store with source "imported". Near-duplicates of existing instincts are
// absorbed by the dedup rules instead of creating parallel entries. The
// whole import commits in one transaction. Returns created and merged
// counts.
func (e *Engine) Import(r io.Reader) (created, merged int, err error) {
	var doc ExportDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, 0, fmt.Errorf("decode import: %w", err)
	}
	if doc.Version != 1 {
		return 0, 0, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	now := e.now()
	err = e.DB.WithTx(func(q store.Querier) error {
		instincts, err := store.ListInstincts(q, "")
		if err != nil {
			return err
		}
		existing := make(map[string]bool, len(instincts))
		for _, in := range instincts {
			existing[in.ID] = true
		}

		imported := make(map[string]bool)
		for _, exp := range doc.Instincts {
			if exp.Trigger == "" || exp.Action == "" || exp.Domain == "" {
				continue
			}
			id := exp.ID
			if id == "" {
				id = Slug(exp.Domain, exp.Trigger)
			}
			if existing[id] {
				merged++
				continue
			}
			in := &store.Instinct{
				ID:               id,
				Domain:           exp.Domain,
				Category:         exp.Category,
				Trigger:          exp.Trigger,
				Action:           exp.Action,
				Confidence:       clamp(exp.Confidence, 0, e.Cfg.Instincts.MaxConfidence),
				Source:           store.SourceImported,
				Status:           store.StatusActive,
				CreatedAt:        now.UnixMilli(),
				LastReinforcedAt: now.UnixMilli(),
			}
			instincts = append(instincts, in)
			existing[id] = true
			imported[id] = true
		}

		survivors, absorbed := RulesFromConfig(e.Cfg.Instincts).MergeDuplicates(instincts, e.Cfg.Dedup.SimilarityThreshold)
		for _, id := range absorbed {
			if imported[id] {
				merged++
				continue
			}
			// A pre-existing record absorbed by an import: remove the row
			// its survivor replaces.
			if err := store.DeleteInstinct(q, id); err != nil {
				return err
			}
		}
		for _, in := range survivors {
			if err := store.SaveInstinct(q, in); err != nil {
				return err
			}
			if imported[in.ID] {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("commit import: %w", err)
	}
	return created, merged, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
