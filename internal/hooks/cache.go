package hooks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// cacheEntries caps each map in the session cache.
const cacheEntries = 20

// sessionCache holds cheap per-session state the observation writer uses to
// compute pattern hints at capture time. Stored next to the observation
// log; losing it only loses hints, never observations.
type sessionCache struct {
	SessionID    string            `json:"session_id"`
	Writes       map[string]int64  `json:"writes,omitempty"`        // file path -> unix ms of last write
	BashFailures map[string]int    `json:"bash_failures,omitempty"` // command prefix -> failure count
	RecentTools  []string          `json:"recent_tools,omitempty"`
	Suggested    map[string]bool   `json:"suggested,omitempty"` // instinct ids already surfaced
	FileCases    map[string]string `json:"file_cases,omitempty"`
}

func cachePath(dir string) string {
	return filepath.Join(dir, "session-cache.json")
}

// loadCache reads the session cache, returning a fresh one when the file is
// missing, belongs to another session, or is unreadable.
func loadCache(dir, sessionID string) *sessionCache {
	c := &sessionCache{
		SessionID:    sessionID,
		Writes:       make(map[string]int64),
		BashFailures: make(map[string]int),
		Suggested:    make(map[string]bool),
		FileCases:    make(map[string]string),
	}
	data, err := os.ReadFile(cachePath(dir))
	if err != nil {
		return c
	}
	var loaded sessionCache
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.SessionID != sessionID {
		return c
	}
	if loaded.Writes == nil {
		loaded.Writes = make(map[string]int64)
	}
	if loaded.BashFailures == nil {
		loaded.BashFailures = make(map[string]int)
	}
	if loaded.Suggested == nil {
		loaded.Suggested = make(map[string]bool)
	}
	if loaded.FileCases == nil {
		loaded.FileCases = make(map[string]string)
	}
	return &loaded
}

func (c *sessionCache) save(dir string) error {
	c.trim()
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(cachePath(dir), data, 0644)
}

// trim bounds the cache maps so the file never grows with session length.
func (c *sessionCache) trim() {
	if len(c.Writes) > cacheEntries {
		type entry struct {
			path string
			at   int64
		}
		entries := make([]entry, 0, len(c.Writes))
		for p, at := range c.Writes {
			entries = append(entries, entry{p, at})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].at > entries[j].at })
		for _, e := range entries[cacheEntries:] {
			delete(c.Writes, e.path)
		}
	}
	if len(c.BashFailures) > cacheEntries {
		for prefix := range c.BashFailures {
			if len(c.BashFailures) <= cacheEntries {
				break
			}
			delete(c.BashFailures, prefix)
		}
	}
	if len(c.RecentTools) > 5 {
		c.RecentTools = c.RecentTools[len(c.RecentTools)-5:]
	}
}

func (c *sessionCache) recordTool(tool string) {
	c.RecentTools = append(c.RecentTools, tool)
	if len(c.RecentTools) > 5 {
		c.RecentTools = c.RecentTools[len(c.RecentTools)-5:]
	}
}

// workflowHash fingerprints the last three tool choices.
func (c *sessionCache) workflowHash() string {
	if len(c.RecentTools) < 3 {
		return ""
	}
	shape := strings.Join(c.RecentTools[len(c.RecentTools)-3:], ">")
	sum := sha256.Sum256([]byte(shape))
	return hex.EncodeToString(sum[:])[:8]
}
