package source

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"claudehist/internal/store"
)

// PlansExtractor loads plan documents from the plans/ directory.
// Plans are markdown; the agent id comes from a -agent-{uuid} filename
// suffix and the title from the first level-one heading. Rows are keyed
// by filename and replaced on reprocess, so edits supersede rather than
// duplicate.
type PlansExtractor struct {
	base
}

func (e *PlansExtractor) Name() string { return "plans" }

func (e *PlansExtractor) Extract(dryRun bool) Result {
	started := time.Now()
	var res Result
	defer e.finish(e.Name(), started, &res)

	plansDir := filepath.Join(e.sourceDir, "plans")
	files, err := filepath.Glob(filepath.Join(plansDir, "*.md"))
	if err != nil || len(files) == 0 {
		if err != nil {
			res.ErrorsCount++
		} else {
			slog.Info("plans directory empty or missing", "path", plansDir)
		}
		return res
	}
	sort.Strings(files)

	slog.Info("found plan files", "count", len(files))

	for _, path := range files {
		due, err := e.tracker.ShouldProcess(e.Name(), path)
		if err != nil {
			res.ErrorsCount++
			continue
		}
		if !due {
			continue
		}

		if err := e.processPlan(path, dryRun); err != nil {
			slog.Error("processing plan", "file", filepath.Base(path), "error", err)
			res.ErrorsCount++
			continue
		}
		res.RecordsInserted++
		res.FilesProcessed++

		if !dryRun {
			if err := e.tracker.MarkProcessed(e.Name(), path); err != nil {
				slog.Error("marking file processed", "file", path, "error", err)
				res.ErrorsCount++
			}
		}
	}

	return res
}

// planAgentRef extracts the session uuid from a -agent-{uuid}.md
// filename suffix, "" when absent.
func planAgentRef(filename string) string {
	name := strings.TrimSuffix(filename, ".md")
	if parts := strings.SplitN(name, "-agent-", 2); len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// planTitle returns the text of the first "# " heading, "" when none.
func planTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

func (e *PlansExtractor) processPlan(path string, dryRun bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(raw)

	ref := planAgentRef(filepath.Base(path))
	title := planTitle(content)

	// Same graceful degradation as todos: the referenced agent may not
	// have been extracted yet.
	var agentID any
	if ref != "" && !dryRun {
		row, err := e.db.QueryOne("SELECT id FROM agents WHERE session_id = ?", ref)
		if err != nil {
			return err
		}
		if row != nil {
			agentID = row.String("id")
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	modifiedAt := info.ModTime().Format(time.RFC3339)

	if dryRun {
		return nil
	}

	return e.db.Transaction(func(tx store.Tx) error {
		return tx.Exec(`
			INSERT OR REPLACE INTO plans
			(filename, agent_id, title, content, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			filepath.Base(path), agentID, nullable(title), content,
			modifiedAt, modifiedAt,
		)
	})
}
