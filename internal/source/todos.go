package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"claudehist/internal/store"
)

// TodosExtractor loads todo lists from the todos/ directory.
//
// Filenames decompose as {parent_session_id}-agent-{ref_session_id}.json;
// the ref id equals the parent for main-session todos and differs for
// subagent todos. Each array element gets the synthetic id
// {parent}-{ref}-{index}. That id is stable only while the array keeps
// its order and length — reordering silently renames the same logical
// todo.
type TodosExtractor struct {
	base
}

func (e *TodosExtractor) Name() string { return "todos" }

func (e *TodosExtractor) Extract(dryRun bool) Result {
	started := time.Now()
	var res Result
	defer e.finish(e.Name(), started, &res)

	todosDir := filepath.Join(e.sourceDir, "todos")
	files, err := filepath.Glob(filepath.Join(todosDir, "*.json"))
	if err != nil || len(files) == 0 {
		if err != nil {
			res.ErrorsCount++
		} else {
			slog.Info("todos directory empty or missing", "path", todosDir)
		}
		return res
	}
	sort.Strings(files)

	slog.Info("found todo files", "count", len(files))

	for _, path := range files {
		due, err := e.tracker.ShouldProcess(e.Name(), path)
		if err != nil {
			slog.Error("checking file state", "file", path, "error", err)
			res.ErrorsCount++
			continue
		}
		if !due {
			continue
		}

		inserted, err := e.processTodoFile(path, dryRun)
		if err != nil {
			slog.Error("processing todo file", "file", filepath.Base(path), "error", err)
			res.ErrorsCount++
			continue
		}
		res.RecordsInserted += inserted
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

// parseTodoFilename splits {parent}-agent-{ref}.json into its two ids.
// Files without the separator token yield an empty ref.
func parseTodoFilename(filename string) (parent, ref string) {
	name := strings.TrimSuffix(filename, ".json")
	if parts := strings.SplitN(name, "-agent-", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return name, ""
}

func (e *TodosExtractor) processTodoFile(path string, dryRun bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var todos []map[string]any
	if err := json.Unmarshal(data, &todos); err != nil {
		return 0, fmt.Errorf("decoding todo file: %w", err)
	}
	if len(todos) == 0 {
		return 0, nil
	}

	parent, ref := parseTodoFilename(filepath.Base(path))

	// The agent link is optional context: extractor ordering is not
	// guaranteed, so a missing agent just means a NULL reference.
	var agentID any
	if ref != "" && !dryRun {
		row, err := e.db.QueryOne("SELECT id FROM agents WHERE session_id = ?", ref)
		if err != nil {
			return 0, err
		}
		if row != nil {
			agentID = row.String("id")
		}
	}

	rows := make([][]any, 0, len(todos))
	for idx, todo := range todos {
		status := jsonString(todo, "status")
		if status == "" {
			status = "pending"
		}
		rows = append(rows, []any{
			fmt.Sprintf("%s-%s-%d", parent, ref, idx),
			parent, nullable(ref), agentID, idx,
			jsonString(todo, "content"),
			jsonString(todo, "activeForm"),
			status,
		})
	}

	if dryRun {
		return len(rows), nil
	}

	return e.db.ExecuteBatch(`
		INSERT OR IGNORE INTO todos
		(id, parent_session_id, ref_session_id, agent_id, sequence, content, active_form, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rows, store.DefaultBatchSize)
}
