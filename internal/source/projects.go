package source

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"claudehist/internal/store"
)

const toolResultPreviewLen = 500

// ProjectsExtractor loads sessions, messages, agents, tool uses and tool
// results from the projects/ directory.
//
// Layout: projects/{encoded_path}/{session_id}.jsonl for main sessions
// and projects/{encoded_path}/agent-{agent_id}.jsonl for sidechains.
type ProjectsExtractor struct {
	base
}

func (e *ProjectsExtractor) Name() string { return "projects" }

func (e *ProjectsExtractor) Extract(dryRun bool) Result {
	started := time.Now()
	var res Result
	defer e.finish(e.Name(), started, &res)

	projectsDir := filepath.Join(e.sourceDir, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("projects directory not found", "path", projectsDir)
			return res
		}
		slog.Error("reading projects directory", "path", projectsDir, "error", err)
		res.ErrorsCount++
		return res
	}

	slog.Info("found projects", "count", len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		projectDir := filepath.Join(projectsDir, entry.Name())
		projectPath := DecodeProjectPath(entry.Name())

		// The upsert runs every time to extend last_seen, but the row
		// only counts toward this run's records when the project had a
		// file actually processed — otherwise an unchanged tree would
		// report nonzero records on every rerun.
		if err := e.upsertProject(projectPath, entry.Name(), dryRun); err != nil {
			slog.Error("upserting project", "project", entry.Name(), "error", err)
			res.ErrorsCount++
			continue
		}

		files, err := filepath.Glob(filepath.Join(projectDir, "*.jsonl"))
		if err != nil {
			res.ErrorsCount++
			continue
		}

		processedBefore := res.FilesProcessed
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

			inserted, err := e.processSessionFile(projectPath, path, dryRun)
			if err != nil {
				slog.Error("processing session file", "file", filepath.Base(path), "error", err)
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
		if res.FilesProcessed > processedBefore {
			res.RecordsInserted++
		}
	}

	return res
}

// upsertProject inserts the project row, extending last_seen when the
// row already exists.
func (e *ProjectsExtractor) upsertProject(projectPath, dirName string, dryRun bool) error {
	if dryRun {
		return nil
	}
	now := time.Now().Format(time.RFC3339)
	return e.db.Transaction(func(tx store.Tx) error {
		return tx.Exec(`
			INSERT INTO projects (path, name, first_seen, last_seen)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET last_seen = excluded.last_seen`,
			projectPath, dirName, now, now,
		)
	})
}

// processSessionFile ingests one JSONL file, main session or sidechain.
// The first parseable line supplies session metadata; the session id
// comes from its sessionId field or, for non-agent files, the filename
// stem.
func (e *ProjectsExtractor) processSessionFile(projectPath, path string, dryRun bool) (int, error) {
	filename := filepath.Base(path)

	first, err := firstJSONLLine(path)
	if err != nil {
		return 0, err
	}
	if first == nil {
		slog.Debug("empty session file", "file", filename)
		return 0, nil
	}

	sessionID := jsonString(first, "sessionId")
	if sessionID == "" {
		if !strings.HasPrefix(filename, "agent-") {
			sessionID = strings.TrimSuffix(filename, ".jsonl")
		} else {
			slog.Warn("no sessionId in agent file", "file", filename)
			return 0, nil
		}
	}

	inserted := 0

	// Session row first so messages have a parent to reference.
	if !dryRun {
		startedAt := jsonString(first, "timestamp")
		if startedAt == "" {
			startedAt = time.Now().Format(time.RFC3339)
		}
		err := e.db.Transaction(func(tx store.Tx) error {
			return tx.Exec(`
				INSERT OR IGNORE INTO sessions
				(id, project_path, cwd, git_branch, version, started_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				sessionID, projectPath,
				nullable(jsonString(first, "cwd")),
				nullable(jsonString(first, "gitBranch")),
				nullable(jsonString(first, "version")),
				startedAt,
			)
		})
		if err != nil {
			return 0, err
		}
	}
	inserted++

	n, err := e.processMessages(sessionID, path, dryRun)
	if err != nil {
		return inserted, err
	}
	return inserted + n, nil
}

// sessionRows collects the batched row sets produced from one file.
type sessionRows struct {
	messages    [][]any
	agents      [][]any
	toolUses    [][]any
	toolResults [][]any
}

func (e *ProjectsExtractor) processMessages(sessionID, path string, dryRun bool) (int, error) {
	var rows sessionRows
	seenAgents := make(map[string]bool)

	_, err := streamJSONL(path, func(_ int, msg map[string]any) {
		e.collectMessage(sessionID, msg, &rows, seenAgents)
	})
	if err != nil {
		return 0, err
	}

	if dryRun {
		return len(rows.agents) + len(rows.messages) + len(rows.toolUses) + len(rows.toolResults), nil
	}

	inserted := 0
	for _, batch := range []struct {
		sql  string
		rows [][]any
	}{
		{`INSERT OR IGNORE INTO agents
		  (id, session_id, is_sidechain, parent_message_uuid, first_seen)
		  VALUES (?, ?, ?, ?, ?)`, rows.agents},
		{`INSERT OR IGNORE INTO messages
		  (uuid, parent_uuid, session_id, agent_id, timestamp, type,
		   role, content_text, content_json, model, message_id, stop_reason,
		   input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, rows.messages},
		{`INSERT OR IGNORE INTO tool_uses
		  (message_uuid, tool_id, tool_name, input_json)
		  VALUES (?, ?, ?, ?)`, rows.toolUses},
		{`INSERT OR IGNORE INTO tool_results
		  (message_uuid, tool_use_id, is_error, content_preview)
		  VALUES (?, ?, ?, ?)`, rows.toolResults},
	} {
		n, err := e.db.ExecuteBatch(batch.sql, batch.rows, store.DefaultBatchSize)
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// collectMessage turns one JSONL line into message/agent/tool rows.
// Lines without a UUID (file-history-snapshot, summary, queue-operation
// markers) are intentionally dropped.
func (e *ProjectsExtractor) collectMessage(sessionID string, msg map[string]any, rows *sessionRows, seenAgents map[string]bool) {
	uuid := jsonString(msg, "uuid")
	if uuid == "" {
		return
	}

	parentUUID := nullable(jsonString(msg, "parentUuid"))
	timestamp := jsonString(msg, "timestamp")
	if timestamp == "" {
		timestamp = time.Now().Format(time.RFC3339)
	}

	// Role/content live either at top level or inside a nested
	// "message" envelope. A line with neither role nor envelope can
	// still carry top-level content.
	role := jsonString(msg, "role")
	content := msg["content"]
	if role == "" {
		if inner, ok := msg["message"].(map[string]any); ok {
			role = jsonString(inner, "role")
			content = inner["content"]
		}
	}

	agentID := jsonString(msg, "agentId")
	if agentID != "" && !seenAgents[agentID] {
		seenAgents[agentID] = true
		rows.agents = append(rows.agents, []any{
			agentID, sessionID, jsonBool(msg, "isSidechain"), parentUUID,
			time.Now().Format(time.RFC3339),
		})
	}

	usage, _ := msg["usage"].(map[string]any)
	if usage == nil {
		usage = map[string]any{}
	}

	var contentText any
	if content != nil {
		contentText = nullable(flattenContent(content))
	}

	rows.messages = append(rows.messages, []any{
		uuid, parentUUID, sessionID, nullable(agentID), timestamp,
		nullable(jsonString(msg, "type")), nullable(role), contentText, nil,
		nullable(jsonString(msg, "model")),
		nullable(jsonString(msg, "message_id")),
		nullable(jsonString(msg, "stop_reason")),
		jsonInt(usage, "input_tokens"), jsonInt(usage, "output_tokens"),
		jsonInt(usage, "cache_creation_tokens"), jsonInt(usage, "cache_read_tokens"),
	})

	blocks, _ := content.([]any)
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch jsonString(block, "type") {
		case "tool_use":
			rows.toolUses = append(rows.toolUses, []any{
				uuid, jsonString(block, "id"), jsonString(block, "name"),
				marshalCompact(block["input"]),
			})
		case "tool_result":
			rows.toolResults = append(rows.toolResults, []any{
				uuid, jsonString(block, "tool_use_id"), jsonBool(block, "is_error"),
				previewContent(block["content"]),
			})
		}
	}
}

// flattenContent normalizes message content — a plain string or a list
// of typed blocks — to a newline-joined string of its text parts.
func flattenContent(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, item := range c {
			switch v := item.(type) {
			case map[string]any:
				if text, ok := v["text"].(string); ok {
					parts = append(parts, text)
				}
			case string:
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return marshalCompact(content)
	}
}

// previewContent truncates a tool result body for storage.
func previewContent(content any) string {
	var s string
	switch c := content.(type) {
	case nil:
		s = ""
	case string:
		s = c
	case []any:
		s = marshalCompact(c)
	default:
		s = marshalCompact(content)
	}
	if len(s) > toolResultPreviewLen {
		// Back up to a rune boundary so the cut never stores invalid UTF-8.
		cut := toolResultPreviewLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut]
	}
	return s
}
