package store

// schemaSQL is the full schema, applied idempotently on every run.
// Derived rows that can be re-delivered (the remote backend is
// at-least-once) all carry natural keys so INSERT OR IGNORE / OR REPLACE
// keeps reprocessing from duplicating them.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
    path                 TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    first_seen           TEXT NOT NULL,
    last_seen            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id                   TEXT PRIMARY KEY,
    project_path         TEXT,
    cwd                  TEXT,
    git_branch           TEXT,
    version              TEXT,
    started_at           TEXT
);

CREATE TABLE IF NOT EXISTS agents (
    id                   TEXT PRIMARY KEY,
    session_id           TEXT,
    is_sidechain         INTEGER NOT NULL DEFAULT 0,
    parent_message_uuid  TEXT,
    first_seen           TEXT
);

CREATE TABLE IF NOT EXISTS messages (
    uuid                 TEXT PRIMARY KEY,
    parent_uuid          TEXT,
    session_id           TEXT NOT NULL,
    agent_id             TEXT,
    timestamp            TEXT,
    type                 TEXT,
    role                 TEXT,
    content_text         TEXT,
    content_json         TEXT,
    model                TEXT,
    message_id           TEXT,
    stop_reason          TEXT,
    input_tokens         INTEGER,
    output_tokens        INTEGER,
    cache_creation_tokens INTEGER,
    cache_read_tokens    INTEGER
);

CREATE TABLE IF NOT EXISTS tool_uses (
    message_uuid         TEXT NOT NULL,
    tool_id              TEXT NOT NULL,
    tool_name            TEXT,
    input_json           TEXT,
    PRIMARY KEY (message_uuid, tool_id)
);

CREATE TABLE IF NOT EXISTS tool_results (
    message_uuid         TEXT NOT NULL,
    tool_use_id          TEXT NOT NULL,
    is_error             INTEGER NOT NULL DEFAULT 0,
    content_preview      TEXT,
    PRIMARY KEY (message_uuid, tool_use_id)
);

CREATE TABLE IF NOT EXISTS todos (
    id                   TEXT PRIMARY KEY,
    parent_session_id    TEXT NOT NULL,
    ref_session_id       TEXT,
    agent_id             TEXT,
    sequence             INTEGER NOT NULL,
    content              TEXT,
    active_form          TEXT,
    status               TEXT
);

CREATE TABLE IF NOT EXISTS file_versions (
    id                   TEXT PRIMARY KEY,
    session_id           TEXT NOT NULL,
    file_hash            TEXT NOT NULL,
    version              INTEGER NOT NULL,
    content              TEXT,
    file_size            INTEGER
);

CREATE TABLE IF NOT EXISTS shell_snapshots (
    id                   TEXT PRIMARY KEY,
    timestamp            TEXT,
    shell_type           TEXT,
    content              TEXT,
    content_hash         TEXT
);

CREATE TABLE IF NOT EXISTS history_log (
    line_no              INTEGER PRIMARY KEY,
    timestamp            TEXT,
    project_path         TEXT,
    display              TEXT
);

CREATE TABLE IF NOT EXISTS plans (
    filename             TEXT PRIMARY KEY,
    agent_id             TEXT,
    title                TEXT,
    content              TEXT,
    created_at           TEXT,
    modified_at          TEXT
);

CREATE TABLE IF NOT EXISTS etl_file_state (
    file_path            TEXT PRIMARY KEY,
    source               TEXT NOT NULL,
    mtime_ns             INTEGER NOT NULL,
    size                 INTEGER NOT NULL,
    last_processed       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS etl_runs (
    run_timestamp        TEXT NOT NULL,
    source               TEXT NOT NULL,
    files_processed      INTEGER NOT NULL,
    records_inserted     INTEGER NOT NULL,
    errors_count         INTEGER NOT NULL,
    duration_seconds     REAL NOT NULL,
    status               TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_todos_parent ON todos(parent_session_id);
CREATE INDEX IF NOT EXISTS idx_file_state_source ON etl_file_state(source);
`

// DomainTables lists the extracted entity tables in schema order, used by
// the stats command.
var DomainTables = []string{
	"projects", "sessions", "agents", "messages", "tool_uses",
	"tool_results", "todos", "file_versions", "shell_snapshots",
	"history_log", "plans",
}
