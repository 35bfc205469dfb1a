package storage

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
    id          TEXT      NOT NULL PRIMARY KEY,
    tool        TEXT      NOT NULL,
    start_time  TIMESTAMP NOT NULL,
    end_time    TIMESTAMP NULL,
    source      TEXT      NOT NULL,
    destination TEXT      NOT NULL,
    succeeded   INTEGER   NOT NULL DEFAULT 0,
    failed      INTEGER   NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS items (
    id          INTEGER   NOT NULL PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT      NOT NULL REFERENCES runs (id),
    path        TEXT      NOT NULL,
    status      TEXT      NOT NULL,
    error_kind  TEXT      NOT NULL,
    message     TEXT      NOT NULL,
    sweeps      INTEGER   NOT NULL,
    channels    INTEGER   NOT NULL,
    outputs     TEXT      NOT NULL,
    bytes       INTEGER   NOT NULL,
    duration_ms INTEGER   NOT NULL,
    timestamp   TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_items_run_id ON items (run_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
    id          CHAR(36)     NOT NULL PRIMARY KEY,
    tool        VARCHAR(32)  NOT NULL,
    start_time  DATETIME(6)  NOT NULL,
    end_time    DATETIME(6)  NULL,
    source      TEXT         NOT NULL,
    destination TEXT         NOT NULL,
    succeeded   INT          NOT NULL DEFAULT 0,
    failed      INT          NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS items (
    id          BIGINT       NOT NULL PRIMARY KEY AUTO_INCREMENT,
    run_id      CHAR(36)     NOT NULL,
    path        TEXT         NOT NULL,
    status      VARCHAR(16)  NOT NULL,
    error_kind  VARCHAR(32)  NOT NULL,
    message     TEXT         NOT NULL,
    sweeps      INT          NOT NULL,
    channels    INT          NOT NULL,
    outputs     TEXT         NOT NULL,
    bytes       BIGINT       NOT NULL,
    duration_ms BIGINT       NOT NULL,
    timestamp   DATETIME(6)  NOT NULL,
    INDEX idx_items_run_id (run_id)
)`,
}

const (
	insertRunSQL = `
INSERT INTO runs (id,
                  tool,
                  start_time,
                  source,
                  destination)
VALUES (?, ?, ?, ?, ?)`

	finishRunSQL = `
UPDATE runs
SET end_time  = ?,
    succeeded = ?,
    failed    = ?
WHERE id = ?`

	selectRunsSQL = `
SELECT id,
       tool,
       start_time,
       end_time,
       source,
       destination,
       succeeded,
       failed
FROM runs
ORDER BY start_time`

	insertItemSQL = `
INSERT INTO items (run_id,
                   path,
                   status,
                   error_kind,
                   message,
                   sweeps,
                   channels,
                   outputs,
                   bytes,
                   duration_ms,
                   timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectItemsSQL = `
SELECT run_id,
       path,
       status,
       error_kind,
       message,
       sweeps,
       channels,
       outputs,
       bytes,
       duration_ms,
       timestamp
FROM items
WHERE run_id = ?
ORDER BY id`
)
