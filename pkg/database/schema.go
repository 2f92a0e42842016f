package database

// Schema creates the class_sessions table. Only lifecycle rows are
// stored; the engagement timeline lives in memory and is never written
// here.
const Schema = `
CREATE TABLE IF NOT EXISTS class_sessions (
	id         TEXT PRIMARY KEY,
	channel    TEXT NOT NULL,
	name       TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time   DATETIME,
	status     TEXT NOT NULL CHECK (status IN ('active', 'ended'))
);

CREATE INDEX IF NOT EXISTS idx_class_sessions_channel ON class_sessions(channel);
CREATE INDEX IF NOT EXISTS idx_class_sessions_status ON class_sessions(status);
`
