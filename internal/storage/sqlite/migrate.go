package sqlite

import "strings"

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	recipient TEXT NOT NULL,
	sender TEXT,
	content TEXT NOT NULL DEFAULT '',
	related_post_id TEXT,
	related_comment_id TEXT,
	created_at INTEGER NOT NULL,
	read INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, read);
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	participant_key TEXT NOT NULL UNIQUE,
	updated_at INTEGER NOT NULL DEFAULT 0,
	unread_count INTEGER NOT NULL DEFAULT 0,
	last_message_id TEXT
);
CREATE TABLE IF NOT EXISTS participants (
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	user_id TEXT NOT NULL,
	PRIMARY KEY (conversation_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_participants_user ON participants(user_id);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	sender TEXT NOT NULL,
	recipient TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	content TEXT NOT NULL DEFAULT '',
	media TEXT,
	created_at INTEGER NOT NULL,
	read INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

func (s *Sqlite) Migrate() error {
	for _, stmt := range strings.Split(schema, ";\n") {
		st := strings.TrimSpace(stmt)
		if st == "" {
			continue
		}
		if _, err := s.Db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}
