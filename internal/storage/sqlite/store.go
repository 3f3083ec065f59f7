package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/subhive/subhive/backend/pkg/models"
	"github.com/subhive/subhive/backend/internal/storage"
)

func (s *Sqlite) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO notifications (id, type, recipient, sender, content, related_post_id, related_comment_id, created_at, read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Type, n.Recipient, nullable(n.Sender), n.Content,
		nullable(n.RelatedPostID), nullable(n.RelatedCommentID), n.CreatedAt, n.Read)
	return err
}

func (s *Sqlite) NotificationsForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT id, type, recipient, sender, content, related_post_id, related_comment_id, created_at, read
		 FROM notifications WHERE recipient=? ORDER BY created_at DESC`, userID)
}

func (s *Sqlite) PendingNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT id, type, recipient, sender, content, related_post_id, related_comment_id, created_at, read
		 FROM notifications WHERE recipient=? AND read=0 ORDER BY created_at ASC`, userID)
}

func (s *Sqlite) queryNotifications(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		var sender, postID, commentID sql.NullString
		if err := rows.Scan(&n.ID, &n.Type, &n.Recipient, &sender, &n.Content, &postID, &commentID, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		n.Sender = sender.String
		n.RelatedPostID = postID.String
		n.RelatedCommentID = commentID.String
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *Sqlite) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.Db.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Sqlite) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.Db.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE recipient=?`, userID)
	return err
}

func (s *Sqlite) CreateMessage(ctx context.Context, m *models.Message) error {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var media any
	if len(m.Media) > 0 {
		b, err := json.Marshal(m.Media)
		if err != nil {
			return err
		}
		media = string(b)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender, recipient, type, content, media, created_at, read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Sender, m.Recipient, m.Type, m.Content, media, m.CreatedAt, m.Read); err != nil {
		return err
	}

	unread := 0
	if m.Recipient != m.Sender {
		unread = 1
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at=?, last_message_id=?, unread_count=unread_count+? WHERE id=?`,
		m.CreatedAt, m.ID, unread, m.ConversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

func (s *Sqlite) MessagesForConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.Db.QueryContext(ctx,
		`SELECT id, conversation_id, sender, recipient, type, content, media, created_at, read
		 FROM messages WHERE conversation_id=? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

func (s *Sqlite) GetOrCreateConversation(ctx context.Context, userIDs []string) (*models.Conversation, error) {
	key := models.ParticipantKey(userIDs)

	var id string
	err := s.Db.QueryRowContext(ctx, `SELECT id FROM conversations WHERE participant_key=?`, key).Scan(&id)
	if err == nil {
		return s.loadConversation(ctx, id)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	sort.Strings(ids)

	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id = uuid.NewString()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, participant_key, updated_at, unread_count) VALUES (?, ?, 0, 0)
		 ON CONFLICT(participant_key) DO NOTHING`, id, key)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// a concurrent create for the same set won; the existing row wins
		if err := tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE participant_key=?`, key).Scan(&id); err != nil {
			return nil, err
		}
		// release the connection before loadConversation needs it
		tx.Rollback()
		return s.loadConversation(ctx, id)
	}
	for _, uid := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO participants (conversation_id, user_id) VALUES (?, ?)`, id, uid); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.Conversation{ID: id, Participants: ids}, nil
}

func (s *Sqlite) ConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.Db.QueryContext(ctx,
		`SELECT c.id FROM conversations c
		 JOIN participants p ON p.conversation_id = c.id
		 WHERE p.user_id=? ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var list []models.Conversation
	for _, id := range ids {
		conv, err := s.loadConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, *conv)
	}
	return list, nil
}

func (s *Sqlite) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET read=1 WHERE conversation_id=? AND recipient=? AND read=0`, conversationID, userID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET unread_count=0 WHERE id=?`, conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return tx.Commit()
}

func (s *Sqlite) loadConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{ID: id}
	var lastID sql.NullString
	err := s.Db.QueryRowContext(ctx,
		`SELECT updated_at, unread_count, last_message_id FROM conversations WHERE id=?`, id).
		Scan(&conv.UpdatedAt, &conv.UnreadCount, &lastID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.Db.QueryContext(ctx,
		`SELECT user_id FROM participants WHERE conversation_id=? ORDER BY user_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		conv.Participants = append(conv.Participants, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if lastID.Valid {
		row := s.Db.QueryRowContext(ctx,
			`SELECT id, conversation_id, sender, recipient, type, content, media, created_at, read
			 FROM messages WHERE id=?`, lastID.String)
		m, err := scanMessage(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		conv.LastMessage = m
	}
	return conv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	var media sql.NullString
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Recipient, &m.Type, &m.Content, &media, &m.CreatedAt, &m.Read); err != nil {
		return nil, err
	}
	if media.Valid && media.String != "" {
		if err := json.Unmarshal([]byte(media.String), &m.Media); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
