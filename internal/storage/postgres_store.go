package storage

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/inspection-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) List(userID string) ([]models.Notification, error) {
	rows, err := p.db.Query(`SELECT id, kind, title, message, offer_id, created_at, read FROM notifications WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var offerID sql.NullString
		if err := rows.Scan(&n.ID, &n.Kind, &n.Title, &n.Message, &offerID, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		n.OfferID = offerID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Insert(userID string, n models.Notification) error {
	_, err := p.db.Exec(`INSERT INTO notifications(id, user_id, kind, title, message, offer_id, created_at, read) VALUES($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (id) DO NOTHING`,
		n.ID, userID, n.Kind, n.Title, n.Message, nullable(n.OfferID), n.CreatedAt, n.Read)
	return err
}

func (p *PostgresStore) MarkRead(userID, id string) error {
	_, err := p.db.Exec(`UPDATE notifications SET read=true WHERE user_id=$1 AND id=$2`, userID, id)
	return err
}

func (p *PostgresStore) MarkAllRead(userID string) error {
	_, err := p.db.Exec(`UPDATE notifications SET read=true WHERE user_id=$1`, userID)
	return err
}

func (p *PostgresStore) Delete(userID, id string) error {
	_, err := p.db.Exec(`DELETE FROM notifications WHERE user_id=$1 AND id=$2`, userID, id)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
