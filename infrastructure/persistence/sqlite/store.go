// Package sqlite implements the storage ports on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS papers (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	authors     TEXT NOT NULL,
	abstract    TEXT NOT NULL DEFAULT '',
	year        INTEGER NOT NULL DEFAULT 0,
	url         TEXT NOT NULL DEFAULT '',
	keywords    TEXT NOT NULL DEFAULT '[]',
	search_text TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_papers_listing ON papers(year DESC, created_at DESC, id);

CREATE TABLE IF NOT EXISTS citations (
	id         TEXT PRIMARY KEY,
	citing_id  TEXT NOT NULL REFERENCES papers(id),
	cited_id   TEXT NOT NULL REFERENCES papers(id),
	created_at INTEGER NOT NULL,
	UNIQUE(citing_id, cited_id)
);
CREATE INDEX IF NOT EXISTS idx_citations_cited ON citations(cited_id);

CREATE TABLE IF NOT EXISTS votes (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	target_kind TEXT NOT NULL CHECK (target_kind IN ('paper', 'edge')),
	target_id   TEXT NOT NULL,
	value       INTEGER NOT NULL CHECK (value IN (-1, 1)),
	updated_at  INTEGER NOT NULL,
	UNIQUE(user_id, target_kind, target_id)
);
CREATE INDEX IF NOT EXISTS idx_votes_target ON votes(target_kind, target_id);
`

// maxInParams bounds the number of bound parameters per IN clause
const maxInParams = 500

// Store is a SQLite-backed ports.Store. Every write runs inside a
// BEGIN IMMEDIATE transaction so read-resolve-write sequences are atomic.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

var _ ports.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// A single connection serialises writers inside the process and keeps
	// the immediate-transaction lock from contending with ourselves.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create tables: %w", err)
	}

	logger.Info("SQLite store opened", zap.String("path", path))
	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  valueobjects.NewID,
	}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Papers returns the paper repository view
func (s *Store) Papers() ports.PaperRepository { return paperRepository{s} }

// Citations returns the citation repository view
func (s *Store) Citations() ports.CitationRepository { return citationRepository{s} }

// Votes returns the vote ledger view
func (s *Store) Votes() ports.VoteLedger { return voteLedger{s} }

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in an immediate transaction and commits when fn succeeds
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// storageErr passes domain errors and cancellations through and marks
// everything else as a storage failure.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsAppError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return pkgerrors.ErrStorageUnavailable(op, fmt.Errorf("sqlite: %w", err))
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxInParams {
		out = append(out, ids[:maxInParams])
		ids = ids[maxInParams:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func searchText(p *entities.Paper) string {
	parts := []string{p.Title, p.Abstract}
	parts = append(parts, p.Keywords...)
	parts = append(parts, p.Authors...)
	return strings.ToLower(strings.Join(parts, "\n"))
}

type paperRepository struct{ s *Store }

const paperColumns = "id, title, authors, abstract, year, url, keywords, created_at"

func (r paperRepository) Save(ctx context.Context, paper *entities.Paper) error {
	if paper.ID == "" {
		paper.ID = r.s.newID()
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = r.s.now()
	}
	authors, err := json.Marshal(nonNil(paper.Authors))
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	keywords, err := json.Marshal(nonNil(paper.Keywords))
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO papers (id, title, authors, abstract, year, url, keywords, search_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		paper.ID, paper.Title, string(authors), paper.Abstract, paper.Year, paper.URL,
		string(keywords), searchText(paper), paper.CreatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return pkgerrors.NewConflictError("paper already exists").WithDetail("paper_id", paper.ID)
	}
	return storageErr("save paper", err)
}

func (r paperRepository) GetByID(ctx context.Context, id string) (*entities.Paper, error) {
	row := r.s.db.QueryRowContext(ctx, "SELECT "+paperColumns+" FROM papers WHERE id = ?", id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrPaperNotFound(id)
	}
	if err != nil {
		return nil, storageErr("get paper", err)
	}
	return p, nil
}

func (r paperRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error) {
	out := make(map[string]*entities.Paper, len(ids))
	for _, chunk := range chunks(ids) {
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := r.s.db.QueryContext(ctx,
			"SELECT "+paperColumns+" FROM papers WHERE id IN ("+placeholders(len(chunk))+")", args...)
		if err != nil {
			return nil, storageErr("get papers", err)
		}
		papers, err := scanPapers(rows)
		if err != nil {
			return nil, storageErr("get papers", err)
		}
		for _, p := range papers {
			out[p.ID] = p
		}
	}
	return out, nil
}

func (r paperRepository) List(ctx context.Context) ([]*entities.Paper, error) {
	rows, err := r.s.db.QueryContext(ctx,
		"SELECT "+paperColumns+" FROM papers ORDER BY year DESC, created_at DESC, id ASC")
	if err != nil {
		return nil, storageErr("list papers", err)
	}
	papers, err := scanPapers(rows)
	return papers, storageErr("list papers", err)
}

func (r paperRepository) Search(ctx context.Context, query string, limit int) ([]*entities.Paper, error) {
	if limit <= 0 {
		limit = -1
	}
	q := strings.ToLower(strings.TrimSpace(query))
	rows, err := r.s.db.QueryContext(ctx,
		"SELECT "+paperColumns+" FROM papers WHERE ? = '' OR instr(search_text, ?) > 0 "+
			"ORDER BY year DESC, created_at DESC, id ASC LIMIT ?",
		q, q, limit)
	if err != nil {
		return nil, storageErr("search papers", err)
	}
	papers, err := scanPapers(rows)
	return papers, storageErr("search papers", err)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(row scanner) (*entities.Paper, error) {
	var (
		p                 entities.Paper
		authors, keywords string
		createdAt         int64
	)
	if err := row.Scan(&p.ID, &p.Title, &authors, &p.Abstract, &p.Year, &p.URL, &keywords, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return nil, fmt.Errorf("decode authors of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords of %s: %w", p.ID, err)
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]*entities.Paper, error) {
	defer rows.Close()
	var out []*entities.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type citationRepository struct{ s *Store }

func (r citationRepository) Save(ctx context.Context, c *entities.Citation) error {
	if c.ID == "" {
		c.ID = r.s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}

	err := r.s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []string{c.CitingID, c.CitedID} {
			ok, err := exists(ctx, tx, "papers", id)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.ErrPaperNotFound(id)
			}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO citations (id, citing_id, cited_id, created_at) VALUES (?, ?, ?, ?)",
			c.ID, c.CitingID, c.CitedID, c.CreatedAt.UnixNano())
		if isUniqueViolation(err) {
			return pkgerrors.ErrDuplicateCitation(c.CitingID, c.CitedID)
		}
		return err
	})
	return storageErr("save citation", err)
}

func (r citationRepository) GetByID(ctx context.Context, id string) (*entities.Citation, error) {
	var (
		c         entities.Citation
		createdAt int64
	)
	err := r.s.db.QueryRowContext(ctx,
		"SELECT id, citing_id, cited_id, created_at FROM citations WHERE id = ?", id).
		Scan(&c.ID, &c.CitingID, &c.CitedID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("citation " + id)
	}
	if err != nil {
		return nil, storageErr("get citation", err)
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return &c, nil
}

func (r citationRepository) GetAdjacent(ctx context.Context, paperIDs []string, direction valueobjects.Direction) ([]*entities.Citation, error) {
	seen := make(map[string]bool)
	var out []*entities.Citation

	for _, chunk := range chunks(paperIDs) {
		args := make([]interface{}, 0, 2*len(chunk))
		var clauses []string
		if direction.FollowsOutgoing() {
			clauses = append(clauses, "citing_id IN ("+placeholders(len(chunk))+")")
			for _, id := range chunk {
				args = append(args, id)
			}
		}
		if direction.FollowsIncoming() {
			clauses = append(clauses, "cited_id IN ("+placeholders(len(chunk))+")")
			for _, id := range chunk {
				args = append(args, id)
			}
		}
		if len(clauses) == 0 {
			return nil, pkgerrors.ErrInvalidDirection(string(direction))
		}

		rows, err := r.s.db.QueryContext(ctx,
			"SELECT id, citing_id, cited_id, created_at FROM citations WHERE "+strings.Join(clauses, " OR "), args...)
		if err != nil {
			return nil, storageErr("get adjacent", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var (
					c         entities.Citation
					createdAt int64
				)
				if err := rows.Scan(&c.ID, &c.CitingID, &c.CitedID, &createdAt); err != nil {
					return err
				}
				if seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				c.CreatedAt = time.Unix(0, createdAt).UTC()
				out = append(out, &c)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, storageErr("get adjacent", err)
		}
	}
	return out, nil
}

func exists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

type voteLedger struct{ s *Store }

func (l voteLedger) Apply(ctx context.Context, req entities.VoteRequest) (valueobjects.VoteValue, error) {
	var result valueobjects.VoteValue

	err := l.s.withTx(ctx, func(tx *sql.Tx) error {
		current := valueobjects.VoteNone
		var stored int
		scanErr := tx.QueryRowContext(ctx,
			"SELECT value FROM votes WHERE user_id = ? AND target_kind = ? AND target_id = ?",
			req.UserID, string(req.TargetKind), req.TargetID).Scan(&stored)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
		case scanErr != nil:
			return scanErr
		default:
			current = valueobjects.VoteValue(stored)
		}

		action, next := entities.ResolveVote(current, req.Value)
		if action == entities.VoteActionNone {
			result = next
			return nil
		}
		if action.NeedsTarget() {
			ok, err := exists(ctx, tx, targetTable(req.TargetKind), req.TargetID)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.ErrTargetNotFound(req.TargetKind.String(), req.TargetID)
			}
		}

		now := l.s.now().UnixNano()
		var err error
		switch action {
		case entities.VoteActionInsert:
			_, err = tx.ExecContext(ctx,
				"INSERT INTO votes (id, user_id, target_kind, target_id, value, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
				l.s.newID(), req.UserID, string(req.TargetKind), req.TargetID, next.Int(), now)
		case entities.VoteActionUpdate:
			_, err = tx.ExecContext(ctx,
				"UPDATE votes SET value = ?, updated_at = ? WHERE user_id = ? AND target_kind = ? AND target_id = ?",
				next.Int(), now, req.UserID, string(req.TargetKind), req.TargetID)
		case entities.VoteActionDelete:
			_, err = tx.ExecContext(ctx,
				"DELETE FROM votes WHERE user_id = ? AND target_kind = ? AND target_id = ?",
				req.UserID, string(req.TargetKind), req.TargetID)
		}
		if err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return valueobjects.VoteNone, storageErr("apply vote", err)
	}
	return result, nil
}

func targetTable(kind valueobjects.TargetKind) string {
	if kind == valueobjects.TargetEdge {
		return "citations"
	}
	return "papers"
}

const tallyColumns = `target_id,
	COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0) AS up,
	COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0) AS down`

func (l voteLedger) Tally(ctx context.Context, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.Aggregate, error) {
	out := make(map[string]valueobjects.Aggregate, len(ids))
	for _, id := range ids {
		out[id] = valueobjects.Aggregate{}
	}
	for _, chunk := range chunks(ids) {
		args := []interface{}{string(kind)}
		for _, id := range chunk {
			args = append(args, id)
		}
		rows, err := l.s.db.QueryContext(ctx,
			"SELECT "+tallyColumns+" FROM votes WHERE target_kind = ? AND target_id IN ("+
				placeholders(len(chunk))+") GROUP BY target_id", args...)
		if err != nil {
			return nil, storageErr("tally", err)
		}
		if err := scanTallies(rows, out); err != nil {
			return nil, storageErr("tally", err)
		}
	}
	return out, nil
}

func (l voteLedger) UserVotes(ctx context.Context, userID string, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.VoteValue, error) {
	out := make(map[string]valueobjects.VoteValue)
	for _, chunk := range chunks(ids) {
		args := []interface{}{userID, string(kind)}
		for _, id := range chunk {
			args = append(args, id)
		}
		rows, err := l.s.db.QueryContext(ctx,
			"SELECT target_id, value FROM votes WHERE user_id = ? AND target_kind = ? AND target_id IN ("+
				placeholders(len(chunk))+")", args...)
		if err != nil {
			return nil, storageErr("user votes", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var (
					id    string
					value int
				)
				if err := rows.Scan(&id, &value); err != nil {
					return err
				}
				out[id] = valueobjects.VoteValue(value)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, storageErr("user votes", err)
		}
	}
	return out, nil
}

func (l voteLedger) Downvoted(ctx context.Context, kind valueobjects.TargetKind) (map[string]valueobjects.Aggregate, error) {
	rows, err := l.s.db.QueryContext(ctx,
		"SELECT "+tallyColumns+" FROM votes WHERE target_kind = ? GROUP BY target_id HAVING down > 0",
		string(kind))
	if err != nil {
		return nil, storageErr("downvoted", err)
	}
	out := make(map[string]valueobjects.Aggregate)
	if err := scanTallies(rows, out); err != nil {
		return nil, storageErr("downvoted", err)
	}
	return out, nil
}

func scanTallies(rows *sql.Rows, out map[string]valueobjects.Aggregate) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id       string
			up, down int
		)
		if err := rows.Scan(&id, &up, &down); err != nil {
			return err
		}
		out[id] = valueobjects.NewAggregate(up, down)
	}
	return rows.Err()
}
