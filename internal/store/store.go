// Package store persists requirements, responses, document segments,
// and review results in SQLite. It backs all four collaborator
// interfaces the review pipeline consumes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/katescodes/tender-review/internal/review"
)

const schema = `
CREATE TABLE IF NOT EXISTS requirements (
	project_id           TEXT NOT NULL,
	requirement_id       TEXT NOT NULL,
	dimension            TEXT NOT NULL DEFAULT 'other',
	requirement_text     TEXT NOT NULL DEFAULT '',
	is_hard              INTEGER NOT NULL DEFAULT 0,
	must_reject          INTEGER NOT NULL DEFAULT 0,
	eval_method          TEXT NOT NULL DEFAULT '',
	value_schema         TEXT,
	evidence_segment_ids TEXT NOT NULL DEFAULT '[]',
	weight               REAL NOT NULL DEFAULT 1,
	PRIMARY KEY (project_id, requirement_id)
);

CREATE TABLE IF NOT EXISTS responses (
	project_id           TEXT NOT NULL,
	bidder_name          TEXT NOT NULL,
	response_id          TEXT NOT NULL,
	dimension            TEXT NOT NULL DEFAULT 'other',
	response_text        TEXT NOT NULL DEFAULT '',
	extracted_value      TEXT,
	normalized_fields    TEXT,
	evidence_segment_ids TEXT NOT NULL DEFAULT '[]',
	evidence_entries     TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (project_id, bidder_name, response_id)
);

CREATE TABLE IF NOT EXISTS doc_segments (
	segment_id     TEXT PRIMARY KEY,
	asset_id       TEXT NOT NULL DEFAULT '',
	content_text   TEXT NOT NULL DEFAULT '',
	page_start     INTEGER NOT NULL DEFAULT 0,
	page_end       INTEGER NOT NULL DEFAULT 0,
	heading_path   TEXT NOT NULL DEFAULT '',
	doc_version_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS review_items (
	project_id          TEXT NOT NULL,
	bidder_name         TEXT NOT NULL,
	requirement_id      TEXT NOT NULL,
	matched_response_id TEXT NOT NULL DEFAULT '',
	dimension           TEXT NOT NULL DEFAULT 'other',
	status              TEXT NOT NULL,
	is_hard             INTEGER NOT NULL DEFAULT 0,
	remark              TEXT NOT NULL DEFAULT '',
	evaluator           TEXT NOT NULL DEFAULT '',
	trace               TEXT NOT NULL DEFAULT '{}',
	evidence            TEXT NOT NULL DEFAULT '[]',
	review_run_id       TEXT NOT NULL,
	position            INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, bidder_name, requirement_id)
);
`

type Store struct {
	db *sqlx.DB
}

// Open creates or opens the SQLite database and bootstraps the schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ListRequirements returns a project's requirements ordered by
// dimension then requirement id.
func (s *Store) ListRequirements(ctx context.Context, projectID string) ([]review.Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT requirement_id, dimension, requirement_text, is_hard, must_reject,
		eval_method, value_schema, evidence_segment_ids, weight
		FROM requirements WHERE project_id = ? ORDER BY dimension, requirement_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	defer rows.Close()

	var out []review.Requirement
	for rows.Next() {
		var r review.Requirement
		var isHard, mustReject int
		var schemaJSON sql.NullString
		var idsJSON string
		if err := rows.Scan(&r.RequirementID, &r.Dimension, &r.Text, &isHard, &mustReject,
			&r.EvalMethod, &schemaJSON, &idsJSON, &r.Weight); err != nil {
			return nil, err
		}
		r.IsHard = isHard != 0
		r.MustReject = mustReject != 0
		if schemaJSON.Valid && schemaJSON.String != "" {
			var vs review.ValueSchema
			if err := json.Unmarshal([]byte(schemaJSON.String), &vs); err == nil {
				r.ValueSchema = &vs
			}
		}
		_ = json.Unmarshal([]byte(idsJSON), &r.EvidenceSegmentIDs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListResponses returns one bidder's responses for a project.
func (s *Store) ListResponses(ctx context.Context, projectID, bidderName string) ([]review.Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT response_id, dimension, response_text, extracted_value,
		normalized_fields, evidence_segment_ids, evidence_entries
		FROM responses WHERE project_id = ? AND bidder_name = ? ORDER BY response_id`, projectID, bidderName)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []review.Response
	for rows.Next() {
		var r review.Response
		var extracted, normalized sql.NullString
		var idsJSON, entriesJSON string
		if err := rows.Scan(&r.ID, &r.Dimension, &r.Text, &extracted, &normalized, &idsJSON, &entriesJSON); err != nil {
			return nil, err
		}
		if extracted.Valid && extracted.String != "" {
			_ = json.Unmarshal([]byte(extracted.String), &r.ExtractedValue)
		}
		if normalized.Valid && normalized.String != "" {
			_ = json.Unmarshal([]byte(normalized.String), &r.NormalizedFields)
		}
		_ = json.Unmarshal([]byte(idsJSON), &r.EvidenceSegmentIDs)
		_ = json.Unmarshal([]byte(entriesJSON), &r.EvidenceEntries)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PrefetchSegments resolves the given segment ids in one batch. Ids
// with no row are simply absent from the map.
func (s *Store) PrefetchSegments(ctx context.Context, ids []string) (map[string]review.SegmentRecord, error) {
	out := map[string]review.SegmentRecord{}
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT segment_id, asset_id, content_text, page_start, page_end, heading_path, doc_version_id
		FROM doc_segments WHERE segment_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("prefetch segments: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("prefetch segments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var seg review.SegmentRecord
		if err := rows.Scan(&seg.SegmentID, &seg.AssetID, &seg.ContentText, &seg.PageStart, &seg.PageEnd,
			&seg.HeadingPath, &seg.DocVersionID); err != nil {
			return nil, err
		}
		out[seg.SegmentID] = seg
	}
	return out, rows.Err()
}

// ReplaceReviewItems atomically replaces the result set for one
// (project, bidder) pair: delete and insert run in a single
// transaction so readers never observe a transiently empty set.
func (s *Store) ReplaceReviewItems(ctx context.Context, projectID, bidderName string, items []review.ReviewItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace review items: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_items WHERE project_id = ? AND bidder_name = ?`,
		projectID, bidderName); err != nil {
		return fmt.Errorf("replace review items: %w", err)
	}
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, `INSERT INTO review_items (project_id, bidder_name, requirement_id,
			matched_response_id, dimension, status, is_hard, remark, evaluator, trace, evidence, review_run_id, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, bidderName, item.RequirementID,
			item.MatchedResponseID, string(item.Dimension), string(item.Status), boolToInt(item.IsHard),
			item.Remark, item.Evaluator, marshalJSON(item.Trace), marshalJSON(item.Evidence),
			item.ReviewRunID, i,
		); err != nil {
			return fmt.Errorf("replace review items: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace review items: %w", err)
	}
	return nil
}

// ListReviewItems returns the persisted result set in run order.
func (s *Store) ListReviewItems(ctx context.Context, projectID, bidderName string) ([]review.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT requirement_id, matched_response_id, dimension, status, is_hard,
		remark, evaluator, trace, evidence, review_run_id
		FROM review_items WHERE project_id = ? AND bidder_name = ? ORDER BY position`, projectID, bidderName)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var out []review.ReviewItem
	for rows.Next() {
		var item review.ReviewItem
		var isHard int
		var traceJSON, evidenceJSON string
		if err := rows.Scan(&item.RequirementID, &item.MatchedResponseID, &item.Dimension, &item.Status,
			&isHard, &item.Remark, &item.Evaluator, &traceJSON, &evidenceJSON, &item.ReviewRunID); err != nil {
			return nil, err
		}
		item.IsHard = isHard != 0
		_ = json.Unmarshal([]byte(traceJSON), &item.Trace)
		_ = json.Unmarshal([]byte(evidenceJSON), &item.Evidence)
		out = append(out, item)
	}
	return out, rows.Err()
}

// InsertRequirement seeds one requirement row (tooling and tests).
func (s *Store) InsertRequirement(ctx context.Context, projectID string, r review.Requirement) error {
	var schemaJSON sql.NullString
	if r.ValueSchema != nil {
		schemaJSON = sql.NullString{String: marshalJSON(r.ValueSchema), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO requirements (project_id, requirement_id, dimension,
		requirement_text, is_hard, must_reject, eval_method, value_schema, evidence_segment_ids, weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, r.RequirementID, string(r.Dimension), r.Text, boolToInt(r.IsHard), boolToInt(r.MustReject),
		string(r.EvalMethod), schemaJSON, marshalJSON(r.EvidenceSegmentIDs), r.Weight)
	return err
}

// InsertResponse seeds one response row.
func (s *Store) InsertResponse(ctx context.Context, projectID, bidderName string, r review.Response) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO responses (project_id, bidder_name, response_id,
		dimension, response_text, extracted_value, normalized_fields, evidence_segment_ids, evidence_entries)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, bidderName, r.ID, string(r.Dimension), r.Text,
		marshalJSON(r.ExtractedValue), marshalJSON(r.NormalizedFields),
		marshalJSON(r.EvidenceSegmentIDs), marshalJSON(r.EvidenceEntries))
	return err
}

// InsertSegment seeds one document segment.
func (s *Store) InsertSegment(ctx context.Context, seg review.SegmentRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO doc_segments (segment_id, asset_id, content_text,
		page_start, page_end, heading_path, doc_version_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seg.SegmentID, seg.AssetID, seg.ContentText, seg.PageStart, seg.PageEnd, seg.HeadingPath, seg.DocVersionID)
	return err
}

func marshalJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time checks against the pipeline's collaborator interfaces.
var (
	_ review.RequirementSource = (*Store)(nil)
	_ review.ResponseSource    = (*Store)(nil)
	_ review.SegmentStore      = (*Store)(nil)
	_ review.ItemSink          = (*Store)(nil)
)
