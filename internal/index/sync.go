package index

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/report"
	"github.com/starford/quire/internal/revision"
)

// SaveRun stores a run with its documents, links and findings in one
// transaction, replaces the search index with the run's documents and prunes
// runs beyond the retention limit.
func (db *DB) SaveRun(res *engine.Result, failed bool) error {
	rep := res.Report
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("index: encode report: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO runs (id, root, started_at, duration_ms, files, documents, duplicates, broken_links, ambiguous, failed, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.RunID, rep.Root, rep.StartedAt, rep.DurationMS, rep.Files, rep.Documents,
		len(rep.Duplicates), len(rep.BrokenLinks), len(rep.Ambiguous), failed, string(reportJSON))
	if err != nil {
		return fmt.Errorf("index: insert run: %w", err)
	}

	docStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO documents (run_id, source, permalink, title, layout, status, checksum, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare document insert: %w", err)
	}
	defer docStmt.Close()

	var docs []*models.Document
	for doc := range res.Registry.All("") {
		docs = append(docs, doc)
		if _, err := docStmt.Exec(rep.RunID, doc.Source, doc.Permalink, doc.Title,
			string(doc.Layout), string(doc.Status), doc.Checksum, doc.Body); err != nil {
			return fmt.Errorf("index: insert document: %w", err)
		}
	}
	if err := ftsReplace(tx, docs); err != nil {
		return err
	}

	if len(res.References) > 0 {
		linkStmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (run_id, source, target, raw) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer linkStmt.Close()
		for _, ref := range res.References {
			if _, err := linkStmt.Exec(rep.RunID, ref.Source, ref.Target, ref.Raw); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	issueStmt, err := tx.Prepare(`INSERT INTO issues (run_id, kind, subject, detail) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare issue insert: %w", err)
	}
	defer issueStmt.Close()
	for _, is := range IssuesOf(rep) {
		if _, err := issueStmt.Exec(rep.RunID, is.Kind, is.Subject, is.Detail); err != nil {
			return fmt.Errorf("index: insert issue: %w", err)
		}
	}

	if db.retention > 0 {
		_, err = tx.Exec(`DELETE FROM runs WHERE seq NOT IN (SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)`, db.retention)
		if err != nil {
			return fmt.Errorf("index: prune runs: %w", err)
		}
	}

	return tx.Commit()
}

// IssuesOf flattens the findings of a report into rows.
func IssuesOf(rep *report.Report) []IssueRow {
	var out []IssueRow
	for _, m := range rep.Malformed {
		out = append(out, IssueRow{Kind: metrics.KindMalformed, Subject: m.Source, Detail: m.Reason})
	}
	for _, d := range rep.Duplicates {
		out = append(out, IssueRow{Kind: metrics.KindDuplicate, Subject: d.Permalink, Detail: strings.Join(d.Sources, ", ")})
	}
	for _, l := range rep.BrokenLinks {
		out = append(out, IssueRow{Kind: metrics.KindBrokenLink, Subject: l.Source, Detail: l.Target})
	}
	for _, g := range rep.Ambiguous {
		out = append(out, IssueRow{Kind: metrics.KindAmbiguous, Subject: g.Key, Detail: memberList(g.Members)})
	}
	for _, g := range rep.UnresolvedDrafts {
		out = append(out, IssueRow{Kind: metrics.KindUnresolvedDraft, Subject: g.Key, Detail: memberList(g.Members)})
	}
	return out
}

func memberList(members []revision.Member) string {
	links := make([]string, len(members))
	for i, m := range members {
		links[i] = m.Permalink
	}
	return strings.Join(links, ", ")
}
