package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const responseColumns = `id, fragment_id, subject_id, status, triggered_agents, documents,
	actions, failures, aggregate_confidence, processed_at`

func (s *Store) SaveResponse(ctx context.Context, frag *fragment.Fragment, resp *agent.Response) error {
	docs, err := jsonbList("documents", resp.Documents)
	if err != nil {
		return err
	}
	failures, err := jsonbList("failures", resp.Failures)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO fragment_responses
		 (id, fragment_id, subject_id, speaker, text, fragment_confidence, spoken_at,
		  status, triggered_agents, documents, actions, failures, aggregate_confidence, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		resp.ID, frag.ID, frag.SubjectID, frag.Speaker, frag.Text, frag.Confidence, spokenAt(frag.Timestamp),
		string(resp.Status), orEmpty(resp.TriggeredAgents), docs, orEmpty(resp.Actions), failures,
		resp.AggregateConfidence, resp.ProcessedAt)
	if err != nil {
		return fmt.Errorf("save response %s: %w", resp.ID, err)
	}
	return nil
}

func (s *Store) GetResponse(ctx context.Context, id string) (*agent.Response, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+responseColumns+` FROM fragment_responses WHERE id = $1`, id)
	r, err := scanResponse(row)
	if err != nil {
		return nil, notFoundWrap(err, "get response %s", id)
	}
	return &r, nil
}

func (s *Store) ListResponsesBySubject(ctx context.Context, subjectID string, limit int) ([]agent.Response, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+responseColumns+` FROM fragment_responses
		 WHERE subject_id = $1 ORDER BY processed_at DESC LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list responses for %s: %w", subjectID, err)
	}
	defer rows.Close()

	out := []agent.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanResponse(row scannable) (agent.Response, error) {
	var (
		r              agent.Response
		status         string
		docs, failures []byte
	)
	if err := row.Scan(&r.ID, &r.FragmentID, &r.SubjectID, &status, &r.TriggeredAgents, &docs,
		&r.Actions, &failures, &r.AggregateConfidence, &r.ProcessedAt); err != nil {
		return agent.Response{}, err
	}
	r.Status = agent.Status(status)
	var err error
	if r.Documents, err = decodeJSONBList[agent.Document]("documents", docs); err != nil {
		return agent.Response{}, err
	}
	if r.Failures, err = decodeJSONBList[agent.Failure]("failures", failures); err != nil {
		return agent.Response{}, err
	}
	if len(r.Failures) == 0 {
		r.Failures = nil
	}
	r.TriggeredAgents = orEmpty(r.TriggeredAgents)
	r.Actions = orEmpty(r.Actions)
	return r, nil
}
