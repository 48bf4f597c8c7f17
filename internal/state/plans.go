package state

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mwhitt/crew/pkg/models"
)

// UpsertPlan writes a plan and its full step set in one transaction.
// Existing steps are replaced; the step set on the plan is authoritative.
func (db *DB) UpsertPlan(p *models.Plan) error {
	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO plans (id, conversation_id, user_id, task, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				task = excluded.task,
				updated_at = excluded.updated_at
		`, p.ID, p.ConversationID, p.UserID, p.Task, string(p.Status),
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
		if err != nil {
			return err
		}

		if _, err := tx.Exec("DELETE FROM steps WHERE plan_id = ?", p.ID); err != nil {
			return err
		}

		for _, s := range p.Steps {
			_, err := tx.Exec(`
				INSERT INTO steps (plan_id, idx, description, assigned_agent, depends_on, status, output, error)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, p.ID, s.Index, s.Description, s.AssignedAgent, encodeDeps(s.DependsOn),
				string(s.Status), s.Output, s.Error)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("upsert plan", err)
	}
	return nil
}

// UpdateStep persists a single step's status, output, and error.
func (db *DB) UpdateStep(planID string, s *models.Step) error {
	_, err := db.Exec(`
		UPDATE steps SET status = ?, output = ?, error = ?
		WHERE plan_id = ? AND idx = ?
	`, string(s.Status), s.Output, s.Error, planID, s.Index)
	if err != nil {
		return storageErr("update step", err)
	}
	return nil
}

// UpdatePlanStatus persists a plan's lifecycle status.
func (db *DB) UpdatePlanStatus(planID string, status models.PlanStatus, at time.Time) error {
	_, err := db.Exec(`
		UPDATE plans SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(at), planID)
	if err != nil {
		return storageErr("update plan status", err)
	}
	return nil
}

// ReadPlan retrieves a plan with its steps ordered by index.
// Returns nil if the plan does not exist.
func (db *DB) ReadPlan(planID string) (*models.Plan, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, user_id, task, status, created_at, updated_at
		FROM plans WHERE id = ?
	`, planID)
	return db.scanPlan(row)
}

// ActivePlan returns the non-terminal plan for a conversation, or nil when
// every plan there is draft-superseded or terminal.
func (db *DB) ActivePlan(conversationID string) (*models.Plan, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, user_id, task, status, created_at, updated_at
		FROM plans
		WHERE conversation_id = ? AND status IN ('active', 'paused')
		ORDER BY updated_at DESC
		LIMIT 1
	`, conversationID)
	return db.scanPlan(row)
}

// LatestPlan returns the most recently updated plan for a conversation,
// regardless of status, or nil if none exists.
func (db *DB) LatestPlan(conversationID string) (*models.Plan, error) {
	row := db.QueryRow(`
		SELECT id, conversation_id, user_id, task, status, created_at, updated_at
		FROM plans
		WHERE conversation_id = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, conversationID)
	return db.scanPlan(row)
}

func (db *DB) scanPlan(row *sql.Row) (*models.Plan, error) {
	var p models.Plan
	var status, createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.ConversationID, &p.UserID, &p.Task, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read plan", err)
	}

	p.Status = models.PlanStatus(status)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse plan created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse plan updated_at: %w", err)
	}

	steps, err := db.readSteps(p.ID)
	if err != nil {
		return nil, err
	}
	p.Steps = steps

	return &p, nil
}

func (db *DB) readSteps(planID string) ([]models.Step, error) {
	rows, err := db.Query(`
		SELECT idx, description, assigned_agent, depends_on, status, output, error
		FROM steps WHERE plan_id = ? ORDER BY idx ASC
	`, planID)
	if err != nil {
		return nil, storageErr("read steps", err)
	}
	defer rows.Close()

	var steps []models.Step
	for rows.Next() {
		var s models.Step
		var deps, status sql.NullString
		var output, errMsg sql.NullString
		if err := rows.Scan(&s.Index, &s.Description, &s.AssignedAgent, &deps, &status, &output, &errMsg); err != nil {
			return nil, storageErr("read steps", err)
		}
		s.Status = models.StepStatus(status.String)
		s.Output = output.String
		s.Error = errMsg.String
		s.DependsOn, err = decodeDeps(deps.String)
		if err != nil {
			return nil, fmt.Errorf("decode step deps: %w", err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read steps", err)
	}

	return steps, nil
}

// PurgeOldPlans deletes terminal plans older than the specified duration.
// Returns the number of plans deleted.
func (db *DB) PurgeOldPlans(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			DELETE FROM steps WHERE plan_id IN (
				SELECT id FROM plans
				WHERE status IN ('completed', 'failed') AND updated_at < ?
			)
		`, cutoff)
		if err != nil {
			return err
		}

		result, err := tx.Exec(`
			DELETE FROM plans WHERE status IN ('completed', 'failed') AND updated_at < ?
		`, cutoff)
		if err != nil {
			return err
		}
		count, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, storageErr("purge old plans", err)
	}
	return count, nil
}

// encodeDeps serializes a dependency index list as a comma-separated string.
func encodeDeps(deps []int) string {
	if len(deps) == 0 {
		return ""
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// decodeDeps parses a comma-separated dependency list.
func decodeDeps(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	deps := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}
