package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"collabberry-rounds/internal/domain"
)

// PostgresAssessmentsRepository 考核记录Repository实现
type PostgresAssessmentsRepository struct {
	db *sql.DB
}

// NewPostgresAssessmentsRepository 创建考核记录Repository
func NewPostgresAssessmentsRepository(db *sql.DB) *PostgresAssessmentsRepository {
	return &PostgresAssessmentsRepository{db: db}
}

// 确保实现了接口
var _ AssessmentsRepository = (*PostgresAssessmentsRepository)(nil)

const assessmentColumns = `
	assessment_id::text,
	round_id::text,
	assessor_id::text,
	assessed_id::text,
	culture_score,
	work_score,
	feedback_positive,
	feedback_negative,
	created_at
`

func scanAssessment(row interface{ Scan(...any) error }) (*domain.Assessment, error) {
	var a domain.Assessment
	err := row.Scan(
		&a.AssessmentID,
		&a.RoundID,
		&a.AssessorID,
		&a.AssessedID,
		&a.CultureScore,
		&a.WorkScore,
		&a.FeedbackPositive,
		&a.FeedbackNegative,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssessment 获取考核记录
func (r *PostgresAssessmentsRepository) GetAssessment(ctx context.Context, assessmentID string) (*domain.Assessment, error) {
	if assessmentID == "" {
		return nil, fmt.Errorf("assessment %w", ErrNotFound)
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE assessment_id = $1`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, assessmentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("assessment %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return a, nil
}

// ListByRound 查询轮次内的考核记录
func (r *PostgresAssessmentsRepository) ListByRound(ctx context.Context, roundID string, filters *AssessmentFilters) ([]*domain.Assessment, error) {
	if roundID == "" {
		return []*domain.Assessment{}, nil
	}

	where := []string{"round_id = $1"}
	args := []any{roundID}
	argN := 2

	if filters != nil {
		if filters.AssessorID != "" {
			where = append(where, fmt.Sprintf("assessor_id = $%d", argN))
			args = append(args, filters.AssessorID)
			argN++
		}
		if filters.AssessedID != "" {
			where = append(where, fmt.Sprintf("assessed_id = $%d", argN))
			args = append(args, filters.AssessedID)
			argN++
		}
	}

	query := `
		SELECT ` + assessmentColumns + `
		FROM assessments
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessments: %w", err)
	}
	return assessments, nil
}

// Exists (round, assessor, assessed) 三元组是否已有记录
func (r *PostgresAssessmentsRepository) Exists(ctx context.Context, roundID, assessorID, assessedID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM assessments
			WHERE round_id = $1 AND assessor_id = $2 AND assessed_id = $3
		)`,
		roundID, assessorID, assessedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assessment existence: %w", err)
	}
	return exists, nil
}

// CreateAssessment 创建考核记录
func (r *PostgresAssessmentsRepository) CreateAssessment(ctx context.Context, a *domain.Assessment) (string, error) {
	if a.RoundID == "" || a.AssessorID == "" || a.AssessedID == "" {
		return "", fmt.Errorf("round_id, assessor_id and assessed_id are required")
	}

	query := `
		INSERT INTO assessments (
			round_id,
			assessor_id,
			assessed_id,
			culture_score,
			work_score,
			feedback_positive,
			feedback_negative
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING assessment_id::text
	`

	var assessmentID string
	err := r.db.QueryRowContext(ctx, query,
		a.RoundID,
		a.AssessorID,
		a.AssessedID,
		a.CultureScore,
		a.WorkScore,
		a.FeedbackPositive,
		a.FeedbackNegative,
	).Scan(&assessmentID)
	if err != nil {
		// 唯一约束 assessments_round_assessor_assessed_key 拦下并发双写
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", fmt.Errorf("%w: assessment for this pair already exists", ErrDuplicate)
		}
		return "", fmt.Errorf("failed to create assessment: %w", err)
	}
	return assessmentID, nil
}

// UpdateAssessment 编辑考核记录
func (r *PostgresAssessmentsRepository) UpdateAssessment(ctx context.Context, assessmentID string, patch *AssessmentPatch) error {
	if assessmentID == "" {
		return fmt.Errorf("assessment_id is required")
	}
	if patch == nil {
		return nil
	}

	set := []string{}
	args := []any{assessmentID}
	argN := 2

	if patch.CultureScore != nil {
		set = append(set, fmt.Sprintf("culture_score = $%d", argN))
		args = append(args, *patch.CultureScore)
		argN++
	}
	if patch.WorkScore != nil {
		set = append(set, fmt.Sprintf("work_score = $%d", argN))
		args = append(args, *patch.WorkScore)
		argN++
	}
	if patch.FeedbackPositive != nil {
		set = append(set, fmt.Sprintf("feedback_positive = $%d", argN))
		args = append(args, *patch.FeedbackPositive)
		argN++
	}
	if patch.FeedbackNegative != nil {
		set = append(set, fmt.Sprintf("feedback_negative = $%d", argN))
		args = append(args, *patch.FeedbackNegative)
		argN++
	}
	if len(set) == 0 {
		return nil
	}

	query := `UPDATE assessments SET ` + strings.Join(set, ", ") + ` WHERE assessment_id = $1`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("assessment %w", ErrNotFound)
	}
	return nil
}
