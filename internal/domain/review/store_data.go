package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"perfreview/internal/domain/audit"
)

const pgUniqueViolation = "23505"

// PGStore is the PostgreSQL Store. Each InTx call is one database transaction.
type PGStore struct {
	DB    *pgxpool.Pool
	audit *audit.Store
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db, audit: audit.NewStore(db)}
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PGStore) Count(ctx context.Context, companyID string, filter audit.Filter) (int, error) {
	return s.audit.Count(ctx, companyID, filter)
}

func (s *PGStore) List(ctx context.Context, companyID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Entry, error) {
	return s.audit.List(ctx, companyID, filter, includeDetails, limit, offset)
}

type pgTx struct {
	tx pgx.Tx
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// lockClause holds the row until commit so read-modify-write updates cannot overwrite a
// concurrent change.
func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func (t *pgTx) GetCompany(ctx context.Context, companyID string) (Company, error) {
	var c Company
	err := t.tx.QueryRow(ctx, "SELECT id, name, created_at FROM companies WHERE id = $1", companyID).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, notFound(err)
}

func (t *pgTx) InsertCompany(ctx context.Context, company Company) error {
	_, err := t.tx.Exec(ctx, "INSERT INTO companies (id, name, created_at) VALUES ($1,$2,$3)", company.ID, company.Name, company.CreatedAt)
	return err
}

func (t *pgTx) FindCompanyByName(ctx context.Context, name string) (Company, error) {
	var c Company
	err := t.tx.QueryRow(ctx, "SELECT id, name, created_at FROM companies WHERE name = $1", name).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, notFound(err)
}

const userColumns = `id, company_id, name, email, username, role, department, position, manager_id, active,
  archived_at, archived_reason, archived_manager_name, archived_manager_email, archived_department,
  archived_position, archived_company_name, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.Username, &u.Role, &u.Department, &u.Position, &u.ManagerID, &u.Active,
		&u.ArchivedAt, &u.ArchivedReason, &u.ArchivedManagerName, &u.ArchivedManagerEmail, &u.ArchivedDepartment,
		&u.ArchivedPosition, &u.ArchivedCompanyName, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (t *pgTx) GetUser(ctx context.Context, companyID, userID string, forUpdate bool) (User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE company_id = $1 AND id::text = $2" + lockClause(forUpdate)
	u, err := scanUser(t.tx.QueryRow(ctx, query, companyID, userID))
	return u, notFound(err)
}

func (t *pgTx) FindUserByEmail(ctx context.Context, companyID, email string) (User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE company_id = $1 AND lower(email) = lower($2)", companyID, email))
	return u, notFound(err)
}

func (t *pgTx) ListUsers(ctx context.Context, companyID string, filter UserFilter) ([]User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE company_id = $1"
	args := []any{companyID}
	if !filter.IncludeArchived {
		query += " AND active = true"
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		query += fmt.Sprintf(" AND manager_id::text = $%d", len(args))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	query += " ORDER BY name, id"

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertUser(ctx context.Context, u User) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO users (id, company_id, name, email, username, role, department, position, manager_id, active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
  `, u.ID, u.CompanyID, u.Name, u.Email, u.Username, u.Role, u.Department, u.Position, u.ManagerID, u.Active, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err, "users_company_email_idx") {
		return &ValidationError{Fields: []FieldIssue{{Field: "email", Reason: "is already in use"}}}
	}
	return err
}

func (t *pgTx) UpdateUser(ctx context.Context, u User) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE users
    SET name = $1, email = $2, username = $3, role = $4, department = $5, position = $6, manager_id = $7, active = $8,
        archived_at = $9, archived_reason = $10, archived_manager_name = $11, archived_manager_email = $12,
        archived_department = $13, archived_position = $14, archived_company_name = $15, updated_at = $16
    WHERE company_id = $17 AND id = $18
  `, u.Name, u.Email, u.Username, u.Role, u.Department, u.Position, u.ManagerID, u.Active,
		u.ArchivedAt, u.ArchivedReason, u.ArchivedManagerName, u.ArchivedManagerEmail,
		u.ArchivedDepartment, u.ArchivedPosition, u.ArchivedCompanyName, u.UpdatedAt, u.CompanyID, u.ID)
	if isUniqueViolation(err, "users_company_email_idx") {
		return &ValidationError{Fields: []FieldIssue{{Field: "email", Reason: "is already in use"}}}
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteUser(ctx context.Context, companyID, userID string) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM users WHERE company_id = $1 AND id::text = $2", companyID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CountDependents(ctx context.Context, companyID, userID string) (Dependents, error) {
	var d Dependents
	err := t.tx.QueryRow(ctx, `
    SELECT
      (SELECT COUNT(1) FROM evaluations WHERE company_id = $1 AND (employee_id::text = $2 OR manager_id::text = $2)),
      (SELECT COUNT(1) FROM evaluation_item_assignments WHERE company_id = $1 AND employee_id::text = $2),
      (SELECT COUNT(1) FROM users WHERE company_id = $1 AND manager_id::text = $2)
  `, companyID, userID).Scan(&d.Evaluations, &d.Assignments, &d.DirectReports)
	return d, err
}

func (t *pgTx) CountActiveReports(ctx context.Context, companyID, managerID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE company_id = $1 AND manager_id::text = $2 AND active = true", companyID, managerID).Scan(&n)
	return n, err
}

func (t *pgTx) DetachReports(ctx context.Context, companyID, managerID string) (int, error) {
	tag, err := t.tx.Exec(ctx, "UPDATE users SET manager_id = NULL, updated_at = now() WHERE company_id = $1 AND manager_id::text = $2", companyID, managerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const itemColumns = `id, company_id, title, description, type, level, assigned_to, sort_order, created_by, active,
  evaluation_deadline, deadline_set_by, archived_at, archived_by, archived_reason, created_at, updated_at`

func scanItem(row pgx.Row) (EvaluationItem, error) {
	var i EvaluationItem
	err := row.Scan(&i.ID, &i.CompanyID, &i.Title, &i.Description, &i.Type, &i.Level, &i.AssignedTo, &i.SortOrder, &i.CreatedBy, &i.Active,
		&i.EvaluationDeadline, &i.DeadlineSetBy, &i.ArchivedAt, &i.ArchivedBy, &i.ArchivedReason, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (t *pgTx) GetItem(ctx context.Context, companyID, itemID string, forUpdate bool) (EvaluationItem, error) {
	query := "SELECT " + itemColumns + " FROM evaluation_items WHERE company_id = $1 AND id::text = $2" + lockClause(forUpdate)
	i, err := scanItem(t.tx.QueryRow(ctx, query, companyID, itemID))
	return i, notFound(err)
}

func (t *pgTx) ListItems(ctx context.Context, companyID string, filter ItemFilter) ([]EvaluationItem, error) {
	query := "SELECT " + itemColumns + " FROM evaluation_items WHERE company_id = $1"
	args := []any{companyID}
	if filter.Level != "" {
		args = append(args, filter.Level)
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		query += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	if filter.IDs != nil {
		args = append(args, filter.IDs)
		query += fmt.Sprintf(" AND id::text = ANY($%d)", len(args))
	}
	if !filter.IncludeInactive {
		query += " AND active = true"
	}
	if !filter.IncludeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY sort_order, title, id"

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EvaluationItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertItem(ctx context.Context, i EvaluationItem) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO evaluation_items (id, company_id, title, description, type, level, assigned_to, sort_order, created_by, active,
      evaluation_deadline, deadline_set_by, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
  `, i.ID, i.CompanyID, i.Title, i.Description, i.Type, i.Level, i.AssignedTo, i.SortOrder, i.CreatedBy, i.Active,
		i.EvaluationDeadline, i.DeadlineSetBy, i.CreatedAt, i.UpdatedAt)
	return err
}

func (t *pgTx) UpdateItem(ctx context.Context, i EvaluationItem) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE evaluation_items
    SET title = $1, description = $2, type = $3, assigned_to = $4, sort_order = $5, active = $6,
        evaluation_deadline = $7, deadline_set_by = $8, archived_at = $9, archived_by = $10, archived_reason = $11, updated_at = $12
    WHERE company_id = $13 AND id = $14
  `, i.Title, i.Description, i.Type, i.AssignedTo, i.SortOrder, i.Active,
		i.EvaluationDeadline, i.DeadlineSetBy, i.ArchivedAt, i.ArchivedBy, i.ArchivedReason, i.UpdatedAt, i.CompanyID, i.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteItem(ctx context.Context, companyID, itemID string) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM evaluation_items WHERE company_id = $1 AND id::text = $2", companyID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func assignmentWhere(companyID string, filter AssignmentFilter) (string, []any) {
	where := " WHERE company_id = $1"
	args := []any{companyID}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		where += fmt.Sprintf(" AND evaluation_item_id::text = $%d", len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND employee_id::text = $%d", len(args))
	}
	return where, args
}

func (t *pgTx) ListAssignments(ctx context.Context, companyID string, filter AssignmentFilter) ([]Assignment, error) {
	where, args := assignmentWhere(companyID, filter)
	rows, err := t.tx.Query(ctx, `
    SELECT evaluation_item_id, employee_id, assigned_by, company_id, created_at
    FROM evaluation_item_assignments`+where+`
    ORDER BY created_at, evaluation_item_id, employee_id
  `, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.EvaluationItemID, &a.EmployeeID, &a.AssignedBy, &a.CompanyID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertAssignment(ctx context.Context, a Assignment) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
    INSERT INTO evaluation_item_assignments (evaluation_item_id, employee_id, assigned_by, company_id, created_at)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (evaluation_item_id, employee_id) DO NOTHING
  `, a.EvaluationItemID, a.EmployeeID, a.AssignedBy, a.CompanyID, a.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) DeleteAssignments(ctx context.Context, companyID string, filter AssignmentFilter) (int, error) {
	where, args := assignmentWhere(companyID, filter)
	tag, err := t.tx.Exec(ctx, "DELETE FROM evaluation_item_assignments"+where, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const cycleColumns = "id, company_id, name, start_date, end_date, status, created_by, closed_by, closed_at, created_at, updated_at"

func scanCycle(row pgx.Row) (PerformanceCycle, error) {
	var c PerformanceCycle
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.StartDate, &c.EndDate, &c.Status, &c.CreatedBy, &c.ClosedBy, &c.ClosedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (t *pgTx) GetCycle(ctx context.Context, companyID, cycleID string, forUpdate bool) (PerformanceCycle, error) {
	query := "SELECT " + cycleColumns + " FROM performance_cycles WHERE company_id = $1 AND id::text = $2" + lockClause(forUpdate)
	c, err := scanCycle(t.tx.QueryRow(ctx, query, companyID, cycleID))
	return c, notFound(err)
}

func (t *pgTx) ActiveCycle(ctx context.Context, companyID string) (PerformanceCycle, error) {
	c, err := scanCycle(t.tx.QueryRow(ctx, "SELECT "+cycleColumns+" FROM performance_cycles WHERE company_id = $1 AND status = 'active'", companyID))
	return c, notFound(err)
}

func (t *pgTx) ListCycles(ctx context.Context, companyID string) ([]PerformanceCycle, error) {
	rows, err := t.tx.Query(ctx, "SELECT "+cycleColumns+" FROM performance_cycles WHERE company_id = $1 ORDER BY start_date DESC, id", companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PerformanceCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertCycle(ctx context.Context, c PerformanceCycle) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO performance_cycles (id, company_id, name, start_date, end_date, status, created_by, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, c.ID, c.CompanyID, c.Name, c.StartDate, c.EndDate, c.Status, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err, "performance_cycles_one_active_idx") {
		return invalidTransition("activate cycle", "another active cycle")
	}
	return err
}

func (t *pgTx) UpdateCycle(ctx context.Context, c PerformanceCycle) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE performance_cycles
    SET name = $1, start_date = $2, end_date = $3, status = $4, closed_by = $5, closed_at = $6, updated_at = $7
    WHERE company_id = $8 AND id = $9
  `, c.Name, c.StartDate, c.EndDate, c.Status, c.ClosedBy, c.ClosedAt, c.UpdatedAt, c.CompanyID, c.ID)
	if isUniqueViolation(err, "performance_cycles_one_active_idx") {
		return invalidTransition("activate cycle", "another active cycle")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const evaluationColumns = `id, company_id, employee_id, manager_id, cycle_id, period_type, period_date, status, overall_rating,
  manager_comments, evaluation_items_data, is_reopened, previous_status, reopened_at, reopened_by, reopened_reason,
  completion_count, created_at, updated_at`

func scanEvaluation(row pgx.Row) (Evaluation, error) {
	var e Evaluation
	var itemsJSON []byte
	if err := row.Scan(&e.ID, &e.CompanyID, &e.EmployeeID, &e.ManagerID, &e.CycleID, &e.PeriodType, &e.PeriodDate, &e.Status, &e.OverallRating,
		&e.ManagerComments, &itemsJSON, &e.IsReopened, &e.PreviousStatus, &e.ReopenedAt, &e.ReopenedBy, &e.ReopenedReason,
		&e.CompletionCount, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Evaluation{}, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &e.Items); err != nil {
			return Evaluation{}, fmt.Errorf("decode evaluation items: %w", err)
		}
	}
	return e, nil
}

func encodeItems(items []SnapshotItem) ([]byte, error) {
	if items == nil {
		items = []SnapshotItem{}
	}
	return json.Marshal(items)
}

func (t *pgTx) GetEvaluation(ctx context.Context, companyID, evaluationID string, forUpdate bool) (Evaluation, error) {
	query := "SELECT " + evaluationColumns + " FROM evaluations WHERE company_id = $1 AND id::text = $2" + lockClause(forUpdate)
	e, err := scanEvaluation(t.tx.QueryRow(ctx, query, companyID, evaluationID))
	return e, notFound(err)
}

func (t *pgTx) FindEvaluation(ctx context.Context, companyID string, key PeriodKey) (Evaluation, error) {
	e, err := scanEvaluation(t.tx.QueryRow(ctx, "SELECT "+evaluationColumns+`
    FROM evaluations
    WHERE company_id = $1 AND employee_id::text = $2 AND cycle_id::text = $3 AND period_type = $4 AND period_date = $5
  `, companyID, key.EmployeeID, key.CycleID, key.PeriodType, key.PeriodDate))
	return e, notFound(err)
}

func (t *pgTx) ListEvaluations(ctx context.Context, companyID string, filter EvaluationFilter) ([]Evaluation, error) {
	var conds []string
	args := []any{companyID}
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.EmployeeID != "" {
		add("employee_id::text = $%d", filter.EmployeeID)
	}
	if filter.EmployeeIDs != nil {
		add("employee_id::text = ANY($%d)", filter.EmployeeIDs)
	}
	if filter.ManagerID != "" {
		add("manager_id::text = $%d", filter.ManagerID)
	}
	if filter.CycleID != "" {
		add("cycle_id::text = $%d", filter.CycleID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	query := "SELECT " + evaluationColumns + " FROM evaluations WHERE company_id = $1"
	for _, cond := range conds {
		query += " AND " + cond
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertEvaluation(ctx context.Context, e Evaluation) error {
	items, err := encodeItems(e.Items)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
    INSERT INTO evaluations (id, company_id, employee_id, manager_id, cycle_id, period_type, period_date, status, overall_rating,
      manager_comments, evaluation_items_data, completion_count, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
  `, e.ID, e.CompanyID, e.EmployeeID, e.ManagerID, e.CycleID, e.PeriodType, e.PeriodDate, e.Status, e.OverallRating,
		e.ManagerComments, items, e.CompletionCount, e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err, "evaluations_period_idx") {
		return ErrDuplicateEvaluation
	}
	return err
}

func (t *pgTx) UpdateEvaluation(ctx context.Context, e Evaluation) error {
	items, err := encodeItems(e.Items)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
    UPDATE evaluations
    SET manager_id = $1, status = $2, overall_rating = $3, manager_comments = $4, evaluation_items_data = $5,
        is_reopened = $6, previous_status = $7, reopened_at = $8, reopened_by = $9, reopened_reason = $10,
        completion_count = $11, updated_at = $12
    WHERE company_id = $13 AND id = $14
  `, e.ManagerID, e.Status, e.OverallRating, e.ManagerComments, items,
		e.IsReopened, e.PreviousStatus, e.ReopenedAt, e.ReopenedBy, e.ReopenedReason,
		e.CompletionCount, e.UpdatedAt, e.CompanyID, e.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteEmployeeEvaluations(ctx context.Context, companyID, employeeID string) (int, error) {
	tag, err := t.tx.Exec(ctx, "DELETE FROM evaluations WHERE company_id = $1 AND employee_id::text = $2", companyID, employeeID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) ClearEvaluationManager(ctx context.Context, companyID, managerID string) (int, error) {
	tag, err := t.tx.Exec(ctx, "UPDATE evaluations SET manager_id = NULL, updated_at = now() WHERE company_id = $1 AND manager_id::text = $2", companyID, managerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) AppendAudit(ctx context.Context, entry audit.Entry) error {
	_, err := audit.InsertTx(ctx, t.tx, entry)
	return err
}
