// Package pgstore persists memberships, plans, the ledger and positions in
// PostgreSQL through pgx.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/memberkit/pkg/pg"
	"github.com/dmitrymomot/memberkit/svc/membership"
)

// Store implements the membership store interfaces and LegacySource.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ membership.PlanStore        = (*Store)(nil)
	_ membership.MemberStore      = (*Store)(nil)
	_ membership.TransactionStore = (*Store)(nil)
	_ membership.PositionStore    = (*Store)(nil)
	_ membership.LegacySource     = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	return &Store{pool: pool}
}

const planColumns = `id, short_name, long_name, description, enabled, access_group,
	renewal_month, expire_end_of_month, fees, is_family, notifications_enabled`

func scanPlan(row pgx.CollectableRow) (*membership.Plan, error) {
	var (
		p     membership.Plan
		month int16
	)
	err := row.Scan(&p.ID, &p.ShortName, &p.LongName, &p.Description, &p.Enabled, &p.AccessGroup,
		&month, &p.ExpireEndOfMonth, &p.Fees, &p.IsFamily, &p.NotificationsEnabled)
	if err != nil {
		return nil, err
	}
	p.RenewalMonth = time.Month(month)
	return &p, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*membership.Plan, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	p, err := pgx.CollectExactlyOneRow(rows, scanPlan)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, membership.ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan %q: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]*membership.Plan, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY id`)
	plans, err := pgx.CollectRows(rows, scanPlan)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *Store) SavePlan(ctx context.Context, p *membership.Plan) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			short_name = EXCLUDED.short_name,
			long_name = EXCLUDED.long_name,
			description = EXCLUDED.description,
			enabled = EXCLUDED.enabled,
			access_group = EXCLUDED.access_group,
			renewal_month = EXCLUDED.renewal_month,
			expire_end_of_month = EXCLUDED.expire_end_of_month,
			fees = EXCLUDED.fees,
			is_family = EXCLUDED.is_family,
			notifications_enabled = EXCLUDED.notifications_enabled`,
		p.ID, p.ShortName, p.LongName, p.Description, p.Enabled, p.AccessGroup,
		int16(p.RenewalMonth), p.ExpireEndOfMonth, p.Fees, p.IsFamily, p.NotificationsEnabled)
	if err != nil {
		return fmt.Errorf("save plan %q: %w", p.ID, err)
	}
	return nil
}

func (s *Store) DeletePlan(ctx context.Context, id, transferTo string) error {
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if transferTo != "" {
			if _, err := tx.Exec(ctx, `UPDATE members SET plan_id = $2 WHERE plan_id = $1`, id, transferTo); err != nil {
				if pg.IsForeignKeyViolationError(err) {
					return membership.ErrPlanNotFound
				}
				return fmt.Errorf("transfer members: %w", err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
		if err != nil {
			if pg.IsForeignKeyViolationError(err) {
				return membership.ErrPlanHasMembers
			}
			return fmt.Errorf("delete plan %q: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return membership.ErrPlanNotFound
		}
		return nil
	})
}

func (s *Store) CountMembers(ctx context.Context, planID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM members WHERE plan_id = $1`, planID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

const memberColumns = `uid, plan_id, joined, expires, status, guid, number, notified, is_trial`

func scanMember(row pgx.CollectableRow) (*membership.Membership, error) {
	var (
		m      membership.Membership
		joined *time.Time
		status string
	)
	err := row.Scan(&m.UID, &m.PlanID, &joined, &m.Expires, &status, &m.GUID, &m.Number, &m.Notified, &m.IsTrial)
	if err != nil {
		return nil, err
	}
	if joined != nil {
		m.Joined = membership.Date(*joined)
	}
	m.Expires = membership.Date(m.Expires)
	m.Status = membership.Status(status)
	return &m, nil
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Store) GetMember(ctx context.Context, uid int64) (*membership.Membership, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM members WHERE uid = $1`, uid)
	m, err := pgx.CollectExactlyOneRow(rows, scanMember)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, membership.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member %d: %w", uid, err)
	}
	return m, nil
}

// SaveMembers upserts the rows in one transaction.
func (s *Store) SaveMembers(ctx context.Context, members ...*membership.Membership) error {
	if len(members) == 0 {
		return nil
	}
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range members {
			batch.Queue(`
				INSERT INTO members (`+memberColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (uid) DO UPDATE SET
					plan_id = EXCLUDED.plan_id,
					joined = EXCLUDED.joined,
					expires = EXCLUDED.expires,
					status = EXCLUDED.status,
					guid = EXCLUDED.guid,
					number = EXCLUDED.number,
					notified = EXCLUDED.notified,
					is_trial = EXCLUDED.is_trial`,
				m.UID, m.PlanID, nullDate(m.Joined), m.Expires, string(m.Status), m.GUID, m.Number, m.Notified, m.IsTrial)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save members: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteMember(ctx context.Context, uid int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM members WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrMemberNotFound
	}
	return nil
}

func (s *Store) ListFamily(ctx context.Context, guid string) ([]*membership.Membership, error) {
	if guid == "" {
		return nil, nil
	}
	return s.ListMembers(ctx, membership.MemberFilter{GUID: guid})
}

func (s *Store) ListMembers(ctx context.Context, f membership.MemberFilter) ([]*membership.Membership, error) {
	where, args := memberWhere(f)
	rows, _ := s.pool.Query(ctx, `SELECT `+memberColumns+` FROM members`+where+` ORDER BY uid`, args...)
	ms, err := pgx.CollectRows(rows, scanMember)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return ms, nil
}

func memberWhere(f membership.MemberFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if len(f.UIDs) > 0 {
		add("uid = ANY($%d)", f.UIDs)
	}
	if f.GUID != "" {
		add("guid = $%d", f.GUID)
	}
	if f.PlanID != "" {
		add("plan_id = $%d", f.PlanID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}
	if len(f.ExcludeStatuses) > 0 {
		add("NOT (status = ANY($%d))", statusStrings(f.ExcludeStatuses))
	}
	if !f.ExpiresBefore.IsZero() {
		add("expires < $%d", f.ExpiresBefore)
	}
	if f.HasNotified {
		conds = append(conds, "notified > 0")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func statusStrings(ss []membership.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (s *Store) DecrementNotified(ctx context.Context, uids ...int64) error {
	if len(uids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE members SET notified = notified - 1 WHERE uid = ANY($1) AND notified > 0`, uids)
	if err != nil {
		return fmt.Errorf("decrement notified: %w", err)
	}
	return nil
}

const transactionColumns = `id, date, by_uid, uid, plan_id, gateway, amount, new_expires, external_id, comment`

func scanTransaction(row pgx.CollectableRow) (*membership.Transaction, error) {
	var (
		tx membership.Transaction
		id uuid.UUID
	)
	err := row.Scan(&id, &tx.Date, &tx.By, &tx.UID, &tx.PlanID, &tx.Gateway, &tx.Amount, &tx.NewExpires, &tx.ExternalID, &tx.Comment)
	if err != nil {
		return nil, err
	}
	tx.ID = id.String()
	return &tx, nil
}

func (s *Store) RecordTransaction(ctx context.Context, tx *membership.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return fmt.Errorf("record transaction: invalid id %q: %w", tx.ID, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, tx.Date, tx.By, tx.UID, tx.PlanID, tx.Gateway, tx.Amount, tx.NewExpires, tx.ExternalID, tx.Comment)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*membership.Transaction, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, membership.ErrTransactionNotFound
	}
	rows, _ := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, parsed)
	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, membership.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) FindTransaction(ctx context.Context, gateway, externalID string) (*membership.Transaction, error) {
	if externalID == "" {
		return nil, membership.ErrTransactionNotFound
	}
	rows, _ := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE gateway = $1 AND external_id = $2`, gateway, externalID)
	tx, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, membership.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, uid int64) ([]*membership.Transaction, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE uid = $1 ORDER BY date, id`, uid)
	txs, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *membership.Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return membership.ErrTransactionNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET date = $2, by_uid = $3, uid = $4, plan_id = $5, gateway = $6,
			amount = $7, new_expires = $8, external_id = $9, comment = $10
		WHERE id = $1`,
		id, tx.Date, tx.By, tx.UID, tx.PlanID, tx.Gateway, tx.Amount, tx.NewExpires, tx.ExternalID, tx.Comment)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrTransactionNotFound
	}
	return nil
}

const positionColumns = `id, group_tag, title, occupant_uid, sort_order, enabled, show_vacant, contact, linked_group`

func scanPosition(row pgx.CollectableRow) (*membership.Position, error) {
	var p membership.Position
	err := row.Scan(&p.ID, &p.GroupTag, &p.Title, &p.OccupantUID, &p.Order, &p.Enabled, &p.ShowVacant, &p.Contact, &p.LinkedGroup)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPosition(ctx context.Context, id int64) (*membership.Position, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)
	p, err := pgx.CollectExactlyOneRow(rows, scanPosition)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, membership.ErrPositionNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

func (s *Store) SavePosition(ctx context.Context, p *membership.Position) error {
	if p.ID == 0 {
		err := s.pool.QueryRow(ctx, `
			INSERT INTO positions (group_tag, title, occupant_uid, sort_order, enabled, show_vacant, contact, linked_group)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			p.GroupTag, p.Title, p.OccupantUID, p.Order, p.Enabled, p.ShowVacant, p.Contact, p.LinkedGroup,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
		return nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions SET group_tag = $2, title = $3, occupant_uid = $4, sort_order = $5,
			enabled = $6, show_vacant = $7, contact = $8, linked_group = $9
		WHERE id = $1`,
		p.ID, p.GroupTag, p.Title, p.OccupantUID, p.Order, p.Enabled, p.ShowVacant, p.Contact, p.LinkedGroup)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrPositionNotFound
	}
	return nil
}

func (s *Store) ListPositions(ctx context.Context, groupTag string) ([]*membership.Position, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+positionColumns+` FROM positions WHERE group_tag = $1 ORDER BY sort_order, id`, groupTag)
	ps, err := pgx.CollectRows(rows, scanPosition)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return ps, nil
}

func (s *Store) ListPositionsByOccupant(ctx context.Context, uid int64) ([]*membership.Position, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+positionColumns+` FROM positions WHERE occupant_uid = $1 ORDER BY sort_order, id`, uid)
	ps, err := pgx.CollectRows(rows, scanPosition)
	if err != nil {
		return nil, fmt.Errorf("list held positions: %w", err)
	}
	return ps, nil
}

func (s *Store) ListLegacySubscriptions(ctx context.Context, sourcePlanID string) ([]membership.LegacySubscription, error) {
	rows, _ := s.pool.Query(ctx, `SELECT uid, plan_id, expires, amount FROM legacy_subscriptions WHERE plan_id = $1 ORDER BY uid`, sourcePlanID)
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (membership.LegacySubscription, error) {
		var sub membership.LegacySubscription
		err := row.Scan(&sub.UID, &sub.PlanID, &sub.Expires, &sub.Amount)
		return sub, err
	})
	if err != nil {
		return nil, fmt.Errorf("list legacy subscriptions: %w", err)
	}
	return subs, nil
}
