package membership

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// applyEffects runs the host-side consequences of entering status to for every
// written row. Failures are logged; the stored state is already final.
func (e *Engine) applyEffects(ctx context.Context, ev Event, to Status, plan *Plan, rows []*Membership) {
	var errs *multierror.Error
	for _, r := range rows {
		switch to {
		case StatusActive:
			errs = multierror.Append(errs, e.join(ctx, r.UID, plan))
			if ev == EventRenew {
				errs = multierror.Append(errs, e.reminders.Clear(ctx, r.UID))
			}
		case StatusExpired, StatusDropped:
			errs = multierror.Append(errs, e.leave(ctx, r.UID, plan, e.cfg.DisableExpired))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		e.logger.WarnContext(ctx, "lifecycle effects failed",
			logger.Event(string(ev)), logger.Status(to), logger.Error(err))
	}
}

func (e *Engine) join(ctx context.Context, uid int64, plan *Plan) error {
	var errs *multierror.Error
	if e.cfg.MemberGroup != "" {
		errs = multierror.Append(errs, e.groups.AddToGroup(ctx, e.cfg.MemberGroup, uid))
	}
	if plan != nil && plan.AccessGroup != "" {
		errs = multierror.Append(errs, e.groups.AddToGroup(ctx, plan.AccessGroup, uid))
	}
	return errs.ErrorOrNil()
}

func (e *Engine) leave(ctx context.Context, uid int64, plan *Plan, disable bool) error {
	var errs *multierror.Error
	if e.cfg.MemberGroup != "" {
		errs = multierror.Append(errs, e.groups.RemoveFromGroup(ctx, e.cfg.MemberGroup, uid))
	}
	if plan != nil && plan.AccessGroup != "" {
		errs = multierror.Append(errs, e.groups.RemoveFromGroup(ctx, plan.AccessGroup, uid))
	}
	if disable {
		errs = multierror.Append(errs, e.accounts.DisableAccount(ctx, uid))
	}
	errs = multierror.Append(errs, e.positions.ReleaseAll(ctx, uid))
	return errs.ErrorOrNil()
}

// switchPlan moves accounts from the old plan's access group to the new one.
func (e *Engine) switchPlan(ctx context.Context, prev, next *Membership, plan *Plan, rows []*Membership) {
	if prev.IsNew() || prev.PlanID == next.PlanID {
		return
	}
	old := e.planOrNil(ctx, prev.PlanID)
	if old == nil || old.AccessGroup == "" || (plan != nil && old.AccessGroup == plan.AccessGroup) {
		return
	}
	var errs *multierror.Error
	for _, r := range rows {
		errs = multierror.Append(errs, e.groups.RemoveFromGroup(ctx, old.AccessGroup, r.UID))
	}
	if err := errs.ErrorOrNil(); err != nil {
		e.logger.WarnContext(ctx, "failed to leave previous plan group",
			logger.UID(next.UID), logger.PlanID(prev.PlanID), logger.Error(err))
	}
}
