package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dmitrymomot/memberkit/pkg/logger"
)

// LegacySubscription is a subscription record from a previous system.
type LegacySubscription struct {
	UID     int64
	PlanID  string
	Expires time.Time
	Amount  int64
}

// LegacySource reads legacy subscriptions for one source plan.
type LegacySource interface {
	ListLegacySubscriptions(ctx context.Context, sourcePlanID string) ([]LegacySubscription, error)
}

// ImportReport summarises an import.
type ImportReport struct {
	Imported int   `json:"imported"`
	Skipped  int   `json:"skipped"`
	Failed   int   `json:"failed"`
	Errors   error `json:"-"`
}

// Importer creates memberships in bulk through Engine.Add.
type Importer struct {
	engine    *Engine
	directory GroupDirectory
	legacy    LegacySource
	logger    *slog.Logger
}

// NewImporter creates an importer. directory and legacy may be nil when the
// corresponding import is not used.
func NewImporter(engine *Engine, directory GroupDirectory, legacy LegacySource, log *slog.Logger) *Importer {
	if engine == nil {
		panic("membership: engine cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		engine:    engine,
		directory: directory,
		legacy:    legacy,
		logger:    log.With(logger.Component("importer")),
	}
}

// ImportFromGroup gives every account of a host group that has no membership
// a membership on planID. A zero defaultExpiration uses the calculator.
func (i *Importer) ImportFromGroup(ctx context.Context, groupID, planID string, defaultExpiration time.Time) (ImportReport, error) {
	if i.directory == nil {
		return ImportReport{}, fmt.Errorf("membership: group import is not configured")
	}
	if _, err := i.engine.Catalog().Get(ctx, planID); err != nil {
		return ImportReport{}, err
	}
	uids, err := i.directory.ListGroupMembers(ctx, groupID)
	if err != nil {
		return ImportReport{}, persistenceError("list group members", err)
	}

	var report ImportReport
	var errs *multierror.Error
	for _, uid := range uids {
		m, err := i.engine.Read(ctx, uid)
		if err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			continue
		}
		if !m.IsNew() {
			report.Skipped++
			continue
		}
		if _, err := i.engine.Add(ctx, AddRequest{
			UID:     uid,
			PlanID:  planID,
			Expires: defaultExpiration,
			Gateway: "import",
			Comment: "imported from group " + groupID,
		}); err != nil {
			report.Failed++
			errs = multierror.Append(errs, fmt.Errorf("account %d: %w", uid, err))
			continue
		}
		report.Imported++
	}

	report.Errors = errs.ErrorOrNil()
	i.logger.InfoContext(ctx, "group import finished",
		slog.String("group_id", groupID), logger.PlanID(planID),
		logger.Count("imported", report.Imported), logger.Count("skipped", report.Skipped),
		logger.Count("failed", report.Failed))
	return report, nil
}

// ImportFromLegacySubscriptions moves legacy subscriptions of sourcePlanID
// onto planID. expirationOverride, when set, replaces every record's date.
// Accounts whose membership already runs past the imported date are skipped.
func (i *Importer) ImportFromLegacySubscriptions(ctx context.Context, sourcePlanID, planID string, expirationOverride time.Time) (ImportReport, error) {
	if i.legacy == nil {
		return ImportReport{}, fmt.Errorf("membership: legacy import is not configured")
	}
	if _, err := i.engine.Catalog().Get(ctx, planID); err != nil {
		return ImportReport{}, err
	}
	subs, err := i.legacy.ListLegacySubscriptions(ctx, sourcePlanID)
	if err != nil {
		return ImportReport{}, persistenceError("list legacy subscriptions", err)
	}

	var report ImportReport
	var errs *multierror.Error
	for _, sub := range subs {
		expires := Date(sub.Expires)
		if !expirationOverride.IsZero() {
			expires = Date(expirationOverride)
		}

		m, err := i.engine.Read(ctx, sub.UID)
		if err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			continue
		}
		if !m.IsNew() && !expires.IsZero() && !m.Expires.Before(expires) {
			report.Skipped++
			continue
		}

		if _, err := i.engine.Add(ctx, AddRequest{
			UID:     sub.UID,
			PlanID:  planID,
			Expires: expires,
			Amount:  sub.Amount,
			Gateway: "import",
			Comment: "imported from legacy plan " + sourcePlanID,
		}); err != nil {
			report.Failed++
			errs = multierror.Append(errs, fmt.Errorf("account %d: %w", sub.UID, err))
			continue
		}
		report.Imported++
	}

	report.Errors = errs.ErrorOrNil()
	i.logger.InfoContext(ctx, "legacy import finished",
		slog.String("source_plan_id", sourcePlanID), logger.PlanID(planID),
		logger.Count("imported", report.Imported), logger.Count("skipped", report.Skipped),
		logger.Count("failed", report.Failed))
	return report, nil
}
