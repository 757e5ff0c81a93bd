package membership

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/dmitrymomot/memberkit/pkg/logger"
	"github.com/dmitrymomot/memberkit/pkg/validator"
)

// Positions manages board and committee seats. An occupant is a member of
// the seat's linked host group while holding it.
type Positions struct {
	store  PositionStore
	groups GroupManager
	logger *slog.Logger
}

// NewPositions returns a Positions service backed by store and groups.
func NewPositions(store PositionStore, groups GroupManager, log *slog.Logger) *Positions {
	if store == nil {
		panic("membership: position store cannot be nil")
	}
	if groups == nil {
		groups = nopCollaborator{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Positions{store: store, groups: groups, logger: log.With(logger.Component("positions"))}
}

// Save creates or updates a position definition. The occupant is kept.
func (p *Positions) Save(ctx context.Context, pos *Position) error {
	if err := validator.Apply(
		validator.Required("group_tag", pos.GroupTag),
		validator.Required("title", pos.Title),
		validator.MaxLen("title", pos.Title, 120),
	); err != nil {
		return err
	}
	if pos.ID != 0 {
		existing, err := p.get(ctx, pos.ID)
		if err != nil {
			return err
		}
		pos.OccupantUID = existing.OccupantUID
	}
	if err := p.store.SavePosition(ctx, pos); err != nil {
		return persistenceError("save position", err)
	}
	return nil
}

func (p *Positions) List(ctx context.Context, groupTag string) ([]*Position, error) {
	list, err := p.store.ListPositions(ctx, groupTag)
	if err != nil {
		return nil, persistenceError("list positions", err)
	}
	return list, nil
}

// Assign seats uid. The previous occupant leaves the linked group.
func (p *Positions) Assign(ctx context.Context, positionID, uid int64) error {
	if uid <= 0 {
		return ErrInvalidUID
	}
	pos, err := p.get(ctx, positionID)
	if err != nil {
		return err
	}
	prev := pos.OccupantUID
	if prev == uid {
		return nil
	}

	pos.OccupantUID = uid
	if err := p.store.SavePosition(ctx, pos); err != nil {
		return persistenceError("assign position", err)
	}

	var errs *multierror.Error
	if pos.LinkedGroup != "" {
		if prev != 0 {
			errs = multierror.Append(errs, p.groups.RemoveFromGroup(ctx, pos.LinkedGroup, prev))
		}
		errs = multierror.Append(errs, p.groups.AddToGroup(ctx, pos.LinkedGroup, uid))
	}
	if err := errs.ErrorOrNil(); err != nil {
		p.logger.WarnContext(ctx, "position group sync failed", slog.Int64("position_id", positionID), logger.Error(err))
	}
	p.logger.InfoContext(ctx, "position assigned", slog.Int64("position_id", positionID), logger.UID(uid))
	return nil
}

// Vacate clears the seat.
func (p *Positions) Vacate(ctx context.Context, positionID int64) error {
	pos, err := p.get(ctx, positionID)
	if err != nil {
		return err
	}
	return p.vacate(ctx, pos)
}

// ReleaseAll vacates every seat uid holds.
func (p *Positions) ReleaseAll(ctx context.Context, uid int64) error {
	held, err := p.store.ListPositionsByOccupant(ctx, uid)
	if err != nil {
		return persistenceError("list held positions", err)
	}
	var errs *multierror.Error
	for _, pos := range held {
		errs = multierror.Append(errs, p.vacate(ctx, pos))
	}
	return errs.ErrorOrNil()
}

func (p *Positions) vacate(ctx context.Context, pos *Position) error {
	if pos.IsVacant() {
		return nil
	}
	uid := pos.OccupantUID
	pos.OccupantUID = 0
	if err := p.store.SavePosition(ctx, pos); err != nil {
		return persistenceError("vacate position", err)
	}
	if pos.LinkedGroup != "" {
		if err := p.groups.RemoveFromGroup(ctx, pos.LinkedGroup, uid); err != nil {
			p.logger.WarnContext(ctx, "position group sync failed", slog.Int64("position_id", pos.ID), logger.Error(err))
		}
	}
	p.logger.InfoContext(ctx, "position vacated", slog.Int64("position_id", pos.ID), logger.UID(uid))
	return nil
}

func (p *Positions) get(ctx context.Context, id int64) (*Position, error) {
	pos, err := p.store.GetPosition(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPositionNotFound) {
			return nil, ErrPositionNotFound
		}
		return nil, persistenceError("get position", err)
	}
	return pos, nil
}
