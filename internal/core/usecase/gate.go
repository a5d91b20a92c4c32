package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// privileged reports whether a single pipeline run is authoritative for id.
func (c *Collection) privileged(id domain.Identity) bool {
	return id.Trusted || c.cfg.Local
}

// admit decides whether req may reach storage.
//
// Trusted callers and local collections run the pipeline once. Everyone else
// passes two gates: gate A applies auto-values to the raw request, gate B
// re-runs the full pipeline authoritatively without computing them again.
func (c *Collection) admit(ctx context.Context, req domain.MutationRequest) (admitted, error) {
	id := domain.IdentityFrom(ctx)

	if c.privileged(id) || c.cfg.ClientSide {
		if req.Options != nil && req.Options.Bypass {
			c.log.Debug("validation bypassed", zap.Stringer("kind", req.Kind), zap.String("user", id.UserID))
			r, err := normalize(req)
			return admitted{req: r}, err
		}
		// A client-side pre-check only computes auto-values on its
		// validation copy; the authoritative side fills in the real ones.
		getAutoValues := !c.cfg.ClientSide
		if getAutoValues && req.Options != nil {
			getAutoValues = domain.BoolOr(req.Options.GetAutoValues, true)
		}
		return c.doValidate(ctx, req, getAutoValues, id)
	}

	prepared, err := c.prepopulate(req, id)
	if err != nil {
		return admitted{}, err
	}
	out, err := c.doValidate(ctx, prepared, false, id)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.log.Warn("authoritative validation rejected mutation",
				zap.Stringer("kind", req.Kind),
				zap.String("user", id.UserID),
				zap.String("reason", verr.Message))
			return admitted{}, domain.ErrAuthorization.Wrap(domain.NewInvalidBoundaryError(verr.InvalidKeys))
		}
		return admitted{}, err
	}
	return out, nil
}

// prepopulate is gate A. It computes auto-values on a copy of req so the
// request gate B sees already carries them. It never admits anything.
//
// Options that narrow the schema or feed the auto-value and custom contexts
// are dropped: the identity they would see comes from ctx alone.
func (c *Collection) prepopulate(req domain.MutationRequest, id domain.Identity) (domain.MutationRequest, error) {
	req, err := normalize(req)
	if err != nil {
		return req, err
	}
	opts := req.Options
	opts.Pick, opts.Omit = nil, nil
	opts.ValidationContextName, opts.ValidationContext = "", nil
	opts.ExtendAutoValueContext, opts.ExtendedCustomContext = nil, nil

	isInsert := req.Kind == domain.Insert
	isUpsert := req.IsUpsert()
	target := req.Target()

	schema, err := c.registry.Resolve(target, opts, domain.NormalizeSelector(req.Selector))
	if err != nil {
		return req, err
	}
	docID := domain.SelectorID(req.Selector)
	if isInsert {
		if _, ok := target[domain.IDField]; !ok && schema.AllowsKey(domain.IDField) {
			target[domain.IDField] = c.store.NewID()
		}
		docID, _ = target[domain.IDField].(string)
	}
	schema.Clean(target, ports.CleanOptions{
		GetAutoValues: true,
		IsModifier:    !isInsert,
		IsUpsert:      isUpsert,
		AutoValueContext: domain.AutoValueContext{
			IsInsert:          isInsert,
			IsUpdate:          !isInsert && !isUpsert,
			IsUpsert:          isUpsert,
			UserID:            id.UserID,
			DocID:             docID,
			IsLocalCollection: c.cfg.Local,
		},
	})

	// Gate B must decide on its own: cleaning already happened on the
	// caller's side and bypass or validate=false are not honoured here.
	off := domain.Bool(false)
	opts.Filter, opts.AutoConvert, opts.TrimStrings, opts.RemoveEmptyStrings = off, off, off, off
	opts.Validate = nil
	opts.Bypass = false
	return req, nil
}
