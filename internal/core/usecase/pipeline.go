package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// admitted is a request that may be handed to the storage engine, together
// with the context it was validated in.
type admitted struct {
	req    domain.MutationRequest
	schema ports.Schema
	vc     domain.ValidationContext
}

// doValidate runs auto-values, cleaning and validation for req. The caller's
// documents are never modified; the returned request carries the cleaned
// copies.
func (c *Collection) doValidate(ctx context.Context, req domain.MutationRequest, getAutoValues bool, id domain.Identity) (admitted, error) {
	req, err := normalize(req)
	if err != nil {
		return admitted{}, err
	}
	opts := req.Options
	isInsert := req.Kind == domain.Insert
	isUpsert := req.IsUpsert()
	query := domain.NormalizeSelector(req.Selector)
	target := req.Target()

	schema, err := c.registry.Resolve(target, opts, query)
	if err != nil {
		return admitted{}, err
	}
	schema, err = narrow(schema, opts)
	if err != nil {
		return admitted{}, err
	}

	vc := opts.ValidationContext
	if vc == nil {
		vc = schema.NamedContext(opts.ValidationContextName)
	}

	var strippedID any
	stripped := false
	if isInsert {
		if schema.AllowsKey(domain.IDField) {
			if _, ok := target[domain.IDField]; !ok {
				target[domain.IDField] = c.store.NewID()
			}
		} else if v, ok := target[domain.IDField]; ok {
			strippedID, stripped = v, true
			delete(target, domain.IDField)
		}
	}

	docID := domain.SelectorID(req.Selector)
	if isInsert {
		docID, _ = target[domain.IDField].(string)
		if stripped {
			docID, _ = strippedID.(string)
		}
	}

	avc := domain.AutoValueContext{
		IsInsert:          isInsert,
		IsUpdate:          !isInsert && !isUpsert,
		IsUpsert:          isUpsert,
		UserID:            id.UserID,
		IsFromTrustedCode: id.Trusted,
		DocID:             docID,
		IsLocalCollection: c.cfg.Local,
	}.Merge(opts.ExtendAutoValueContext)

	hadContent := len(target) > 0

	clean := c.cleanOptions(opts)
	clean.GetAutoValues = getAutoValues
	clean.IsModifier = !isInsert
	clean.IsUpsert = isUpsert
	clean.AutoValueContext = avc
	schema.Clean(target, clean)

	docToValidate := docops.CloneDocument(target)

	if isUpsert && !c.cfg.ClientSide {
		if sel, ok := req.Selector.(map[string]any); ok {
			foldSelector(docToValidate, sel, schema)
		}
	}

	if c.cfg.ClientSide {
		schema.Clean(docToValidate, ports.CleanOptions{
			GetAutoValues:    true,
			IsModifier:       !isInsert,
			IsUpsert:         isUpsert,
			AutoValueContext: avc,
		})
	}

	if hadContent && len(docToValidate) == 0 {
		return admitted{}, domain.ErrConfiguration.New("after filtering out keys not in the schema, your %s has nothing left to validate", objectName(isInsert))
	}

	valid := true
	if domain.BoolOr(opts.Validate, true) {
		valid = vc.Validate(docToValidate, domain.ValidateOptions{
			Modifier: !isInsert,
			Upsert:   isUpsert,
			Extended: avc.Merge(opts.ExtendedCustomContext),
		})
	}

	if !valid {
		verr := c.registry.Adapter().ErrorObject(vc, c.suffix(req.Kind), "")
		c.log.Debug("validation failed",
			zap.Stringer("kind", req.Kind),
			zap.String("context", vc.Name()),
			zap.Int("errors", len(verr.InvalidKeys)))
		return admitted{}, verr
	}

	if stripped {
		target[domain.IDField] = strippedID
	}
	return admitted{req: req, schema: schema, vc: vc}, nil
}

// normalize deep-copies the request's documents and fills in defaults.
func normalize(req domain.MutationRequest) (domain.MutationRequest, error) {
	req.Options = req.Options.Clone()
	switch req.Kind {
	case domain.Insert:
		if req.Doc == nil {
			return req, domain.ErrConfiguration.New("insert requires a document")
		}
		req.Doc = docops.CloneDocument(req.Doc)
	case domain.Update, domain.Upsert:
		if req.Modifier == nil {
			return req, domain.ErrConfiguration.New("%s requires a modifier", req.Kind)
		}
		req.Modifier = docops.CloneDocument(req.Modifier)
		if req.Kind == domain.Upsert {
			req.Options.Upsert = true
		}
		if sel, ok := req.Selector.(map[string]any); ok {
			req.Selector = docops.CloneDocument(sel)
		}
	default:
		return req, domain.ErrConfiguration.New("unsupported mutation kind %s", req.Kind)
	}
	return req, nil
}

func narrow(schema ports.Schema, opts *domain.MutationOptions) (ports.Schema, error) {
	switch {
	case len(opts.Pick) > 0 && len(opts.Omit) > 0:
		return nil, domain.ErrConfiguration.New("pick and omit cannot both be used")
	case len(opts.Pick) > 0:
		return schema.Pick(opts.Pick...)
	case len(opts.Omit) > 0:
		return schema.Omit(opts.Omit...)
	}
	return schema, nil
}

// foldSelector copies the fields the selector pins into the $set of a
// validation copy, so values only the selector provides are still checked.
func foldSelector(doc domain.Document, selector map[string]any, schema ports.Schema) {
	flat := docops.FlattenSelector(selector)
	if !schema.AllowsKey(domain.IDField) {
		delete(flat, domain.IDField)
	}
	if len(flat) == 0 {
		return
	}
	if set, ok := doc[domain.OpSet].(map[string]any); ok {
		for k, v := range set {
			flat[k] = v
		}
	}
	doc[domain.OpSet] = flat
}

func (c *Collection) cleanOptions(opts *domain.MutationOptions) ports.CleanOptions {
	base := ports.DefaultCleanOptions()
	if c.cfg.CleanDefaults != nil {
		base = *c.cfg.CleanDefaults
	}
	base.Filter = domain.BoolOr(opts.Filter, base.Filter)
	base.AutoConvert = domain.BoolOr(opts.AutoConvert, base.AutoConvert)
	base.TrimStrings = domain.BoolOr(opts.TrimStrings, base.TrimStrings)
	base.RemoveEmptyStrings = domain.BoolOr(opts.RemoveEmptyStrings, base.RemoveEmptyStrings)
	base.RemoveNullsFromArrays = domain.BoolOr(opts.RemoveNullsFromArrays, base.RemoveNullsFromArrays)
	return base
}

func (c *Collection) suffix(kind domain.MutationKind) string {
	if c.cfg.DisableCollectionNames {
		return ""
	}
	if kind == domain.Upsert {
		kind = domain.Update
	}
	return "in " + c.cfg.Name + " " + kind.String()
}

func objectName(isInsert bool) string {
	if isInsert {
		return "object"
	}
	return "modifier"
}
