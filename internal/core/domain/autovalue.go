package domain

// AutoValueContext describes the mutation an auto-value or default is
// computed for. It lives for one mutation only.
type AutoValueContext struct {
	IsInsert          bool
	IsUpdate          bool
	IsUpsert          bool
	UserID            string
	IsFromTrustedCode bool
	DocID             string
	IsLocalCollection bool
	// Extra holds caller supplied keys that have no field of their own.
	Extra map[string]any
}

// Merge returns a copy of c with ext applied on top. Keys naming one of the
// base fields override that field.
func (c AutoValueContext) Merge(ext map[string]any) AutoValueContext {
	out := c
	if len(c.Extra) > 0 {
		out.Extra = make(map[string]any, len(c.Extra)+len(ext))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	for k, v := range ext {
		switch k {
		case "isInsert":
			out.IsInsert, _ = v.(bool)
		case "isUpdate":
			out.IsUpdate, _ = v.(bool)
		case "isUpsert":
			out.IsUpsert, _ = v.(bool)
		case "userId":
			out.UserID, _ = v.(string)
		case "isFromTrustedCode":
			out.IsFromTrustedCode, _ = v.(bool)
		case "docId":
			out.DocID, _ = v.(string)
		case "isLocalCollection":
			out.IsLocalCollection, _ = v.(bool)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]any, len(ext))
			}
			out.Extra[k] = v
		}
	}
	return out
}

// Value looks a key up by its wire name.
func (c AutoValueContext) Value(key string) (any, bool) {
	switch key {
	case "isInsert":
		return c.IsInsert, true
	case "isUpdate":
		return c.IsUpdate, true
	case "isUpsert":
		return c.IsUpsert, true
	case "userId":
		return c.UserID, true
	case "isFromTrustedCode":
		return c.IsFromTrustedCode, true
	case "docId":
		return c.DocID, true
	case "isLocalCollection":
		return c.IsLocalCollection, true
	}
	v, ok := c.Extra[key]
	return v, ok
}
