package usecase

import (
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// AdapterList is the fixed detection order for schema technologies. The
// first adapter that claims a definition builds it.
type AdapterList []ports.SchemaAdapter

func (l AdapterList) detect(definition any) (ports.SchemaAdapter, error) {
	for _, a := range l {
		if a.Is(definition) {
			return a, nil
		}
	}
	return nil, domain.ErrConfiguration.New("no schema adapter accepts %T", definition)
}

func (l AdapterList) byName(name string) (ports.SchemaAdapter, bool) {
	for _, a := range l {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}
