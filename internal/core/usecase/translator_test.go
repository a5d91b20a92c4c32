package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

func TestParseDuplicateKey(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
		value any
		ok    bool
	}{
		{
			name:  "quoted value",
			text:  `E11000 duplicate key error collection: books index: c2_isbn dup key: { : "z" }`,
			field: "isbn", value: "z", ok: true,
		},
		{
			name:  "nested field",
			text:  `E11000 duplicate key error collection: books index: c2_author.email dup key: { : "a@b.c" }`,
			field: "author.email", value: "a@b.c", ok: true,
		},
		{
			name:  "numeric value",
			text:  `E11000 duplicate key error collection: books index: c2_code dup key: { : 7 }`,
			field: "code", value: 7.0, ok: true,
		},
		{
			name:  "generated numeric error text",
			text:  (&domain.DuplicateKeyError{Collection: "books", Index: "c2_copies", Value: 5}).Error(),
			field: "copies", value: 5.0, ok: true,
		},
		{
			name:  "unquoted text",
			text:  `E11000 duplicate key error collection: books index: c2_code dup key: { : abc }`,
			field: "code", value: "abc", ok: true,
		},
		{
			name:  "generated error text",
			text:  (&domain.DuplicateKeyError{Collection: "books", Index: "c2_sku", Value: "x y"}).Error(),
			field: "sku", value: "x y", ok: true,
		},
		{name: "not a duplicate", text: "disk full"},
		{name: "foreign index", text: `E11000 duplicate key error collection: books index: _id_ dup key: { : "1" }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, value, ok := ParseDuplicateKey(tt.text)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			require.Equal(t, tt.field, field)
			require.Equal(t, tt.value, value)
		})
	}
}

func TestFieldErrorsSurviveTheBoundary(t *testing.T) {
	list := []domain.FieldError{
		{Name: "title", Type: domain.KindRequired},
		{Name: "copies", Type: domain.KindMinNumber, Value: -1.0},
		{Name: "tags.1", Type: domain.KindExpectedType, Value: true},
	}
	be := domain.NewInvalidBoundaryError(list)
	require.Equal(t, 400, be.Status)
	require.Equal(t, domain.ReasonInvalid, be.Reason)

	got, err := domain.DecodeFieldErrors(be.Details)
	require.NoError(t, err)
	require.Equal(t, list, got)
}
