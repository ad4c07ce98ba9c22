package service

import (
	"context"
	"testing"

	"marketplace/internal/apperr"
	"marketplace/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaxID(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"well formed", "27AABCU9603R1ZX", true},
		{"numeric checksum", "22AAAAA0000A1Z5", true},
		{"too short", "27AABCU9603R1Z", false},
		{"shifted state code", "2AABCU9603R1ZX1", false},
		{"lower case", "27aabcu9603r1zx", false},
		{"surrounding spaces", " 27AABCU9603R1ZX ", false},
		{"zero entity number", "27AABCU9603R0ZX", false},
		{"missing Z", "27AABCU9603R1AX", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := ValidateTaxID(tt.raw)
			assert.Equal(t, tt.valid, verdict.Valid)
			if tt.valid {
				assert.Equal(t, "GST number format is valid", verdict.Message)
			} else {
				assert.Equal(t, "Invalid GST format. Expected format: 22AAAAA0000A1Z5", verdict.Message)
			}
		})
	}
}

func TestValidateRequest_StoresVerdict(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	req := f.submitSupplier(t, "27AABCU9603R1ZX")

	admin := uuid.New()
	verdict, err := f.validation.ValidateRequest(ctx, req.ID, "27AABCU9603R1Z", &admin)
	require.NoError(t, err)
	assert.False(t, verdict.Valid)

	stored, err := f.approvals.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationInvalid, stored.ValidationStatus)
	assert.Equal(t, verdict.Message, stored.ValidationMessage)
	assert.Equal(t, model.ApprovalPending, stored.Status)

	// Without an explicit value the payload's tax id is checked again.
	verdict, err = f.validation.ValidateRequest(ctx, req.ID, "", &admin)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)

	stored, err = f.approvals.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationValid, stored.ValidationStatus)
}

func TestValidateRequest_Errors(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	_, err := f.validation.ValidateRequest(ctx, uuid.New(), "27AABCU9603R1ZX", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	product := f.submitProduct(t)
	_, err = f.validation.ValidateRequest(ctx, product.ID, "", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidPayload)
}
