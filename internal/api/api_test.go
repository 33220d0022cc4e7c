package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cfg := NewError(InvalidParameter, "campaign %s is on its own parent chain", "A.xml")
	wrapped := fmt.Errorf("loading: %w", cfg)

	assert.True(t, HasCode(wrapped, InvalidParameter))
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsEquipmentError(wrapped))
	assert.Contains(t, wrapped.Error(), "parent chain")

	eqt := WrapError(DaemonDriverError, errors.New("socket closed"), "relay %s", "RELAY1")
	assert.True(t, IsEquipmentError(eqt))
	assert.False(t, IsConfigurationError(eqt))
	assert.ErrorContains(t, eqt, "socket closed")

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, InvalidParameter))
}

func TestParseVerdict(t *testing.T) {
	v, ok := ParseVerdict(" fail ")
	assert.True(t, ok)
	assert.Equal(t, VerdictFail, v)

	_, ok = ParseVerdict("MAYBE")
	assert.False(t, ok)

	assert.True(t, VerdictValid.IsSuccess())
	assert.True(t, VerdictInvalid.IsFailure())
	assert.False(t, VerdictBlocked.IsFailure())
}
