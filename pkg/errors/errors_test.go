package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("config.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "config.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "config.yaml")
}

func TestValidationErrorAggregatesFields(t *testing.T) {
	t.Parallel()

	err := NewValidationError("nodes[1].depends_on", "references unknown node", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "nodes[1].depends_on", validationErr.Field)
	require.Contains(t, validationErr.Message, "references unknown node")
}

func TestExecutionErrorIncludesNodeContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("command failed")
	err := NewRuntimeError("render", "", underlying)

	require.Equal(t, TypeRuntime, err.Type)
	require.Equal(t, "render", err.NodeID)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "render")
}

func TestExecutionErrorConstructorsSetType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		build func(nodeID, msg string, err error) *ExecutionError
		want  Type
	}{
		{NewValidationExecError, TypeValidation},
		{NewRuntimeError, TypeRuntime},
		{NewTimeoutError, TypeTimeout},
		{NewDependencyError, TypeDependency},
		{NewNetworkError, TypeNetwork},
		{NewSecurityError, TypeSecurity},
		{NewFatalError, TypeFatal},
	}

	for _, tc := range cases {
		err := tc.build("n1", "boom", nil)
		require.Equal(t, tc.want, err.Type)
		require.Equal(t, "n1", err.NodeID)
		require.Equal(t, "boom", err.Message)
	}
}

func TestClassifySeverity(t *testing.T) {
	t.Parallel()

	require.Equal(t, SeverityCritical, ClassifySeverity(TypeValidation))
	require.Equal(t, SeverityCritical, ClassifySeverity(TypeFatal))
	require.Equal(t, SeverityCritical, ClassifySeverity(TypeSecurity))
	require.Equal(t, SeverityHigh, ClassifySeverity(TypeDependency))
	require.Equal(t, SeverityHigh, ClassifySeverity(TypeRuntime))
	require.Equal(t, SeverityMedium, ClassifySeverity(TypeTimeout))
	require.Equal(t, SeverityMedium, ClassifySeverity(TypeNetwork))
	require.Equal(t, SeverityLow, ClassifySeverity(Type("custom")))
}
