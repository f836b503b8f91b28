package provisioner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

func TestRunSaga_AllStepsComplete(t *testing.T) {
	var ran []string
	step := func(name string) provisioner.Step {
		return provisioner.Step{Name: name, Run: func(context.Context) error {
			ran = append(ran, name)
			return nil
		}}
	}

	result := provisioner.RunSaga(context.Background(), "test", []provisioner.Step{step("a"), step("b"), step("c")})

	assert.True(t, result.OK())
	assert.Equal(t, 3, result.Completed)
	assert.Equal(t, -1, result.FailedStep)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestRunSaga_StopsAtFirstFailure(t *testing.T) {
	cause := provisioner.NewError(provisioner.ErrCodeBroker, "bind refused")
	thirdRan := false

	result := provisioner.RunSaga(context.Background(), "subscription.create", []provisioner.Step{
		{Name: "gate", Idempotent: true, Run: func(context.Context) error { return nil }},
		{Name: "bind", Idempotent: true, Run: func(context.Context) error { return cause }},
		{Name: "persist", Run: func(context.Context) error { thirdRan = true; return nil }},
	})

	assert.False(t, result.OK())
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, result.FailedStep)
	assert.False(t, thirdRan)

	var stepErr *provisioner.StepError
	require.True(t, errors.As(result.Err, &stepErr))
	assert.Equal(t, "bind", stepErr.Step)
	assert.Equal(t, 1, stepErr.Index)
	assert.True(t, stepErr.Idempotent)
	assert.Equal(t, "subscription.create", stepErr.Operation)
	assert.ErrorIs(t, result.Err, cause)
	assert.Equal(t, provisioner.ErrCodeBroker, provisioner.CodeOf(result.Err))
	assert.Contains(t, result.Err.Error(), "step 1 (bind)")
}

func TestRunSaga_Empty(t *testing.T) {
	result := provisioner.RunSaga(context.Background(), "noop", nil)

	assert.True(t, result.OK())
	assert.Equal(t, 0, result.Completed)
}
