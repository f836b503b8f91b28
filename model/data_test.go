package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataBatch_Validate(t *testing.T) {
	ok := DataBatch{EntityID: "e1", Records: []json.RawMessage{json.RawMessage(`{"id":"e1","v":1}`)}}
	assert.NoError(t, ok.Validate())

	assert.Error(t, DataBatch{Records: ok.Records}.Validate())
	assert.Error(t, DataBatch{EntityID: "e1"}.Validate())
}
