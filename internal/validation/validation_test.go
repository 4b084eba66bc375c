package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-advisor-backend/internal/apperr"
	"atlas-advisor-backend/internal/types"
)

func TestValidateChat_Valid(t *testing.T) {
	res := ValidateChat(types.ChatRequest{
		Message:   "  I need a map of store locations  ",
		SessionID: "3f1c1b9e-8a7d-4c55-9d8c-3f0c1e2a9b10",
		Context:   &types.ChatContext{SelectedDatasets: []string{" usa-census-tracts "}},
	})
	require.True(t, res.IsOk(), "unexpected error: %v", res.Err())
	in := res.Value()
	assert.Equal(t, "I need a map of store locations", in.Message)
	assert.Equal(t, []string{"usa-census-tracts"}, in.SelectedDatasets)
}

func TestValidateChat_EmptyMessage(t *testing.T) {
	for _, msg := range []string{"", "   \t\n"} {
		res := ValidateChat(types.ChatRequest{Message: msg})
		require.False(t, res.IsOk())
		err := res.Err()
		assert.Equal(t, apperr.CategoryValidation, err.Category)
		assert.Equal(t, 400, err.HTTPStatus())
		assert.Equal(t, "message", err.Details["field"])
		assert.Equal(t, 0, err.Details["length"])
		assert.Equal(t, MessageMinLength, err.Details["minLength"])
		assert.Equal(t, MessageMaxLength, err.Details["maxLength"])
		assert.Contains(t, err.Message, "message must be 1")
	}
}

func TestValidateChat_MessageLengthBoundary(t *testing.T) {
	assert.True(t, ValidateChat(types.ChatRequest{Message: strings.Repeat("a", MessageMaxLength)}).IsOk())

	res := ValidateChat(types.ChatRequest{Message: strings.Repeat("a", MessageMaxLength+1)})
	require.False(t, res.IsOk())
	assert.Equal(t, MessageMaxLength+1, res.Err().Details["length"])

	// Length counts characters, not bytes.
	assert.True(t, ValidateChat(types.ChatRequest{Message: strings.Repeat("é", MessageMaxLength)}).IsOk())
}

func TestValidateChat_BadSessionID(t *testing.T) {
	res := ValidateChat(types.ChatRequest{Message: "hi", SessionID: "not-a-uuid"})
	require.False(t, res.IsOk())
	assert.Equal(t, "sessionId", res.Err().Details["field"])
	assert.Equal(t, "uuid", res.Err().Details["format"])
}

func TestValidateChat_TooManyDatasets(t *testing.T) {
	ids := make([]string, MaxSelected+1)
	for i := range ids {
		ids[i] = "ds"
	}
	res := ValidateChat(types.ChatRequest{Message: "hi", Context: &types.ChatContext{SelectedDatasets: ids}})
	require.False(t, res.IsOk())
	assert.Equal(t, "selectedDatasets", res.Err().Details["field"])
	assert.Equal(t, MaxSelected, res.Err().Details["maxItems"])
}

func TestValidateChat_BlankDatasetID(t *testing.T) {
	res := ValidateChat(types.ChatRequest{Message: "hi", Context: &types.ChatContext{SelectedDatasets: []string{"ok", " "}}})
	require.False(t, res.IsOk())
	assert.Equal(t, "selectedDatasets[1]", res.Err().Details["field"])
	assert.Equal(t, 1, res.Err().Details["minLength"])
}

func TestValidateSearch_Defaults(t *testing.T) {
	res := ValidateSearch(types.SearchRequest{Q: " census "})
	require.True(t, res.IsOk(), "unexpected error: %v", res.Err())
	assert.Equal(t, types.SearchInput{
		Query:  "census",
		Limit:  DefaultLimit,
		Offset: 0,
		SortBy: SortRelevance,
	}, res.Value())
}

func TestValidateSearch_ShortQuery(t *testing.T) {
	res := ValidateSearch(types.SearchRequest{Q: "po"})
	require.False(t, res.IsOk())
	err := res.Err()
	assert.Equal(t, "q", err.Details["field"])
	assert.Equal(t, 2, err.Details["length"])
	assert.Equal(t, QueryMinLength, err.Details["minLength"])
	assert.Equal(t, QueryMaxLength, err.Details["maxLength"])
}

func TestValidateSearch_Params(t *testing.T) {
	tests := []struct {
		name  string
		req   types.SearchRequest
		field string
	}{
		{"limit zero", types.SearchRequest{Q: "census", Limit: "0"}, "limit"},
		{"limit too big", types.SearchRequest{Q: "census", Limit: "101"}, "limit"},
		{"limit not a number", types.SearchRequest{Q: "census", Limit: "ten"}, "limit"},
		{"negative offset", types.SearchRequest{Q: "census", Offset: "-1"}, "offset"},
		{"offset not a number", types.SearchRequest{Q: "census", Offset: "1.5"}, "offset"},
		{"unknown sort", types.SearchRequest{Q: "census", SortBy: "random"}, "sortBy"},
		{"long query", types.SearchRequest{Q: strings.Repeat("q", QueryMaxLength+1)}, "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateSearch(tt.req)
			require.False(t, res.IsOk())
			assert.Equal(t, apperr.CategoryValidation, res.Err().Category)
			assert.Equal(t, tt.field, res.Err().Details["field"])
		})
	}
}

func TestValidateSearch_LimitBounds(t *testing.T) {
	for _, limit := range []string{"1", "100"} {
		res := ValidateSearch(types.SearchRequest{Q: "census", Limit: limit})
		assert.True(t, res.IsOk(), "limit %s", limit)
	}
	res := ValidateSearch(types.SearchRequest{Q: "census", Limit: "0"})
	require.False(t, res.IsOk())
	assert.Equal(t, 1, res.Err().Details["min"])
	assert.Equal(t, MaxLimit, res.Err().Details["max"])
}

func TestValidateSearch_SortIsCaseInsensitive(t *testing.T) {
	res := ValidateSearch(types.SearchRequest{Q: "census", SortBy: "Title"})
	require.True(t, res.IsOk())
	assert.Equal(t, SortTitle, res.Value().SortBy)
}

func TestStruct_BrokenSchemaIsInternal(t *testing.T) {
	type broken struct {
		Name string `validate:"no_such_rule"`
	}
	err := Struct(&broken{Name: "x"})
	require.NotNil(t, err)
	assert.Equal(t, apperr.CategoryInternal, err.Category)

	err = Struct(nil)
	require.NotNil(t, err)
	assert.Equal(t, apperr.CategoryInternal, err.Category)
}
