package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_JSON(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		Method:  MethodSearch,
		Params: SearchParams{
			Query: "test query",
			K:     10,
		},
		ID: "req-1",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, "2.0", decoded.JSONRPC)
	assert.Equal(t, MethodSearch, decoded.Method)
	assert.Equal(t, "req-1", decoded.ID)
}

func TestResponse_Success(t *testing.T) {
	results := []SearchResult{
		{Path: "/docs/test.md", FileName: "test.md", Score: 0.95},
	}

	resp := NewSuccessResponse("req-1", results)

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.NotNil(t, resp.Result)
	assert.Nil(t, resp.Error)
}

func TestResponse_Error(t *testing.T) {
	resp := NewErrorResponse("req-1", ErrCodeInvalidParams, "invalid query")

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "invalid query", resp.Error.Message)
}

func TestSearchParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  SearchParams
		wantErr bool
	}{
		{
			name:    "valid params",
			params:  SearchParams{Query: "test", K: 10},
			wantErr: false,
		},
		{
			name:    "empty query",
			params:  SearchParams{Query: ""},
			wantErr: true,
		},
		{
			name:    "negative k corrected to default",
			params:  SearchParams{Query: "test", K: -1},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchParams_Validate_NegativeKResetsToZero(t *testing.T) {
	p := SearchParams{Query: "test", K: -5}
	require.NoError(t, p.Validate())
	assert.Equal(t, 0, p.K)
}

func TestSearchResult_JSON(t *testing.T) {
	result := SearchResult{
		Path:     "/path/to/file.md",
		FileName: "file.md",
		Score:    0.89,
		Previews: []SearchPreview{
			{Text: "some passage", Page: 2, Offset: 120, Score: 0.89},
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded SearchResult
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, result.Path, decoded.Path)
	assert.Equal(t, result.FileName, decoded.FileName)
	assert.InDelta(t, result.Score, decoded.Score, 0.001)
	require.Len(t, decoded.Previews, 1)
	assert.Equal(t, result.Previews[0].Text, decoded.Previews[0].Text)
	assert.Equal(t, result.Previews[0].Page, decoded.Previews[0].Page)
}

func TestDBStatsResult_JSON(t *testing.T) {
	stats := DBStatsResult{IndexedFiles: 12, TotalChunks: 340, ModelDim: 768}

	data, err := json.Marshal(stats)
	require.NoError(t, err)

	var decoded DBStatsResult
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, stats, decoded)
}

func TestModelCheckResult_JSON(t *testing.T) {
	result := ModelCheckResult{Ready: false, Message: "downloading"}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded ModelCheckResult
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, result, decoded)
}

func TestMethodConstants(t *testing.T) {
	assert.Equal(t, "search", MethodSearch)
	assert.Equal(t, "init", MethodInit)
	assert.Equal(t, "checkModel", MethodCheckModel)
	assert.Equal(t, "index.watchStart", MethodIndexWatchStart)
	assert.Equal(t, "index.watchStop", MethodIndexWatchStop)
	assert.Equal(t, "index.progress", MethodIndexProgress)
	assert.Equal(t, "index.pause", MethodIndexPause)
	assert.Equal(t, "index.resume", MethodIndexResume)
	assert.Equal(t, "index.cancel", MethodIndexCancel)
	assert.Equal(t, "db.stats", MethodDBStats)
	assert.Equal(t, "db.clear", MethodDBClear)
	assert.Equal(t, "model.check", MethodModelCheck)
	assert.Equal(t, "model.download", MethodModelDownload)
	assert.Equal(t, "diagnostics.getLogs", MethodDiagnosticsGetLogs)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, -32700, ErrCodeParseError)
	assert.Equal(t, -32600, ErrCodeInvalidRequest)
	assert.Equal(t, -32601, ErrCodeMethodNotFound)
	assert.Equal(t, -32602, ErrCodeInvalidParams)
	assert.Equal(t, -32603, ErrCodeInternalError)

	assert.Equal(t, -32001, ErrCodeNotReady)
	assert.Equal(t, -32002, ErrCodeSearchFailed)
}
