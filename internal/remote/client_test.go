package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/require"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
)

const testBase = "https://docs.example.test"

func captureBody(dst *map[string]any) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}
		return true, json.Unmarshal(raw, dst)
	}
}

func sampleState() model.AppState {
	return model.AppState{
		Orders:    []model.Order{{ID: "ORD-1", Requester: "alice01", Quantity: 1, Status: model.StatusPending}},
		Users:     []model.User{{ID: "alice01", Role: model.RoleRequester}},
		Suppliers: []string{"GHN"},
	}
}

func TestCreateDocument_OK(t *testing.T) {
	defer gock.Off()
	var body map[string]any
	gock.New(testBase).
		Post("/documents").
		MatchHeader("Authorization", "^Bearer tok$").
		MatchHeader("Content-Type", "application/json").
		AddMatcher(captureBody(&body)).
		Reply(201).
		JSON(map[string]string{"id": "doc-42"})

	c := New(testBase)
	id, err := c.CreateDocument(context.Background(), "tok", sampleState())
	require.NoError(t, err)
	require.Equal(t, "doc-42", id)
	require.True(t, gock.IsDone())

	require.Equal(t, "private", body["visibility"])
	require.Equal(t, "Logistics App Data Backup", body["description"])
	files := body["files"].(map[string]any)
	content := files[FileName].(map[string]any)["content"].(string)
	require.Contains(t, content, "\n  \"orders\"")

	var st model.AppState
	require.NoError(t, json.Unmarshal([]byte(content), &st))
	require.Equal(t, "ORD-1", st.Orders[0].ID)
}

func TestCreateDocument_APIErrorMessageFromBody(t *testing.T) {
	defer gock.Off()
	gock.New(testBase).
		Post("/documents").
		Reply(401).
		JSON(map[string]string{"message": "Bad credentials"})

	_, err := New(testBase).CreateDocument(context.Background(), "bad", sampleState())
	var apiErr *errs.RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 401, apiErr.Status)
	require.Equal(t, "Bad credentials", apiErr.Message)
}

func TestUpdateDocument_PatchesOnlyFile(t *testing.T) {
	defer gock.Off()
	var body map[string]any
	gock.New(testBase).
		Patch("/gists/doc-1").
		MatchHeader("Authorization", "^Bearer tok$").
		MatchHeader("X-GitHub-Api-Version", apiVersion).
		AddMatcher(captureBody(&body)).
		Reply(200)

	c := New(testBase, WithCollection("gists"))
	require.NoError(t, c.UpdateDocument(context.Background(), "tok", "doc-1", sampleState()))
	require.True(t, gock.IsDone())

	require.NotContains(t, body, "description")
	require.NotContains(t, body, "visibility")
	require.Contains(t, body["files"].(map[string]any), FileName)
}

func TestUpdateDocument_StatusTextWhenNoMessage(t *testing.T) {
	defer gock.Off()
	gock.New(testBase).
		Patch("/documents/missing").
		Reply(404).
		BodyString("not json")

	err := New(testBase).UpdateDocument(context.Background(), "tok", "missing", sampleState())
	var apiErr *errs.RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "Not Found", apiErr.Message)
}

func TestReadDocument_OK(t *testing.T) {
	defer gock.Off()
	gock.New(testBase).
		Get("/documents/doc-1").
		MatchHeader("Authorization", "^Bearer tok$").
		Reply(200).
		JSON(map[string]any{
			"id": "doc-1",
			"files": map[string]any{
				FileName: map[string]string{"content": `{"orders":[],"users":[],"suppliers":["GHN"]}`},
			},
		})

	raw, err := New(testBase).ReadDocument(context.Background(), "tok", "doc-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"orders":[],"users":[],"suppliers":["GHN"]}`, string(raw))
}

func TestReadDocument_MissingFile(t *testing.T) {
	defer gock.Off()
	gock.New(testBase).
		Get("/documents/doc-1").
		Reply(200).
		JSON(map[string]any{"id": "doc-1", "files": map[string]any{"other.json": map[string]string{"content": "{}"}}})

	_, err := New(testBase).ReadDocument(context.Background(), "tok", "doc-1")
	var docErr *errs.DocumentFormatError
	require.ErrorAs(t, err, &docErr)
	require.Equal(t, FileName, docErr.File)
}

func TestReadDocument_ContentNotJSON(t *testing.T) {
	defer gock.Off()
	gock.New(testBase).
		Get("/documents/doc-1").
		Reply(200).
		JSON(map[string]any{"files": map[string]any{FileName: map[string]string{"content": "{oops"}}})

	_, err := New(testBase).ReadDocument(context.Background(), "tok", "doc-1")
	var bakErr *errs.BackupFormatError
	require.ErrorAs(t, err, &bakErr)
}

func TestTransportErrorIsNotRemoteAPIError(t *testing.T) {
	defer gock.Off()
	gock.New(testBase).
		Get("/documents/doc-1").
		ReplyError(errors.New("connection reset"))

	_, err := New(testBase).ReadDocument(context.Background(), "tok", "doc-1")
	require.Error(t, err)
	var apiErr *errs.RemoteAPIError
	require.False(t, errors.As(err, &apiErr))
}

func TestOptions_TimeoutLeavesCallerClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: 5 * time.Second}

	c := New(testBase, WithHTTPClient(shared), WithTimeout(time.Minute))
	require.Same(t, shared, c.http)
	require.Equal(t, 5*time.Second, shared.Timeout)

	c = New(testBase, WithTimeout(time.Minute), WithHTTPClient(shared))
	require.Same(t, shared, c.http)
	require.Equal(t, 5*time.Second, shared.Timeout)

	c = New(testBase, WithTimeout(time.Minute))
	require.Equal(t, time.Minute, c.http.Timeout)
	require.IsType(t, &loggingTransport{}, c.http.Transport)
}
