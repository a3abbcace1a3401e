package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-tracker/internal/queue"
)

const movieBody = `{"title":"X","director":"Y","budget":100,"location":"L","duration":"90m","yearOrTime":"2020","genre":"Drama"}`

const seriesBody = `{"title":"Dark","director":"Baran bo Odar","budget":0,"location":"Germany",` +
	`"yearOrTime":"2017","genre":"Sci-Fi","airingStatus":"Finished","totalSeasons":3}`

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// create posts body to path as uid and returns the new entry id.
func (env *testEnv) create(t *testing.T, path, body, uid string) string {
	t.Helper()
	rec := env.do(http.MethodPost, path, body, tokenFor(t, uid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	return data["_id"].(string)
}

func TestCreateMovie_OwnerFromSession(t *testing.T) {
	env := newTestEnv(t)
	body := `{"title":"X","director":"Y","budget":100,"location":"L","duration":"90m",` +
		`"yearOrTime":"2020","genre":"Drama","owner":"user-b","_id":"forged"}`

	rec := env.do(http.MethodPost, "/api/create-movies", body, tokenFor(t, "user-a"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode(t, rec)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "Movie created successfully", got["message"])
	data := got["data"].(map[string]any)
	assert.Equal(t, "user-a", data["owner"])
	assert.Equal(t, "movie", data["type"])
	assert.NotEqual(t, "forged", data["_id"])
	assert.EqualValues(t, 0, data["rating"])

	events := env.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, queue.EntryCreated, events[0].Type)
	assert.Equal(t, "user-a", events[0].OwnerID)
}

func TestCreateMovie_MissingField(t *testing.T) {
	for _, field := range []string{"title", "director", "budget", "location", "duration", "yearOrTime", "genre"} {
		t.Run(field, func(t *testing.T) {
			env := newTestEnv(t)
			var doc map[string]any
			require.NoError(t, json.Unmarshal([]byte(movieBody), &doc))
			delete(doc, field)
			body, _ := json.Marshal(doc)

			rec := env.do(http.MethodPost, "/api/create-movies", string(body), tokenFor(t, "user-a"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			got := decode(t, rec)
			assert.Equal(t, "All required fields must be filled", got["message"])
			assert.Contains(t, got["fields"], field)
			assert.Zero(t, env.entries.count())
			assert.Empty(t, env.events.all())
		})
	}
}

func TestCreateMovie_BlankAndNullAreMissing(t *testing.T) {
	env := newTestEnv(t)
	body := `{"title":"   ","director":null,"budget":100,"location":"L","duration":"90m","yearOrTime":"2020","genre":"Drama"}`

	rec := env.do(http.MethodPost, "/api/create-movies", body, tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []any{"title", "director"}, decode(t, rec)["fields"])
}

func TestCreateMovie_ZeroBudgetIsPresent(t *testing.T) {
	env := newTestEnv(t)
	body := `{"title":"X","director":"Y","budget":0,"location":"L","duration":"90m","yearOrTime":"2020","genre":"Drama"}`

	rec := env.do(http.MethodPost, "/api/create-movies", body, tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateMovie_IgnoresSeriesFields(t *testing.T) {
	env := newTestEnv(t)
	body := `{"title":"X","director":"Y","budget":1,"location":"L","duration":"90m","yearOrTime":"2020","genre":"Drama",` +
		`"totalSeasons":2,"airingStatus":"airing"}`

	rec := env.do(http.MethodPost, "/api/create-movies", body, tokenFor(t, "user-a"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.NotContains(t, data, "totalSeasons")
	assert.NotContains(t, data, "airingStatus")

	// On update they are dropped before the empty-patch check.
	id := data["_id"].(string)
	rec = env.do(http.MethodPut, "/api/update-movie/"+id, `{"totalSeasons":3}`, tokenFor(t, "user-a"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Nothing to update", decode(t, rec)["message"])
}

func TestCreateMovie_OversizeFieldIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	body := `{"title":"` + strings.Repeat("t", 300) + `","director":"Y","budget":1,"location":"L",` +
		`"duration":"90m","yearOrTime":"2020","genre":"Drama"}`

	rec := env.do(http.MethodPost, "/api/create-movies", body, tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "Validation failed", got["message"])
	assert.Contains(t, got["fields"], "title")
	assert.Zero(t, env.entries.count())
}

func TestCreate_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/create-movies", movieBody, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.entries.count())
}

func TestCreate_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/create-movies", `{"title":`, tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestCreateSeries_Rules(t *testing.T) {
	cases := []struct {
		name   string
		extra  string
		status int
		field  string
	}{
		{"rating 10 accepted", `"rating":10`, http.StatusCreated, ""},
		{"rating 11 rejected", `"rating":11`, http.StatusBadRequest, "rating"},
		{"negative rating rejected", `"rating":-1`, http.StatusBadRequest, "rating"},
		{"negative budget rejected", `"budget":-5`, http.StatusBadRequest, "budget"},
		{"unknown status rejected", `"airingStatus":"paused"`, http.StatusBadRequest, "airingStatus"},
		{"zero seasons rejected", `"totalSeasons":0`, http.StatusBadRequest, "totalSeasons"},
		{"one season accepted", `"totalSeasons":1`, http.StatusCreated, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			var doc map[string]any
			require.NoError(t, json.Unmarshal([]byte(seriesBody), &doc))
			var extra map[string]any
			require.NoError(t, json.Unmarshal([]byte("{"+tc.extra+"}"), &extra))
			for k, v := range extra {
				doc[k] = v
			}
			body, _ := json.Marshal(doc)

			rec := env.do(http.MethodPost, "/api/create-series", string(body), tokenFor(t, "user-a"))
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.field != "" {
				got := decode(t, rec)
				assert.Equal(t, "Validation failed", got["message"])
				assert.Contains(t, got["fields"], tc.field)
				assert.Zero(t, env.entries.count())
			}
		})
	}
}

func TestCreateSeries_MissingSeriesFields(t *testing.T) {
	env := newTestEnv(t)
	body := `{"title":"Dark","director":"B","budget":0,"location":"DE","yearOrTime":"2017","genre":"Sci-Fi"}`

	rec := env.do(http.MethodPost, "/api/create-series", body, tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []any{"airingStatus", "totalSeasons"}, decode(t, rec)["fields"])
}

func TestCreateSeries_NormalizesStatus(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, "/api/create-series", seriesBody, "user-a")

	rec := env.do(http.MethodGet, "/api/get-series/"+id, "", tokenFor(t, "user-a"))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "finished", got["airingStatus"])
	assert.Equal(t, "series", got["type"])
}

func TestUpdateMovie_OnlySuppliedFieldChanges(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, "/api/create-movies", movieBody, "user-a")
	before, err := env.entries.FindByID(context.Background(), id)
	require.NoError(t, err)

	body := `{"rating":7,"owner":"user-b","type":"series","_id":"other"}`
	rec := env.do(http.MethodPut, "/api/update-movie/"+id, body, tokenFor(t, "user-a"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Movie updated successfully", decode(t, rec)["message"])

	after, err := env.entries.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 7.0, after.Rating)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))

	after.Rating = before.Rating
	after.UpdatedAt = before.UpdatedAt
	assert.Equal(t, before, after)

	events := env.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, queue.EntryUpdated, events[1].Type)
	assert.Equal(t, []string{"rating"}, events[1].Fields)
}

func TestUpdate_EmptyPatch(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, "/api/create-movies", movieBody, "user-a")

	rec := env.do(http.MethodPut, "/api/update-movie/"+id, `{"owner":"user-b"}`, tokenFor(t, "user-a"))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "Nothing to update", got["message"])
	assert.Equal(t, "user-a", got["data"].(map[string]any)["owner"])
	assert.Len(t, env.events.all(), 1)
}

func TestUpdate_InvalidMergeRejected(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, "/api/create-series", seriesBody, "user-a")

	rec := env.do(http.MethodPut, "/api/update-series/"+id, `{"rating":11}`, tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "rating")

	e, err := env.entries.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, e.Rating)
}

func TestDelete_Twice(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, "/api/create-movies", movieBody, "user-a")
	tok := tokenFor(t, "user-a")

	rec := env.do(http.MethodDelete, "/api/delete-movies/"+id, "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Movie deleted successfully"}`, rec.Body.String())

	rec = env.do(http.MethodDelete, "/api/delete-movies/"+id, "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Movie not found"}`, rec.Body.String())

	events := env.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, queue.EntryDeleted, events[1].Type)
}

func TestOtherUserSeesNotFound(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, "/api/create-movies", movieBody, "user-a")
	tokB := tokenFor(t, "user-b")

	rec := env.do(http.MethodGet, "/api/get-movie/"+id, "", tokB)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPut, "/api/update-movie/"+id, `{"rating":1}`, tokB)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/delete-movies/"+id, "", tokB)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e, err := env.entries.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, e.Rating)
}

func TestKindMismatchIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	tok := tokenFor(t, "user-a")
	movieID := env.create(t, "/api/create-movies", movieBody, "user-a")
	seriesID := env.create(t, "/api/create-series", seriesBody, "user-a")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/get-series/"+movieID, "", tok).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/get-movie/"+seriesID, "", tok).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/delete-series/"+movieID, "", tok).Code)
	assert.Equal(t, 2, env.entries.count())
}

func TestGet_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/get-movie/does-not-exist", "", tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList_ScopedToOwnerAndKind(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		env.create(t, "/api/create-movies", movieBody, "user-a")
	}
	env.create(t, "/api/create-series", seriesBody, "user-a")
	env.create(t, "/api/create-movies", movieBody, "user-c")

	rec := env.do(http.MethodGet, "/api/get-movies", "", tokenFor(t, "user-a"))
	require.Equal(t, http.StatusOK, rec.Code)
	var movies []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &movies))
	assert.Len(t, movies, 2)
	for _, m := range movies {
		assert.Equal(t, "user-a", m["owner"])
		assert.Equal(t, "movie", m["type"])
	}

	rec = env.do(http.MethodGet, "/api/get-series", "", tokenFor(t, "user-a"))
	require.Equal(t, http.StatusOK, rec.Code)
	var series []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Len(t, series, 1)
}

func TestList_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.entries.listErr = errors.New("connection refused")

	rec := env.do(http.MethodGet, "/api/get-series", "", tokenFor(t, "user-a"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Failed to fetch series entries","error":"connection refused"}`,
		rec.Body.String())
}

// User A creates an entry, user B lists theirs and sees an empty array.
func TestEndToEnd_TwoUsers(t *testing.T) {
	env := newTestEnv(t)

	regA := env.do(http.MethodPost, "/api/register", `{"username":"a","email":"a@example.com","password":"password-a"}`, "")
	require.Equal(t, http.StatusCreated, regA.Code, regA.Body.String())
	regB := env.do(http.MethodPost, "/api/register", `{"username":"b","email":"b@example.com","password":"password-b"}`, "")
	require.Equal(t, http.StatusCreated, regB.Code, regB.Body.String())

	rec := env.do(http.MethodPost, "/api/create-movies", movieBody, "", cookieNamed(t, regA, "token"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ownerA := decode(t, regA)["user"].(map[string]any)["_id"]
	assert.Equal(t, ownerA, decode(t, rec)["data"].(map[string]any)["owner"])

	rec = env.do(http.MethodGet, "/api/get-movies", "", "", cookieNamed(t, regB, "token"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	require.Fail(t, fmt.Sprintf("cookie %q not set", name))
	return nil
}
