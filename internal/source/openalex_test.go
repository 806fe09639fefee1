package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oogsj/coastwatch/internal/domain"
)

func TestOpenAlexFetchDocuments(t *testing.T) {
	page1 := `{
		"meta": {"count": 3, "per_page": 2},
		"results": [
			{
				"doi": "https://doi.org/10.1000/gsj.2020.123",
				"title": "Coastal Dynamics of Golfo San Jorge",
				"publication_year": 2020,
				"cited_by_count": 12,
				"primary_location": {
					"landing_page_url": "https://example.org/gsj",
					"source": {"display_name": "Journal of Marine Systems"}
				},
				"authorships": [
					{"author": {"display_name": "A. Researcher"}},
					{"author": {"display_name": "B. Colleague"}}
				]
			},
			{
				"doi": null,
				"title": "Wave Climate off Caleta Cordova",
				"publication_year": 2019,
				"cited_by_count": 3,
				"authorships": [{"author": {"display_name": "C. Author"}}]
			}
		]
	}`
	page2 := `{
		"meta": {"count": 3, "per_page": 2},
		"results": [
			{"doi": null, "title": "", "publication_year": 2018},
			{
				"doi": "https://doi.org/10.1000/gsj.2021.7",
				"title": "Tidal Energy Potential",
				"publication_year": 2021,
				"cited_by_count": 1,
				"authorships": []
			}
		]
	}`

	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pages = append(pages, q.Get("page"))
		assert.Equal(t, `title.search:"golfo san jorge"`, q.Get("filter"))
		assert.Equal(t, "2", q.Get("per-page"))

		switch q.Get("page") {
		case "1":
			fmt.Fprint(w, page1)
		case "2":
			fmt.Fprint(w, page2)
		default:
			fmt.Fprint(w, `{"meta":{"count":3,"per_page":2},"results":[]}`)
		}
	}))
	defer srv.Close()

	o := NewOpenAlex(OpenAlexConfig{
		URL:     srv.URL,
		Filter:  `title.search:"golfo san jorge"`,
		PerPage: 2,
	}, NewClient(5*time.Second, 1000), testLogger())

	docs, err := o.FetchDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages, "pagination stops once meta.count is covered")

	require.Len(t, docs, 3, "the untitled work is dropped")

	first := docs[0]
	assert.Equal(t, "10.1000/gsj.2020.123", first.DOI, "the doi.org prefix is stripped")
	assert.Equal(t, "Coastal Dynamics of Golfo San Jorge", first.Title)
	assert.Equal(t, 2020, first.Year)
	assert.Equal(t, "Journal of Marine Systems", first.Venue)
	assert.Equal(t, 12, first.Citations)
	assert.Equal(t, "https://example.org/gsj", first.URL)
	assert.Equal(t, []string{"A. Researcher", "B. Colleague"}, first.Authors)
	assert.NotEmpty(t, first.Raw, "the raw work is kept for provenance")

	assert.Equal(t, "", docs[1].DOI)
	assert.Equal(t, "C. Author", docs[1].FirstAuthor())
	assert.Empty(t, docs[2].Authors)
}

func TestOpenAlexServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOpenAlex(OpenAlexConfig{URL: srv.URL, Filter: "x"},
		NewClient(5*time.Second, 1000), testLogger())

	_, err := o.FetchDocuments(context.Background())
	require.Error(t, err)

	var netErr *domain.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestOpenAlexMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer srv.Close()

	o := NewOpenAlex(OpenAlexConfig{URL: srv.URL, Filter: "x"},
		NewClient(5*time.Second, 1000), testLogger())

	_, err := o.FetchDocuments(context.Background())
	require.Error(t, err)

	var formatErr *domain.FormatError
	assert.ErrorAs(t, err, &formatErr)
}
