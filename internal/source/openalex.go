package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/oogsj/coastwatch/internal/domain"
)

// OpenAlexConfig configures the literature metadata adapter.
type OpenAlexConfig struct {
	URL     string
	Filter  string // OpenAlex filter expression selecting the works of interest
	PerPage int
}

// OpenAlex fetches work metadata from the OpenAlex API for the configured
// filter and maps each result to a document record.
type OpenAlex struct {
	cfg    OpenAlexConfig
	client *Client
	logger *slog.Logger
}

// NewOpenAlex creates the literature adapter.
func NewOpenAlex(cfg OpenAlexConfig, client *Client, logger *slog.Logger) *OpenAlex {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 200
	}
	return &OpenAlex{cfg: cfg, client: client, logger: logger}
}

func (o *OpenAlex) Name() string { return "documents" }

type openAlexWork struct {
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	PublicationYear int    `json:"publication_year"`
	CitedByCount    int    `json:"cited_by_count"`
	PrimaryLocation struct {
		LandingPageURL string `json:"landing_page_url"`
		Source         struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
}

// FetchDocuments pulls all pages for the filter. Works without a title are
// skipped; everything else is kept, including works with no DOI, which are
// later matched heuristically.
func (o *OpenAlex) FetchDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document

	for page := 1; ; page++ {
		q := url.Values{
			"filter":   {o.cfg.Filter},
			"per-page": {strconv.Itoa(o.cfg.PerPage)},
			"page":     {strconv.Itoa(page)},
		}
		body, err := o.client.Get(ctx, o.Name(), o.cfg.URL+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Results []json.RawMessage `json:"results"`
			Meta    struct {
				Count   int `json:"count"`
				PerPage int `json:"per_page"`
			} `json:"meta"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &domain.FormatError{Source: o.Name(), Err: err}
		}

		for _, raw := range payload.Results {
			var work openAlexWork
			if err := json.Unmarshal(raw, &work); err != nil {
				o.logger.Warn("skipping undecodable work", "error", err)
				continue
			}
			if strings.TrimSpace(work.Title) == "" {
				continue
			}

			doc := domain.Document{
				DOI:       strings.TrimPrefix(work.DOI, "https://doi.org/"),
				Title:     work.Title,
				Year:      work.PublicationYear,
				Venue:     work.PrimaryLocation.Source.DisplayName,
				Citations: work.CitedByCount,
				URL:       work.PrimaryLocation.LandingPageURL,
				Raw:       raw,
			}
			for _, a := range work.Authorships {
				if name := strings.TrimSpace(a.Author.DisplayName); name != "" {
					doc.Authors = append(doc.Authors, name)
				}
			}
			docs = append(docs, doc)
		}

		if len(payload.Results) == 0 || page*o.cfg.PerPage >= payload.Meta.Count {
			break
		}
	}

	return docs, nil
}
