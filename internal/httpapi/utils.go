package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"ocpihub/internal/models"
)

func readAll(r *http.Request, limit int64) ([]byte, error) {
	body := http.MaxBytesReader(nil, r.Body, limit)
	defer body.Close()
	return io.ReadAll(body)
}

func parsePageFilter(r *http.Request) models.PageFilter {
	q := r.URL.Query()
	var f models.PageFilter
	if t, err := time.Parse(time.RFC3339, q.Get("date_from")); err == nil {
		f.From = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("date_to")); err == nil {
		f.To = &t
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		f.Offset = n
	}
	f.Limit = 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 200 {
		f.Limit = n
	}
	return f
}

// ownerFilter reads the optional ?country_code=&party_id= collection filter.
func ownerFilter(r *http.Request) *models.PartyRef {
	cc := r.URL.Query().Get("country_code")
	pid := r.URL.Query().Get("party_id")
	if cc == "" || pid == "" {
		return nil
	}
	return &models.PartyRef{CountryCode: cc, PartyID: pid}
}
