package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
	"github.com/ignite/adcontrol/internal/pkg/httputil"
)

// SearchAdsLibrary proxies a query to the upstream platform's public Ads
// Library transparency endpoint.
func (h *Handlers) SearchAdsLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AdsLibraryFilter{
		Country:   q.Get("country"),
		Query:     q.Get("q"),
		PageID:    q.Get("page_id"),
		PageToken: q.Get("after"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateFrom = t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.DateTo = t
		}
	}

	entries, err := h.Upstream.SearchAdsLibrary(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	httputil.OK(w, entries)
}
