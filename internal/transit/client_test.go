package transit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/transit"
)

func TestClientStopStatus_PostsFormAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ajax/bilgi.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "58001", r.PostForm.Get("durak_no"))
		assert.Equal(t, "durakhatbilgisi", r.PostForm.Get("tipi"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hatlar": [{"hatNo": "22-M", "dakika": "4"}]}`))
	}))
	defer srv.Close()

	c := transit.NewClient(srv.URL, srv.Client())

	payload, err := c.StopStatus(context.Background(), "58001")
	require.NoError(t, err)

	node, ok := transit.FindLine(payload, "22M")
	require.True(t, ok)
	assert.Equal(t, "4", node["dakika"])
}

func TestClientStopStatus_NonSuccessStatusIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := transit.NewClient(srv.URL, srv.Client())

	_, err := c.StopStatus(context.Background(), "58001")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestClientStopStatus_UndecodableBodyIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>bakim</html>"))
	}))
	defer srv.Close()

	c := transit.NewClient(srv.URL, srv.Client())

	_, err := c.StopStatus(context.Background(), "58001")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestClientStopStatus_ConnectionRefusedIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // shut down immediately so the dial fails

	c := transit.NewClient(srv.URL, nil)

	_, err := c.StopStatus(context.Background(), "58001")
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestClientRouteSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/nasilgiderim/nasilgiderim.php", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("baslangic"), "36.79")
		assert.Contains(t, r.PostForm.Get("bitis"), "36.81")

		_, _ = w.Write([]byte(`[{"cozum": "1", "hatNo": "H022|22-M"}]`))
	}))
	defer srv.Close()

	c := transit.NewClient(srv.URL, srv.Client())

	routes, err := c.RouteSuggestions(context.Background(),
		domain.Coordinates{Lat: 36.79, Lng: 34.56},
		domain.Coordinates{Lat: 36.81, Lng: 34.60},
	)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "1", routes[0]["cozum"])
}

func TestClientRouteSuggestions_NonArrayBodyMeansNoRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"rota bulunamadi"`))
	}))
	defer srv.Close()

	c := transit.NewClient(srv.URL, srv.Client())

	routes, err := c.RouteSuggestions(context.Background(),
		domain.Coordinates{Lat: 1, Lng: 2}, domain.Coordinates{Lat: 3, Lng: 4})
	require.NoError(t, err)
	assert.Empty(t, routes)
}
