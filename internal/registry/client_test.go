package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/guc-preloader/internal/fetcher/colly"
)

type fakeFetcher struct {
	body []byte
	err  error
	req  collyfetcher.Request
}

func (f *fakeFetcher) Fetch(_ context.Context, req collyfetcher.Request) (collyfetcher.Response, error) {
	f.req = req
	if f.err != nil {
		return collyfetcher.Response{}, f.err
	}
	return collyfetcher.Response{StatusCode: http.StatusOK, Body: f.body}, nil
}

func TestWebsitesDecodesEntries(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: []byte(`{"websites":[{"name":"Alice","url":"https://alice.example/ "},{"name":"Bob","url":"https://bob.example"}]}`)}
	client := NewClient("https://registry.example/list.json", fetcher, nil)

	sites, err := client.Websites(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Website{
		{Name: "Alice", URL: "https://alice.example/ "},
		{Name: "Bob", URL: "https://bob.example"},
	}, sites)
	require.Equal(t, "https://registry.example/list.json", fetcher.req.URL)
	require.Equal(t, "application/json", fetcher.req.Headers.Get("Accept"))
}

func TestWebsitesPropagatesFetchErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	client := NewClient("https://registry.example/list.json", &fakeFetcher{err: boom}, nil)
	_, err := client.Websites(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestWebsitesWithoutFetcher(t *testing.T) {
	t.Parallel()

	_, err := NewClient("https://registry.example/list.json", nil, nil).Websites(context.Background())
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    []Website
		wantErr error
	}{
		{name: "empty list", body: `{"websites":[]}`, want: []Website{}},
		{name: "missing key", body: `{"sites":[]}`, wantErr: ErrMissingWebsites},
		{name: "null list", body: `{"websites":null}`, wantErr: ErrMissingWebsites},
		{name: "malformed", body: `{"websites":[`},
		{name: "not json", body: `<html></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode([]byte(tt.body))
			if tt.want != nil {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWebsitesOverColly(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			http.Error(w, "json only", http.StatusNotAcceptable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"websites":[{"name":"Alice","url":"https://alice.example/"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/list.json", collyfetcher.New(collyfetcher.Config{}), nil)
	sites, err := client.Websites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, "Alice", sites[0].Name)
}
