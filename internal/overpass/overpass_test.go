package overpass

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/osm"
	"github.com/sells-group/demand-cli/internal/resilience"
)

var testBBox = geometry.BBox{MinLon: -79.5, MinLat: 43.6, MaxLon: -79.3, MaxLat: 43.7}

const envelope = `{"version":0.6,"generator":"Overpass API","osm3s":{"timestamp_osm_base":"2024-01-01T00:00:00Z","copyright":"test"},"elements":[%s]}`

const skeleton = `
{"type":"node","id":1,"lat":43.61,"lon":-79.41},
{"type":"node","id":2,"lat":43.61,"lon":-79.40},
{"type":"node","id":3,"lat":43.62,"lon":-79.40},
{"type":"node","id":4,"lat":43.62,"lon":-79.41}`

// stub serves body for every query and records the last query text.
type stub struct {
	srv     *httptest.Server
	calls   atomic.Int32
	lastQL  atomic.Value
	status  func(call int32) int
	payload string
}

func newStub(t *testing.T, elements string) *stub {
	t.Helper()
	s := &stub{payload: fmt.Sprintf(envelope, elements)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.calls.Add(1)
		require.NoError(t, r.ParseForm())
		s.lastQL.Store(r.PostForm.Get("data"))
		if s.status != nil {
			if code := s.status(n); code != http.StatusOK {
				w.WriteHeader(code)
				_, _ = w.Write([]byte("<html>error</html>"))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.payload))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stub) client(breaker *resilience.Breaker) *Client {
	return New(Config{
		Endpoint: s.srv.URL,
		Timeout:  5 * time.Second,
		Backoff:  resilience.Backoff{MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond},
		Breaker:  breaker,
	})
}

func (s *stub) query() string {
	v, _ := s.lastQL.Load().(string)
	return v
}

func TestBuildings(t *testing.T) {
	s := newStub(t, skeleton+`,
{"type":"way","id":11,"nodes":[1,2,3],"tags":{"highway":"service"}},
{"type":"way","id":10,"nodes":[1,2,3,4,1],"tags":{"building":"house","building:levels":"2"}}`)

	got, err := s.client(nil).Buildings(context.Background(), testBBox)
	require.NoError(t, err)
	require.Len(t, got, 1)

	b := got[0]
	assert.Equal(t, osm.TypeWay, b.Type)
	assert.Equal(t, int64(10), b.ID)
	assert.Equal(t, "2", b.Tag("building:levels"))
	require.Len(t, b.Geometry, 5)
	assert.Equal(t, osm.Point{Lat: 43.61, Lon: -79.41}, b.Geometry[0])
	assert.Equal(t, b.Geometry[0], b.Geometry[4])

	q := s.query()
	assert.Contains(t, q, `way["building"](43.6,-79.5,43.7,-79.3);`)
	assert.Contains(t, q, "[out:json][timeout:5];")
	assert.Contains(t, q, "out skel qt;")
}

func TestPlaces(t *testing.T) {
	s := newStub(t, skeleton+`,
{"type":"node","id":101,"lat":43.65,"lon":-79.38,"tags":{"amenity":"school"}},
{"type":"node","id":100,"lat":43.66,"lon":-79.39,"tags":{"place":"neighbourhood","name":"Annex"}},
{"type":"node","id":102,"lat":43.66,"lon":-79.39,"tags":{"place":"city"}},
{"type":"way","id":20,"nodes":[1,2,3,4,1],"tags":{"place":"quarter","name":"Old Town"}}`)

	got, err := s.client(nil).Places(context.Background(), testBBox)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(100), got[0].ID)
	assert.Equal(t, "Annex", got[0].Tag("name"))
	assert.InDelta(t, 43.66, got[0].Lat, 1e-9)
	assert.Equal(t, int64(101), got[1].ID)
	assert.Equal(t, osm.TypeWay, got[2].Type)

	bb, ok := got[2].BBox()
	require.True(t, ok)
	assert.Equal(t, geometry.BBox{MinLon: -79.41, MinLat: 43.61, MaxLon: -79.40, MaxLat: 43.62}, bb)

	assert.Contains(t, s.query(), `nwr["place"="quarter"](43.6,-79.5,43.7,-79.3);`)
}

func TestPlaces_Relations(t *testing.T) {
	s := newStub(t, `
{"type":"relation","id":500,"members":[{"type":"way","ref":50,"role":"outer"},{"type":"node","ref":9,"role":"label"}],"tags":{"place":"neighbourhood","name":"Riverdale"}},
{"type":"relation","id":501,"members":[{"type":"way","ref":51,"role":"outer"}],"tags":{"place":"neighbourhood","name":"Unresolved"}},
{"type":"relation","id":502,"members":[{"type":"way","ref":50,"role":"outer"}],"tags":{"boundary":"administrative"}},
{"type":"way","id":50,"nodes":[5,6,7,8,5]},
{"type":"node","id":5,"lat":43.66,"lon":-79.36},
{"type":"node","id":6,"lat":43.66,"lon":-79.34},
{"type":"node","id":7,"lat":43.68,"lon":-79.34},
{"type":"node","id":8,"lat":43.68,"lon":-79.36},
{"type":"node","id":9,"lat":43.67,"lon":-79.35}`)

	got, err := s.client(nil).Places(context.Background(), testBBox)
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, osm.TypeRelation, r.Type)
	assert.Equal(t, int64(500), r.ID)
	assert.Equal(t, "Riverdale", r.Tag("name"))
	require.NotNil(t, r.Bounds)

	bb, ok := r.BBox()
	require.True(t, ok)
	assert.InDelta(t, -79.36, bb.MinLon, 1e-9)
	assert.InDelta(t, 43.66, bb.MinLat, 1e-9)
	assert.InDelta(t, -79.34, bb.MaxLon, 1e-9)
	assert.InDelta(t, 43.68, bb.MaxLat, 1e-9)
}

func TestRoads(t *testing.T) {
	s := newStub(t, skeleton+`,
{"type":"way","id":30,"nodes":[1,2],"tags":{"highway":"primary","name":"Bloor Street","name:fr":"Rue Bloor"}},
{"type":"way","id":31,"nodes":[2,3],"tags":{"highway":"motorway","name":"Gardiner","noname":"yes"}},
{"type":"way","id":32,"nodes":[3,4],"tags":{"highway":"service","name":"Lane"}},
{"type":"way","id":33,"nodes":[3,4],"tags":{"highway":"residential","ref":" R7 "}}`)

	fc, err := s.client(nil).Roads(context.Background(), testBBox, "fr-CA")
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	f := fc.Features[0]
	assert.Equal(t, "way/30", f.ID)
	assert.Equal(t, map[string]any{"roadClass": "major", "structure": "normal", "name": "Rue Bloor"}, f.Properties)
	ls, ok := f.Geometry.(*geom.LineString)
	require.True(t, ok)
	assert.Equal(t, []float64{-79.41, 43.61, -79.40, 43.61}, ls.FlatCoords())

	assert.Equal(t, "highway", fc.Features[1].Properties["roadClass"])
	assert.Equal(t, "", fc.Features[1].Properties["name"])
	assert.Equal(t, "minor", fc.Features[2].Properties["roadClass"])
	assert.Equal(t, "R7", fc.Features[2].Properties["name"])
}

func TestQuery_RetriesRateLimit(t *testing.T) {
	s := newStub(t, skeleton)
	s.status = func(n int32) int {
		if n == 1 {
			return http.StatusTooManyRequests
		}
		return http.StatusOK
	}

	_, err := s.client(nil).Buildings(context.Background(), testBBox)
	require.NoError(t, err)
	assert.Equal(t, int32(2), s.calls.Load())
}

func TestQuery_PermanentFailure(t *testing.T) {
	s := newStub(t, skeleton)
	s.status = func(int32) int { return http.StatusBadRequest }

	_, err := s.client(nil).Buildings(context.Background(), testBBox)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overpass: buildings")
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestQuery_BreakerStopsCalls(t *testing.T) {
	s := newStub(t, skeleton)
	s.status = func(int32) int { return http.StatusBadRequest }
	breaker := resilience.NewBreaker(1, time.Hour)
	c := s.client(breaker)

	_, err := c.Buildings(context.Background(), testBBox)
	require.Error(t, err)
	_, err = c.Places(context.Background(), testBBox)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(1), s.calls.Load())
}

func TestQuery_Cancelled(t *testing.T) {
	s := newStub(t, skeleton)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.client(nil).Roads(ctx, testBBox, "en")
	require.Error(t, err)
	assert.Zero(t, s.calls.Load())
}

func TestStreetName(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"localized", map[string]string{"name:de": "Hauptstraße", "name": "Main"}, "Hauptstraße"},
		{"blank localized", map[string]string{"name:de": "  ", "name": "Main"}, "Main"},
		{"ref", map[string]string{"ref": "A1"}, "A1"},
		{"noname", map[string]string{"noname": "yes", "name": "Main"}, ""},
		{"none", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StreetName(tt.tags, "de"))
		})
	}
}

func TestLocaleLanguage(t *testing.T) {
	assert.Equal(t, "fr", LocaleLanguage("fr-CA"))
	assert.Equal(t, "en", LocaleLanguage("en"))
	assert.Equal(t, "pt", LocaleLanguage("pt-BR"))
	assert.Equal(t, "en", LocaleLanguage("not a locale!"))
}
