package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens hands out a token per URL substring and remembers which URLs asked.
type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]string
	asked  []string
}

func (f *fakeTokens) TokenForURL(rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, rawURL)
	for part, tok := range f.tokens {
		if strings.Contains(rawURL, part) {
			return tok, nil
		}
	}
	if tok, ok := f.tokens["*"]; ok {
		return tok, nil
	}
	return "", shared.ErrNotAuthenticated
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []*models.APICall
}

func (f *fakeRecorder) Create(call *models.APICall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func quietLogger() *log.Logger {
	l := shared.NewLogger(&strings.Builder{})
	l.SetLevel(log.FatalLevel)
	return l
}

func fastRetries() *shared.NetworkConfig {
	cfg := shared.DefaultNetworkConfig()
	cfg.Retries.BackoffFactor = 0.001
	return cfg
}

func newTestClient(t *testing.T, srv *httptest.Server, tokens TokenSource, rec Recorder) *Client {
	t.Helper()
	if tokens == nil {
		tokens = &fakeTokens{tokens: map[string]string{"*": "tok"}}
	}
	opts := Options{
		Endpoints: Endpoints{
			RDE:        srv.URL + "/rde",
			User:       srv.URL + "/user",
			Material:   srv.URL + "/material",
			Instrument: srv.URL + "/instrument",
			Entry:      srv.URL + "/entry",
		},
		HTTPClient: srv.Client(),
		Network:    fastRetries(),
		Logger:     quietLogger(),
	}
	if rec != nil {
		opts.Recorder = rec
	}
	c, err := NewClient(tokens, opts)
	require.NoError(t, err)
	return c
}

func TestClientRequests(t *testing.T) {
	t.Run("list datasets sends JSON:API headers and defaults", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			w.Header().Set("Content-Type", models.MediaType)
			w.Write([]byte(`{"data":[{"type":"dataset","id":"d1","attributes":{"name":"A"}}],"meta":{"resultCount":1}}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		resp, err := c.ListDatasets(context.Background(), ListOptions{})
		require.NoError(t, err)

		assert.Equal(t, "/rde/datasets", got.URL.Path)
		q := got.URL.Query()
		assert.Equal(t, "5000", q.Get("page[limit]"))
		assert.Equal(t, "0", q.Get("page[offset]"))
		assert.Equal(t, "-modified", q.Get("sort"))
		assert.Equal(t, "manager,releases", q.Get("include"))
		assert.Equal(t, "version,releaseNumber", q.Get("fields[release]"))
		assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
		assert.Equal(t, models.MediaType, got.Header.Get("Accept"))
		assert.Equal(t, DefaultSiteOrigin, got.Header.Get("Origin"))
		assert.NotEmpty(t, got.Header.Get("X-Request-Id"))

		doc, err := resp.Document()
		require.NoError(t, err)
		total, _ := doc.ResultCount()
		assert.Equal(t, 1, total)
	})

	t.Run("token chosen per host", func(t *testing.T) {
		var auths sync.Map
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auths.Store(r.URL.Path, r.Header.Get("Authorization"))
			w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		tokens := &fakeTokens{tokens: map[string]string{"/material": "mat", "*": "rde"}}
		c := newTestClient(t, srv, tokens, nil)

		_, err := c.Samples(context.Background(), "g1")
		require.NoError(t, err)
		_, err = c.Self(context.Background())
		require.NoError(t, err)

		v, _ := auths.Load("/material/samples")
		assert.Equal(t, "Bearer mat", v)
		v, _ = auths.Load("/user/users/self")
		assert.Equal(t, "Bearer rde", v)
	})

	t.Run("missing token never reaches the network", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
		defer srv.Close()

		c := newTestClient(t, srv, &fakeTokens{tokens: map[string]string{}}, nil)
		_, err := c.RootGroup(context.Background())
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
		assert.Zero(t, hits.Load())
	})

	t.Run("group fetch includes children and members", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			w.Write([]byte(`{"data":{"type":"group","id":"root"}}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.RootGroup(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/rde/groups/root", got.URL.Path)
		assert.Equal(t, "children,members", got.URL.Query().Get("include"))
	})

	t.Run("data entries filter by dataset", func(t *testing.T) {
		var got *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.DataEntries(context.Background(), "ds-1", ListOptions{Limit: 24})
		require.NoError(t, err)
		assert.Equal(t, "ds-1", got.URL.Query().Get("filter[dataset.id]"))
		assert.Equal(t, "24", got.URL.Query().Get("page[limit]"))
		assert.Equal(t, "-created", got.URL.Query().Get("sort"))
	})
}

func TestClientErrors(t *testing.T) {
	t.Run("retries gateway errors", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		rec := &fakeRecorder{}
		c := newTestClient(t, srv, nil, rec)
		_, err := c.Licenses(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(3), hits.Load())

		require.Len(t, rec.calls, 3)
		assert.False(t, rec.calls[0].Success)
		assert.Equal(t, http.StatusServiceUnavailable, rec.calls[0].Status)
		assert.True(t, rec.calls[2].Success)
		assert.Equal(t, http.MethodGet, rec.calls[2].Method)
		assert.NotEmpty(t, rec.calls[2].CallID)
	})

	t.Run("gives up after retry budget", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.Licenses(context.Background())
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Equal(t, int32(4), hits.Load())
		assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	})

	t.Run("writes are not retried", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.Do(context.Background(), http.MethodPost, srv.URL+"/rde/datasets", []byte(`{"data":{}}`))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Equal(t, int32(1), hits.Load())

		hits.Store(0)
		_, err = c.Do(context.Background(), http.MethodPatch, srv.URL+"/rde/datasets/d1", []byte(`{"data":{}}`))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("read timeout bounds each call", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		network := fastRetries()
		network.Timeouts.Read = 1
		network.Retries.Total = 0
		c, err := NewClient(&fakeTokens{tokens: map[string]string{"*": "tok"}}, Options{
			Endpoints: Endpoints{RDE: srv.URL + "/rde"},
			Network:   network,
			Logger:    quietLogger(),
		})
		require.NoError(t, err)

		start := time.Now()
		_, err = c.Licenses(context.Background())
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("401 is token expired with JSON:API detail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"status":"401","title":"Unauthorized","detail":"token expired"}]}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.Self(context.Background())
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
		assert.ErrorIs(t, err, shared.ErrAPIRequest)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Len(t, apiErr.Errors, 1)
		assert.Contains(t, apiErr.Error(), "Unauthorized: token expired")
	})

	t.Run("404 on write is a permission gap", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not found"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		doc, err := NewSubgroupPayload(SubgroupInput{Name: "g", ParentID: "p", Roles: []Role{NewRole("u1", RoleOwner)}})
		require.NoError(t, err)

		_, err = c.CreateSubgroup(context.Background(), doc)
		assert.ErrorIs(t, err, shared.ErrForbidden)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = c.Group(context.Background(), "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.False(t, errors.Is(err, shared.ErrForbidden))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "not found", apiErr.Body)
	})

	t.Run("invalid search field", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.SearchUsers(context.Background(), "phone", "1")
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestSubgroups(t *testing.T) {
	t.Run("payload", func(t *testing.T) {
		doc, err := NewSubgroupPayload(SubgroupInput{
			Name:        "Team A",
			Description: "desc",
			Subjects:    []Subject{{GrantNumber: "JPMXP1234", Title: "Alloys"}},
			Funds:       []string{"F-1", " "},
			Roles:       []Role{NewRole("u1", "owner"), NewRole("u2", RoleAssistant), NewRole("u3", RoleViewer)},
			ParentID:    "parent-1",
		})
		require.NoError(t, err)

		r, err := doc.Resource()
		require.NoError(t, err)
		assert.Equal(t, "group", r.Type)
		assert.Empty(t, r.ID)
		assert.Equal(t, "Team A", r.String("name"))
		assert.Equal(t, []models.Identifier{{Type: "group", ID: "parent-1"}}, r.Related("parent"))

		data, _ := json.Marshal(doc)
		assert.Contains(t, string(data), `"funds":[{"fundNumber":"F-1"}]`)
		assert.Contains(t, string(data), `{"userId":"u1","role":"OWNER","canCreateDatasets":true,"canEditMembers":true}`)
		assert.Contains(t, string(data), `{"userId":"u2","role":"ASSISTANT","canCreateDatasets":true,"canEditMembers":false}`)
		assert.Contains(t, string(data), `{"userId":"u3","role":"VIEWER","canCreateDatasets":false,"canEditMembers":false}`)
	})

	t.Run("validation", func(t *testing.T) {
		owner := []Role{NewRole("u1", RoleOwner)}
		cases := map[string]SubgroupInput{
			"no name":    {ParentID: "p", Roles: owner},
			"no parent":  {Name: "g", Roles: owner},
			"no owner":   {Name: "g", ParentID: "p", Roles: []Role{NewRole("u1", RoleMember)}},
			"two owners": {Name: "g", ParentID: "p", Roles: append(owner, NewRole("u2", RoleOwner))},
		}
		for name, in := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := NewSubgroupPayload(in)
				assert.ErrorIs(t, err, shared.ErrInvalidInput)
			})
		}

		_, err := NewSubgroupUpdatePayload("", SubgroupInput{Name: "g", ParentID: "p", Roles: owner})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("update sends PATCH with id", func(t *testing.T) {
		var method, path, contentType string
		var body map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
			json.NewDecoder(r.Body).Decode(&body)
			w.Write([]byte(`{"data":{"type":"group","id":"g1"}}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		doc, err := NewSubgroupUpdatePayload("g1", SubgroupInput{Name: "g", ParentID: "p", Roles: []Role{NewRole("u1", RoleOwner)}})
		require.NoError(t, err)
		_, err = c.UpdateSubgroup(context.Background(), "g1", doc)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPatch, method)
		assert.Equal(t, "/rde/groups/g1", path)
		assert.Equal(t, models.MediaType, contentType)
		assert.Equal(t, "g1", body["data"].(map[string]any)["id"])
	})
}

func TestEntries(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		var got *http.Request
		var payload []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Clone(context.Background())
			payload, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"uploadId":"up-1"}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		id, err := c.Upload(context.Background(), "ds-1", "測定 data.csv", []byte("a,b\n1,2\n"))
		require.NoError(t, err)

		assert.Equal(t, "up-1", id)
		assert.Equal(t, "/entry/uploads", got.URL.Path)
		assert.Equal(t, "ds-1", got.URL.Query().Get("datasetId"))
		assert.Equal(t, "application/octet-stream", got.Header.Get("Content-Type"))
		assert.Equal(t, "%E6%B8%AC%E5%AE%9A%20data.csv", got.Header.Get("X-File-Name"))
		assert.Equal(t, DefaultEntryOrigin, got.Header.Get("Origin"))
		assert.Equal(t, "a,b\n1,2\n", string(payload))
	})

	t.Run("upload without id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.Upload(context.Background(), "ds-1", "x", []byte("x"))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)

		_, err = c.Upload(context.Background(), "", "x", []byte("x"))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("validate then create", func(t *testing.T) {
		var paths []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.RequestURI())
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"data":{"type":"entry","id":"e1"}}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		payload, err := NewEntryPayload(EntryInput{DatasetID: "ds", DataName: "run 1", UploadIDs: []string{"u1"}})
		require.NoError(t, err)

		_, err = c.ValidateEntry(context.Background(), payload)
		require.NoError(t, err)
		_, err = c.CreateEntry(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, []string{"/entry/entries?validationOnly=true", "/entry/entries"}, paths)
	})

	t.Run("payload", func(t *testing.T) {
		payload, err := NewEntryPayload(EntryInput{
			DatasetID:   "ds",
			DataOwnerID: "owner",
			DataName:    "run 1",
			Sample:      SampleInput{Names: []string{"S1"}, Composition: "Fe"},
			UploadIDs:   []string{"u1", "u2"},
			Attachments: []Attachment{{UploadID: "a1", Description: "notes.txt"}},
		})
		require.NoError(t, err)

		data, _ := json.Marshal(payload)
		s := string(data)
		assert.Contains(t, s, `"dataFiles":{"data":[{"type":"upload","id":"u1"},{"type":"upload","id":"u2"}]}`)
		assert.Contains(t, s, `"attachments":[{"uploadId":"a1","description":"notes.txt"}]`)
		assert.Contains(t, s, `"ownerId":"owner"`)
		assert.Contains(t, s, `"names":["S1"]`)

		existing, err := NewEntryPayload(EntryInput{DatasetID: "ds", DataName: "n", UploadIDs: []string{"u"}, Sample: SampleInput{SampleID: "s-9", Composition: "ignored"}})
		require.NoError(t, err)
		data, _ = json.Marshal(existing)
		assert.Contains(t, string(data), `"sample":{"sampleId":"s-9"}`)
		assert.NotContains(t, string(data), "ignored")

		_, err = NewEntryPayload(EntryInput{DatasetID: "ds", DataName: "n"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("input from dataset", func(t *testing.T) {
		ds := models.Resource{
			Type: "dataset",
			ID:   "ds",
			Relationships: map[string]models.Relationship{
				"applicant":   models.ToOne("user", "applicant-1"),
				"dataOwners":  models.ToMany("user", "owner-1"),
				"instruments": models.ToMany("instrument", "inst-1", "inst-2"),
			},
		}
		in := EntryInputFromDataset(ds)
		assert.Equal(t, "ds", in.DatasetID)
		assert.Equal(t, "applicant-1", in.DataOwnerID)
		assert.Equal(t, "inst-1", in.InstrumentID)

		ds.Relationships["manager"] = models.ToOne("user", "manager-1")
		assert.Equal(t, "manager-1", EntryInputFromDataset(ds).DataOwnerID)
	})
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("isDownload") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/rde/files/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("binary-content"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, nil)

	var buf bytes.Buffer
	n, err := c.DownloadFile(context.Background(), "f1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("binary-content")), n)
	assert.Equal(t, "binary-content", buf.String())

	_, err = c.DownloadFile(context.Background(), "missing", &buf)
	assert.ErrorIs(t, err, shared.ErrAPIRequest)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDownloadFileErrors(t *testing.T) {
	t.Run("401 is token expired", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"status":"401","title":"Unauthorized"}]}`))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		var buf bytes.Buffer
		_, err := c.DownloadFile(context.Background(), "f1", &buf)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
		assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
		assert.Zero(t, buf.Len())
	})

	t.Run("write failure is reported as a write", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("binary-content"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		_, err := c.DownloadFile(context.Background(), "f1", failingWriter{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to write f1")
		assert.False(t, errors.Is(err, shared.ErrAPIRequest))
	})

	t.Run("truncated body is a read failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("short"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv, nil, nil)
		var buf bytes.Buffer
		n, err := c.DownloadFile(context.Background(), "f1", &buf)
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Equal(t, int64(5), n)
	})

	t.Run("slow body outlasts the read timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for range 3 {
				w.Write([]byte("chunk"))
				flusher.Flush()
				time.Sleep(600 * time.Millisecond)
			}
		}))
		defer srv.Close()

		network := fastRetries()
		network.Timeouts.Read = 1
		c, err := NewClient(&fakeTokens{tokens: map[string]string{"*": "tok"}}, Options{
			Endpoints: Endpoints{RDE: srv.URL + "/rde"},
			Network:   network,
			Logger:    quietLogger(),
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		n, err := c.DownloadFile(context.Background(), "f1", &buf)
		require.NoError(t, err)
		assert.Equal(t, int64(15), n)
	})
}

func TestListOptions(t *testing.T) {
	q := ListOptions{
		Limit:   10,
		Offset:  20,
		Include: []string{"a", "b"},
		Fields:  map[string][]string{"user": {"id", "name"}},
		Filters: map[string]string{"emailAddress": "x@y"},
		Extra:   map[string]string{"programId": "p"},
	}.query()

	assert.Equal(t, map[string]string{
		"page[limit]":          "10",
		"page[offset]":         "20",
		"include":              "a,b",
		"fields[user]":         "id,name",
		"filter[emailAddress]": "x@y",
		"programId":            "p",
	}, q)

	assert.Empty(t, ListOptions{}.query())
}

func TestEndpointsFromConfig(t *testing.T) {
	e := EndpointsFromConfig(shared.APIConfig{RDEAPI: "http://localhost:9000/", MaterialAPI: " "})
	assert.Equal(t, "http://localhost:9000", e.RDE)
	assert.Equal(t, DefaultMaterialAPI, e.Material)
	assert.Equal(t, DefaultEntryAPI, e.Entry)
}
