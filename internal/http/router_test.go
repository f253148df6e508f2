package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	dataagg "github.com/oriadata/orgmaster/internal/data/aggregates"
	"github.com/oriadata/orgmaster/internal/data/aggregates/testutil"
	"github.com/oriadata/orgmaster/internal/domain"
	httpserver "github.com/oriadata/orgmaster/internal/http"
	httpH "github.com/oriadata/orgmaster/internal/http/handlers"
	httpMW "github.com/oriadata/orgmaster/internal/http/middleware"
	"github.com/oriadata/orgmaster/internal/pkg/logger"
	"github.com/oriadata/orgmaster/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type routerFixture struct {
	store  *testutil.MemStore
	engine *gin.Engine
	source *domain.Source
	scheme *domain.IDScheme
}

func newRouterFixture(t *testing.T, secret string) *routerFixture {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := testutil.NewMemStore()
	f := &routerFixture{
		store:  store,
		source: store.AddSource("registrar"),
		scheme: store.AddScheme("agency-code"),
	}
	base := dataagg.BaseDeps{Runner: &testutil.InjectedTxRunner{}, Log: log}
	orgAgg := dataagg.NewOrgAggregate(dataagg.OrgAggregateDeps{
		Base:          base,
		Orgs:          store.OrgRepo(),
		Aliases:       store.AliasRepo(),
		Relationships: store.RelationshipRepo(),
		Correlations:  store.CorrelationRepo(),
		Locations:     store.LocationRepo(),
		MergeEvents:   store.MergeEventRepo(),
	})
	aliasAgg := dataagg.NewAliasAggregate(dataagg.AliasAggregateDeps{
		Base: base, Orgs: store.OrgRepo(), Aliases: store.AliasRepo(),
	})
	relAgg := dataagg.NewRelationshipAggregate(dataagg.RelationshipAggregateDeps{
		Base: base, Orgs: store.OrgRepo(), Relationships: store.RelationshipRepo(), RelTypes: store.RelTypeRepo(),
	})
	corrAgg := dataagg.NewCorrelationAggregate(dataagg.CorrelationAggregateDeps{
		Base: base, Orgs: store.OrgRepo(), Correlations: store.CorrelationRepo(), Schemes: store.SchemeRepo(),
	})
	locAgg := dataagg.NewLocationAggregate(dataagg.LocationAggregateDeps{
		Base: base, Orgs: store.OrgRepo(), Locations: store.LocationRepo(), Postcodes: store.PostcodeRepo(),
	})

	reporting := services.NewReportingService(nil, log, nil,
		store.OrgRepo(), store.AliasRepo(), store.RelationshipRepo(),
		store.CorrelationRepo(), store.LocationRepo(), store.MergeEventRepo(),
		store.RelTypeRepo())
	registry := services.NewRegistryService(nil, log,
		store.SourceRepo(), store.SchemeRepo(), store.RelTypeRepo(), store.PostcodeRepo())
	ingest := services.NewIngestService(nil, log, nil, 2,
		store.SourceRepo(), store.SchemeRepo(), store.IngestRepo(), store.CorrelationRepo(),
		orgAgg, aliasAgg, corrAgg, locAgg)

	f.engine = httpserver.NewRouter(httpserver.RouterConfig{
		Log:                 log,
		AuthMiddleware:      httpMW.NewAuthMiddleware(log, secret),
		RegistryHandler:     httpH.NewRegistryHandler(registry),
		OrgHandler:          httpH.NewOrgHandler(orgAgg, reporting),
		AliasHandler:        httpH.NewAliasHandler(aliasAgg, reporting),
		LocationHandler:     httpH.NewLocationHandler(locAgg, reporting),
		RelationshipHandler: httpH.NewRelationshipHandler(relAgg, reporting),
		CorrelationHandler:  httpH.NewCorrelationHandler(corrAgg, reporting),
		IngestHandler:       httpH.NewIngestHandler(ingest),
		HealthHandler:       httpH.NewHealthHandler(nil),
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).
		SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestRouter_WritesRequireToken(t *testing.T) {
	const secret = "feed-secret"
	f := newRouterFixture(t, secret)
	body := gin.H{"name": "Acme University", "source_id": f.source.ID}

	if w := f.do(t, "POST", "/api/orgs", "", body); w.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", w.Code)
	}
	if w := f.do(t, "POST", "/api/orgs", signToken(t, "wrong-secret", "feed"), body); w.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("bad token: want 401, got %d", w.Code)
	}
	w := f.do(t, "POST", "/api/orgs", signToken(t, secret, "feed"), body)
	if w.Code != stdhttp.StatusCreated {
		t.Fatalf("good token: want 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_EmptySecretDisablesAuth(t *testing.T) {
	f := newRouterFixture(t, "")
	w := f.do(t, "POST", "/api/orgs", "", gin.H{"name": "Acme University", "source_id": f.source.ID})
	if w.Code != stdhttp.StatusCreated {
		t.Fatalf("dev mode write: want 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_OrgLifecycleOverHTTP(t *testing.T) {
	f := newRouterFixture(t, "")

	w := f.do(t, "POST", "/api/orgs", "", gin.H{"name": "Acme University", "source_id": f.source.ID})
	if w.Code != stdhttp.StatusCreated {
		t.Fatalf("create: %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		OrgID int64 `json:"OrgID"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.OrgID == 0 {
		t.Fatalf("create response: %s / %v", w.Body.String(), err)
	}

	w = f.do(t, "GET", fmt.Sprintf("/api/orgs/%d", created.OrgID), "", nil)
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("get: %d: %s", w.Code, w.Body.String())
	}
	var org domain.ExternalOrg
	if err := json.Unmarshal(w.Body.Bytes(), &org); err != nil || org.Name != "Acme University" {
		t.Fatalf("get body: %s / %v", w.Body.String(), err)
	}

	if w = f.do(t, "GET", "/api/orgs/424242", "", nil); w.Code != stdhttp.StatusNotFound {
		t.Fatalf("unknown org: want 404, got %d", w.Code)
	}
	if w = f.do(t, "GET", "/api/orgs/not-a-number", "", nil); w.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bad id: want 400, got %d", w.Code)
	}
}

func TestRouter_CorrelationConflictMapsTo409(t *testing.T) {
	f := newRouterFixture(t, "")
	rival := f.store.AddSource("finance-feed")

	w := f.do(t, "POST", "/api/orgs", "", gin.H{"name": "Acme University", "source_id": f.source.ID})
	var created struct {
		OrgID int64 `json:"OrgID"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.OrgID == 0 {
		t.Fatalf("create: %s / %v", w.Body.String(), err)
	}
	path := fmt.Sprintf("/api/orgs/%d/correlations", created.OrgID)

	w = f.do(t, "POST", path, "", gin.H{"master_id": created.OrgID, "scheme_id": f.scheme.ID, "other_id": "A-1", "source_id": f.source.ID})
	if w.Code != stdhttp.StatusCreated {
		t.Fatalf("correlate: %d: %s", w.Code, w.Body.String())
	}
	w = f.do(t, "POST", path, "", gin.H{"master_id": created.OrgID, "scheme_id": f.scheme.ID, "other_id": "A-1", "source_id": rival.ID})
	if w.Code != stdhttp.StatusConflict {
		t.Fatalf("cross-source collision: want 409, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, "GET", fmt.Sprintf("/api/resolve?scheme_id=%d&other_id=A-1", f.scheme.ID), "", nil)
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("resolve: %d: %s", w.Code, w.Body.String())
	}
	var resolved struct {
		MasterID int64 `json:"master_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil || resolved.MasterID != created.OrgID {
		t.Fatalf("resolve body: %s / %v", w.Body.String(), err)
	}
	if w = f.do(t, "GET", fmt.Sprintf("/api/resolve?scheme_id=%d&other_id=nobody", f.scheme.ID), "", nil); w.Code != stdhttp.StatusNotFound {
		t.Fatalf("resolve miss: want 404, got %d", w.Code)
	}
}

func TestRouter_IngestBatchRoundTrip(t *testing.T) {
	f := newRouterFixture(t, "")

	w := f.do(t, "POST", "/api/ingest/batches", "", gin.H{
		"source_id": f.source.ID,
		"scheme_id": f.scheme.ID,
		"records":   []gin.H{{"local_id": "F-1", "name": "Acme University"}},
	})
	if w.Code != stdhttp.StatusCreated {
		t.Fatalf("submit batch: %d: %s", w.Code, w.Body.String())
	}
	var res services.FeedBatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.Created != 1 {
		t.Fatalf("batch result: %s / %v", w.Body.String(), err)
	}

	w = f.do(t, "GET", fmt.Sprintf("/api/ingest/batches/%s/records", res.BatchID), "", nil)
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("batch records: %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_Healthcheck(t *testing.T) {
	f := newRouterFixture(t, "")
	if w := f.do(t, "GET", "/healthcheck", "", nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("healthcheck: %d", w.Code)
	}
}
